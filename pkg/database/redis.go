package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"tikitaka-go/pkg/log"
)

// InitRedis 初始化 Redis 客户端连接。addr 为空时返回 nil，调用方改用进程内实现。
func InitRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		log.Warnf("未配置 Redis，草稿、发送锁和广告计数将保存在进程内存中")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
	return rdb
}
