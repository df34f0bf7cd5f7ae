// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tikitaka-go/internal/config"
	"tikitaka-go/pkg/log"
)

// PhotoStore 保存宠物照片并返回可公开访问的地址。
type PhotoStore interface {
	PutPhoto(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
}

type minioPhotoStore struct {
	client     *minio.Client
	bucketName string
	publicBase string
}

// NewMinIOPhotoStore 初始化 MinIO 客户端，确保存储桶存在，并对照片目录开放匿名读取。
func NewMinIOPhotoStore(ctx context.Context, cfg config.MinIOConfig, pathPrefix string) (PhotoStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	// 检查存储桶是否存在，如果不存在则创建
	bucketName := cfg.BucketName
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucketName)
	}

	if err := client.SetBucketPolicy(ctx, bucketName, PublicReadPolicy(bucketName, pathPrefix)); err != nil {
		// 策略设置失败不影响上传，只是地址可能无法匿名访问
		log.Warnf("设置存储桶 '%s' 读取策略失败: %v", bucketName, err)
	}

	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = scheme + "://" + cfg.Endpoint
	}
	return &minioPhotoStore{client: client, bucketName: bucketName, publicBase: publicBase}, nil
}

// PutPhoto 上传照片对象。
func (s *minioPhotoStore) PutPhoto(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传照片到 MinIO 失败: %w", err)
	}
	return PublicURL(s.publicBase, s.bucketName, objectName), nil
}

// PublicURL 拼接对象的公开访问地址。
func PublicURL(base, bucket, objectName string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.TrimLeft(objectName, "/")
}

// PublicReadPolicy 返回只对 prefix 目录开放 s3:GetObject 的存储桶策略。
func PublicReadPolicy(bucket, prefix string) string {
	resource := fmt.Sprintf("arn:aws:s3:::%s/%s/*", bucket, strings.Trim(prefix, "/"))
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["%s"]}]}`, resource)
}
