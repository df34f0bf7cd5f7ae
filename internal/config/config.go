// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，由 Init 在启动时填充一次，之后显式传递给各组件。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Upload        UploadConfig        `mapstructure:"upload"`
	Share         ShareConfig         `mapstructure:"share"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// BaseURL 是前端站点的根地址，用于拼接分享链接。
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时使用进程内存实现（仅限单实例开发环境）。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储分享令牌与运维令牌的签名配置。
type JWTConfig struct {
	Secret              string `mapstructure:"secret"`
	ShareTokenTTLHours  int    `mapstructure:"share_token_ttl_hours"`
	OpsTokenExpireHours int    `mapstructure:"ops_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	// PublicBaseURL 是对外可访问的对象地址前缀，例如 https://cdn.example.com
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
	Prompt         LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置人设提示词模板。TemplatePath 为空时使用内置模板。
type LLMPromptConfig struct {
	TemplatePath string `mapstructure:"template_path"`
}

// ChatConfig 配置聊天条数上限、广告门槛与空回复策略。
type ChatConfig struct {
	MessageCap         int          `mapstructure:"message_cap"`
	AdGate             AdGateConfig `mapstructure:"ad_gate"`
	EmptyReplyPolicy   string       `mapstructure:"empty_reply_policy"` // "skip" 或 "fallback"
	EmptyReplyFallback string       `mapstructure:"empty_reply_fallback"`
	SendLockSeconds    int          `mapstructure:"send_lock_seconds"`
}

// AdGateConfig 达到上限后，每观看一次广告解锁 Interval 条消息。
type AdGateConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Interval int  `mapstructure:"interval"`
}

// UploadConfig 配置宠物照片上传。
type UploadConfig struct {
	MaxPhotoBytes int64  `mapstructure:"max_photo_bytes"`
	PathPrefix    string `mapstructure:"path_prefix"`
}

// ShareConfig 配置分享与联系方式。
type ShareConfig struct {
	ContactEmail string `mapstructure:"contact_email"`
}

const sendLockMarginSeconds = 15

// setDefaults 为未配置的键提供默认值。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.share_token_ttl_hours", 24*30)
	v.SetDefault("jwt.ops_token_expire_hours", 12)
	v.SetDefault("kafka.topic", "tikitaka-chat-events")
	v.SetDefault("kafka.group_id", "tikitaka-transcript-indexer")
	v.SetDefault("elasticsearch.index_name", "tikitaka_chat_messages")
	v.SetDefault("minio.bucket_name", "pets")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("chat.message_cap", 10)
	v.SetDefault("chat.ad_gate.enabled", false)
	v.SetDefault("chat.ad_gate.interval", 5)
	v.SetDefault("chat.empty_reply_policy", "fallback")
	v.SetDefault("chat.empty_reply_fallback", "음... 무슨 말을 해야 할지 모르겠어 🐾 다시 말해줄래?")
	v.SetDefault("chat.send_lock_seconds", 75)
	v.SetDefault("upload.max_photo_bytes", 5*1024*1024)
	v.SetDefault("upload.path_prefix", "pet_images")
	v.SetDefault("share.contact_email", "where.all.belong@gmail.com")
}

// Load 从指定路径读取 YAML 配置，环境变量 TIKITAKA_<SECTION>_<KEY> 可覆盖同名键。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TIKITAKA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	// 发送锁必须比一次聊天接口调用活得久
	if cfg.Chat.SendLockSeconds <= cfg.LLM.TimeoutSeconds {
		cfg.Chat.SendLockSeconds = cfg.LLM.TimeoutSeconds + sendLockMarginSeconds
	}
	return &cfg, nil
}

// Init 初始化配置加载，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}
