// Package log 封装 zap SugaredLogger。全局 logger 带 service 字段，caller 指向调用方而不是本包。
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tikitaka-go/internal/config"
)

const (
	serviceName = "tikitaka"
	logFileName = "tikitaka.log"
	timeLayout  = "2006-01-02 15:04:05.000"
)

// 未调用 Init 时（例如单元测试）丢弃所有日志。
var sugar = zap.NewNop().Sugar()

// Init 按配置构建全局 logger。
// format 为 console 时使用开发模式的彩色输出，否则输出 JSON；
// OutputPath 不为空时同时写入 <OutputPath>/tikitaka.log。
func Init(cfg config.LogConfig) error {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
		}
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
	}
	zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	zc.Level = level
	zc.OutputPaths = []string{"stdout"}
	if cfg.OutputPath != "" {
		if err := os.MkdirAll(cfg.OutputPath, 0o755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}
		zc.OutputPaths = append(zc.OutputPaths, filepath.Join(cfg.OutputPath, logFileName))
	}

	logger, err := zc.Build(zap.AddCallerSkip(1), zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		return fmt.Errorf("构建 logger 失败: %w", err)
	}
	sugar = logger.Sugar()
	return nil
}

func Debugf(template string, args ...interface{}) { sugar.Debugf(template, args...) }

func Info(msg string) { sugar.Info(msg) }

func Infof(template string, args ...interface{}) { sugar.Infof(template, args...) }

// Infow 记录带键值对的结构化日志，键统一使用 camelCase（sessionId、petId）。
func Infow(msg string, keysAndValues ...interface{}) { sugar.Infow(msg, keysAndValues...) }

func Warnf(template string, args ...interface{}) { sugar.Warnf(template, args...) }

func Warnw(msg string, keysAndValues ...interface{}) { sugar.Warnw(msg, keysAndValues...) }

// Error 记录一条附带 error 字段的日志。
func Error(msg string, err error) { sugar.Errorw(msg, "error", err) }

func Errorf(template string, args ...interface{}) { sugar.Errorf(template, args...) }

func Errorw(msg string, keysAndValues ...interface{}) { sugar.Errorw(msg, keysAndValues...) }

// Fatal 记录日志后退出进程，只在启动阶段使用。
func Fatal(msg string, err error) { sugar.Fatalw(msg, "error", err) }

func Fatalf(template string, args ...interface{}) { sugar.Fatalf(template, args...) }

// Sync 刷新缓冲的日志，程序退出前调用。
func Sync() { _ = sugar.Sync() }
