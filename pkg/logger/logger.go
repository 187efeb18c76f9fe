package logger

import (
	"fmt"
	"lms_backend/internal/config"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "lms-backend"

// Log 全局日志，InitLogger 之前为 Nop，测试中无需初始化
var Log = zap.NewNop()

// InitLogger 按配置替换全局日志；日志级别写错时退回 info 并记录警告
func InitLogger(cfg *config.Config) {
	l, err := New(cfg.Log, cfg.Server.Mode, zapcore.AddSync(os.Stdout))
	if err != nil {
		fallback := cfg.Log
		fallback.Level = "info"
		l, _ = New(fallback, cfg.Server.Mode, zapcore.AddSync(os.Stdout))
		l.Warn("Invalid log level, using info", zap.String("level", cfg.Log.Level), zap.Error(err))
	}
	Log = l
}

// New 控制台输出可读格式，配置了 File 时另写一份 JSON 到滚动文件
func New(cfg config.LogConfig, mode string, console zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := resolveLevel(cfg.Level, mode)
	if err != nil {
		return nil, err
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeDuration = zapcore.SecondsDurationEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(enc), console, level),
	}
	if cfg.File != "" {
		rolling := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(rolling), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).
		With(zap.String("service", serviceName)), nil
}

func resolveLevel(level, mode string) (zapcore.Level, error) {
	if level == "" {
		if mode == "debug" {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return l, nil
}
