package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Tracing    TracingConfig `mapstructure:"tracing"`
	Redis      RedisConfig
	Payment    PaymentConfig    `mapstructure:"payment"`
	VideoCache VideoCacheConfig `mapstructure:"video_cache"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

// LogConfig 日志配置，Level 为空时 debug 模式用 debug，其余用 info
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port    string
	Mode    string
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PaymentConfig Midtrans 支付配置
type PaymentConfig struct {
	ServerKey       string `mapstructure:"server_key"`
	ClientKey       string `mapstructure:"client_key"`
	Production      bool   `mapstructure:"production"`
	PendingTTLHours int    `mapstructure:"pending_ttl_hours"`
}

// VideoCacheConfig 视频缓存配置
type VideoCacheConfig struct {
	Backend             string `mapstructure:"backend" yaml:"backend"` // memory | disk | redis
	Dir                 string `mapstructure:"dir" yaml:"dir"`
	MaxAgeHours         int    `mapstructure:"max_age_hours" yaml:"max_age_hours"`
	MaxEntryMB          int    `mapstructure:"max_entry_mb" yaml:"max_entry_mb"`
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
	HandleTTLMinutes    int    `mapstructure:"handle_ttl_minutes" yaml:"handle_ttl_minutes"`
	MaxHandleMB         int    `mapstructure:"max_handle_mb" yaml:"max_handle_mb"`
}

func (c VideoCacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

func (c VideoCacheConfig) MaxEntryBytes() int64 {
	return int64(c.MaxEntryMB) << 20
}

func (c VideoCacheConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c VideoCacheConfig) HandleTTL() time.Duration {
	return time.Duration(c.HandleTTLMinutes) * time.Minute
}

// MaxHandleBytes 播放句柄共同持有的内存上限
func (c VideoCacheConfig) MaxHandleBytes() int64 {
	return int64(c.MaxHandleMB) << 20
}

func (c PaymentConfig) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLHours) * time.Hour
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("payment.pending_ttl_hours", 24)
	v.SetDefault("video_cache.backend", "disk")
	v.SetDefault("video_cache.dir", "cache/videos")
	v.SetDefault("video_cache.max_age_hours", 7*24)
	v.SetDefault("video_cache.max_entry_mb", 512)
	v.SetDefault("video_cache.fetch_timeout_seconds", 120)
	v.SetDefault("video_cache.handle_ttl_minutes", 60)
	v.SetDefault("video_cache.max_handle_mb", 1024)
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LMS")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.base_url", "SERVER_BASE_URL")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Payment
	v.BindEnv("payment.server_key", "MIDTRANS_SERVER_KEY")
	v.BindEnv("payment.client_key", "MIDTRANS_CLIENT_KEY")
	v.BindEnv("payment.production", "MIDTRANS_PRODUCTION")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")

	// Video cache
	v.BindEnv("video_cache.backend", "VIDEO_CACHE_BACKEND")
	v.BindEnv("video_cache.dir", "VIDEO_CACHE_DIR")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件时只依赖默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 生产环境配置校验
func (c *Config) Validate() error {
	if c.Server.Mode != "release" {
		return nil
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Payment.ServerKey == "" {
		return fmt.Errorf("payment.server_key is required in release mode")
	}
	return nil
}
