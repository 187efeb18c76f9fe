package videocache

import (
	"context"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NewStore 按配置创建存储后端
func NewStore(cfg config.VideoCacheConfig, rdb *redis.Client) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "disk", "":
		store, err := NewDiskStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := NewRedisStore(ctx, rdb)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown video cache backend %q", cfg.Backend)
	}
}

// New 创建 Resolver；存储初始化失败时降级为直接返回远程地址
func New(cfg config.VideoCacheConfig, rdb *redis.Client) *Resolver {
	store, err := NewStore(cfg, rdb)
	if err != nil {
		logger.Log.Warn("Video cache disabled", zap.String("backend", cfg.Backend), zap.Error(err))
	}
	return NewResolver(
		store,
		NewHTTPFetcher(cfg.FetchTimeout(), cfg.MaxEntryBytes()),
		NewHandleRegistry(cfg.HandleTTL(), cfg.MaxHandleBytes()),
		WithMaxAge(cfg.MaxAge()),
	)
}
