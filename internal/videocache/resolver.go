package videocache

import (
	"context"
	"errors"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultBlobPrefix 本地 blob 地址前缀
const DefaultBlobPrefix = "/api/media/blobs/"

// Source 视频播放地址解析结果
type Source struct {
	PlayableURL     string `json:"playableUrl"`
	IsLoading       bool   `json:"isLoading"`
	ServedFromCache bool   `json:"servedFromCache"`
	Handle          string `json:"handle,omitempty"`
}

type Resolver struct {
	store      Store
	fetcher    Fetcher
	handles    *HandleRegistry
	blobPrefix string
	now        func() time.Time
	maxAge     atomic.Int64
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithBlobPrefix(prefix string) Option {
	return func(r *Resolver) { r.blobPrefix = prefix }
}

func WithMaxAge(d time.Duration) Option {
	return func(r *Resolver) { r.SetMaxAge(d) }
}

// NewResolver store 为 nil 表示缓存不可用，所有请求直接返回远程地址
func NewResolver(store Store, fetcher Fetcher, handles *HandleRegistry, opts ...Option) *Resolver {
	r := &Resolver{
		store:      store,
		fetcher:    fetcher,
		handles:    handles,
		blobPrefix: DefaultBlobPrefix,
		now:        time.Now,
	}
	r.maxAge.Store(int64(DefaultMaxAge))
	for _, opt := range opts {
		opt(r)
	}
	if r.handles == nil {
		r.handles = NewHandleRegistry(time.Hour, 0)
	}
	return r
}

func (r *Resolver) Handles() *HandleRegistry {
	return r.handles
}

func (r *Resolver) MaxAge() time.Duration {
	return time.Duration(r.maxAge.Load())
}

// SetMaxAge 配置热更新时调整保留时长
func (r *Resolver) SetMaxAge(d time.Duration) {
	if d <= 0 {
		d = DefaultMaxAge
	}
	r.maxAge.Store(int64(d))
}

// ResolvePlayableSource 返回可播放地址，任何缓存或下载失败都退回 remoteURL，不返回错误
func (r *Resolver) ResolvePlayableSource(ctx context.Context, contentKey, remoteURL string) Source {
	if contentKey == "" || remoteURL == "" {
		return Source{}
	}

	if r.store == nil || r.fetcher == nil {
		return r.fallback(contentKey, remoteURL, errors.New("video cache store unavailable"))
	}

	entry, err := r.store.Get(ctx, contentKey)
	if err != nil {
		return r.fallback(contentKey, remoteURL, err)
	}
	if entry != nil {
		monitoring.VideoCacheRequests.WithLabelValues("hit").Inc()
		handle := r.handles.Register(entry)
		return Source{
			PlayableURL:     r.blobPrefix + handle,
			ServedFromCache: true,
			Handle:          handle,
		}
	}

	payload, contentType, err := r.fetcher.Fetch(ctx, remoteURL)
	if err != nil {
		return r.fallback(contentKey, remoteURL, err)
	}
	fresh := newEntry(contentKey, payload, contentType, r.now())
	if err := r.store.Put(ctx, fresh); err != nil {
		return r.fallback(contentKey, remoteURL, err)
	}

	monitoring.VideoCacheRequests.WithLabelValues("miss").Inc()
	handle := r.handles.Register(fresh)
	return Source{
		PlayableURL: r.blobPrefix + handle,
		Handle:      handle,
	}
}

func (r *Resolver) fallback(contentKey, remoteURL string, err error) Source {
	monitoring.VideoCacheRequests.WithLabelValues("fallback").Inc()
	if errors.Is(err, ErrEntryTooLarge) {
		logger.Log.Debug("Video too large for cache, streaming remote",
			zap.String("contentKey", contentKey))
	} else {
		logger.Log.Warn("Video cache unavailable, falling back to remote url",
			zap.String("contentKey", contentKey),
			zap.Error(err))
	}
	return Source{PlayableURL: remoteURL}
}

// PurgeStaleEntries 删除超过 maxAge 的缓存并回收过期句柄，失败只记录日志
func (r *Resolver) PurgeStaleEntries(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = r.MaxAge()
	}
	if reaped := r.handles.Reap(); reaped > 0 {
		logger.Log.Debug("Reaped video blob handles", zap.Int("count", reaped))
	}
	if r.store == nil {
		return 0
	}

	removed, err := r.store.DeleteOlderThan(ctx, r.now().Add(-maxAge))
	if removed > 0 {
		monitoring.VideoCachePurged.Add(float64(removed))
		logger.Log.Info("Purged stale video cache entries", zap.Int("count", removed))
	}
	if err != nil {
		logger.Log.Warn("Video cache purge failed", zap.Error(err))
	}
	return removed
}

// PurgeAsync 后台执行一次清理，由播放页打开时触发
func (r *Resolver) PurgeAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		r.PurgeStaleEntries(ctx, 0)
	}()
}
