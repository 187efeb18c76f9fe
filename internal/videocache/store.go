// Package videocache 课时视频本地缓存：按内容 key 保存已下载的视频，命中时直接返回本地地址，失败时退回远程地址。
package videocache

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxAge 缓存默认保留时长
const DefaultMaxAge = 7 * 24 * time.Hour

var ErrEntryTooLarge = errors.New("video payload exceeds cache entry limit")

// Entry 一条缓存记录，每个 key 至多一条
type Entry struct {
	Key         string
	Payload     []byte
	Size        int64
	ContentType string
	FetchedAt   time.Time
}

// Store 缓存存储后端
type Store interface {
	// Get 未命中时返回 nil, nil
	Get(ctx context.Context, key string) (*Entry, error)
	// Put 覆盖同 key 的旧记录
	Put(ctx context.Context, entry *Entry) error
	// DeleteOlderThan 删除 FetchedAt 早于 cutoff 的记录，返回删除条数
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

func newEntry(key string, payload []byte, contentType string, fetchedAt time.Time) *Entry {
	return &Entry{
		Key:         key,
		Payload:     payload,
		Size:        int64(len(payload)),
		ContentType: contentType,
		FetchedAt:   fetchedAt,
	}
}
