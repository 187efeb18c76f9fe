package videocache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHandleBytes 句柄共同持有的视频数据上限
const DefaultMaxHandleBytes int64 = 1 << 30

// Blob 已注册的临时播放数据，同一缓存记录的多个句柄共享同一份 Payload
type Blob struct {
	Key         string
	Payload     []byte
	ContentType string
	CreatedAt   time.Time

	seq    uint64
	shared *sharedPayload
}

type sharedPayload struct {
	key       string
	fetchedMs int64
	data      []byte
	refs      int
}

// HandleRegistry 保存临时 blob 句柄，播放页销毁时应调用 Release；超过 TTL 未释放的由 Reap 回收。
// 同一 key 同一次下载的数据只保留一份，总字节数超过 maxBytes 时淘汰最早的句柄。
type HandleRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxBytes int64
	blobs    map[string]*Blob
	current  map[string]*sharedPayload
	retained int64
	seq      uint64
	now      func() time.Time
}

// NewHandleRegistry maxBytes <= 0 时使用 DefaultMaxHandleBytes
func NewHandleRegistry(ttl time.Duration, maxBytes int64) *HandleRegistry {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxHandleBytes
	}
	return &HandleRegistry{
		ttl:      ttl,
		maxBytes: maxBytes,
		blobs:    make(map[string]*Blob),
		current:  make(map[string]*sharedPayload),
		now:      time.Now,
	}
}

// Register 为缓存记录签发新句柄
func (h *HandleRegistry) Register(entry *Entry) string {
	handle := uuid.NewString()
	fetchedMs := entry.FetchedAt.UnixMilli()

	h.mu.Lock()
	defer h.mu.Unlock()

	sp, ok := h.current[entry.Key]
	if !ok || sp.fetchedMs != fetchedMs || len(sp.data) != len(entry.Payload) {
		sp = &sharedPayload{key: entry.Key, fetchedMs: fetchedMs, data: entry.Payload}
		h.current[entry.Key] = sp
		h.retained += int64(len(sp.data))
	}
	sp.refs++

	h.seq++
	h.blobs[handle] = &Blob{
		Key:         entry.Key,
		Payload:     sp.data,
		ContentType: entry.ContentType,
		CreatedAt:   h.now(),
		seq:         h.seq,
		shared:      sp,
	}
	h.evictLocked(handle)
	return handle
}

func (h *HandleRegistry) Get(handle string) (*Blob, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.blobs[handle]
	return b, ok
}

// Release 释放句柄，返回句柄是否存在
func (h *HandleRegistry) Release(handle string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.blobs[handle]
	if !ok {
		return false
	}
	h.dropLocked(handle, b)
	return true
}

// Reap 回收超过 TTL 的句柄
func (h *HandleRegistry) Reap() int {
	if h.ttl <= 0 {
		return 0
	}
	cutoff := h.now().Add(-h.ttl)

	h.mu.Lock()
	defer h.mu.Unlock()
	reaped := 0
	for handle, b := range h.blobs {
		if b.CreatedAt.Before(cutoff) {
			h.dropLocked(handle, b)
			reaped++
		}
	}
	return reaped
}

func (h *HandleRegistry) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.blobs)
}

// RetainedBytes 句柄当前持有的视频数据总量（共享数据只计一次）
func (h *HandleRegistry) RetainedBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retained
}

func (h *HandleRegistry) dropLocked(handle string, b *Blob) {
	delete(h.blobs, handle)
	sp := b.shared
	sp.refs--
	if sp.refs > 0 {
		return
	}
	h.retained -= int64(len(sp.data))
	if h.current[sp.key] == sp {
		delete(h.current, sp.key)
	}
}

// evictLocked 超过上限时按签发顺序淘汰旧句柄，与 keep 共享数据的句柄不参与淘汰
func (h *HandleRegistry) evictLocked(keep string) {
	kept := h.blobs[keep].shared
	for h.retained > h.maxBytes {
		var (
			oldest     string
			oldestBlob *Blob
		)
		for handle, b := range h.blobs {
			if b.shared == kept {
				continue
			}
			if oldestBlob == nil || b.seq < oldestBlob.seq {
				oldest, oldestBlob = handle, b
			}
		}
		if oldestBlob == nil {
			return
		}
		h.dropLocked(oldest, oldestBlob)
	}
}
