package videocache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls   atomic.Int32
	payload []byte
	err     error
}

func (f *countingFetcher) Fetch(_ context.Context, _ string) ([]byte, string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.payload, "video/mp4", nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*Entry, error) {
	return nil, errors.New("store closed")
}

func (brokenStore) Put(context.Context, *Entry) error {
	return errors.New("store closed")
}

func (brokenStore) DeleteOlderThan(context.Context, time.Time) (int, error) {
	return 0, errors.New("store closed")
}

const remote = "https://cdn.example.com/videos/intro.mp4"

func TestResolveSecondCallServedFromCache(t *testing.T) {
	fetcher := &countingFetcher{payload: []byte("mp4-bytes")}
	r := NewResolver(NewMemoryStore(), fetcher, NewHandleRegistry(time.Hour, 0))
	ctx := context.Background()

	first := r.ResolvePlayableSource(ctx, "lesson-video-1", remote)
	assert.False(t, first.ServedFromCache)
	assert.False(t, first.IsLoading)
	assert.True(t, strings.HasPrefix(first.PlayableURL, DefaultBlobPrefix))

	second := r.ResolvePlayableSource(ctx, "lesson-video-1", remote)
	assert.True(t, second.ServedFromCache)
	assert.True(t, strings.HasPrefix(second.PlayableURL, DefaultBlobPrefix))
	assert.NotEqual(t, first.Handle, second.Handle)

	assert.Equal(t, int32(1), fetcher.calls.Load())

	blob, ok := r.Handles().Get(second.Handle)
	require.True(t, ok)
	assert.Equal(t, []byte("mp4-bytes"), blob.Payload)
}

func TestResolveEmptyInputs(t *testing.T) {
	fetcher := &countingFetcher{payload: []byte("x")}
	r := NewResolver(NewMemoryStore(), fetcher, nil)

	assert.Equal(t, Source{}, r.ResolvePlayableSource(context.Background(), "", remote))
	assert.Equal(t, Source{}, r.ResolvePlayableSource(context.Background(), "key", ""))
	assert.Zero(t, fetcher.calls.Load())
}

func TestResolveFallsBackToRemote(t *testing.T) {
	ctx := context.Background()

	t.Run("no store", func(t *testing.T) {
		r := NewResolver(nil, &countingFetcher{payload: []byte("x")}, nil)
		src := r.ResolvePlayableSource(ctx, "k", remote)
		assert.Equal(t, remote, src.PlayableURL)
		assert.False(t, src.ServedFromCache)
		assert.Empty(t, src.Handle)
	})

	t.Run("store errors", func(t *testing.T) {
		r := NewResolver(brokenStore{}, &countingFetcher{payload: []byte("x")}, nil)
		assert.Equal(t, remote, r.ResolvePlayableSource(ctx, "k", remote).PlayableURL)
	})

	t.Run("fetch fails", func(t *testing.T) {
		store := NewMemoryStore()
		r := NewResolver(store, &countingFetcher{err: errors.New("connection reset")}, nil)
		assert.Equal(t, remote, r.ResolvePlayableSource(ctx, "k", remote).PlayableURL)
		assert.Zero(t, store.Len())
	})

	t.Run("payload too large", func(t *testing.T) {
		store := NewMemoryStore()
		r := NewResolver(store, &countingFetcher{err: ErrEntryTooLarge}, nil)
		assert.Equal(t, remote, r.ResolvePlayableSource(ctx, "k", remote).PlayableURL)
		assert.Zero(t, store.Len())
	})
}

func TestPurgeStaleEntries(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	ctx := context.Background()
	maxAge := 7 * 24 * time.Hour

	require.NoError(t, store.Put(ctx, newEntry("old", []byte("a"), "video/mp4", now.Add(-maxAge-time.Millisecond))))
	require.NoError(t, store.Put(ctx, newEntry("boundary", []byte("b"), "video/mp4", now.Add(-maxAge))))
	require.NoError(t, store.Put(ctx, newEntry("fresh", []byte("c"), "video/mp4", now.Add(-time.Hour))))

	r := NewResolver(store, &countingFetcher{}, nil, WithClock(func() time.Time { return now }))
	assert.Equal(t, 1, r.PurgeStaleEntries(ctx, maxAge))

	for key, present := range map[string]bool{"old": false, "boundary": true, "fresh": true} {
		e, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, present, e != nil, key)
	}
}

func TestPurgeSwallowsStoreErrors(t *testing.T) {
	r := NewResolver(brokenStore{}, &countingFetcher{}, nil)
	assert.NotPanics(t, func() {
		assert.Zero(t, r.PurgeStaleEntries(context.Background(), time.Hour))
	})
}

func TestPurgeReapsExpiredHandles(t *testing.T) {
	now := time.Now()
	handles := NewHandleRegistry(time.Minute, 0)
	entry := newEntry("k", []byte("x"), "video/mp4", now)
	handles.now = func() time.Time { return now.Add(-2 * time.Minute) }
	stale := handles.Register(entry)
	handles.now = func() time.Time { return now }
	fresh := handles.Register(entry)

	r := NewResolver(NewMemoryStore(), &countingFetcher{}, handles)
	r.PurgeStaleEntries(context.Background(), 0)

	_, ok := handles.Get(stale)
	assert.False(t, ok)
	_, ok = handles.Get(fresh)
	assert.True(t, ok)
}

func TestHandleRelease(t *testing.T) {
	handles := NewHandleRegistry(time.Hour, 0)
	h := handles.Register(newEntry("k", []byte("x"), "video/mp4", time.Now()))
	assert.Equal(t, 1, handles.Len())

	assert.True(t, handles.Release(h))
	assert.False(t, handles.Release(h))
	assert.Zero(t, handles.Len())
	assert.Zero(t, handles.RetainedBytes())
}

func TestHandlesShareOnePayloadPerEntry(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	payload := make([]byte, 1<<20)
	require.NoError(t, store.Put(ctx, newEntry("lesson-1", payload, "video/mp4", time.Now())))

	handles := NewHandleRegistry(time.Hour, 0)
	r := NewResolver(store, &countingFetcher{}, handles)
	var sources []Source
	for i := 0; i < 50; i++ {
		src := r.ResolvePlayableSource(ctx, "lesson-1", "https://cdn.example.com/1.mp4")
		require.True(t, src.ServedFromCache)
		sources = append(sources, src)
	}

	assert.Equal(t, 50, handles.Len())
	assert.Equal(t, int64(1<<20), handles.RetainedBytes())

	for _, src := range sources {
		handles.Release(src.Handle)
	}
	assert.Zero(t, handles.RetainedBytes())
}

func TestHandlesEvictOldestPastLimit(t *testing.T) {
	now := time.Now()
	handles := NewHandleRegistry(time.Hour, 25)
	a := handles.Register(newEntry("a", make([]byte, 10), "video/mp4", now))
	b := handles.Register(newEntry("b", make([]byte, 10), "video/mp4", now))
	c := handles.Register(newEntry("c", make([]byte, 10), "video/mp4", now))

	assert.LessOrEqual(t, handles.RetainedBytes(), int64(25))
	_, ok := handles.Get(a)
	assert.False(t, ok)
	_, ok = handles.Get(b)
	assert.True(t, ok)
	_, ok = handles.Get(c)
	assert.True(t, ok)

	// 单个记录超过上限时仍签发，并淘汰其他句柄
	big := handles.Register(newEntry("big", make([]byte, 40), "video/mp4", now))
	_, ok = handles.Get(big)
	assert.True(t, ok)
	assert.Equal(t, 1, handles.Len())
	assert.Equal(t, int64(40), handles.RetainedBytes())
}

func TestSetMaxAge(t *testing.T) {
	r := NewResolver(nil, nil, nil)
	assert.Equal(t, DefaultMaxAge, r.MaxAge())

	r.SetMaxAge(48 * time.Hour)
	assert.Equal(t, 48*time.Hour, r.MaxAge())

	r.SetMaxAge(0)
	assert.Equal(t, DefaultMaxAge, r.MaxAge())
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("0123456789"))
		case "/big.mp4":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, 32)
	ctx := context.Background()

	payload, contentType, err := f.Fetch(ctx, srv.URL+"/ok.mp4")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(payload))
	assert.Equal(t, "video/mp4", contentType)

	_, _, err = f.Fetch(ctx, srv.URL+"/big.mp4")
	assert.ErrorIs(t, err, ErrEntryTooLarge)

	_, _, err = f.Fetch(ctx, srv.URL+"/missing.mp4")
	assert.Error(t, err)
}

func TestResolverWithHTTPFetcher(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("video"))
	}))
	defer srv.Close()

	r := NewResolver(NewMemoryStore(), NewHTTPFetcher(5*time.Second, 1<<20), nil)
	ctx := context.Background()

	r.ResolvePlayableSource(ctx, "k", srv.URL)
	src := r.ResolvePlayableSource(ctx, "k", srv.URL)
	assert.True(t, src.ServedFromCache)
	assert.Equal(t, int32(1), hits.Load())
}
