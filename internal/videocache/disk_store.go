package videocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	payloadExt = ".bin"
	metaExt    = ".json"
)

type diskMeta struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// DiskStore 每个 key 一个数据文件加一个 JSON 元数据文件
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("video cache dir is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create video cache dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) name(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:]))
}

func (s *DiskStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := s.name(key)

	meta, err := readMeta(base + metaExt)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// 哈希碰撞或残留文件
	if meta.Key != key {
		return nil, nil
	}

	payload, err := os.ReadFile(base + payloadExt)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Entry{
		Key:         meta.Key,
		Payload:     payload,
		Size:        int64(len(payload)),
		ContentType: meta.ContentType,
		FetchedAt:   meta.FetchedAt,
	}, nil
}

func (s *DiskStore) Put(ctx context.Context, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	base := s.name(entry.Key)

	if err := writeAtomic(base+payloadExt, entry.Payload); err != nil {
		return err
	}
	meta, err := json.Marshal(diskMeta{
		Key:         entry.Key,
		Size:        int64(len(entry.Payload)),
		ContentType: entry.ContentType,
		FetchedAt:   entry.FetchedAt,
	})
	if err != nil {
		return err
	}
	return writeAtomic(base+metaExt, meta)
}

func (s *DiskStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	metas, err := filepath.Glob(filepath.Join(s.dir, "*"+metaExt))
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, path := range metas {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		meta, err := readMeta(path)
		if err != nil {
			// 元数据损坏的记录直接清除
			meta = &diskMeta{}
		}
		if !meta.FetchedAt.Before(cutoff) {
			continue
		}
		base := strings.TrimSuffix(path, metaExt)
		if err := os.Remove(base + payloadExt); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func readMeta(path string) (*diskMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta diskMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode video cache meta %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
