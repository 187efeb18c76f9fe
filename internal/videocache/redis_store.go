package videocache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisEntryPrefix = "videocache:entry:"
	redisIndexKey    = "videocache:index"
)

// RedisStore 每条记录一个 hash，sorted set 以抓取时间为分值作为清理索引
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is not configured")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	fields, err := s.client.HGetAll(ctx, redisEntryPrefix+key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	fetchedMs, err := strconv.ParseInt(fields["fetched_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode fetched_at for %s: %w", key, err)
	}
	payload := []byte(fields["payload"])
	return &Entry{
		Key:         key,
		Payload:     payload,
		Size:        int64(len(payload)),
		ContentType: fields["content_type"],
		FetchedAt:   time.UnixMilli(fetchedMs),
	}, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *Entry) error {
	ms := entry.FetchedAt.UnixMilli()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisEntryPrefix+entry.Key, map[string]interface{}{
			"payload":      entry.Payload,
			"size":         len(entry.Payload),
			"content_type": entry.ContentType,
			"fetched_at":   ms,
		})
		pipe.ZAdd(ctx, redisIndexKey, &redis.Z{Score: float64(ms), Member: entry.Key})
		return nil
	})
	return err
}

// removeStaleScript 删除前重新检查分值，期间被 Put 刷新的记录保留
var removeStaleScript = redis.NewScript(`
local removed = 0
local cutoff = tonumber(ARGV[1])
for i = 2, #ARGV do
	local score = redis.call('ZSCORE', KEYS[1], ARGV[i])
	if score and tonumber(score) < cutoff then
		redis.call('DEL', KEYS[2] .. ARGV[i])
		redis.call('ZREM', KEYS[1], ARGV[i])
		removed = removed + 1
	end
end
return removed
`)

func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	keys, err := s.staleKeys(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return s.removeStale(ctx, cutoff, keys)
}

func (s *RedisStore) staleKeys(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.client.ZRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
}

func (s *RedisStore) removeStale(ctx context.Context, cutoff time.Time, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(keys)+1)
	args = append(args, cutoff.UnixMilli())
	for _, k := range keys {
		args = append(args, k)
	}
	removed, err := removeStaleScript.Run(ctx, s.client, []string{redisIndexKey, redisEntryPrefix}, args...).Int()
	if err != nil {
		return 0, err
	}
	return removed, nil
}
