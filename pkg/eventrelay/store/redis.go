package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

// RedisKeyPrefix prefixes every list key written by RedisStore.
const RedisKeyPrefix = "eventrelay:"

// ConnectRedis initializes a Redis client from a redis:// URL or a
// host:port address.
func ConnectRedis(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisStore keeps events in a Redis list, one encoded record per element.
// Drain reads and deletes the list inside MULTI/EXEC.
//
// The client is borrowed: Close does not close it.
type RedisStore struct {
	client *redis.Client
	key    Key
	codec  Codec
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewRedisStore creates a store on client for key.
func NewRedisStore(client *redis.Client, key Key, opts ...Option) *RedisStore {
	o := applyOptions(opts)
	return &RedisStore{
		client: client,
		key:    key,
		codec:  o.codec,
		logger: o.logger.With(slog.String("store_key", key.String())),
	}
}

// RedisKey returns the Redis list key.
func (s *RedisStore) RedisKey() string {
	return RedisKeyPrefix + s.key.String()
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, events event.List) error {
	if err := s.check(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	values := make([]any, 0, len(events))
	for _, r := range events {
		data, err := encodeRecord(s.codec, r)
		if err != nil {
			return err
		}
		values = append(values, data)
	}

	if err := s.client.RPush(ctx, s.RedisKey(), values...).Err(); err != nil {
		return &IOError{Op: "rpush", Path: s.RedisKey(), Err: err}
	}
	return nil
}

// Read implements Store. Elements that no longer decode are skipped with
// a warning.
func (s *RedisStore) Read(ctx context.Context) (event.List, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	items, err := s.client.LRange(ctx, s.RedisKey(), 0, -1).Result()
	if err != nil {
		return nil, &IOError{Op: "lrange", Path: s.RedisKey(), Err: err}
	}

	list := make(event.List, 0, len(items))
	for _, item := range items {
		r, err := decodeRecord(s.codec, []byte(item))
		if err != nil {
			s.logger.Warn("skipping undecodable event element",
				slog.String("error", err.Error()),
			)
			continue
		}
		list = append(list, r)
	}
	return list, nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.RedisKey()).Err(); err != nil {
		return &IOError{Op: "del", Path: s.RedisKey(), Err: err}
	}
	return nil
}

// Drain implements Store.
//
// Elements that no longer decode are dropped with a warning; they have
// already been deleted.
func (s *RedisStore) Drain(ctx context.Context) (event.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if err := s.key.Validate(); err != nil {
		return nil, err
	}

	var lrange *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		lrange = p.LRange(ctx, s.RedisKey(), 0, -1)
		p.Del(ctx, s.RedisKey())
		return nil
	})
	if err != nil {
		return nil, &IOError{Op: "drain", Path: s.RedisKey(), Err: err}
	}

	items := lrange.Val()
	list := make(event.List, 0, len(items))
	for _, item := range items {
		r, err := decodeRecord(s.codec, []byte(item))
		if err != nil {
			s.logger.Warn("dropping undecodable event element",
				slog.String("error", err.Error()),
			)
			continue
		}
		list = append(list, r)
	}
	return list, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *RedisStore) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.key.Validate()
}
