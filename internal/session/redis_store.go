package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 把会话保存在 Redis，适合多个前端进程共享一个会话
type RedisStore struct {
	rdb   *redis.Client
	key   string
	ttl   time.Duration
	codec *MarkerCodec
}

// NewRedisStore key 形如 taskmanager:session:<profile>
func NewRedisStore(rdb *redis.Client, profile string, ttl time.Duration, codec *MarkerCodec) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{
		rdb:   rdb,
		key:   fmt.Sprintf("taskmanager:session:%s", profile),
		ttl:   ttl,
		codec: codec,
	}
}

func (r *RedisStore) Load(ctx context.Context) (*Session, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session from redis: %w", err)
	}
	return decodeRecord(r.codec, data)
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := encodeRecord(r.codec, s)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session to redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}
