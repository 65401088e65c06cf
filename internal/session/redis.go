package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Redis stores sessions as JSON strings that expire after the TTL, so every
// server instance sees the same edits.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis returns a Redis-backed Store. A non-positive ttl uses DefaultTTL.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "mdtasks"
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

func (r *Redis) key(id string) string {
	return r.prefix + ":session:" + id
}

// Load implements Store.
func (r *Redis) Load(ctx context.Context, id string) (Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := sonic.Unmarshal(data, &s); err != nil {
		_ = r.client.Del(ctx, r.key(id)).Err()
		return Session{}, ErrNotFound
	}
	return s, nil
}

// Save implements Store.
func (r *Redis) Save(ctx context.Context, s Session) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := sonic.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}
