// Package redisstore keeps the task document in a Redis hash. The version
// field is the compare-and-swap token; writes go through WATCH/MULTI so a
// concurrent write between the check and the set aborts the transaction.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/nibzard/mdtasks/internal/store"
)

const (
	fieldContent = "content"
	fieldVersion = "version"

	// HistoryLimit caps the commit messages kept per document.
	HistoryLimit = 100
)

// Store implements store.Store on a Redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// New returns a store whose keys start with prefix. An empty prefix uses
// "mdtasks".
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "mdtasks"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) docKey(id store.Identity) string {
	return fmt.Sprintf("%s:doc:%s", s.prefix, id)
}

func (s *Store) historyKey(id store.Identity) string {
	return fmt.Sprintf("%s:history:%s", s.prefix, id)
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id store.Identity) (store.Document, error) {
	vals, err := s.client.HMGet(ctx, s.docKey(id), fieldContent, fieldVersion).Result()
	if err != nil {
		return store.Document{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	if len(vals) != 2 || vals[1] == nil {
		return store.Document{}, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	content, _ := vals[0].(string)
	version, _ := vals[1].(string)
	return store.Document{Content: content, Token: version}, nil
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, id store.Identity, content, token, message string) (string, error) {
	key := s.docKey(id)
	var next string
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if token != "" {
				return store.ErrConflict
			}
			current = "0"
		case err != nil:
			return err
		case current != token:
			return store.ErrConflict
		}

		n, err := strconv.ParseInt(current, 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt version %q: %w", current, err)
		}
		next = strconv.FormatInt(n+1, 10)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldContent, content, fieldVersion, next)
			if message != "" {
				pipe.LPush(ctx, s.historyKey(id), message)
				pipe.LTrim(ctx, s.historyKey(id), 0, HistoryLimit-1)
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, store.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return "", fmt.Errorf("%s: %w", id, store.ErrConflict)
	default:
		return "", fmt.Errorf("redis put %s: %w", id, err)
	}
}

// History returns the commit messages of id, newest first.
func (s *Store) History(ctx context.Context, id store.Identity) ([]string, error) {
	return s.client.LRange(ctx, s.historyKey(id), 0, -1).Result()
}
