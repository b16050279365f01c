package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// maxTxRetries bounds optimistic retries when two requests race on one session.
const maxTxRetries = 8

// RedisSessionStore stores sessions as JSON strings with a TTL.
type RedisSessionStore struct {
	rdb *redis.Client
}

// NewRedisSessionStore creates a new RedisSessionStore.
func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

// Create stores a new session record.
func (r *RedisSessionStore) Create(ctx context.Context, s *model.ExamSession, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, config.CacheKey.ExamSessionKey(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get loads a session record.
func (r *RedisSessionStore) Get(ctx context.Context, id string) (*model.ExamSession, error) {
	raw, err := r.rdb.Get(ctx, config.CacheKey.ExamSessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(raw)
}

// Update applies fn inside a WATCH/MULTI transaction. A concurrent write to
// the same key aborts the transaction and fn is retried on the fresh record.
func (r *RedisSessionStore) Update(ctx context.Context, id string, fn func(s *model.ExamSession) error) (*model.ExamSession, error) {
	key := config.CacheKey.ExamSessionKey(id)
	var out *model.ExamSession

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("get session: %w", err)
		}

		sess, err := decodeSession(raw)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}

		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true})
			return nil
		})
		if err != nil {
			return err
		}

		out = sess
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrSessionConflict
}

// Delete removes a session record. Deleting a missing session is not an error.
func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, config.CacheKey.ExamSessionKey(id)).Err()
}

func decodeSession(raw []byte) (*model.ExamSession, error) {
	var s model.ExamSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
