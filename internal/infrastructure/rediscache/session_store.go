// Package rediscache backs session payloads with Redis. Expiry is enforced
// by Redis itself: once the TTL elapses, Get sees no key.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liteboard/auth-service/internal/domain/repository"
)

type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(token string) string {
	return "session:" + token
}

func (s *SessionStore) Get(ctx context.Context, token string) (*repository.SessionPayload, error) {
	b, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload repository.SessionPayload
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *SessionStore) Put(ctx context.Context, token string, payload repository.SessionPayload, ttl time.Duration) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(token), b, ttl).Err()
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, sessionKey(token)).Err()
}

var _ repository.SessionStore = (*SessionStore)(nil)
