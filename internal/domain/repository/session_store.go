package repository

import (
	"context"
	"time"
)

// SessionPayload is the server-side state bound to an opaque session token.
type SessionPayload struct {
	UserID int64 `json:"user_id"`
}

// SessionStore is an expiring key-value store for session payloads.
// Tokens are generated and transmitted by the transport layer; the store
// only keeps and expires the payloads behind them.
type SessionStore interface {
	// Get returns (nil, nil) when the token has no payload or it expired.
	Get(ctx context.Context, token string) (*SessionPayload, error)
	// Put overwrites any existing payload for the token. Idempotent.
	Put(ctx context.Context, token string, payload SessionPayload, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}
