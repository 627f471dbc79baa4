package repository

import (
	"context"
	"errors"

	"github.com/liteboard/auth-service/internal/domain/entity"
)

// ErrNotFound is returned by lookups when no user matches.
var ErrNotFound = errors.New("user not found")

// ErrConflict is returned by Create when the username is already taken.
// The store detects this atomically via its unique index, so two concurrent
// creates with the same username resolve to exactly one success.
var ErrConflict = errors.New("username already exists")

// UserStore defines the persistence interface for user records.
type UserStore interface {
	// Create inserts u and fills in ID, CreatedAt and UpdatedAt.
	// Returns ErrConflict when the username is taken.
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
