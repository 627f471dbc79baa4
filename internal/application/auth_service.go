// Package application holds the authentication core: credential
// registration and validation, login verification, and session identity
// resolution. All user-causable failures surface as FieldErrors suitable
// for rendering next to the offending input; only infrastructure failures
// come back as plain errors.
package application

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/liteboard/auth-service/internal/domain/entity"
	"github.com/liteboard/auth-service/internal/domain/repository"
)

// PasswordHasher produces and verifies salted one-way credential hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports a match. False covers wrong passwords and malformed
	// hashes alike; it never errors.
	Verify(hash, password string) bool
}

// FieldError identifies which input field failed and why. The message is
// meant for direct display next to the field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AuthResult is either a user (success) or a non-empty list of field
// errors (failure), never both.
type AuthResult struct {
	User   *entity.User
	Errors []FieldError
}

func failure(field, message string) *AuthResult {
	return &AuthResult{Errors: []FieldError{{Field: field, Message: message}}}
}

// AuthService orchestrates the user store, password hasher and session
// store. It holds no per-call state and is safe for concurrent use; all
// shared mutable state lives behind the injected store and cache.
type AuthService struct {
	users      repository.UserStore
	sessions   repository.SessionStore
	hasher     PasswordHasher
	logger     *logrus.Logger
	sessionTTL time.Duration
}

// NewAuthService wires the service. sessionTTL comes from deployment
// configuration; the service never computes it.
func NewAuthService(users repository.UserStore, sessions repository.SessionStore, hasher PasswordHasher, logger *logrus.Logger, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		logger:     logger,
		sessionTTL: sessionTTL,
	}
}

// Register creates a user from raw credentials and, on success, binds the
// caller's session token to the new user id. Validation short-circuits on
// the first failing check. The session is only written after the insert
// committed, so a canceled call can't leave a session pointing at a user
// that was never created.
func (s *AuthService) Register(ctx context.Context, username, password, sessionToken string) (*AuthResult, error) {
	if utf8.RuneCountInString(username) <= 2 {
		return failure("username", "length must be greater than 2"), nil
	}
	if utf8.RuneCountInString(password) <= 3 {
		return failure("password", "length must be greater than 3"), nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{Username: username, Password: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return failure("username", "already exists"), nil
		}
		return nil, err
	}

	if err := s.sessions.Put(ctx, sessionToken, repository.SessionPayload{UserID: user.ID}, s.sessionTTL); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return &AuthResult{User: user}, nil
}

// Login verifies raw credentials against the stored hash and binds the
// session on success. The two failure messages are deliberately
// distinct: the username lookup already reveals existence, so the
// password message adds no enumeration surface beyond that.
func (s *AuthService) Login(ctx context.Context, username, password, sessionToken string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failure("username", "could not find user with that username"), nil
		}
		return nil, err
	}

	if !s.hasher.Verify(user.Password, password) {
		return failure("password", "password did not match"), nil
	}

	if err := s.sessions.Put(ctx, sessionToken, repository.SessionPayload{UserID: user.ID}, s.sessionTTL); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID}).Debug("user logged in")
	return &AuthResult{User: user}, nil
}

// CurrentUser resolves the caller behind the session token. An absent
// payload or a stale user id degrades to (nil, nil) — anonymous, never an
// error.
func (s *AuthService) CurrentUser(ctx context.Context, sessionToken string) (*entity.User, error) {
	payload, err := s.sessions.Get(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// User deleted after the session was issued.
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// Logout drops the session payload. The transport clears the cookie.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	return s.sessions.Delete(ctx, sessionToken)
}

// ListUsers enumerates every user. There is intentionally no access check
// or pagination here; see DESIGN.md before hardening.
func (s *AuthService) ListUsers(ctx context.Context) ([]*entity.User, error) {
	return s.users.List(ctx)
}
