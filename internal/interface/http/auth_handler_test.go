package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteboard/auth-service/config"
	"github.com/liteboard/auth-service/internal/application"
	"github.com/liteboard/auth-service/internal/domain/entity"
	"github.com/liteboard/auth-service/internal/domain/repository"
	handlers "github.com/liteboard/auth-service/internal/interface/http"
	"github.com/liteboard/auth-service/internal/interface/middleware"
	"github.com/liteboard/auth-service/pkg/helpers"
	"github.com/liteboard/auth-service/pkg/validation"
)

type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*entity.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*entity.User)}
}

func (m *memUserStore) Create(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return repository.ErrConflict
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

func (m *memUserStore) GetByID(_ context.Context, id int64) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserStore) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) List(_ context.Context) ([]*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.User, 0, len(m.users))
	for id := int64(1); id <= m.nextID; id++ {
		for _, u := range m.users {
			if u.ID == id {
				cp := *u
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *memUserStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u.Password = hash
			return nil
		}
	}
	return repository.ErrNotFound
}

type memSessionStore struct {
	mu       sync.Mutex
	payloads map[string]repository.SessionPayload
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{payloads: make(map[string]repository.SessionPayload)}
}

func (m *memSessionStore) Get(_ context.Context, token string) (*repository.SessionPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payloads[token]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memSessionStore) Put(_ context.Context, token string, payload repository.SessionPayload, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[token] = payload
	return nil
}

func (m *memSessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payloads, token)
	return nil
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "h:" + password, nil }
func (plainHasher) Verify(hash, password string) bool    { return hash == "h:"+password }

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Env:               "test",
		SessionTTL:        time.Hour,
		SessionCookieName: "qid",
		CookieDomain:      "localhost",
		ResetTokenTTL:     30 * time.Minute,
	}
	users := newMemUserStore()
	sessions := newMemSessionStore()
	hasher := plainHasher{}
	cookies := helpers.NewCookieManager(cfg.SessionCookieName, cfg.CookieDomain, cfg.CookieSecure, cfg.SessionTTL)

	svc := application.NewAuthService(users, sessions, hasher, logger, cfg.SessionTTL)
	authHandler := handlers.NewAuthHandler(svc, users, hasher, nil, nil, logger, cfg, cookies)
	userHandler := handlers.NewUserHandler(svc, logger)

	r := gin.New()
	session := middleware.Session(cookies, logger)
	api := r.Group("/api")
	api.POST("/register", session, authHandler.Register)
	api.POST("/login", session, authHandler.Login)
	api.GET("/me", session, authHandler.Me)
	api.POST("/logout", session, authHandler.Logout)
	api.POST("/reset/confirm", authHandler.ResetConfirm)
	api.GET("/users", userHandler.List)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func fieldErrors(t *testing.T, env envelope) []application.FieldError {
	t.Helper()
	var errs []application.FieldError
	require.NoError(t, json.Unmarshal(env.Error, &errs))
	return errs
}

func TestRegisterEndpoint(t *testing.T) {
	t.Run("missing fields rejected by binding", func(t *testing.T) {
		r := newTestRouter(t)
		w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "alice"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short username yields a field error and no cookie-bound user", func(t *testing.T) {
		r := newTestRouter(t)
		w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "ab", "password": "xxxx"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		errs := fieldErrors(t, decode(t, w))
		require.Len(t, errs, 1)
		assert.Equal(t, application.FieldError{Field: "username", Message: "length must be greater than 2"}, errs[0])
	})

	t.Run("success sets the session cookie and returns the user", func(t *testing.T) {
		r := newTestRouter(t)
		w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "xxxx"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)

		var sessionCookie *http.Cookie
		for _, c := range w.Result().Cookies() {
			if c.Name == "qid" {
				sessionCookie = c
			}
		}
		require.NotNil(t, sessionCookie, "register must set the session cookie")
		assert.True(t, sessionCookie.HttpOnly)

		var user struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		}
		env := decode(t, w)
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.Equal(t, "alice", user.Username)
		assert.NotZero(t, user.ID)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("duplicate username", func(t *testing.T) {
		r := newTestRouter(t)
		w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "xxxx"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "yyyy"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		errs := fieldErrors(t, decode(t, w))
		require.Len(t, errs, 1)
		assert.Equal(t, application.FieldError{Field: "username", Message: "already exists"}, errs[0])
	})
}

func TestLoginEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "xxxx"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("unknown username", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/login", map[string]string{"username": "bob", "password": "xxxx"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		errs := fieldErrors(t, decode(t, w))
		require.Len(t, errs, 1)
		assert.Equal(t, "username", errs[0].Field)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "nope"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		errs := fieldErrors(t, decode(t, w))
		require.Len(t, errs, 1)
		assert.Equal(t, application.FieldError{Field: "password", Message: "password did not match"}, errs[0])
	})

	t.Run("success", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "xxxx"}, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		assert.True(t, env.Success)
	})
}

func TestMeEndpoint(t *testing.T) {
	t.Run("anonymous caller gets null data, not an error", func(t *testing.T) {
		r := newTestRouter(t)
		w := doJSON(t, r, http.MethodGet, "/api/me", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		assert.True(t, env.Success)
		assert.Equal(t, "anonymous", env.Message)
		assert.Empty(t, env.Data)
	})

	t.Run("register then me resolves the user across requests", func(t *testing.T) {
		r := newTestRouter(t)
		w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "xxxx"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
		cookies := w.Result().Cookies()

		w = doJSON(t, r, http.MethodGet, "/api/me", nil, cookies)
		require.Equal(t, http.StatusOK, w.Code)

		var user struct {
			Username string `json:"username"`
		}
		env := decode(t, w)
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("logout drops the session", func(t *testing.T) {
		r := newTestRouter(t)
		w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "xxxx"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
		cookies := w.Result().Cookies()

		w = doJSON(t, r, http.MethodPost, "/api/logout", nil, cookies)
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, r, http.MethodGet, "/api/me", nil, cookies)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "anonymous", decode(t, w).Message)
	})
}

func TestSessionTokenRotation(t *testing.T) {
	sessionCookie := func(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
		t.Helper()
		var issued *http.Cookie
		for _, c := range w.Result().Cookies() {
			if c.Name == "qid" {
				issued = c
			}
		}
		require.NotNil(t, issued, "authentication must re-set the session cookie")
		return issued
	}

	meUsername := func(t *testing.T, r *gin.Engine, cookies []*http.Cookie) string {
		t.Helper()
		w := doJSON(t, r, http.MethodGet, "/api/me", nil, cookies)
		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		if env.Message == "anonymous" {
			return ""
		}
		var user struct {
			Username string `json:"username"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &user))
		return user.Username
	}

	t.Run("register never adopts a client-presented token", func(t *testing.T) {
		r := newTestRouter(t)
		planted := []*http.Cookie{{Name: "qid", Value: "attacker-chosen-token"}}

		w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "xxxx"}, planted)
		require.Equal(t, http.StatusCreated, w.Code)

		issued := sessionCookie(t, w)
		assert.NotEqual(t, "attacker-chosen-token", issued.Value)

		assert.Empty(t, meUsername(t, r, planted), "planted token must stay anonymous")
		assert.Equal(t, "alice", meUsername(t, r, []*http.Cookie{issued}))
	})

	t.Run("login never adopts a client-presented token", func(t *testing.T) {
		r := newTestRouter(t)
		w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "xxxx"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)

		planted := []*http.Cookie{{Name: "qid", Value: "attacker-chosen-token"}}
		w = doJSON(t, r, http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "xxxx"}, planted)
		require.Equal(t, http.StatusOK, w.Code)

		issued := sessionCookie(t, w)
		assert.NotEqual(t, "attacker-chosen-token", issued.Value)

		assert.Empty(t, meUsername(t, r, planted), "planted token must stay anonymous")
		assert.Equal(t, "alice", meUsername(t, r, []*http.Cookie{issued}))
	})
}

func TestUsersEndpoint(t *testing.T) {
	r := newTestRouter(t)
	for _, name := range []string{"alice", "bob"} {
		w := doJSON(t, r, http.MethodPost, "/api/register", map[string]string{"username": name, "password": "xxxx"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/api/users", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []struct {
		Username string `json:"username"`
	}
	env := decode(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.NotContains(t, w.Body.String(), "password")
}

// failingUserStore simulates a store outage on username lookups.
type failingUserStore struct {
	*memUserStore
}

func (failingUserStore) GetByUsername(context.Context, string) (*entity.User, error) {
	return nil, errors.New("store unavailable")
}

func TestResetInitEndpoint_StoreFailureStillAnswers200(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validation.Init()

	logger := logrus.New()
	var logged bytes.Buffer
	logger.SetOutput(&logged)

	cfg := &config.Config{
		Env:               "test",
		SessionTTL:        time.Hour,
		SessionCookieName: "qid",
		ResetTokenTTL:     30 * time.Minute,
	}
	users := failingUserStore{newMemUserStore()}
	cookies := helpers.NewCookieManager(cfg.SessionCookieName, cfg.CookieDomain, cfg.CookieSecure, cfg.SessionTTL)
	svc := application.NewAuthService(users, newMemSessionStore(), plainHasher{}, logger, cfg.SessionTTL)
	h := handlers.NewAuthHandler(svc, users, plainHasher{}, nil, nil, logger, cfg, cookies)

	r := gin.New()
	r.POST("/api/reset/init", h.ResetInit)

	w := doJSON(t, r, http.MethodPost, "/api/reset/init", map[string]string{"username": "alice"}, nil)
	require.Equal(t, http.StatusOK, w.Code, "the response must not reveal a store outage")
	assert.True(t, decode(t, w).Success)
	assert.Contains(t, logged.String(), "reset lookup failed")
}

func TestResetConfirmEndpoint_ShortPassword(t *testing.T) {
	r := newTestRouter(t)
	// "日本語" is three characters despite being nine bytes.
	for _, pwd := range []string{"xx", "日本語"} {
		w := doJSON(t, r, http.MethodPost, "/api/reset/confirm", map[string]string{"token": "whatever", "new_password": pwd}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		errs := fieldErrors(t, decode(t, w))
		require.Len(t, errs, 1)
		assert.Equal(t, application.FieldError{Field: "new_password", Message: "length must be greater than 3"}, errs[0])
	}
}
