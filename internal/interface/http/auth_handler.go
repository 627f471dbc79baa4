package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/liteboard/auth-service/config"
	"github.com/liteboard/auth-service/internal/application"
	"github.com/liteboard/auth-service/internal/domain/entity"
	repo "github.com/liteboard/auth-service/internal/domain/repository"
	"github.com/liteboard/auth-service/internal/interface/middleware"
	"github.com/liteboard/auth-service/pkg/helpers"
	"github.com/liteboard/auth-service/pkg/mailer"
	"github.com/liteboard/auth-service/pkg/response"
	"github.com/liteboard/auth-service/pkg/validation"
)

type AuthHandler struct {
	Svc     *application.AuthService
	Repo    repo.UserStore
	Hasher  application.PasswordHasher
	RDB     *redis.Client
	Pub     *helpers.RabbitPublisher
	Logger  *logrus.Logger
	Cfg     *config.Config
	Cookies *helpers.CookieManager
}

func NewAuthHandler(svc *application.AuthService, userRepo repo.UserStore, hasher application.PasswordHasher, rdb *redis.Client, pub *helpers.RabbitPublisher, logger *logrus.Logger, cfg *config.Config, cookies *helpers.CookieManager) *AuthHandler {
	return &AuthHandler{Svc: svc, Repo: userRepo, Hasher: hasher, RDB: rdb, Pub: pub, Logger: logger, Cfg: cfg, Cookies: cookies}
}

func keyResetToken(t string) string { return "reset:token:" + t }

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authToken picks the token a successful register or login may bind to.
// A token the server minted this request is safe to reuse; a token the
// client presented is not, so a fresh one is minted in its place. A cookie
// planted before authentication must never name a logged-in session.
func (h *AuthHandler) authToken(c *gin.Context) (string, error) {
	if middleware.TokenIssued(c) {
		return middleware.SessionToken(c), nil
	}
	return helpers.GenerateToken(32)
}

// rotateSession re-points the cookie at the authenticated token and drops
// any state parked under the one the client arrived with.
func (h *AuthHandler) rotateSession(c *gin.Context, token string) {
	old := middleware.SessionToken(c)
	if old == token {
		return
	}
	if err := h.Svc.Logout(c.Request.Context(), old); err != nil {
		h.Logger.WithError(err).Warn("stale session cleanup failed")
	}
	h.Cookies.SetSession(c, token)
}

func userJSON(u *entity.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
}

// Register POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	token, err := h.authToken(c)
	if err != nil {
		h.Logger.WithError(err).Error("session token generation failed")
		response.Error(c, http.StatusInternalServerError, "registration unavailable", nil)
		return
	}
	res, err := h.Svc.Register(c.Request.Context(), req.Username, req.Password, token)
	if err != nil {
		h.Logger.WithError(err).Error("register failed")
		response.Error(c, http.StatusInternalServerError, "registration unavailable", nil)
		return
	}
	if len(res.Errors) > 0 {
		response.Error(c, http.StatusBadRequest, "registration failed", res.Errors)
		return
	}
	h.rotateSession(c, token)
	response.Success(c, http.StatusCreated, userJSON(res.User), "registered")
}

// Login POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	token, err := h.authToken(c)
	if err != nil {
		h.Logger.WithError(err).Error("session token generation failed")
		response.Error(c, http.StatusInternalServerError, "login unavailable", nil)
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Username, req.Password, token)
	if err != nil {
		h.Logger.WithError(err).Error("login failed")
		response.Error(c, http.StatusInternalServerError, "login unavailable", nil)
		return
	}
	if len(res.Errors) > 0 {
		response.Error(c, http.StatusBadRequest, "login failed", res.Errors)
		return
	}
	h.rotateSession(c, token)
	response.Success(c, http.StatusOK, userJSON(res.User), "logged in")
}

// Me GET /api/me
// Anonymous and stale sessions answer 200 with null data, never an error.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.Svc.CurrentUser(c.Request.Context(), middleware.SessionToken(c))
	if err != nil {
		h.Logger.WithError(err).Error("current user lookup failed")
		response.Error(c, http.StatusInternalServerError, "session unavailable", nil)
		return
	}
	if user == nil {
		response.Success[any](c, http.StatusOK, nil, "anonymous")
		return
	}
	response.Success(c, http.StatusOK, userJSON(user), "me")
}

// Logout POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Svc.Logout(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		h.Logger.WithError(err).Error("logout failed")
		response.Error(c, http.StatusInternalServerError, "logout unavailable", nil)
		return
	}
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true}, "logged out")
}

// ResetInit POST /api/reset/init {username}
// Always answers 200 so the response doesn't reveal whether the account
// exists or has an email on file.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	data := gin.H{}
	u, err := h.Repo.GetByUsername(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		// The response stays 200 either way; only the operator hears
		// about a store outage.
		h.Logger.WithError(err).Error("reset lookup failed")
	}
	if u != nil && u.Email != "" && h.RDB != nil {
		tok, err := helpers.GenerateToken(32)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "token generation failed", nil)
			return
		}
		h.RDB.Set(c.Request.Context(), keyResetToken(tok), strconv.FormatInt(u.ID, 10), h.Cfg.ResetTokenTTL)
		link := h.Cfg.ResetPasswordURL + "?token=" + tok

		if h.Pub != nil && h.Cfg.MailSendEnabled {
			job := mailer.EmailJob{
				To:      u.Email,
				Subject: "Reset your password",
				Text:    "Reset your password using this link (valid for " + h.Cfg.ResetTokenTTL.String() + "): " + link,
				HTML:    `<p>Reset your password: <a href="` + link + `">` + link + `</a></p>`,
			}
			if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil {
				h.Logger.WithError(err).Warn("reset email enqueue failed")
			}
		}

		// Returned in development so the flow can be exercised without a
		// mail sandbox.
		if h.Cfg.Env == "development" {
			data["reset_link"] = link
		}
		h.Logger.WithFields(logrus.Fields{"user_id": u.ID}).Info("password reset issued")
	}

	response.Success(c, http.StatusOK, data, "reset link sent if the account exists")
}

// ResetConfirm POST /api/reset/confirm {token, new_password}
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if utf8.RuneCountInString(req.NewPassword) <= 3 {
		response.Error(c, http.StatusBadRequest, "reset failed",
			[]application.FieldError{{Field: "new_password", Message: "length must be greater than 3"}})
		return
	}
	if h.RDB == nil {
		response.Error(c, http.StatusInternalServerError, "reset unavailable", nil)
		return
	}

	uidStr, err := h.RDB.Get(c.Request.Context(), keyResetToken(req.Token)).Result()
	if err != nil || uidStr == "" {
		response.Error(c, http.StatusBadRequest, "reset failed",
			[]application.FieldError{{Field: "token", Message: "invalid or expired token"}})
		return
	}
	uid, err := strconv.ParseInt(uidStr, 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "reset failed",
			[]application.FieldError{{Field: "token", Message: "invalid or expired token"}})
		return
	}

	hash, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "hash failed", nil)
		return
	}
	if err := h.Repo.UpdatePassword(c.Request.Context(), uid, hash); err != nil {
		response.Error(c, http.StatusInternalServerError, "update failed", nil)
		return
	}
	h.RDB.Del(c.Request.Context(), keyResetToken(req.Token))
	h.Logger.WithFields(logrus.Fields{"user_id": uid}).Info("password reset confirmed")
	response.Success(c, http.StatusOK, gin.H{"reset": true}, "password updated")
}

