package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/liteboard/auth-service/internal/container"
	handlers "github.com/liteboard/auth-service/internal/interface/http"
	"github.com/liteboard/auth-service/internal/interface/middleware"
	"github.com/liteboard/auth-service/pkg/helpers"
)

type AuthModule struct {
	Handler *handlers.AuthHandler
	Cookies *helpers.CookieManager
}

func NewAuthModule(h *handlers.AuthHandler, cookies *helpers.CookieManager) *AuthModule {
	return &AuthModule{Handler: h, Cookies: cookies}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	session := middleware.Session(m.Cookies, container.GetLogger())

	registerLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath())
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath())
	resetInitLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath())
	resetConfirmLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath())

	rg.POST("/register", session, registerLimiter, m.Handler.Register)
	rg.POST("/login", session, loginLimiter, m.Handler.Login)
	rg.GET("/me", session, m.Handler.Me)
	rg.POST("/logout", session, m.Handler.Logout)
	rg.POST("/reset/init", resetInitLimiter, m.Handler.ResetInit)
	rg.POST("/reset/confirm", resetConfirmLimiter, m.Handler.ResetConfirm)
}
