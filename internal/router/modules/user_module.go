package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/liteboard/auth-service/internal/container"
	handlers "github.com/liteboard/auth-service/internal/interface/http"
	"github.com/liteboard/auth-service/internal/interface/middleware"
)

type UserModule struct {
	Handler *handlers.UserHandler
}

func NewUserModule(h *handlers.UserHandler) *UserModule {
	return &UserModule{Handler: h}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	listLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP())
	rg.GET("/users", listLimiter, m.Handler.List)
}
