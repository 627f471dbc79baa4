package router

import (
	"github.com/liteboard/auth-service/internal/application"
	"github.com/liteboard/auth-service/internal/container"
	pginfra "github.com/liteboard/auth-service/internal/infrastructure/postgres"
	"github.com/liteboard/auth-service/internal/infrastructure/rediscache"
	handlers "github.com/liteboard/auth-service/internal/interface/http"
	"github.com/liteboard/auth-service/internal/router/modules"
	"github.com/liteboard/auth-service/pkg/helpers"
)

// InitModules builds the auth stack from container singletons and registers
// every feature module with the router registry. Called once at startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()

	userRepo := pginfra.NewUserRepository(container.GetPGPool())
	sessions := rediscache.NewSessionStore(container.GetRedis())
	hasher := helpers.NewArgon2Hasher()
	cookies := helpers.NewCookieManager(cfg.SessionCookieName, cfg.CookieDomain, cfg.CookieSecure, cfg.SessionTTL)

	svc := application.NewAuthService(userRepo, sessions, hasher, container.GetLogger(), cfg.SessionTTL)

	authHandler := handlers.NewAuthHandler(svc, userRepo, hasher, container.GetRedis(), container.GetRabbitPub(), container.GetLogger(), cfg, cookies)
	userHandler := handlers.NewUserHandler(svc, container.GetLogger())

	r.Add(modules.NewAuthModule(authHandler, cookies))
	r.Add(modules.NewUserModule(userHandler))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
