package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/internal/account"
	"github.com/mohdghattas/mt4-online-server/internal/auth"
	"github.com/mohdghattas/mt4-online-server/internal/config"
	"github.com/mohdghattas/mt4-online-server/internal/database"
	"github.com/mohdghattas/mt4-online-server/internal/history"
	"github.com/mohdghattas/mt4-online-server/internal/settings"
	"github.com/mohdghattas/mt4-online-server/internal/stream"
	"github.com/mohdghattas/mt4-online-server/pkg/middleware"
)

type handlers struct {
	accounts *account.GinHandlers
	history  *history.GinHandlers
	settings *settings.GinHandlers
	stream   *stream.GinHandlers
	auth     *auth.GinHandlers
	tokens   *auth.Service
	health   gin.HandlerFunc
}

// setupRoutes configures all API endpoints and their handlers.
//   - Ingestion: rate limited per terminal address, optional X-API-Key
//   - Dashboard routes: rate limited, JWT protected when auth is enabled
//   - Auth routes: public, strictly rate limited
//
// Rate limiter cleanup stops when ctx is cancelled.
func setupRoutes(ctx context.Context, cfg config.Config, h handlers) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.RequestLogger())

	ingestLimit := middleware.NewRateLimiter(cfg.RateLimit.IngestPerMinute)
	readLimit := middleware.NewRateLimiter(cfg.RateLimit.ReadPerMinute)
	authLimit := middleware.NewRateLimiter(cfg.RateLimit.AuthPerMinute)
	for _, l := range []*middleware.RateLimiter{ingestLimit, readLimit, authLimit} {
		go l.Cleanup(ctx, time.Minute, 3*time.Minute)
	}

	router.GET("/healthz", h.health)

	api := router.Group("/api")
	{
		api.POST("/mt4data", ingestLimit.Handler(), middleware.IngestKey(cfg.Auth.IngestKey), h.accounts.IngestHandler())

		authRoutes := api.Group("/auth")
		authRoutes.Use(authLimit.Handler())
		{
			authRoutes.POST("/token", h.auth.GenerateTokenHandler())
		}

		dashboard := api.Group("")
		dashboard.Use(readLimit.Handler())
		if cfg.Auth.Enabled {
			dashboard.Use(middleware.JWTAuth(h.tokens))
		}
		{
			dashboard.GET("/accounts", h.accounts.ListAccountsHandler())
			dashboard.GET("/accounts/:account_number", h.accounts.GetAccountHandler())
			dashboard.GET("/analytics", h.accounts.AnalyticsHandler())
			dashboard.GET("/settings", h.settings.GetHandler())
			dashboard.POST("/settings", h.settings.PutHandler())
			dashboard.GET("/history", h.history.ListHandler())
			dashboard.POST("/history", h.history.CaptureHandler())
			dashboard.GET("/stream", h.stream.StreamHandler())
		}
	}

	return router
}

// healthHandler reports database reachability and stream load
func healthHandler(db *gorm.DB, hub *stream.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbState := "ok"
		if err := database.Ping(ctx, db); err != nil {
			status = http.StatusServiceUnavailable
			dbState = "unreachable"
		}
		c.JSON(status, gin.H{
			"database":    dbState,
			"subscribers": hub.Subscribers(),
			"dropped":     hub.Dropped(),
		})
	}
}
