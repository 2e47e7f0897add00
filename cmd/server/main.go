package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/mohdghattas/mt4-online-server/internal/account"
	"github.com/mohdghattas/mt4-online-server/internal/alert"
	"github.com/mohdghattas/mt4-online-server/internal/auth"
	"github.com/mohdghattas/mt4-online-server/internal/config"
	"github.com/mohdghattas/mt4-online-server/internal/database"
	"github.com/mohdghattas/mt4-online-server/internal/history"
	"github.com/mohdghattas/mt4-online-server/internal/jobs"
	"github.com/mohdghattas/mt4-online-server/internal/logging"
	"github.com/mohdghattas/mt4-online-server/internal/settings"
	"github.com/mohdghattas/mt4-online-server/internal/stream"
)

// main wires configuration, storage, the event stream and background jobs,
// then serves the API until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load(os.Getenv("MT4_CONFIG"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.Log.Level, cfg.Production())
	if err := cfg.Validate(); err != nil {
		zlog.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDatabase(cfg.DB)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.EnsureSchema(ctx, db, cfg.DB.AutoMigrate); err != nil {
		zlog.Fatal().Err(err).Msg("Database schema is not ready")
	}

	hub := stream.NewHub()
	var publisher account.Publisher = hub
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = stream.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			zlog.Fatal().Err(err).Msg("Invalid redis url")
		}
		broadcaster := stream.NewRedisBroadcaster(redisClient, cfg.Redis.Channel, hub)
		publisher = broadcaster
		go func() {
			if err := broadcaster.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error().Err(err).Msg("redis subscriber stopped")
			}
		}()
	}

	loc, _ := cfg.History.Location()

	accountService := account.NewService(db, publisher, alert.NewEvaluator(cfg.Alerts), cfg.Analytics)
	historyService := history.NewService(db, loc)

	authService := auth.NewService(cfg.Auth)
	h := handlers{
		accounts: account.NewGinHandlers(accountService, cfg.Server.MaxBodyBytes),
		history:  history.NewGinHandlers(historyService),
		settings: settings.NewGinHandlers(settings.NewService(db)),
		stream:   stream.NewGinHandlers(hub, cfg.Server.AllowedOrigins),
		auth:     auth.NewGinHandlers(authService),
		tokens:   authService,
		health:   healthHandler(db, hub),
	}

	runner := jobs.NewRunner(ctx, loc)
	if err := jobs.Register(runner, cfg, historyService, accountService); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to schedule jobs")
	}
	runner.Start()

	router := setupRoutes(ctx, cfg, h)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	runner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancel()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	zlog.Info().Msg("Server exiting")
}
