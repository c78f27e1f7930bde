package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-shelter-finder/internal/api"
	"github.com/mr1hm/go-shelter-finder/internal/config"
	"github.com/mr1hm/go-shelter-finder/internal/dataset"
	"github.com/mr1hm/go-shelter-finder/internal/ingestion"
	"github.com/mr1hm/go-shelter-finder/internal/logging"
	"github.com/mr1hm/go-shelter-finder/internal/observability"
	"github.com/mr1hm/go-shelter-finder/internal/repository"
	"github.com/mr1hm/go-shelter-finder/internal/settings"
	"github.com/mr1hm/go-shelter-finder/internal/stream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var settingsStore settings.Store = db
	if cfg.Settings.Backend == "redis" {
		client := repository.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		rs := repository.NewRedisSettings(client)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rs.Ping(pingCtx); err != nil {
			logging.Fatalf("Failed to connect to redis: %v", err)
		}
		pingCancel()
		settingsStore = rs
	}

	metrics := observability.NewMetrics()

	// Create broadcaster for dataset event streaming
	broadcaster := stream.NewBroadcaster(0)

	// Start ingestion manager
	mgr := ingestion.NewManager(cfg, sources(cfg), db, settingsStore, broadcaster, metrics)
	mgr.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS, "/health", "/metrics", "/api/shelters/stream"))

	handler := api.NewHandler(db, settingsStore, broadcaster, metrics, cfg.Resolver, cfg.Location)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	broadcaster.Close() // Close all streams gracefully

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

// sources always includes the bundled table so lookups work offline.
func sources(cfg *config.Config) []dataset.Source {
	srcs := []dataset.Source{dataset.Bundled{}}
	if cfg.Dataset.File != "" {
		srcs = append(srcs, dataset.File{Path: cfg.Dataset.File})
	}
	if cfg.Dataset.URL != "" {
		srcs = append(srcs, dataset.NewHTTP(cfg.Dataset.URL, cfg.Dataset.FetchTimeout))
	}
	return srcs
}
