package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kinglands/rooms/internal/v1/api"
	"github.com/kinglands/rooms/internal/v1/auth"
	"github.com/kinglands/rooms/internal/v1/config"
	"github.com/kinglands/rooms/internal/v1/directory"
	"github.com/kinglands/rooms/internal/v1/health"
	"github.com/kinglands/rooms/internal/v1/logging"
	"github.com/kinglands/rooms/internal/v1/manager"
	"github.com/kinglands/rooms/internal/v1/middleware"
	"github.com/kinglands/rooms/internal/v1/ratelimit"
	"github.com/kinglands/rooms/internal/v1/room"
	"github.com/kinglands/rooms/internal/v1/transport"
)

func main() {
	// Load .env file for local development.
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	// --- Shared directory ---
	store, err := directory.NewStore(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	keys, err := directory.NewKeyCodec(cfg.Alphabet)
	if err != nil {
		slog.Error("Failed to build room key codec", "error", err)
		os.Exit(1)
	}

	ttl := time.Duration(cfg.RoomTTLSeconds) * time.Second
	rooms := directory.NewRooms(store, keys, ttl)
	replicas := directory.NewReplicas(store, ttl)
	lobby := directory.NewLobby(store, ttl)

	// --- Room manager and edge ---
	var validator auth.TokenValidator
	if cfg.DevelopmentMode {
		slog.Warn("⚠️ Development mode: accepting every auth token")
		validator = &auth.MockValidator{}
	} else {
		validator = auth.NewHTTPValidator(cfg.AuthServiceURL)
	}

	mgr := manager.New(cfg.ReplicaID, room.Settings{
		KingPower:   cfg.KingPower,
		CastlePower: cfg.CastlePower,
		ColorsCount: cfg.ColorsCount,
	}, rooms, replicas, lobby)

	rateLimiter, err := ratelimit.New(cfg.RateLimitAPI, cfg.RateLimitWsIP, store.Client())
	if err != nil {
		slog.Error("Failed to build rate limiter", "error", err)
		os.Exit(1)
	}

	allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	hub := transport.NewHub(mgr, validator, rateLimiter, allowedOrigins)

	// --- HTTP server ---
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/rooms/:room_key/", hub.ServeWs)
	}

	apiGroup := router.Group("/api/v1")
	apiGroup.Use(rateLimiter.APIMiddleware())
	api.NewHandler(mgr).RegisterRoutes(apiGroup)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := health.NewHandler(store)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful shutdown ---
	go func() {
		slog.Info("rooms server starting", "port", cfg.Port, "replica_id", cfg.ReplicaID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	if err := store.Close(); err != nil {
		slog.Error("Failed to close Redis connection:", "error", err)
	} else {
		slog.Info("Redis connection closed")
	}

	slog.Info("Server exiting")
}
