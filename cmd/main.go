package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Redennison/CampusCollab/relay-service/internal/auth"
	"github.com/Redennison/CampusCollab/relay-service/internal/cache"
	"github.com/Redennison/CampusCollab/relay-service/internal/config"
	"github.com/Redennison/CampusCollab/relay-service/internal/handler"
	"github.com/Redennison/CampusCollab/relay-service/internal/hub"
	"github.com/Redennison/CampusCollab/relay-service/internal/ratelimit"
	"github.com/Redennison/CampusCollab/relay-service/internal/registry"
	"github.com/Redennison/CampusCollab/relay-service/internal/service"
	"github.com/Redennison/CampusCollab/relay-service/internal/store"
	"github.com/Redennison/CampusCollab/relay-service/internal/stream"
	"github.com/Redennison/CampusCollab/relay-service/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("starting relay service")

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("auth.jwt_secret is required")
	}
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// Message store (postgres/mysql/sqlite via gorm, or cassandra)
	msgStore, err := store.New(cfg.Store)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to initialize message store")
	}
	defer msgStore.Close()
	logger.Info().Str("driver", cfg.Store.Driver).Msg("message store ready")

	// Redis backs both the history cache and the room registry.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("failed to connect to redis")
	}
	pingCancel()
	logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	reg := registry.NewRedisRegistry(redisClient, cfg.Registry, cfg.Server.AdvertiseAddress)
	histCache := cache.NewRedisHistoryCache(redisClient, cfg.Cache.Prefix)

	// Kafka export is optional; the relay persists synchronously either way.
	var exporter stream.Exporter
	if cfg.Kafka.Enabled {
		exporter, err = stream.NewConfluentExporter(cfg.Kafka)
		if err != nil {
			logger.Fatal().Err(err).Str("brokers", cfg.Kafka.Brokers).Msg("failed to initialize kafka exporter")
		}
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka export enabled")
	}

	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()

	limiter := ratelimit.NewLimiter(cfg.RateLimit)

	relaySvc := service.NewRelayService(wsHub, msgStore, limiter, reg, exporter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := relaySvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start relay service")
	}
	defer relaySvc.Stop()

	historySvc := service.NewHistoryService(msgStore, histCache, cfg.Cache.TTL)

	wsHandler := handler.NewWSHandler(wsHub, relaySvc, verifier, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(historySvc, verifier)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger))

	httpHandler.RegisterRoutes(router, wsHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("address", addr).Msg("relay service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down relay service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("relay service stopped")
}
