package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/internal/handler"
	"chat_backend/internal/middleware"
	"chat_backend/internal/repository"
	"chat_backend/internal/service"
	"chat_backend/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)
	ctx := context.Background()

	var dbPool *pgxpool.Pool
	if cfg.Chat.StorageDriver == config.StorageDriverPostgres {
		dbPool = connectPostgres(ctx, cfg.Database, appLogger)
		defer dbPool.Close()
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
		appLogger.Info("Redis connection established")
	}

	repos := repository.NewRepositories(dbPool, rdb, cfg.Chat, appLogger)

	services, err := service.NewServices(ctx, repos, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize services", "error", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	var rateLimitMiddleware *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rule := domain.RateLimitRule{
			Scope:  domain.RateLimitScopeUser,
			Limit:  cfg.RateLimit.SendPerWindow,
			Window: cfg.RateLimit.Window,
		}
		rateLimitMiddleware = middleware.NewRateLimitMiddleware(services.RateLimit, rule, appLogger)
	}

	handlers := handler.NewHandlers(services, cfg, appLogger)
	router := handler.NewRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "room_list", cfg.Chat.RoomListName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) *pgxpool.Pool {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		log.Fatal("Invalid database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := pool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database", "error", err)
	}
	log.Info("Database connection established")

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			log.Fatal("Failed to apply schema", "error", err)
		}
		log.Info("Database schema is up to date")
	}

	return pool
}
