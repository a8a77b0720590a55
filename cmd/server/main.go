package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/adapter/handler"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/adapter/storage"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/service"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultMySQLDSN       = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	defaultRedisAddr      = "localhost:6379"
	defaultReservationTTL = 24 * time.Hour
	defaultSweepInterval  = time.Minute
	defaultSweepBatch     = 100
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", getenv("MYSQL_DSN", defaultMySQLDSN))
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     getenv("REDIS_ADDR", defaultRedisAddr),
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	store := storage.NewMySQLStore(db)
	cache := storage.NewRedisAvailabilityCache(rdb)

	policy := service.RetryPolicy{
		MaxAttempts: intenv("RETRY_MAX_ATTEMPTS", 3),
		Backoff:     durationenv("RETRY_BACKOFF", 100*time.Millisecond),
		Multiplier:  2,
	}
	reservations := service.NewReservationService(store, cache, logger, policy,
		durationenv("RESERVATION_TTL", defaultReservationTTL))

	// Background sweep returns expired holds to the unreserved pool.
	sweeper := service.NewSweeper(reservations, logger,
		durationenv("SWEEP_INTERVAL", defaultSweepInterval),
		intenv("SWEEP_BATCH_SIZE", defaultSweepBatch))
	go sweeper.Run(ctx)

	httpHandler := handler.NewHTTPHandler(reservations, logger)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpAddr := getenv("HTTP_ADDR", defaultHTTPAddr)
	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", httpAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	cancel()

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intenv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationenv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
