package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"schoolattend/internal/attendance"
	"schoolattend/internal/config"
	"schoolattend/internal/engine"
	"schoolattend/internal/httpapi"
	"schoolattend/internal/logging"
	"schoolattend/internal/queue"
	"schoolattend/internal/store"
)

func main() {
	if err := config.LoadDotEnv(getEnvFile()); err != nil {
		log.Fatalf("env file: %v", err)
	}
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func getEnvFile() string {
	if v := os.Getenv("ENV_FILE"); v != "" {
		return v
	}
	return ".env"
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("db not reachable, serving degraded", zap.Error(err))
	}
	if db == nil {
		return errors.New("database pool could not be created")
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, logger)
	}

	repo := attendance.NewRepository(db.Client)
	eng := engine.New(repo, engine.Options{
		Location:          cfg.Location(),
		SectionFetchLimit: cfg.SectionFetchLimit,
		Logger:            logger.Named("engine"),
	})
	svc := attendance.NewService(repo, eng, store.NewReportCache(redisClient.Client, cfg.ReportCacheTTL), attendance.Options{
		Logger:      logger.Named("attendance"),
		HistoryDays: cfg.HistoryDays,
	})

	r := httpapi.NewRouter(httpapi.Deps{
		Service:         svc,
		Queue:           q,
		Logger:          logger.Named("http"),
		SigningKey:      cfg.JWTSigningKey,
		Issuer:          cfg.JWTIssuer,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Health: map[string]httpapi.HealthCheck{
			"db":    db.Healthy,
			"redis": redisClient.Healthy,
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("tz", cfg.SchoolTZ))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
