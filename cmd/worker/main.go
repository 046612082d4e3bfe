package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"schoolattend/internal/attendance"
	"schoolattend/internal/config"
	"schoolattend/internal/engine"
	"schoolattend/internal/logging"
	"schoolattend/internal/queue"
	"schoolattend/internal/store"
	"schoolattend/internal/worker"
)

// Worker regenerates stored monthly reports from queued and scheduled jobs.
func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadDotEnv(envFile); err != nil {
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
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

	w := worker.New(svc, q, func() engine.Month { return engine.MonthOf(svc.Today()) }, logger.Named("worker"))

	c := cron.New(cron.WithLocation(cfg.Location()))
	if _, err := w.Schedule(ctx, c, cfg.ReportCron); err != nil {
		logger.Fatal("schedule report job", zap.Error(err))
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()
	logger.Info("report schedule registered", zap.String("cron", cfg.ReportCron), zap.String("tz", cfg.SchoolTZ))

	if err := w.Run(ctx); err != nil {
		logger.Error("worker exited", zap.Error(err))
	}
}
