package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fundflow/fundflow-backend/internal/adapter/api"
	"github.com/fundflow/fundflow-backend/internal/adapter/repository/memory"
	"github.com/fundflow/fundflow-backend/internal/adapter/repository/postgres"
	"github.com/fundflow/fundflow-backend/internal/config"
	"github.com/fundflow/fundflow-backend/internal/domain"
	"github.com/fundflow/fundflow-backend/internal/usecase/campaign"
	"github.com/fundflow/fundflow-backend/internal/usecase/funding"
	"github.com/fundflow/fundflow-backend/internal/usecase/payout"
	"github.com/fundflow/fundflow-backend/internal/usecase/reconciler"
	"github.com/fundflow/fundflow-backend/internal/usecase/scheduler"
	"github.com/fundflow/fundflow-backend/internal/usecase/seeder"
	"github.com/fundflow/fundflow-backend/internal/usecase/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(cfg)

	// 1. Storage
	campaignRepo, ledgerRepo, eventRepo, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to initialize store: %v", err)
	}
	defer closeStore()

	// 2. Services
	campaignService := campaign.NewService(campaignRepo, ledgerRepo, eventRepo, logger)
	fundingService := funding.NewService(campaignRepo, logger)
	payoutService := payout.NewService(campaignRepo, logger)
	statsService := stats.NewService(campaignRepo)
	rec := reconciler.New(campaignRepo, logger)

	if cfg.Store == "memory" && cfg.Env == "development" {
		if err := seeder.NewDemoSeeder(campaignRepo).Seed(context.Background()); err != nil {
			logger.Fatalf("failed to seed demo campaigns: %v", err)
		}
		logger.Info("demo campaigns seeded")
	}

	// 3. Background scheduler, optionally fenced by a Redis lease
	var locker scheduler.Locker
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		locker = redislock.New(redisClient)
		logger.WithField("addr", cfg.RedisAddr).Info("reconcile lease enabled")
	}

	opts := scheduler.DefaultOptions()
	opts.FastInterval = cfg.FastInterval
	opts.SweepInterval = cfg.SweepInterval
	opts.MaintenanceInterval = cfg.MaintenanceInterval
	opts.NoticeRetention = cfg.NoticeRetention

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	sched := scheduler.New(rec, eventRepo, locker, scheduler.RealClock(), logger, opts)
	sched.Start(schedCtx)

	// 4. HTTP server
	handler := api.NewHandler(campaignService, fundingService, payoutService, statsService, logger)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Router(cfg.APIToken),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	waitForShutdown(server, sched, stopScheduler, logger)
}

// buildStore selects the storage backend. The memory store exists for
// local development and tests; production runs on postgres.
func buildStore(cfg *config.Config, logger *logrus.Logger) (domain.CampaignRepository, domain.LedgerRepository, domain.EventRepository, func(), error) {
	if cfg.Store == "memory" {
		logger.Warn("using in-memory store; data will not survive restarts")
		store := memory.NewStore()
		return store, store, store, func() {}, nil
	}

	db, err := postgres.NewDB(cfg.DBConnStr)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return postgres.NewCampaignRepository(db),
		postgres.NewLedgerRepository(db),
		postgres.NewEventRepository(db),
		func() { db.Close() },
		nil
}

// waitForShutdown waits for SIGTERM or SIGINT, drains in-flight HTTP
// requests, then stops the scheduler and waits for any running
// reconcile pass to finish.
func waitForShutdown(server *http.Server, sched *scheduler.Scheduler, stopScheduler context.CancelFunc, logger *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP shutdown did not complete cleanly")
	}

	stopScheduler()
	sched.Wait()
	logger.Info("server stopped")
}
