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

	"medinotify/internal/config"
	"medinotify/internal/domain/notification"
	"medinotify/internal/infra/dedup"
	"medinotify/internal/infra/email"
	"medinotify/internal/infra/feed"
	"medinotify/internal/infra/queue"
	"medinotify/internal/infra/store"
	"medinotify/internal/infra/template"
	"medinotify/internal/router"

	"github.com/hibiken/asynq"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Supabase Store (optional: the service degrades without it)
	var docStore notification.DocumentStore
	if cfg.Supabase.URL != "" && cfg.Supabase.ServiceKey != "" {
		supaStore, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
		if err != nil {
			slog.Error("failed to initialize supabase store", "error", err)
			os.Exit(1)
		}
		docStore = supaStore
		slog.Info("supabase store initialized")
	} else {
		slog.Warn("supabase not configured, store-backed operations disabled")
	}

	// Email Sender (optional: dispatch fails fast without it)
	var sender notification.Sender
	if cfg.Email.APIKey != "" {
		sender = email.NewResendSender(cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.FromName)
		slog.Info("email sender initialized", "provider", cfg.Email.Provider, "from", cfg.Email.FromAddress)
	} else {
		slog.Warn("email gateway not configured, sends will be rejected")
	}

	// Template Engine
	renderer, err := template.NewEngine(cfg.Templates.Dir)
	if err != nil {
		slog.Error("failed to load templates", "error", err, "dir", cfg.Templates.Dir)
		os.Exit(1)
	}
	slog.Info("templates loaded", "dir", cfg.Templates.Dir)

	// Daily Quota
	quota := notification.NewQuota(cfg.Quota.DailyLimit)
	slog.Info("daily quota initialized", "limit", cfg.Quota.DailyLimit)

	// Dispatch Pipeline
	dispatcher := notification.NewDispatcher(quota, sender, renderer, docStore, notification.DispatcherConfig{
		BulkBatchSize:        cfg.Dispatch.BulkBatchSize,
		SinglePerSecond:      cfg.Dispatch.SinglePerSecond,
		BulkBatchesPerSecond: cfg.Dispatch.BulkBatchesPerSecond,
		SendTimeout:          time.Duration(cfg.Dispatch.SendTimeoutSec) * time.Second,
	})

	// Dedup Store (restart-safe classifier idempotency)
	seenStore := dedup.NewRedisSeenStore(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		time.Duration(cfg.Dedup.TTLHours)*time.Hour,
	)
	defer seenStore.Close()

	// Change Classifier
	classifier := notification.NewClassifier(seenStore, &notification.Diagnostics{})

	// Campaign Gate
	gate := notification.NewCampaignGate(docStore, dispatcher, cfg.Maintenance.SweepBatchSize)

	// Change Feed and Subscription Manager
	streamFeed := feed.NewStreamFeed(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, feed.Config{
		StreamPrefix: cfg.Feed.StreamPrefix,
		Block:        time.Duration(cfg.Feed.BlockSec) * time.Second,
	})
	defer streamFeed.Close()

	manager := notification.NewManager(streamFeed)
	defs := notification.ListenerDefs(classifier, gate, dispatcher)

	if err := manager.Start(context.Background(), defs); err != nil {
		// Feed trouble degrades the service; the admin restart endpoint can
		// re-establish listeners without a redeploy.
		slog.Error("failed to start change feed listeners", "error", err)
	} else {
		slog.Info("change feed listeners started", "count", len(defs))
	}

	// Stats Reporter
	reporter := notification.NewReporter(quota, manager, classifier.Diagnostics(), docStore)

	// Service and Handler
	notificationService := notification.NewService(docStore, dispatcher, gate)
	notificationHandler := notification.NewHandler(notificationService, reporter, manager, quota, defs)

	// ==========================================
	// Maintenance Scheduler (embedded asynq)
	// ==========================================

	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeQuotaReset, func(ctx context.Context, t *asynq.Task) error {
		quota.Reset()
		slog.Info("daily quota reset", "limit", cfg.Quota.DailyLimit)
		return nil
	})
	mux.HandleFunc(notification.TaskTypeCampaignSweep, func(ctx context.Context, t *asynq.Task) error {
		return gate.Sweep(ctx)
	})

	maintenanceServer := queue.NewServer(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err := maintenanceServer.Start(mux); err != nil {
		slog.Error("failed to start maintenance server", "error", err)
		os.Exit(1)
	}

	scheduler := queue.NewScheduler(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err := queue.RegisterMaintenance(scheduler, cfg.Maintenance.QuotaResetCron, cfg.Maintenance.CampaignSweepCron); err != nil {
		slog.Error("failed to register maintenance tasks", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("failed to start maintenance scheduler", "error", err)
		os.Exit(1)
	}
	slog.Info("maintenance scheduler started",
		"quota_reset", cfg.Maintenance.QuotaResetCron,
		"campaign_sweep", cfg.Maintenance.CampaignSweepCron,
	)

	// Router
	r := router.New(cfg, notificationHandler, manager)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Stop feed listeners first so no handler races shutdown
	manager.StopAll()
	scheduler.Shutdown()
	maintenanceServer.Shutdown()

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
