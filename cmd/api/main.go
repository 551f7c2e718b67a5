package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetdesk_backend/internal/admin"
	"fleetdesk_backend/internal/bootstrap"
	apphttp "fleetdesk_backend/internal/http"
	"fleetdesk_backend/internal/http/router"
	"fleetdesk_backend/internal/scheduler"
	"fleetdesk_backend/internal/webhook"
	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/httpkit"
	"fleetdesk_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	dedupPrefix     = "fleetdesk:dedup:message:"
	webhookRate     = rate.Limit(50)
	webhookBurst    = 100
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting api", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		panic("failed to initialize services: " + err.Error())
	}
	defer services.Close()

	// ========================================================================
	// Inbound pipeline
	// ========================================================================

	var (
		dedup webhook.Deduplicator
		queue webhook.Enqueuer
		drain func()
	)
	if services.Redis != nil {
		dedup = webhook.NewRedisDeduplicator(services.Redis, dedupPrefix)
		client, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize queue client", "error", err)
			panic("failed to initialize queue client: " + err.Error())
		}
		defer func() { _ = client.Close() }()
		queue = client
	} else {
		log.Warn("REDIS_URL not configured; processing messages in-process")
		dedup = webhook.NewMemoryDeduplicator()
		inline := scheduler.NewInline(ctx, services.Processor, cfg.GetAsynqConcurrency(), log)
		queue = inline
		drain = inline.Wait
		go scheduler.NewLocalSweep(services.Notifier, 0, log).Run(ctx)
	}

	webhookLimiter := httpkit.NewIPRateLimiter(webhookRate, webhookBurst, log)
	webhookModule := webhook.NewModule(
		webhook.NewHandler(cfg.GetWhatsAppVerifyToken(), dedup, queue, log, services.Metrics),
		webhookLimiter.RateLimit(),
	)
	adminModule := admin.NewModule(admin.NewHandler(services.Sessions, services.Resolver, log))

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Metrics: services.Metrics,
		Modules: []apphttp.Module{webhookModule, adminModule},
	}
	if services.Pool != nil {
		app.Health = services.Pool
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		if drain != nil {
			drain()
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}
