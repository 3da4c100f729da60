package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riyakasaudhan20/sync-clip/internal/app/dedup"
	"github.com/riyakasaudhan20/sync-clip/internal/app/dispatcher"
	"github.com/riyakasaudhan20/sync-clip/internal/app/registry"
	"github.com/riyakasaudhan20/sync-clip/internal/app/server"
	"github.com/riyakasaudhan20/sync-clip/internal/app/server/handlers"
	"github.com/riyakasaudhan20/sync-clip/internal/app/server/ws"
	"github.com/riyakasaudhan20/sync-clip/internal/app/worker"
	"github.com/riyakasaudhan20/sync-clip/internal/config"
	"github.com/riyakasaudhan20/sync-clip/internal/core/contracts"
	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/internal/core/services"
	"github.com/riyakasaudhan20/sync-clip/internal/platform/logger"
	"github.com/riyakasaudhan20/sync-clip/internal/platform/telemetry"
	"github.com/riyakasaudhan20/sync-clip/internal/plugins/postgres"
	redisPlugin "github.com/riyakasaudhan20/sync-clip/internal/plugins/redis"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", logging.Err(err))
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", logging.Err(err))
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", logging.Err(err))
		return
	}
	defer pdb.Close()
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, logging.Err(err))
		return
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	clock := domain.SystemClock{}
	deviceRepo := postgres.NewDeviceRepository(pdb)
	clipboardRepo := postgres.NewClipboardRepository(pdb)
	txManager := postgres.NewTxManager(pdb)
	presence := redisPlugin.NewRedisPresenceStore(rdb)

	var deduper contracts.Deduplicator
	switch cfg.Dedup.Backend {
	case "memory":
		deduper = dedup.NewWindow(cfg.Dedup.Horizon)
	default:
		deduper = redisPlugin.NewFingerprintWindow(rdb, cfg.Dedup.Horizon)
	}

	// Core
	hub := registry.NewRegistry(clock, cfg.Hub.StaleTimeout)
	fanout := dispatcher.NewDispatcher(log, hub, clock)

	var bus contracts.EventBus
	switch cfg.Bus.Backend {
	case "local":
		bus = dispatcher.NewLocalBus(fanout)
	default:
		redisBus := redisPlugin.NewEventBus(log, rdb, cfg.Bus.Channel)
		bus = redisBus
		relay := worker.NewRelayWorker(log, redisBus, fanout)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay worker stopped", logging.Err(err))
				stop()
			}
		}()
	}
	log.Info("event bus ready", "backend", cfg.Bus.Backend, "dedup", cfg.Dedup.Backend)

	tokenSvc := services.NewTokenService(cfg.SecretToken, cfg.TokenTTL)
	authSvc := services.NewAuthService(log, tokenSvc, deviceRepo)
	clipboardSvc := services.NewClipboardService(log, clipboardRepo, txManager, deduper, bus, clock, services.ClipboardOptions{
		MaxContentSize:  cfg.Clipboard.MaxContentSize,
		MaxItemsPerUser: cfg.Clipboard.MaxItemsPerUser,
		ExcludeOrigin:   cfg.Clipboard.ExcludeOrigin,
	})
	managerSvc := services.NewManagerService(log, hub, presence, deviceRepo, services.ManagerOptions{
		SweepInterval: cfg.Hub.HeartbeatInterval,
		StaleTimeout:  cfg.Hub.StaleTimeout,
		PresenceTTL:   cfg.Hub.PresenceTTL,
	})
	go managerSvc.RunJanitor(ctx)

	// Server
	wsHandler := handlers.NewWSHandler(authSvc, managerSvc, clock, ws.Options{
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		PongTimeout:       cfg.Hub.PongTimeout,
		SendTimeout:       cfg.Hub.SendTimeout,
		SendQueueSize:     cfg.Hub.SendQueueSize,
		MaxMessageSize:    cfg.Hub.MaxMessageSize,
		InboundRate:       cfg.Hub.InboundRate,
		InboundBurst:      cfg.Hub.InboundBurst,
	}, cfg.Hub.WriteWait)
	srv := server.NewServer(
		cfg.Service.Name,
		cfg.Service.Add,
		log,
		authSvc,
		wsHandler,
		handlers.NewClipboardHandler(clipboardSvc, cfg.Clipboard.MaxContentSize),
		handlers.NewStatusHandler(managerSvc),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logging.Err(err))
	}
	managerSvc.Shutdown()
	if err := wsHandler.Wait(shutdownCtx); err != nil {
		log.Warn("sessions did not drain", logging.Err(err))
	}
	log.Info("shutdown complete")
}
