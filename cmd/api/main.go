package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-sla/internal/api/http"
	"github.com/spec-kit/ticket-sla/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sla/internal/auth"
	"github.com/spec-kit/ticket-sla/internal/clock"
	"github.com/spec-kit/ticket-sla/internal/config"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/monitor"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/persistence"
	"github.com/spec-kit/ticket-sla/internal/registry"
	"github.com/spec-kit/ticket-sla/internal/repository"
	"github.com/spec-kit/ticket-sla/internal/service"
	"github.com/spec-kit/ticket-sla/internal/sla"
	"github.com/spec-kit/ticket-sla/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics(strings.ReplaceAll(cfg.App.Name, "-", "_"))
	health := map[string]handlers.Pinger{}

	var repo repository.TicketRepository
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repo = repository.NewPostgresTicketRepository(pg.PoolHandle())
		health["postgres"] = pg
	case config.StoreMongo:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			logger.Fatal("failed to connect mongo", zap.Error(err))
		}
		defer mg.Close(context.Background())
		if err := repository.EnsureMongoIndexes(ctx, mg.Database, cfg.Mongo.Collection); err != nil {
			logger.Fatal("failed to create mongo indexes", zap.Error(err))
		}
		repo = repository.NewMongoTicketRepository(mg.Database, cfg.Mongo.Collection)
		health["mongo"] = mg
	default:
		logger.Warn("using in-memory ticket store; tickets are lost on restart")
		repo = repository.NewMemoryTicketRepository()
	}

	var (
		sweepLock monitor.SweepLock
		limiter   service.RateLimiter = service.NewMemoryRateLimiter(cfg.Intake.RateLimit, cfg.Intake.RateLimitWindow, nil)
	)
	if rds := persistence.NewRedis(cfg.Redis, logger); rds != nil {
		defer rds.Close()
		sweepLock = monitor.NewRedisSweepLock(rds.Client, cfg.App.Name)
		limiter = service.NewRedisRateLimiter(rds.Client, cfg.App.Name+":intake", cfg.Intake.RateLimit, cfg.Intake.RateLimitWindow)
		health["redis"] = rds
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	var bridge *events.NATSBridge
	if cfg.NATS.URL != "" {
		bridge, err = events.NewNATSBridge(events.NATSConfig{
			URL:           cfg.NATS.URL,
			Name:          cfg.App.Name,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			ReconnectWait: cfg.NATS.ReconnectWait,
			MaxReconnects: cfg.NATS.MaxReconnects,
		}, logger)
		if err != nil {
			logger.Fatal("failed to connect nats", zap.Error(err))
		}
		defer bridge.Close()
	}
	worker.StartNotificationWorker(dispatcher, notifications, bridge)

	clk := clock.System{}
	reg := registry.New(registry.Options{
		Repository:   repo,
		Publisher:    dispatcher,
		Clock:        clk,
		Logger:       logger,
		Metrics:      metrics,
		WriteTimeout: cfg.SLA.WriteTimeout,
		WriteRetries: cfg.SLA.WriteRetries,
		WriteBackoff: cfg.SLA.WriteBackoff,
	})
	if _, err := reg.Load(ctx); err != nil {
		logger.Fatal("failed to load tickets", zap.Error(err))
	}

	slaMonitor := monitor.NewSLAMonitor(monitor.SLAMonitorOptions{
		Registry:  reg,
		Publisher: dispatcher,
		Lock:      sweepLock,
		LockTTL:   cfg.SLA.SweepLockTTL,
		Logger:    logger,
		Metrics:   metrics,
	})
	autoClose, err := monitor.NewAutoCloseMonitor(monitor.AutoCloseOptions{
		Registry:     reg,
		Publisher:    dispatcher,
		Lock:         sweepLock,
		LockTTL:      cfg.SLA.SweepLockTTL,
		Logger:       logger,
		Metrics:      metrics,
		WarningAfter: cfg.SLA.WarningAfter,
		CloseAfter:   cfg.SLA.CloseAfter,
	})
	if err != nil {
		logger.Fatal("invalid auto-close configuration", zap.Error(err))
	}

	scheduler := worker.NewScheduler(logger)
	if err := worker.RegisterEngineJobs(scheduler, worker.EngineJobs{
		SLA:               slaMonitor,
		AutoClose:         autoClose,
		Registry:          reg,
		Metrics:           metrics,
		SLAInterval:       cfg.SLA.SweepInterval,
		AutoCloseInterval: cfg.SLA.AutoCloseInterval,
		FlushInterval:     cfg.SLA.FlushInterval,
	}); err != nil {
		logger.Fatal("failed to register jobs", zap.Error(err))
	}
	scheduler.Start()

	calendar := sla.Calendar{}
	if cfg.Calendar.Enabled {
		calendar = sla.Calendar{
			Enabled:   true,
			Location:  cfg.Calendar.Location(),
			WorkDays:  cfg.Calendar.WorkDays,
			StartHour: cfg.Calendar.StartHour,
			EndHour:   cfg.Calendar.EndHour,
			Holidays:  cfg.Calendar.Holidays,
		}
	}
	ticketService := service.NewTicketService(service.TicketDependencies{
		Registry:  reg,
		Limiter:   limiter,
		Publisher: dispatcher,
		Clock:     clk,
		Calendar:  calendar,
		Logger:    logger,
		Metrics:   metrics,
	})
	authService := service.NewAuthService(cfg.Auth, logger)
	authMiddleware := auth.NewAuthMiddleware(authService.Tokens(), authService)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, health),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(reg, ticketService),
		Stats:          handlers.NewStatsHandler(reg, ticketService, cfg.SLA.AttentionPercent),
		Sweeps:         handlers.NewSweepsHandler(slaMonitor, autoClose, reg, scheduler),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("final flush incomplete", zap.Error(err))
	}
	cancel()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
