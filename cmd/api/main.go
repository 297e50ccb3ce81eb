package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/ghuser/lendingclub/docs/swagger"
	lendingmigrations "github.com/ghuser/lendingclub/migrations/lending"
	"github.com/ghuser/lendingclub/pkg/app"
	"github.com/ghuser/lendingclub/pkg/cache"
	"github.com/ghuser/lendingclub/pkg/config"
	"github.com/ghuser/lendingclub/pkg/database"
	"github.com/ghuser/lendingclub/pkg/events"
	"github.com/ghuser/lendingclub/pkg/httpx"
	"github.com/ghuser/lendingclub/pkg/logger"
	"github.com/ghuser/lendingclub/pkg/migrator"
	"github.com/ghuser/lendingclub/pkg/telemetry"
	"github.com/ghuser/lendingclub/pkg/workflows"
	lendingApi "github.com/ghuser/lendingclub/services/lending/application/api"
	"github.com/ghuser/lendingclub/services/lending/application/projections"
	appsvcs "github.com/ghuser/lendingclub/services/lending/application/services"
	lendingWorkflows "github.com/ghuser/lendingclub/services/lending/application/workflows"
	"github.com/ghuser/lendingclub/services/lending/domain/models"
	"github.com/ghuser/lendingclub/services/lending/infrastructure/seed"
)

// @title					Lending Club API
// @version				1.0
// @description			Peer-to-peer item lending: members list items, sign lending contracts and settle credits once per day.
// @license.name			MIT
// @license.url			https://opensource.org/licenses/MIT
// @host					localhost:8080
// @BasePath				/api
// @schemes				http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Telemetry: OTel tracing + metrics
	otelShutdown, metricsHandler, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(context.Background()) //nolint:errcheck

	// Crash reporting: Sentry (optional, log and continue on failure)
	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	appConfig := &app.Application{
		Config: cfg,
		Logger: log,
	}
	checks := httpx.HealthChecks{}

	if cfg.UsesPostgres() {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1) //nolint:gocritic // intentional: startup failure, deferred flushes are best-effort
		}
		defer pool.Close() //nolint:errcheck
		log.Info("database pool connected")

		if err := migrator.Up(pool.DB().DB, lendingmigrations.MigrationsFS); err != nil {
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1) //nolint:gocritic
		}

		eventBus, err := events.NewEventBusWithForwarder(cfg, log)
		if err != nil {
			log.Error("failed to setup event bus", "error", err)
			os.Exit(1) //nolint:gocritic
		}
		defer eventBus.Close() //nolint:errcheck

		if err := eventBus.StartForwarder(ctx); err != nil {
			log.Error("failed to start event forwarder", "error", err)
			os.Exit(1) //nolint:gocritic
		}

		appConfig.Db = pool
		appConfig.EventBus = eventBus
		checks.Database = pool
		checks.EventBus = eventBus
	} else {
		eventBus := events.NewInMemoryEventBus(log)
		defer eventBus.Close() //nolint:errcheck

		appConfig.EventBus = eventBus
		checks.EventBus = eventBus
		log.Info("running with in-memory store", "store_mode", cfg.StoreMode)
	}

	// Redis backs the read model. The api keeps it warm itself only in
	// memory mode; in postgres mode cmd/worker consumes the outbox.
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Warn("redis unavailable, read model disabled", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		appConfig.Redis = redisClient
		checks.Redis = redisClient
		log.Info("redis connected")

		if !cfg.UsesPostgres() {
			if err := projections.NewRedisReadModel(redisClient, log).Register(ctx, appConfig.EventBus); err != nil {
				log.Error("failed to register read model", "error", err)
				os.Exit(1) //nolint:gocritic
			}
		}
	}

	if cfg.ClockMode == config.ClockTemporal {
		temporalClient, err := workflows.NewTemporalClient(ctx, cfg.TemporalHostPort, cfg.TemporalNamespace, log)
		if err != nil {
			log.Error("failed to initialize temporal client", "error", err)
			os.Exit(1) //nolint:gocritic // intentional: startup failure
		}
		defer temporalClient.Close()
		appConfig.TemporalClient = temporalClient
		checks.Temporal = temporalClient
	}

	svcs := appsvcs.New(appConfig)

	if err := loadState(ctx, cfg, svcs.Lending, log); err != nil {
		log.Error("failed to load lending state", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	stopClock, err := startClock(ctx, appConfig, svcs.Lending)
	if err != nil {
		log.Error("failed to start clock", "clock_mode", cfg.ClockMode, "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer stopClock()

	r := httpx.NewRouter(
		httpx.ServerConfig{
			ServiceName:        cfg.ServiceName,
			IsDevelopment:      cfg.Environment == config.EnvDevelopment,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
		},
		logger.Middleware(log),
		logger.Recovery(log),
		telemetry.SentryMiddleware(),
		otelhttp.NewMiddleware(cfg.ServiceName),
	)

	r.Get("/health", httpx.HealthHandler(checks))
	r.Get("/metrics", metricsHandler.ServeHTTP)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	r.Route("/api", func(r chi.Router) {
		registerRoutes(r, svcs)
	})

	srv := httpx.NewServer(cfg.HTTPAddr, r)

	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Environment, "clock_mode", cfg.ClockMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// registerRoutes mounts all service routes under /api.
func registerRoutes(r chi.Router, svcs *appsvcs.Services) {
	lendingApi.LendingRoutes(r, svcs)
}

// loadState restores the last checkpoint. When there is none, the System is
// seeded from SEED_FILE or, with SEED_DEMO, from the bundled demo data.
func loadState(ctx context.Context, cfg *config.Config, svc *appsvcs.LendingService, log logger.Logger) error {
	restored, err := svc.Restore(ctx)
	if err != nil {
		return err
	}
	if restored {
		return nil
	}

	var snap models.Snapshot
	switch {
	case cfg.SeedFile != "":
		snap, err = seed.LoadFile(cfg.SeedFile)
	case cfg.SeedDemo:
		snap, err = seed.Demo()
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if err := svc.Seed(ctx, snap); err != nil {
		return err
	}
	log.Info("lending state seeded", "members", len(snap.Members), "items", len(snap.Items), "day", snap.Day)
	return nil
}

// startClock starts the driver selected by CLOCK_MODE. The returned func
// stops it; under manual mode it is a no-op.
func startClock(ctx context.Context, a *app.Application, svc *appsvcs.LendingService) (func(), error) {
	cfg := a.Config
	switch cfg.ClockMode {
	case config.ClockTicker:
		tickCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			appsvcs.NewTicker(svc, cfg.ClockInterval, a.Logger).Run(tickCtx)
		}()
		return func() {
			cancel()
			<-done
		}, nil

	case config.ClockTemporal:
		w := a.TemporalClient.NewWorker(cfg.TemporalTaskQueue)
		lendingWorkflows.Register(w, svc)
		if err := w.Start(); err != nil {
			return nil, err
		}
		err := a.TemporalClient.StartCron(ctx, workflows.CronSpec{
			WorkflowID: lendingWorkflows.DailySettlementWorkflowID,
			TaskQueue:  cfg.TemporalTaskQueue,
			Schedule:   cfg.ClockCron,
		}, lendingWorkflows.DailySettlementWorkflow)
		if err != nil {
			w.Stop()
			return nil, err
		}
		return w.Stop, nil

	default:
		a.Logger.Info("manual clock, advance with POST /api/clock/advance")
		return func() {}, nil
	}
}
