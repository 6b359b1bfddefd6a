package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pollingstation "urna/contexts/electoral-core/polling-station"
	postgresadapter "urna/contexts/electoral-core/polling-station/adapters/postgres"
	workerapp "urna/contexts/electoral-core/polling-station/application/workers"
	"urna/internal/platform/config"
	"urna/internal/platform/db"
	"urna/internal/platform/httpserver"
	"urna/internal/platform/messaging"
	"urna/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const shutdownTimeout = 10 * time.Second

type APIApp struct {
	server   *httpserver.Server
	database *db.Database
	logger   *slog.Logger
}

type WorkerApp struct {
	database      *db.Database
	bus           *messaging.Kafka
	outboxRelay   workerapp.OutboxRelay
	auditConsumer workerapp.AuditTrailConsumer
	metrics       *metrics.Prometheus
	metricsAddr   string
	pollInterval  time.Duration
	logger        *slog.Logger
}

func BuildAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) (*APIApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", cfg.ServiceName, "process", "api")

	database, repo, err := openRepository(ctx, cfg, logger, cfg.AutoMigrate)
	if err != nil {
		return nil, err
	}

	prom := metrics.NewPrometheus()
	module := pollingstation.NewModule(pollingstation.Dependencies{
		UnitOfWork: repo,
		Repository: repo,
		Clock:      postgresadapter.SystemClock{},
		IDGen:      postgresadapter.UUIDGenerator{},
		Metrics:    prom,
		Logger:     logger,
	})

	server := httpserver.New(module, prom.Handler(), cfg.CORSAllowedOrigins, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		database: database,
		logger:   logger,
	}, nil
}

func BuildWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*WorkerApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", cfg.ServiceName, "process", "worker")

	database, repo, err := openRepository(ctx, cfg, logger, cfg.AutoMigrate)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	app := &WorkerApp{
		database: database,
		bus:      kafka,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		auditConsumer: workerapp.AuditTrailConsumer{
			Subscriber:    kafka,
			Dedup:         repo,
			Audit:         repo,
			Clock:         postgresadapter.SystemClock{},
			IDGen:         postgresadapter.UUIDGenerator{},
			ConsumerGroup: cfg.AuditConsumerGroup,
			Disabled:      !cfg.EnableAuditConsumer,
			Logger:        logger,
		},
		metrics:      metrics.NewPrometheus(),
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}
	if strings.TrimSpace(cfg.WorkerMetricsPort) != "" {
		app.metricsAddr = normalizeAddr(cfg.WorkerMetricsPort)
	}
	return app, nil
}

// Migrate creates or updates the polling-station schema and exits.
func Migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	database, _, err := openRepository(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	return database.Close()
}

func openRepository(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	migrate bool,
) (*db.Database, *postgresadapter.Repository, error) {
	database, err := db.Connect(db.Options{
		Driver:      cfg.DatabaseDriver,
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		Tracing:     cfg.DatabaseTracing,
	})
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := postgresadapter.AutoMigrate(ctx, database.DB); err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		logger.Info("database schema migrated",
			"event", "bootstrap_schema_migrated",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"driver", cfg.DatabaseDriver,
		)
	}
	return database, postgresadapter.NewRepository(database.DB, logger, cfg.LockTimeout), nil
}

// Run serves HTTP until ctx is cancelled, then shuts the server down.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.database != nil {
		return a.database.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	if err := w.auditConsumer.Start(ctx); err != nil {
		return err
	}

	if w.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", w.metrics.Handler())
		server := &http.Server{Addr: w.metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		group.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	group.Go(func() error {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			published, err := w.outboxRelay.RunOnce(ctx)
			w.metrics.ObserveRelayed(published)
			if err != nil && ctx.Err() == nil {
				w.logger.Warn("outbox relay cycle failed",
					"event", "bootstrap_outbox_relay_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	err := group.Wait()
	w.bus.Wait()
	return err
}

func (w *WorkerApp) Close() error {
	if w.database != nil {
		return w.database.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
