// Command ingest loads WRF accumulated rainfall grids into the forecast
// time-series store. It runs one batch described by a YAML job file and exits
// non-zero when any file or cell failed.
//
// Usage:
//
//	go run ./cmd/ingest [-job job.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/fcst-grid-ingest/internal/adapter/kafka"
	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/netcdf"
	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/postgres"
	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/sqlstore"
	"github.com/couchcryptid/fcst-grid-ingest/internal/config"
	"github.com/couchcryptid/fcst-grid-ingest/internal/ingest"
	"github.com/couchcryptid/fcst-grid-ingest/internal/observability"
)

// store is the persistence surface the command needs from any backend.
type store interface {
	ingest.Store
	Migrate(ctx context.Context) error
	CheckReadiness(ctx context.Context) error
	Close() error
}

func main() {
	os.Exit(run())
}

func run() int {
	jobFile := flag.String("job", "", "job file (overrides INGEST_JOB_FILE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if *jobFile != "" {
		cfg.JobFile = *jobFile
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	job, err := config.LoadJob(cfg.JobFile)
	if err != nil {
		logger.Error("failed to load job", "error", err, "job_file", cfg.JobFile)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err, "driver", cfg.DatabaseDriver)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()

	if cfg.Migrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Error("migration failed", "error", err)
			return 1
		}
	}

	var notifier ingest.CompletionNotifier
	if cfg.NotificationsEnabled() {
		n := kafkaadapter.NewNotifier(cfg.KafkaBrokers, cfg.KafkaCompletionTopic, logger)
		defer func() {
			if err := n.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		notifier = n
		logger.Info("completion notifications enabled", "topic", cfg.KafkaCompletionTopic)
	}

	cache := ingest.NewStationCache(db, cfg.StationCacheSize, metrics)
	ingestor := ingest.NewIngestor(cache, db, db, cfg.Workers, logger, metrics)
	runner := ingest.NewRunner(netcdf.NewReader(logger), db, cache, ingestor, notifier, logger, metrics)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, db, runner, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	report, err := runner.Run(ctx, job)
	if err != nil {
		logger.Error("batch aborted", "error", err, "batch_id", report.BatchID)
		return 1
	}
	if report.HasFailures() {
		totals := report.Totals()
		logger.Error("batch finished with failures",
			"batch_id", report.BatchID,
			"failed_files", report.Count(ingest.FileFailed),
			"failed_cells", totals.Failed,
		)
		return 1
	}

	logger.Info("batch complete", "batch_id", report.BatchID)
	return 0
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL, logger)
	case config.DriverMySQL, config.DriverSQLite:
		return sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}
