// Package app holds the start-up wiring shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/pharmacy-api/internal/config"
	"github.com/jwalitptl/pharmacy-api/internal/repository/postgres"
	"github.com/jwalitptl/pharmacy-api/pkg/logger"
	"github.com/jwalitptl/pharmacy-api/pkg/metrics"
	"github.com/jwalitptl/pharmacy-api/pkg/tracing"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "pharmacy"

// Runtime is what every binary needs before it builds its own components.
type Runtime struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *sqlx.DB
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	shutdownTracing tracing.ShutdownFunc
}

// NewLogger builds the process logger from cfg and installs it as the zerolog default.
func NewLogger(cfg *config.Config, service string) *logger.Logger {
	lc := &logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: service,
	}
	if cfg.Log.File != "" {
		lc.File = &logger.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}
	l := logger.NewLogger(lc)
	log.Logger = *l.Zerolog()
	zerolog.DefaultContextLogger = l.Zerolog()
	return l
}

// Bootstrap loads configuration and opens the shared resources.
func Bootstrap(ctx context.Context, configPath, service string) (*Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	l := NewLogger(cfg, service)

	shutdown, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Env,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise tracing: %w", err)
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB, cfg.Database.Name),
	)

	return &Runtime{
		Config:          cfg,
		Logger:          l,
		DB:              db,
		Metrics:         metrics.NewMetrics(MetricsNamespace, reg),
		Registry:        reg,
		shutdownTracing: shutdown,
	}, nil
}

// Close flushes traces and closes the database.
func (r *Runtime) Close(ctx context.Context) {
	if err := r.shutdownTracing(ctx); err != nil {
		r.Logger.Error(err, "Failed to flush traces")
	}
	if err := r.DB.Close(); err != nil {
		r.Logger.Error(err, "Failed to close database")
	}
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
