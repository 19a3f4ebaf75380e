package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/pharmacy-api/pkg/logger"
)

// AuditPurger deletes audit entries older than a cutoff.
type AuditPurger interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

type AuditCleanupWorker struct {
	audit           AuditPurger
	retentionDays   int
	cleanupInterval time.Duration
	purged          prometheus.Counter
	logger          *logger.Logger
	now             func() time.Time
}

func NewAuditCleanupWorker(audit AuditPurger, retentionDays int, cleanupInterval time.Duration, purged prometheus.Counter, log *logger.Logger) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		audit:           audit,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		purged:          purged,
		logger:          log,
		now:             time.Now,
	}
}

// Start runs one cleanup immediately and then on every interval until ctx is done.
func (w *AuditCleanupWorker) Start(ctx context.Context) {
	if w.retentionDays <= 0 || w.cleanupInterval <= 0 {
		w.logger.Info("Audit log retention disabled")
		return
	}

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Cleanup(ctx); err != nil {
			w.logger.Error(err, "Error cleaning up audit logs")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *AuditCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.audit.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	if w.purged != nil {
		w.purged.Add(float64(rows))
	}

	w.logger.Info("Cleaned up audit logs", "count", rows, "cutoff", cutoff.Format(time.RFC3339))
	return rows, nil
}
