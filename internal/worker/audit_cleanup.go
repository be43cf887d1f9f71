package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/homevisit-api/pkg/logger"
)

// Cleaner drops audit entries older than before.
type Cleaner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

type AuditCleanupWorker struct {
	cleaner         Cleaner
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewAuditCleanupWorker(cleaner Cleaner, retentionDays int, cleanupInterval time.Duration, log *logger.Logger) *AuditCleanupWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditCleanupWorker{
		cleaner:         cleaner,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          log.With("component", "audit_cleanup"),
		now:             time.Now,
	}
}

// Start runs until ctx is done. A non-positive retention disables cleanup.
func (w *AuditCleanupWorker) Start(ctx context.Context) {
	if w.retentionDays <= 0 || w.cleanupInterval <= 0 {
		w.logger.Info("audit cleanup disabled")
		return
	}

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.cleanup(ctx); err != nil {
				w.logger.Error(err, "audit cleanup failed")
			}
		}
	}
}

func (w *AuditCleanupWorker) cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.cleaner.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	w.logger.Info("cleaned up audit logs", "rows", rows, "cutoff", cutoff)
	return rows, nil
}
