// Package jobs contains the periodic jobs run by the worker scheduler.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/command"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE PROGRESS JOB
// Пересчитывает прогресс активных записей. Ловит записи, оставшиеся
// устаревшими после сбоя продвижения в запросе.
// ══════════════════════════════════════════════════════════════════════════════

// Promoter recomputes and persists one enrollment.
type Promoter interface {
	Promote(ctx context.Context, userID, courseID string) (*command.PromotionResult, error)
}

// ReconcileProgressConfig tunes the sweep.
type ReconcileProgressConfig struct {
	BatchSize int

	// MaxFailures stops the run early once this many rows failed.
	// 0, the default, always sweeps every row.
	MaxFailures int
}

// DefaultReconcileProgressConfig returns defaults.
func DefaultReconcileProgressConfig() ReconcileProgressConfig {
	return ReconcileProgressConfig{BatchSize: 200}
}

// ReconcileStats summarizes one run.
type ReconcileStats struct {
	Scanned   int
	Changed   int
	Completed int
	Failed    int
	Duration  time.Duration
}

// ReconcileProgressJob walks every enrolled row and runs the promoter on it.
type ReconcileProgressJob struct {
	enrollments enrollment.Repository
	promoter    Promoter
	cfg         ReconcileProgressConfig
	log         *logger.Logger

	mu   sync.Mutex
	last ReconcileStats
}

// NewReconcileProgressJob creates the job.
func NewReconcileProgressJob(enrollments enrollment.Repository, promoter Promoter, cfg ReconcileProgressConfig, log *logger.Logger) *ReconcileProgressJob {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultReconcileProgressConfig().BatchSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileProgressJob{
		enrollments: enrollments,
		promoter:    promoter,
		cfg:         cfg,
		log:         log.With(logger.Component("reconcile_progress")),
	}
}

// Name implements scheduler.Job.
func (j *ReconcileProgressJob) Name() string { return "reconcile_progress" }

// Run implements scheduler.Job.
func (j *ReconcileProgressJob) Run(ctx context.Context) error {
	start := time.Now()
	var stats ReconcileStats
	defer func() {
		stats.Duration = time.Since(start)
		j.mu.Lock()
		j.last = stats
		j.mu.Unlock()
	}()

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := j.enrollments.ListEnrolled(ctx, after, j.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list enrollments after %q: %w", after, err)
		}
		if len(page) == 0 {
			break
		}

		for _, e := range page {
			stats.Scanned++
			res, err := j.promoter.Promote(ctx, e.UserID, e.CourseID)
			if err != nil {
				stats.Failed++
				j.log.Warn("reconcile failed",
					logger.EnrollmentID(e.ID),
					logger.UserID(e.UserID),
					logger.CourseID(e.CourseID),
					logger.Err(err),
				)
				if j.cfg.MaxFailures > 0 && stats.Failed >= j.cfg.MaxFailures {
					return fmt.Errorf("reconcile aborted after %d failures: %w", stats.Failed, err)
				}
				continue
			}
			if res.Changed {
				stats.Changed++
			}
			if res.Completed {
				stats.Completed++
			}
		}

		after = page[len(page)-1].ID
		if len(page) < j.cfg.BatchSize {
			break
		}
	}

	j.log.Info("reconcile finished",
		logger.Int("scanned", stats.Scanned),
		logger.Int("changed", stats.Changed),
		logger.Int("completed", stats.Completed),
		logger.Int("failed", stats.Failed),
	)
	return nil
}

// LastStats returns the stats of the previous run.
func (j *ReconcileProgressJob) LastStats() ReconcileStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
