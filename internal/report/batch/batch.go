// Package batch implements the scheduled reconciler. Incremental handlers
// can drift (concurrent writes, missed events, retroactive edits), so a run
// detects what changed on the run date, walks back to the earliest affected
// business date, and recomputes the touched (date, org unit) aggregates from
// the source-of-truth tables. The run is the source of truth: point-in-time
// reports are overwritten wholesale and staff-growth timeframes are replayed
// through the same dedup-log mutators the event path uses.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hrplane/reporting/internal/report/db"
	dbm "github.com/hrplane/reporting/internal/report/db/models"
	"github.com/hrplane/reporting/internal/report/growth"
	"github.com/hrplane/reporting/internal/report/metrics"
	"github.com/hrplane/reporting/internal/report/models"
	"github.com/hrplane/reporting/internal/report/recruit"
	"github.com/hrplane/reporting/internal/report/status"
	"github.com/hrplane/reporting/internal/report/timeframe"
	"go.uber.org/zap"
)

// Config bounds the reconciler's work and retry policy.
type Config struct {
	// LookbackDays caps how far back a retroactive edit can reach before the
	// reconciler ignores it. Prevents unbounded full-history rescans.
	LookbackDays int
	// MaxRetries bounds the exponential-backoff retry of a failed run.
	MaxRetries uint64
}

// Reconciler recomputes affected aggregates from scratch.
type Reconciler struct {
	repo    *db.Repository
	growth  *growth.Service
	status  *status.Service
	recruit *recruit.Service
	logger  *zap.Logger
	cfg     Config
}

// NewReconciler constructs a Reconciler.
func NewReconciler(repo *db.Repository, logger *zap.Logger, cfg Config) *Reconciler {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 365
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Reconciler{
		repo:    repo,
		growth:  growth.NewService(repo, logger),
		status:  status.NewService(repo, logger),
		recruit: recruit.NewService(repo, logger),
		logger:  logger.Named("batch_reconciler"),
		cfg:     cfg,
	}
}

// Run reconciles everything affected by mutations made on runDate. Transient
// failures are retried with exponential backoff; on exhaustion the original
// error surfaces to the caller rather than being swallowed.
func (r *Reconciler) Run(ctx context.Context, runDate time.Time) error {
	day := truncate(runDate)
	started := time.Now()

	op := func() error {
		return r.runOnce(ctx, day)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.cfg.MaxRetries), ctx)

	err := backoff.Retry(op, policy)
	metrics.ReconcileDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("failure").Inc()
		r.logger.Error("reconciliation failed after retries",
			zap.Error(err),
			zap.Time("run_date", day),
		)
		return fmt.Errorf("reconciliation for %s failed: %w", day.Format("2006-01-02"), err)
	}
	metrics.ReconcileRuns.WithLabelValues("success").Inc()
	r.logger.Info("reconciliation finished",
		zap.Time("run_date", day),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (r *Reconciler) runOnce(ctx context.Context, day time.Time) error {
	if err := r.reconcileHR(ctx, day); err != nil {
		return err
	}
	return r.reconcileRecruitment(ctx, day)
}

// reconcileHR rebuilds the point-in-time employee reports and replays the
// staff-growth timeframes touched by today's work-history writes.
func (r *Reconciler) reconcileHR(ctx context.Context, day time.Time) error {
	touched, err := r.repo.TouchedWorkHistory(ctx, day, r.cfg.LookbackDays)
	if err != nil {
		return fmt.Errorf("change detection failed: %w", err)
	}

	start := day
	var orgs []db.OrgUnit
	if len(touched) == 0 {
		// Routine keep-fresh: nothing changed, recompute today only.
		orgs, err = r.repo.DistinctEventOrgUnits(ctx, day)
		if err != nil {
			return fmt.Errorf("org unit scan failed: %w", err)
		}
	} else {
		seen := map[db.OrgUnit]bool{}
		for _, ev := range touched {
			evDay := truncate(ev.Date)
			if evDay.Before(start) {
				start = evDay
			}
			org := db.OrgUnit{BranchID: ev.BranchID, BlockID: ev.BlockID, DepartmentID: ev.DepartmentID}
			if !seen[org] {
				seen[org] = true
				orgs = append(orgs, org)
			}
		}
	}
	if len(orgs) == 0 {
		return nil
	}

	r.logger.Info("reconciling HR reports",
		zap.Time("from", start),
		zap.Time("to", day),
		zap.Int("org_units", len(orgs)),
		zap.Int("touched_events", len(touched)),
	)

	// Status-as-of-date aggregates are cumulative-looking: a retroactive
	// edit invalidates every later date for the org unit, so the whole
	// contiguous range gets rebuilt.
	for d := start; !d.After(day); d = d.AddDate(0, 0, 1) {
		if err := r.status.Rebuild(ctx, d, orgs); err != nil {
			return err
		}
	}

	return r.replayStaffGrowth(ctx, start, day, orgs)
}

// replayStaffGrowth resets every timeframe covering the affected range and
// replays the qualifying source events through the dedup-log mutators.
func (r *Reconciler) replayStaffGrowth(ctx context.Context, from, to time.Time, orgs []db.OrgUnit) error {
	for _, org := range orgs {
		for _, rng := range timeframe.Covering(from, to) {
			key := db.GrowthKey{
				Kind:       rng.Kind,
				Key:        rng.Key,
				ReportDate: rng.Start,
				Org:        org,
			}
			org := org
			rng := rng
			err := r.repo.WithTransaction(ctx, func(tx *db.Repository) error {
				if err := tx.ResetGrowthTimeframe(ctx, key); err != nil {
					return err
				}
				events, err := tx.GrowthEventsInRange(ctx, rng.Start, rng.End, org)
				if err != nil {
					return err
				}
				txGrowth := growth.NewService(tx, r.logger)
				for _, ev := range events {
					kind, ok := classify(ev)
					if !ok {
						continue
					}
					err := txGrowth.Replay(ctx, growth.Event{
						EventID:    ev.ID,
						EmployeeID: ev.EmployeeID,
						Kind:       kind,
						Date:       ev.Date,
						Org:        org,
					})
					if err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("growth replay for %s failed: %w", rng.Key, err)
			}
		}
	}
	return nil
}

// reconcileRecruitment rebuilds the recruitment reports for every
// (date, org unit) touched by today's candidate writes.
func (r *Reconciler) reconcileRecruitment(ctx context.Context, day time.Time) error {
	touched, err := r.repo.TouchedCandidates(ctx, day, r.cfg.LookbackDays)
	if err != nil {
		return fmt.Errorf("change detection failed: %w", err)
	}

	start := day
	var orgs []db.OrgUnit
	if len(touched) == 0 {
		orgs, err = r.repo.DistinctHiredOrgUnitsOn(ctx, day)
		if err != nil {
			return fmt.Errorf("org unit scan failed: %w", err)
		}
	} else {
		seen := map[db.OrgUnit]bool{}
		for _, c := range touched {
			if c.OnboardDate != nil {
				onboard := truncate(*c.OnboardDate)
				if onboard.Before(start) {
					start = onboard
				}
			}
			org := db.OrgUnit{BranchID: c.BranchID, BlockID: c.BlockID, DepartmentID: c.DepartmentID}
			if !seen[org] {
				seen[org] = true
				orgs = append(orgs, org)
			}
		}
	}
	if len(orgs) == 0 {
		return nil
	}

	r.logger.Info("reconciling recruitment reports",
		zap.Time("from", start),
		zap.Time("to", day),
		zap.Int("org_units", len(orgs)),
		zap.Int("touched_candidates", len(touched)),
	)

	for d := start; !d.After(day); d = d.AddDate(0, 0, 1) {
		for _, org := range orgs {
			if err := r.recruit.RebuildDay(ctx, d, org); err != nil {
				return err
			}
		}
	}
	return nil
}

func classify(ev dbm.WorkHistoryEvent) (models.GrowthEvent, bool) {
	return models.GrowthEventOf(&models.WorkHistorySnapshot{
		Name:           ev.Name,
		Status:         ev.Status,
		PreviousStatus: ev.PreviousStatus,
	})
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
