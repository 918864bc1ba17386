// Package growth implements the staff-growth counter mutators. A growth
// event is counted at most once per (employee, event kind, timeframe,
// department); the StaffGrowthEventLog unique constraint is the race-safe
// authority and the qualifying-event oracle keeps add/remove symmetric when
// several source rows share a timeframe.
package growth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hrplane/reporting/internal/report/db"
	"github.com/hrplane/reporting/internal/report/metrics"
	"github.com/hrplane/reporting/internal/report/models"
	"github.com/hrplane/reporting/internal/report/timeframe"
	"go.uber.org/zap"
)

// Event is one staff-growth contribution derived from a work-history row.
type Event struct {
	EventID    uuid.UUID
	EmployeeID uuid.UUID
	Kind       models.GrowthEvent
	Date       time.Time
	Org        db.OrgUnit
}

// Service applies growth events to the week and month report rows.
type Service struct {
	repo   *db.Repository
	logger *zap.Logger
}

// NewService constructs a growth Service.
func NewService(repo *db.Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.Named("staff_growth"),
	}
}

// Record counts ev toward the week and month timeframes containing its date.
// A timeframe that already counted this employee for this event kind is left
// untouched.
func (s *Service) Record(ctx context.Context, ev Event) error {
	return s.record(ctx, ev, true)
}

// Replay is Record without the qualifying-event oracle. The batch reconciler
// uses it after resetting a timeframe: the source rows being replayed are
// still present in the event table, so the oracle would see every sibling
// row as "already counted" and record nothing. The dedup log alone guards
// replayed increments.
func (s *Service) Replay(ctx context.Context, ev Event) error {
	return s.record(ctx, ev, false)
}

func (s *Service) record(ctx context.Context, ev Event, consultOracle bool) error {
	for _, kind := range timeframe.Kinds {
		rng := timeframe.Of(ev.Date, kind)

		if consultOracle {
			others, err := s.repo.CountQualifyingEvents(ctx, db.QualifyingFilter{
				EmployeeID:     ev.EmployeeID,
				DepartmentID:   ev.Org.DepartmentID,
				Kind:           ev.Kind,
				From:           rng.Start,
				To:             rng.End,
				ExcludeEventID: ev.EventID,
			})
			if err != nil {
				return fmt.Errorf("dedup check failed: %w", err)
			}
			if others > 0 {
				metrics.DedupSkips.Inc()
				s.logger.Info("growth event already counted in timeframe, skipping",
					zap.String("employee_id", ev.EmployeeID.String()),
					zap.String("event_kind", string(ev.Kind)),
					zap.String("timeframe", rng.Key),
				)
				continue
			}
		}

		report, err := s.repo.GetOrCreateGrowthReport(ctx, db.GrowthKey{
			Kind:       kind,
			Key:        rng.Key,
			ReportDate: ev.Date,
			Org:        ev.Org,
		})
		if err != nil {
			return fmt.Errorf("failed to load growth report %s: %w", rng.Key, err)
		}

		claimed, err := s.repo.ClaimGrowthEvent(ctx, report.ID, ev.EmployeeID, ev.Kind, ev.EventID)
		if err != nil {
			return fmt.Errorf("failed to claim growth event: %w", err)
		}
		if !claimed {
			metrics.DedupSkips.Inc()
			s.logger.Info("growth event log already claimed, skipping",
				zap.String("employee_id", ev.EmployeeID.String()),
				zap.String("event_kind", string(ev.Kind)),
				zap.String("timeframe", rng.Key),
			)
			continue
		}

		if err := s.repo.IncrementGrowthCounter(ctx, report.ID, ev.Kind); err != nil {
			return fmt.Errorf("failed to increment %s: %w", ev.Kind.CounterColumn(), err)
		}
	}
	return nil
}

// Remove reverses ev's contribution. When another qualifying event still
// exists in the timeframe the counter stays put: that event owns the count
// now. Otherwise the dedup log claim is released and, only when this call
// released it, the counter decremented (floored at zero).
func (s *Service) Remove(ctx context.Context, ev Event) error {
	for _, kind := range timeframe.Kinds {
		rng := timeframe.Of(ev.Date, kind)

		others, err := s.repo.CountQualifyingEvents(ctx, db.QualifyingFilter{
			EmployeeID:     ev.EmployeeID,
			DepartmentID:   ev.Org.DepartmentID,
			Kind:           ev.Kind,
			From:           rng.Start,
			To:             rng.End,
			ExcludeEventID: ev.EventID,
		})
		if err != nil {
			return fmt.Errorf("dedup check failed: %w", err)
		}
		if others > 0 {
			s.logger.Info("another qualifying event remains in timeframe, keeping counter",
				zap.String("employee_id", ev.EmployeeID.String()),
				zap.String("event_kind", string(ev.Kind)),
				zap.String("timeframe", rng.Key),
			)
			continue
		}

		report, err := s.repo.GetGrowthReport(ctx, kind, rng.Key, ev.Org)
		if err != nil {
			// No report row means nothing was ever counted here.
			continue
		}

		// Release-then-decrement, the mirror of claim-then-increment: only
		// the call that actually deletes the claim may lower the counter, so
		// a redelivered delete cannot take another employee's count with it.
		released, err := s.repo.ReleaseGrowthEvent(ctx, report.ID, ev.EmployeeID, ev.Kind)
		if err != nil {
			return fmt.Errorf("failed to release growth event log: %w", err)
		}
		if !released {
			s.logger.Info("growth event log already released, skipping decrement",
				zap.String("employee_id", ev.EmployeeID.String()),
				zap.String("event_kind", string(ev.Kind)),
				zap.String("timeframe", rng.Key),
			)
			continue
		}
		if err := s.repo.DecrementGrowthCounter(ctx, report.ID, ev.Kind); err != nil {
			return fmt.Errorf("failed to decrement %s: %w", ev.Kind.CounterColumn(), err)
		}
	}
	return nil
}

// Update moves a contribution from prev's coordinates to cur's. When the
// event kind, org unit, and both timeframe keys are unchanged there is
// nothing to do. Otherwise the remove/record pair runs in one transaction so
// a crash between the two cannot leave a phantom count.
func (s *Service) Update(ctx context.Context, prev, cur Event) error {
	if prev.Kind == cur.Kind && prev.Org == cur.Org && sameTimeframes(prev.Date, cur.Date) {
		return nil
	}
	return s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		txSvc := &Service{repo: tx, logger: s.logger}
		if err := txSvc.Remove(ctx, prev); err != nil {
			return err
		}
		return txSvc.Record(ctx, cur)
	})
}

func sameTimeframes(a, b time.Time) bool {
	for _, kind := range timeframe.Kinds {
		if timeframe.Of(a, kind).Key != timeframe.Of(b, kind).Key {
			return false
		}
	}
	return true
}
