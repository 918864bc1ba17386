// Package router dispatches snapshot envelopes to the aggregation services.
// Handlers are safe under at-least-once delivery and make no ordering
// assumptions between messages: correctness comes from the dedup guard and
// the upsert semantics downstream, not from arrival order.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hrplane/reporting/internal/report/db"
	e "github.com/hrplane/reporting/internal/report/errors"
	"github.com/hrplane/reporting/internal/report/growth"
	"github.com/hrplane/reporting/internal/report/metrics"
	"github.com/hrplane/reporting/internal/report/models"
	"github.com/hrplane/reporting/internal/report/recruit"
	"github.com/hrplane/reporting/internal/report/status"
	"go.uber.org/zap"
)

// Router routes decoded snapshot pairs to the growth, status, and
// recruitment services.
type Router struct {
	repo    *db.Repository
	growth  *growth.Service
	status  *status.Service
	recruit *recruit.Service
	logger  *zap.Logger
}

// New constructs a Router over one repository.
func New(repo *db.Repository, logger *zap.Logger) *Router {
	return &Router{
		repo:    repo,
		growth:  growth.NewService(repo, logger),
		status:  status.NewService(repo, logger),
		recruit: recruit.NewService(repo, logger),
		logger:  logger.Named("report_router"),
	}
}

// Route handles one snapshot envelope. Validation failures propagate (a
// structurally invalid message cannot succeed on retry); missing references
// are logged and swallowed so one stale snapshot never wedges the worker.
func (r *Router) Route(ctx context.Context, msg models.Message) error {
	var err error
	switch msg.Entity {
	case models.EntityWorkHistory:
		err = r.handleWorkHistory(ctx, msg)
	case models.EntityCandidate:
		err = r.handleCandidate(ctx, msg)
	case models.EntityExpense:
		err = r.handleExpense(ctx, msg)
	default:
		err = fmt.Errorf("%w: unknown entity kind %q", e.ErrInvalidSnapshot, msg.Entity)
	}
	if err != nil {
		metrics.SnapshotsFailed.WithLabelValues(string(msg.Entity), string(msg.Action)).Inc()
		return err
	}
	metrics.SnapshotsProcessed.WithLabelValues(string(msg.Entity), string(msg.Action)).Inc()
	return nil
}

func (r *Router) handleWorkHistory(ctx context.Context, msg models.Message) error {
	change, err := msg.WorkHistory()
	if err != nil {
		return err
	}

	include, err := r.employeeIncluded(ctx, change)
	if err != nil {
		return err
	}
	if include {
		if err := r.applyStaffGrowth(ctx, change); err != nil {
			return err
		}
		if err := r.applyReturningEmployee(ctx, change); err != nil {
			return err
		}
	}

	// Point-in-time reports derive from the latest event per employee, so
	// any touched (date, org unit) tuple gets a full rebuild rather than a
	// counter adjustment.
	return r.rebuildStatusTuples(ctx, change)
}

// employeeIncluded applies the exclusion pre-filter. Outsourced/external
// employees and report-excluded positions contribute to no HR report. A
// missing employee row is a stale snapshot: log and skip.
func (r *Router) employeeIncluded(ctx context.Context, change *models.WorkHistoryChange) (bool, error) {
	snap := change.Current
	if snap == nil {
		snap = change.Previous
	}
	emp, err := r.repo.GetEmployee(ctx, snap.EmployeeID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			r.logger.Warn("employee not found for work-history snapshot, skipping",
				zap.String("employee_id", snap.EmployeeID.String()),
				zap.String("event_id", snap.EventID.String()),
			)
			return false, nil
		}
		return false, err
	}
	if emp.ReportExcluded {
		return false, nil
	}
	for _, ct := range models.ExcludedCodeTypes {
		if emp.CodeType == ct {
			return false, nil
		}
	}
	return true, nil
}

func (r *Router) applyStaffGrowth(ctx context.Context, change *models.WorkHistoryChange) error {
	prevKind, prevOK := models.GrowthEventOf(change.Previous)
	curKind, curOK := models.GrowthEventOf(change.Current)

	switch change.Action {
	case models.ActionCreate:
		if !curOK {
			return nil
		}
		return r.growth.Record(ctx, growthEvent(change.Current, curKind))
	case models.ActionDelete:
		if !prevOK {
			return nil
		}
		return r.growth.Remove(ctx, growthEvent(change.Previous, prevKind))
	case models.ActionUpdate:
		switch {
		case prevOK && curOK:
			return r.growth.Update(ctx, growthEvent(change.Previous, prevKind), growthEvent(change.Current, curKind))
		case prevOK:
			return r.growth.Remove(ctx, growthEvent(change.Previous, prevKind))
		case curOK:
			return r.growth.Record(ctx, growthEvent(change.Current, curKind))
		}
		return nil
	}
	return fmt.Errorf("%w: unknown action %q", e.ErrInvalidSnapshot, change.Action)
}

// applyReturningEmployee keeps the RETURNING_EMPLOYEE hired-candidate rows in
// step with return-to-work events. These hires exist outside the candidate
// pipeline entirely.
func (r *Router) applyReturningEmployee(ctx context.Context, change *models.WorkHistoryChange) error {
	prevKind, prevOK := models.GrowthEventOf(change.Previous)
	curKind, curOK := models.GrowthEventOf(change.Current)
	prevReturn := prevOK && prevKind == models.GrowthReturn
	curReturn := curOK && curKind == models.GrowthReturn

	apply := func(snap *models.WorkHistorySnapshot, delta int) error {
		org := db.OrgUnit{BranchID: snap.BranchID, BlockID: snap.BlockID, DepartmentID: snap.DepartmentID}
		return r.repo.IncrementHiredReport(ctx, snap.Date.Time, org, models.ReturningEmployee, uuid.Nil, delta, false)
	}

	switch change.Action {
	case models.ActionCreate:
		if curReturn {
			return apply(change.Current, 1)
		}
	case models.ActionDelete:
		if prevReturn {
			return apply(change.Previous, -1)
		}
	case models.ActionUpdate:
		if prevReturn == curReturn &&
			(!curReturn || sameCoordinates(change.Previous, change.Current)) {
			return nil
		}
		if prevReturn {
			if err := apply(change.Previous, -1); err != nil {
				return err
			}
		}
		if curReturn {
			return apply(change.Current, 1)
		}
	}
	return nil
}

func sameCoordinates(a, b *models.WorkHistorySnapshot) bool {
	return a.Date.Equal(b.Date.Time) &&
		a.BranchID == b.BranchID && a.BlockID == b.BlockID && a.DepartmentID == b.DepartmentID
}

// rebuildStatusTuples triggers the point-in-time rebuilds for every
// (date, org unit) tuple the change touches.
func (r *Router) rebuildStatusTuples(ctx context.Context, change *models.WorkHistoryChange) error {
	type tuple struct {
		date time.Time
		org  db.OrgUnit
	}
	seen := map[tuple]bool{}
	for _, snap := range []*models.WorkHistorySnapshot{change.Previous, change.Current} {
		if snap == nil {
			continue
		}
		t := tuple{
			date: snap.Date.Time,
			org:  db.OrgUnit{BranchID: snap.BranchID, BlockID: snap.BlockID, DepartmentID: snap.DepartmentID},
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		if err := r.status.Rebuild(ctx, t.date, []db.OrgUnit{t.org}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) handleCandidate(ctx context.Context, msg models.Message) error {
	change, err := msg.Candidate()
	if err != nil {
		return err
	}

	for _, snap := range []*models.CandidateSnapshot{change.Previous, change.Current} {
		if snap.Hired() {
			if err := r.resolveSourceFlags(ctx, snap); err != nil {
				return err
			}
		}
	}

	switch change.Action {
	case models.ActionCreate:
		if change.Current.Hired() {
			return r.recruit.Apply(ctx, change.Current, 1)
		}
		return nil
	case models.ActionDelete:
		if change.Previous.Hired() {
			return r.recruit.Apply(ctx, change.Previous, -1)
		}
		return nil
	case models.ActionUpdate:
		switch {
		case !change.Previous.Hired() && change.Current.Hired():
			return r.recruit.Apply(ctx, change.Current, 1)
		case change.Previous.Hired() && !change.Current.Hired():
			return r.recruit.Apply(ctx, change.Previous, -1)
		case change.Previous.Hired() && change.Current.Hired():
			// Revert-then-reapply keeps every downstream aggregate
			// consistent; never patch a report field directly.
			return r.repo.WithTransaction(ctx, func(tx *db.Repository) error {
				txRecruit := recruit.NewService(tx, r.logger)
				if err := txRecruit.Apply(ctx, change.Previous, -1); err != nil {
					return err
				}
				return txRecruit.Apply(ctx, change.Current, 1)
			})
		}
		return nil
	}
	return fmt.Errorf("%w: unknown action %q", e.ErrInvalidSnapshot, change.Action)
}

// resolveSourceFlags backfills classification flags from the lookup tables
// when the snapshot producer left them empty. Missing lookup rows are logged
// and left at their defaults (department-sourced).
func (r *Router) resolveSourceFlags(ctx context.Context, snap *models.CandidateSnapshot) error {
	if !snap.SourceAllowReferral && snap.SourceID != uuid.Nil {
		src, err := r.repo.GetSource(ctx, snap.SourceID)
		switch {
		case err == nil:
			snap.SourceAllowReferral = src.AllowReferral
		case errors.Is(err, e.ErrNotFound):
			r.logger.Warn("recruitment source not found, treating as non-referral",
				zap.String("source_id", snap.SourceID.String()))
		default:
			return err
		}
	}
	if snap.ChannelBelongTo == "" && snap.ChannelID != uuid.Nil {
		ch, err := r.repo.GetChannel(ctx, snap.ChannelID)
		switch {
		case err == nil:
			snap.ChannelBelongTo = ch.BelongTo
		case errors.Is(err, e.ErrNotFound):
			r.logger.Warn("recruitment channel not found, leaving channel group empty",
				zap.String("channel_id", snap.ChannelID.String()))
		default:
			return err
		}
	}
	return nil
}

func (r *Router) handleExpense(ctx context.Context, msg models.Message) error {
	change, err := msg.Expense()
	if err != nil {
		return err
	}

	seen := map[uuid.UUID]bool{}
	for _, snap := range []*models.ExpenseSnapshot{change.Previous, change.Current} {
		if snap == nil || snap.RequestID == uuid.Nil || seen[snap.RequestID] {
			continue
		}
		seen[snap.RequestID] = true
		if err := r.recruit.RecomputeRequest(ctx, snap.RequestID); err != nil {
			return err
		}
	}
	return nil
}

func growthEvent(snap *models.WorkHistorySnapshot, kind models.GrowthEvent) growth.Event {
	return growth.Event{
		EventID:    snap.EventID,
		EmployeeID: snap.EmployeeID,
		Kind:       kind,
		Date:       snap.Date.Time,
		Org: db.OrgUnit{
			BranchID:     snap.BranchID,
			BlockID:      snap.BlockID,
			DepartmentID: snap.DepartmentID,
		},
	}
}
