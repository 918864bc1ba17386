// Package status rebuilds the point-in-time employee reports. Unlike the
// staff-growth counters these are never incremented: the breakdown for a
// (date, org unit) is derived from each employee's most recent work-history
// event as of that date, so any relevant mutation triggers a full rebuild of
// the affected tuple.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hrplane/reporting/internal/report/db"
	dbm "github.com/hrplane/reporting/internal/report/db/models"
	e "github.com/hrplane/reporting/internal/report/errors"
	"github.com/hrplane/reporting/internal/report/models"
	"go.uber.org/zap"
)

// Service recomputes EmployeeStatusBreakdownReport and
// EmployeeResignedReasonReport rows with overwrite semantics.
type Service struct {
	repo   *db.Repository
	logger *zap.Logger
}

// NewService constructs a status Service.
func NewService(repo *db.Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.Named("status_reports"),
	}
}

// Rebuild recomputes both reports for every requested org unit as of date.
// An employee belongs to the org unit of their latest event; employees whose
// latest event sits elsewhere contribute nothing here.
func (s *Service) Rebuild(ctx context.Context, date time.Time, orgs []db.OrgUnit) error {
	latest, err := s.repo.LatestEventsByEmployee(ctx, date, orgs)
	if err != nil {
		return fmt.Errorf("failed to load latest events: %w", err)
	}

	byOrg := make(map[db.OrgUnit][]dbm.WorkHistoryEvent)
	for _, ev := range latest {
		org := db.OrgUnit{BranchID: ev.BranchID, BlockID: ev.BlockID, DepartmentID: ev.DepartmentID}
		byOrg[org] = append(byOrg[org], ev)
	}

	for _, org := range orgs {
		if err := s.rebuildOne(ctx, date, org, byOrg[org]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) rebuildOne(ctx context.Context, date time.Time, org db.OrgUnit, events []dbm.WorkHistoryEvent) error {
	breakdown := &dbm.EmployeeStatusBreakdownReport{
		ReportDate:      date,
		BranchID:        org.BranchID,
		BlockID:         org.BlockID,
		DepartmentID:    org.DepartmentID,
		ReasonHistogram: map[string]int{},
	}
	reasons := &dbm.EmployeeResignedReasonReport{
		ReportDate:   date,
		BranchID:     org.BranchID,
		BlockID:      org.BlockID,
		DepartmentID: org.DepartmentID,
	}

	for _, ev := range events {
		switch ev.Status {
		case models.StatusActive:
			breakdown.CountActive++
		case models.StatusOnboarding:
			breakdown.CountOnboarding++
		case models.StatusMaternityLeave:
			breakdown.CountMaternityLeave++
		case models.StatusUnpaidLeave:
			breakdown.CountUnpaidLeave++
		case models.StatusResigned:
			breakdown.CountResigned++
			reason := s.resignReason(ctx, ev)
			breakdown.ReasonHistogram[string(reason)]++
			reasons.CountResigned++
			reasons.AddReason(reason)
		}
	}
	breakdown.TotalNotResigned = breakdown.CountActive + breakdown.CountOnboarding +
		breakdown.CountMaternityLeave + breakdown.CountUnpaidLeave

	if err := s.repo.UpsertStatusBreakdown(ctx, breakdown); err != nil {
		return fmt.Errorf("failed to upsert status breakdown: %w", err)
	}
	if err := s.repo.UpsertResignedReason(ctx, reasons); err != nil {
		return fmt.Errorf("failed to upsert resigned reasons: %w", err)
	}
	return nil
}

// resignReason prefers the reason on the event and falls back to the
// employee record. Unresolvable reasons land in OTHER.
func (s *Service) resignReason(ctx context.Context, ev dbm.WorkHistoryEvent) models.ResignReason {
	if ev.ResignReason != "" {
		return ev.ResignReason
	}
	emp, err := s.repo.GetEmployee(ctx, ev.EmployeeID)
	if err != nil {
		if !errors.Is(err, e.ErrNotFound) {
			s.logger.Warn("failed to load employee for resign reason fallback",
				zap.Error(err),
				zap.String("employee_id", ev.EmployeeID.String()),
			)
		}
		return models.ReasonOther
	}
	if emp.ResignReason != "" {
		return emp.ResignReason
	}
	return models.ReasonOther
}
