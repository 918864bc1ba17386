package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	dbm "github.com/hrplane/reporting/internal/report/db/models"
	e "github.com/hrplane/reporting/internal/report/errors"
	"github.com/hrplane/reporting/internal/report/models"
	"github.com/hrplane/reporting/internal/report/timeframe"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrowthKey is the natural key of a StaffGrowthReport row.
type GrowthKey struct {
	Kind       timeframe.Kind
	Key        string
	ReportDate time.Time
	Org        OrgUnit
}

// GetOrCreateGrowthReport returns the growth report row for key, creating it
// with zeroed counters when absent.
func (r *Repository) GetOrCreateGrowthReport(ctx context.Context, key GrowthKey) (*dbm.StaffGrowthReport, error) {
	report := dbm.StaffGrowthReport{}
	result := r.db.WithContext(ctx).
		Where("timeframe_kind = ? AND timeframe_key = ? AND branch_id = ? AND block_id = ? AND department_id = ?",
			key.Kind, key.Key, key.Org.BranchID, key.Org.BlockID, key.Org.DepartmentID).
		Attrs(&dbm.StaffGrowthReport{
			ID:            uuid.New(),
			TimeframeKind: key.Kind,
			TimeframeKey:  key.Key,
			ReportDate:    key.ReportDate,
			BranchID:      key.Org.BranchID,
			BlockID:       key.Org.BlockID,
			DepartmentID:  key.Org.DepartmentID,
		}).
		FirstOrCreate(&report)
	if result.Error != nil {
		return nil, result.Error
	}
	return &report, nil
}

// GetGrowthReport fetches a growth report row by natural key, or ErrNotFound.
func (r *Repository) GetGrowthReport(ctx context.Context, kind timeframe.Kind, key string, org OrgUnit) (*dbm.StaffGrowthReport, error) {
	var report dbm.StaffGrowthReport
	result := r.db.WithContext(ctx).
		Where("timeframe_kind = ? AND timeframe_key = ? AND branch_id = ? AND block_id = ? AND department_id = ?",
			kind, key, org.BranchID, org.BlockID, org.DepartmentID).
		First(&report)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &report, nil
}

// ClaimGrowthEvent inserts the dedup-log row for (report, employee, kind).
// The composite unique index makes this the race-safe authority: true means
// the caller owns the count and must increment, false means some other event
// already claimed it.
func (r *Repository) ClaimGrowthEvent(ctx context.Context, reportID, employeeID uuid.UUID, kind models.GrowthEvent, eventID uuid.UUID) (bool, error) {
	log := dbm.StaffGrowthEventLog{
		ID:         uuid.New(),
		ReportID:   reportID,
		EmployeeID: employeeID,
		EventKind:  kind,
		EventID:    eventID,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&log)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseGrowthEvent deletes the dedup-log row so the count can be claimed
// again. True means this call removed the claim and the caller must
// decrement; false means there was nothing to release, so the counter is not
// this caller's to touch. The mirror of ClaimGrowthEvent.
func (r *Repository) ReleaseGrowthEvent(ctx context.Context, reportID, employeeID uuid.UUID, kind models.GrowthEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("report_id = ? AND employee_id = ? AND event_kind = ?", reportID, employeeID, kind).
		Delete(&dbm.StaffGrowthEventLog{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementGrowthCounter bumps the counter column for kind by one, as a
// database-level expression so concurrent handlers never lose updates.
func (r *Repository) IncrementGrowthCounter(ctx context.Context, reportID uuid.UUID, kind models.GrowthEvent) error {
	column := kind.CounterColumn()
	return r.db.WithContext(ctx).
		Model(&dbm.StaffGrowthReport{}).
		Where("id = ?", reportID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

// DecrementGrowthCounter lowers the counter column for kind by one, clamped
// at zero.
func (r *Repository) DecrementGrowthCounter(ctx context.Context, reportID uuid.UUID, kind models.GrowthEvent) error {
	column := kind.CounterColumn()
	return r.db.WithContext(ctx).
		Model(&dbm.StaffGrowthReport{}).
		Where("id = ?", reportID).
		UpdateColumn(column, gorm.Expr("CASE WHEN "+column+" >= 1 THEN "+column+" - 1 ELSE 0 END")).Error
}

// QualifyingFilter selects work-history events that qualify for a growth
// event kind within a timeframe, for one employee and department.
type QualifyingFilter struct {
	EmployeeID     uuid.UUID
	DepartmentID   uuid.UUID
	Kind           models.GrowthEvent
	From           time.Time
	To             time.Time
	ExcludeEventID uuid.UUID // uuid.Nil excludes nothing
}

// CountQualifyingEvents is the deduplication oracle: it counts other
// work-history rows matching the kind's defining filter in the timeframe.
func (r *Repository) CountQualifyingEvents(ctx context.Context, f QualifyingFilter) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&dbm.WorkHistoryEvent{}).
		Where("employee_id = ? AND department_id = ?", f.EmployeeID, f.DepartmentID).
		Where("date >= ? AND date <= ?", f.From, f.To)

	if f.ExcludeEventID != uuid.Nil {
		q = q.Where("id <> ?", f.ExcludeEventID)
	}

	switch f.Kind {
	case models.GrowthResignation:
		q = q.Where("name = ? AND status = ?", models.EventChangeStatus, models.StatusResigned)
	case models.GrowthTransfer:
		q = q.Where("name = ?", models.EventTransfer)
	case models.GrowthReturn:
		q = q.Where(
			r.db.Where("name = ?", models.EventReturnToWork).
				Or("name = ? AND status = ? AND previous_status IN ?",
					models.EventChangeStatus, models.StatusActive,
					[]models.EmployeeStatus{models.StatusMaternityLeave, models.StatusUnpaidLeave}),
		)
	case models.GrowthIntroduction:
		q = q.Where("name = ?", models.EventIntroduction)
	case models.GrowthRecruitmentSource:
		q = q.Where("name = ?", models.EventRecruitmentSource)
	default:
		return 0, e.ErrInvalidInput
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ResetGrowthTimeframe zeroes every counter of the report row for key and
// drops its dedup-log entries, preparing the timeframe for a batch replay.
// Missing rows are fine: the replay recreates them on demand.
func (r *Repository) ResetGrowthTimeframe(ctx context.Context, key GrowthKey) error {
	report, err := r.GetGrowthReport(ctx, key.Kind, key.Key, key.Org)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil
		}
		return err
	}

	err = r.db.WithContext(ctx).
		Where("report_id = ?", report.ID).
		Delete(&dbm.StaffGrowthEventLog{}).Error
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&dbm.StaffGrowthReport{}).
		Where("id = ?", report.ID).
		UpdateColumns(map[string]any{
			"num_resignations":       0,
			"num_transfers":          0,
			"num_returns":            0,
			"num_introductions":      0,
			"num_recruitment_source": 0,
		}).Error
}

// CountReturningOn counts return-to-work events on one day for an org unit,
// used to rebuild the RETURNING_EMPLOYEE hired-candidate bucket.
func (r *Repository) CountReturningOn(ctx context.Context, date time.Time, org OrgUnit) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&dbm.WorkHistoryEvent{}).
		Joins("JOIN employees ON employees.id = work_history_events.employee_id").
		Where("employees.code_type NOT IN ? AND employees.report_excluded = ?", models.ExcludedCodeTypes, false).
		Where("work_history_events.date = ?", date).
		Where("work_history_events.branch_id = ? AND work_history_events.block_id = ? AND work_history_events.department_id = ?",
			org.BranchID, org.BlockID, org.DepartmentID).
		Where(
			r.db.Where("name = ?", models.EventReturnToWork).
				Or("name = ? AND status = ? AND previous_status IN ?",
					models.EventChangeStatus, models.StatusActive,
					[]models.EmployeeStatus{models.StatusMaternityLeave, models.StatusUnpaidLeave}),
		).
		Count(&count).Error
	return count, err
}

// DistinctEventOrgUnits returns every (branch, block, department) tuple seen
// on non-excluded employees' work-history events up to asOf. The reconciler
// uses it for the routine keep-fresh pass when nothing changed today.
func (r *Repository) DistinctEventOrgUnits(ctx context.Context, asOf time.Time) ([]OrgUnit, error) {
	var orgs []OrgUnit
	err := r.db.WithContext(ctx).
		Model(&dbm.WorkHistoryEvent{}).
		Distinct("work_history_events.branch_id, work_history_events.block_id, work_history_events.department_id").
		Joins("JOIN employees ON employees.id = work_history_events.employee_id").
		Where("employees.code_type NOT IN ? AND employees.report_excluded = ?", models.ExcludedCodeTypes, false).
		Where("work_history_events.date <= ?", asOf).
		Scan(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

// GrowthEventsInRange returns non-excluded employees' work-history events in
// [from, to] for one department, ordered for replay. The exclusion rule is a
// pre-filter on the queryset, never applied after the fact.
func (r *Repository) GrowthEventsInRange(ctx context.Context, from, to time.Time, org OrgUnit) ([]dbm.WorkHistoryEvent, error) {
	var events []dbm.WorkHistoryEvent
	err := r.db.WithContext(ctx).
		Model(&dbm.WorkHistoryEvent{}).
		Joins("JOIN employees ON employees.id = work_history_events.employee_id").
		Where("employees.code_type NOT IN ? AND employees.report_excluded = ?", models.ExcludedCodeTypes, false).
		Where("work_history_events.date >= ? AND work_history_events.date <= ?", from, to).
		Where("work_history_events.branch_id = ? AND work_history_events.block_id = ? AND work_history_events.department_id = ?",
			org.BranchID, org.BlockID, org.DepartmentID).
		Order("work_history_events.date ASC, work_history_events.created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
