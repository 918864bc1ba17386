package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	dbm "github.com/hrplane/reporting/internal/report/db/models"
	e "github.com/hrplane/reporting/internal/report/errors"
	"github.com/hrplane/reporting/internal/report/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LatestEventsByEmployee returns the most recent work-history event on or
// before asOf for each non-excluded employee who has ever had an event in
// one of the given org units. That event determines the employee's status
// and org unit as of the report date; an employee whose latest event sits
// in a different org unit is still returned, which is how a rebuild learns
// the employee left. Scoping to the org units keeps the rebuild cost
// proportional to the tuple, not the event table.
func (r *Repository) LatestEventsByEmployee(ctx context.Context, asOf time.Time, orgs []OrgUnit) (map[uuid.UUID]dbm.WorkHistoryEvent, error) {
	if len(orgs) == 0 {
		return map[uuid.UUID]dbm.WorkHistoryEvent{}, nil
	}

	orgScope := r.db.Where("branch_id = ? AND block_id = ? AND department_id = ?",
		orgs[0].BranchID, orgs[0].BlockID, orgs[0].DepartmentID)
	for _, org := range orgs[1:] {
		orgScope = orgScope.Or("branch_id = ? AND block_id = ? AND department_id = ?",
			org.BranchID, org.BlockID, org.DepartmentID)
	}
	members := r.db.
		Model(&dbm.WorkHistoryEvent{}).
		Distinct("employee_id").
		Where("date <= ?", asOf).
		Where(orgScope)

	var events []dbm.WorkHistoryEvent
	err := r.db.WithContext(ctx).
		Model(&dbm.WorkHistoryEvent{}).
		Joins("JOIN employees ON employees.id = work_history_events.employee_id").
		Where("employees.code_type NOT IN ? AND employees.report_excluded = ?", models.ExcludedCodeTypes, false).
		Where("work_history_events.date <= ?", asOf).
		Where("work_history_events.employee_id IN (?)", members).
		Order("work_history_events.date ASC, work_history_events.created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[uuid.UUID]dbm.WorkHistoryEvent, len(events))
	for _, ev := range events {
		latest[ev.EmployeeID] = ev
	}
	return latest, nil
}

var statusBreakdownKey = []clause.Column{
	{Name: "report_date"}, {Name: "branch_id"}, {Name: "block_id"}, {Name: "department_id"},
}

// UpsertStatusBreakdown writes a status-breakdown row with overwrite
// semantics: the freshly computed values replace whatever is there.
func (r *Repository) UpsertStatusBreakdown(ctx context.Context, report *dbm.EmployeeStatusBreakdownReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: statusBreakdownKey,
			DoUpdates: clause.AssignmentColumns([]string{
				"count_active", "count_onboarding", "count_maternity_leave",
				"count_unpaid_leave", "count_resigned", "total_not_resigned",
				"reason_histogram", "updated_at",
			}),
		}).
		Create(report).Error
}

// UpsertResignedReason writes a resigned-reason row with overwrite semantics.
func (r *Repository) UpsertResignedReason(ctx context.Context, report *dbm.EmployeeResignedReasonReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: statusBreakdownKey,
			DoUpdates: clause.AssignmentColumns([]string{
				"count_resigned", "count_salary", "count_career_change",
				"count_relocation", "count_health", "count_family",
				"count_work_environment", "count_study", "count_contract_end",
				"count_other", "updated_at",
			}),
		}).
		Create(report).Error
}

// GetStatusBreakdown fetches a status-breakdown row by natural key.
func (r *Repository) GetStatusBreakdown(ctx context.Context, date time.Time, org OrgUnit) (*dbm.EmployeeStatusBreakdownReport, error) {
	var report dbm.EmployeeStatusBreakdownReport
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID).
		First(&report)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &report, nil
}

// GetResignedReason fetches a resigned-reason row by natural key.
func (r *Repository) GetResignedReason(ctx context.Context, date time.Time, org OrgUnit) (*dbm.EmployeeResignedReasonReport, error) {
	var report dbm.EmployeeResignedReasonReport
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID).
		First(&report)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &report, nil
}
