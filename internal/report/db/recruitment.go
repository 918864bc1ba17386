package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	dbm "github.com/hrplane/reporting/internal/report/db/models"
	e "github.com/hrplane/reporting/internal/report/errors"
	"github.com/hrplane/reporting/internal/report/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// clampedDelta builds an atomic column expression applying delta with a
// floor at zero. Re-delivered or out-of-order messages may over-decrement;
// the clamp keeps the invariant instead of trusting arrival order.
func clampedDelta(column string, delta int) clause.Expr {
	if delta >= 0 {
		return gorm.Expr(column+" + ?", delta)
	}
	return gorm.Expr(
		fmt.Sprintf("CASE WHEN %s >= ? THEN %s - ? ELSE 0 END", column, column),
		-delta, -delta,
	)
}

// IncrementSourceReport applies delta to the per-source hire counter,
// creating the row when absent.
func (r *Repository) IncrementSourceReport(ctx context.Context, date time.Time, org OrgUnit, sourceID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	report := dbm.RecruitmentSourceReport{}
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ? AND source_id = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID, sourceID).
		Attrs(&dbm.RecruitmentSourceReport{
			ID:           uuid.New(),
			ReportDate:   date,
			BranchID:     org.BranchID,
			BlockID:      org.BlockID,
			DepartmentID: org.DepartmentID,
			SourceID:     sourceID,
		}).
		FirstOrCreate(&report)
	if result.Error != nil {
		return result.Error
	}
	return r.db.WithContext(ctx).
		Model(&dbm.RecruitmentSourceReport{}).
		Where("id = ?", report.ID).
		UpdateColumn("num_hires", clampedDelta("num_hires", delta)).Error
}

// IncrementChannelReport applies delta to the per-channel hire counter.
func (r *Repository) IncrementChannelReport(ctx context.Context, date time.Time, org OrgUnit, channelID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	report := dbm.RecruitmentChannelReport{}
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ? AND channel_id = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID, channelID).
		Attrs(&dbm.RecruitmentChannelReport{
			ID:           uuid.New(),
			ReportDate:   date,
			BranchID:     org.BranchID,
			BlockID:      org.BlockID,
			DepartmentID: org.DepartmentID,
			ChannelID:    channelID,
		}).
		FirstOrCreate(&report)
	if result.Error != nil {
		return result.Error
	}
	return r.db.WithContext(ctx).
		Model(&dbm.RecruitmentChannelReport{}).
		Where("id = ?", report.ID).
		UpdateColumn("num_hires", clampedDelta("num_hires", delta)).Error
}

// IncrementHiredReport applies delta to the hired-candidate counters for a
// (date, org unit, source type, referrer) bucket. The experienced counter
// moves with the hired counter only when the candidate qualifies.
func (r *Repository) IncrementHiredReport(ctx context.Context, date time.Time, org OrgUnit, sourceType models.SourceType, referrerID uuid.UUID, delta int, experienced bool) error {
	if delta == 0 {
		return nil
	}
	// The lookup must be a raw condition: a struct condition drops the
	// zero-valued referrer, and uuid.Nil is the legitimate "no referrer" key.
	report := dbm.HiredCandidateReport{}
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ? AND source_type = ? AND referrer_id = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID, sourceType, referrerID).
		Attrs(&dbm.HiredCandidateReport{
			ID:           uuid.New(),
			ReportDate:   date,
			BranchID:     org.BranchID,
			BlockID:      org.BlockID,
			DepartmentID: org.DepartmentID,
			SourceType:   sourceType,
			ReferrerID:   referrerID,
		}).
		FirstOrCreate(&report)
	if result.Error != nil {
		return result.Error
	}
	columns := map[string]any{
		"num_candidates_hired": clampedDelta("num_candidates_hired", delta),
	}
	if experienced {
		columns["num_experienced"] = clampedDelta("num_experienced", delta)
	}
	return r.db.WithContext(ctx).
		Model(&dbm.HiredCandidateReport{}).
		Where("id = ?", report.ID).
		UpdateColumns(columns).Error
}

// GetSourceReport fetches a per-source report row by natural key.
func (r *Repository) GetSourceReport(ctx context.Context, date time.Time, org OrgUnit, sourceID uuid.UUID) (*dbm.RecruitmentSourceReport, error) {
	var report dbm.RecruitmentSourceReport
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ? AND source_id = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID, sourceID).
		First(&report)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &report, nil
}

// GetChannelReport fetches a per-channel report row by natural key.
func (r *Repository) GetChannelReport(ctx context.Context, date time.Time, org OrgUnit, channelID uuid.UUID) (*dbm.RecruitmentChannelReport, error) {
	var report dbm.RecruitmentChannelReport
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ? AND channel_id = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID, channelID).
		First(&report)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &report, nil
}

// GetHiredReport fetches a hired-candidate report row by natural key.
func (r *Repository) GetHiredReport(ctx context.Context, date time.Time, org OrgUnit, sourceType models.SourceType, referrerID uuid.UUID) (*dbm.HiredCandidateReport, error) {
	var report dbm.HiredCandidateReport
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ? AND source_type = ? AND referrer_id = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID, sourceType, referrerID).
		First(&report)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &report, nil
}

// GetOrCreateCostReport returns the cost row for the bucket, creating a
// zeroed one when absent.
func (r *Repository) GetOrCreateCostReport(ctx context.Context, date time.Time, org OrgUnit, sourceType models.SourceType) (*dbm.RecruitmentCostReport, error) {
	report := dbm.RecruitmentCostReport{}
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ? AND source_type = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID, sourceType).
		Attrs(&dbm.RecruitmentCostReport{
			ID:           uuid.New(),
			ReportDate:   date,
			BranchID:     org.BranchID,
			BlockID:      org.BlockID,
			DepartmentID: org.DepartmentID,
			SourceType:   sourceType,
		}).
		FirstOrCreate(&report)
	if result.Error != nil {
		return nil, result.Error
	}
	return &report, nil
}

// GetCostReport fetches a cost row by natural key, or ErrNotFound.
func (r *Repository) GetCostReport(ctx context.Context, date time.Time, org OrgUnit, sourceType models.SourceType) (*dbm.RecruitmentCostReport, error) {
	var report dbm.RecruitmentCostReport
	result := r.db.WithContext(ctx).
		Where("report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ? AND source_type = ?",
			date, org.BranchID, org.BlockID, org.DepartmentID, sourceType).
		First(&report)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &report, nil
}

// SaveCostReport persists recomputed cost figures for an existing row.
func (r *Repository) SaveCostReport(ctx context.Context, report *dbm.RecruitmentCostReport) error {
	return r.db.WithContext(ctx).
		Model(&dbm.RecruitmentCostReport{}).
		Where("id = ?", report.ID).
		UpdateColumns(map[string]any{
			"total_cost":        report.TotalCost,
			"num_hires":         report.NumHires,
			"avg_cost_per_hire": report.AvgCostPerHire,
		}).Error
}

// UpsertCostReport writes a cost row with overwrite semantics (batch path).
func (r *Repository) UpsertCostReport(ctx context.Context, report *dbm.RecruitmentCostReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "report_date"}, {Name: "branch_id"}, {Name: "block_id"},
				{Name: "department_id"}, {Name: "source_type"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_cost", "num_hires", "avg_cost_per_hire", "updated_at",
			}),
		}).
		Create(report).Error
}

// SumExpenses totals the expenses of a recruitment request dated on or
// before the report date.
func (r *Repository) SumExpenses(ctx context.Context, requestID uuid.UUID, onOrBefore time.Time) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&dbm.RecruitmentExpense{}).
		Select("SUM(amount)").
		Where("request_id = ? AND date <= ?", requestID, onOrBefore).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// CountHiredOfRequest counts a request's hired candidates onboarded on or
// before the report date.
func (r *Repository) CountHiredOfRequest(ctx context.Context, requestID uuid.UUID, onOrBefore time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&dbm.RecruitmentCandidate{}).
		Where("request_id = ? AND status = ? AND onboard_date <= ?", requestID, models.CandidateHired, onOrBefore).
		Count(&count).Error
	return count, err
}

// HiredCandidateInfo is a candidate row joined with the source and channel
// flags needed to classify its source type.
type HiredCandidateInfo struct {
	dbm.RecruitmentCandidate `gorm:"embedded"`
	AllowReferral            bool
	BelongTo                 models.ChannelGroup
}

// HiredCandidatesOn returns the hired candidates onboarded on date for one
// org unit, with classification flags resolved.
func (r *Repository) HiredCandidatesOn(ctx context.Context, date time.Time, org OrgUnit) ([]HiredCandidateInfo, error) {
	var rows []HiredCandidateInfo
	err := r.db.WithContext(ctx).
		Model(&dbm.RecruitmentCandidate{}).
		Select("recruitment_candidates.*, recruitment_sources.allow_referral AS allow_referral, recruitment_channels.belong_to AS belong_to").
		Joins("LEFT JOIN recruitment_sources ON recruitment_sources.id = recruitment_candidates.source_id").
		Joins("LEFT JOIN recruitment_channels ON recruitment_channels.id = recruitment_candidates.channel_id").
		Where("recruitment_candidates.status = ? AND recruitment_candidates.onboard_date = ?", models.CandidateHired, date).
		Where("recruitment_candidates.branch_id = ? AND recruitment_candidates.block_id = ? AND recruitment_candidates.department_id = ?",
			org.BranchID, org.BlockID, org.DepartmentID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HiredCandidatesOfRequest returns a request's hired candidates, optionally
// bounded to onboard dates on or before a report date (zero time means
// unbounded). Used for exact cost recomputation.
func (r *Repository) HiredCandidatesOfRequest(ctx context.Context, requestID uuid.UUID, onOrBefore time.Time) ([]HiredCandidateInfo, error) {
	q := r.db.WithContext(ctx).
		Model(&dbm.RecruitmentCandidate{}).
		Select("recruitment_candidates.*, recruitment_sources.allow_referral AS allow_referral, recruitment_channels.belong_to AS belong_to").
		Joins("LEFT JOIN recruitment_sources ON recruitment_sources.id = recruitment_candidates.source_id").
		Joins("LEFT JOIN recruitment_channels ON recruitment_channels.id = recruitment_candidates.channel_id").
		Where("recruitment_candidates.request_id = ? AND recruitment_candidates.status = ?",
			requestID, models.CandidateHired)
	if !onOrBefore.IsZero() {
		q = q.Where("recruitment_candidates.onboard_date <= ?", onOrBefore)
	}

	var rows []HiredCandidateInfo
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ResetRecruitmentDay zeroes every recruitment report counter for a
// (date, org unit) ahead of a batch overwrite, so buckets that lost their
// last hire do not keep stale counts.
func (r *Repository) ResetRecruitmentDay(ctx context.Context, date time.Time, org OrgUnit) error {
	scope := "report_date = ? AND branch_id = ? AND block_id = ? AND department_id = ?"
	args := []any{date, org.BranchID, org.BlockID, org.DepartmentID}

	if err := r.db.WithContext(ctx).Model(&dbm.RecruitmentSourceReport{}).
		Where(scope, args...).
		UpdateColumn("num_hires", 0).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Model(&dbm.RecruitmentChannelReport{}).
		Where(scope, args...).
		UpdateColumn("num_hires", 0).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Model(&dbm.HiredCandidateReport{}).
		Where(scope, args...).
		UpdateColumns(map[string]any{"num_candidates_hired": 0, "num_experienced": 0}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&dbm.RecruitmentCostReport{}).
		Where(scope, args...).
		UpdateColumns(map[string]any{"total_cost": 0, "num_hires": 0, "avg_cost_per_hire": 0}).Error
}

// UpsertSourceReportCount overwrites the per-source hire count (batch path).
func (r *Repository) UpsertSourceReportCount(ctx context.Context, date time.Time, org OrgUnit, sourceID uuid.UUID, numHires int) error {
	report := dbm.RecruitmentSourceReport{
		ID:           uuid.New(),
		ReportDate:   date,
		BranchID:     org.BranchID,
		BlockID:      org.BlockID,
		DepartmentID: org.DepartmentID,
		SourceID:     sourceID,
		NumHires:     numHires,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "report_date"}, {Name: "branch_id"}, {Name: "block_id"},
				{Name: "department_id"}, {Name: "source_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"num_hires", "updated_at"}),
		}).
		Create(&report).Error
}

// UpsertChannelReportCount overwrites the per-channel hire count (batch path).
func (r *Repository) UpsertChannelReportCount(ctx context.Context, date time.Time, org OrgUnit, channelID uuid.UUID, numHires int) error {
	report := dbm.RecruitmentChannelReport{
		ID:           uuid.New(),
		ReportDate:   date,
		BranchID:     org.BranchID,
		BlockID:      org.BlockID,
		DepartmentID: org.DepartmentID,
		ChannelID:    channelID,
		NumHires:     numHires,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "report_date"}, {Name: "branch_id"}, {Name: "block_id"},
				{Name: "department_id"}, {Name: "channel_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"num_hires", "updated_at"}),
		}).
		Create(&report).Error
}

// UpsertHiredReportCounts overwrites the hired-candidate counters (batch path).
func (r *Repository) UpsertHiredReportCounts(ctx context.Context, date time.Time, org OrgUnit, sourceType models.SourceType, referrerID uuid.UUID, hired, experienced int) error {
	report := dbm.HiredCandidateReport{
		ID:                 uuid.New(),
		ReportDate:         date,
		BranchID:           org.BranchID,
		BlockID:            org.BlockID,
		DepartmentID:       org.DepartmentID,
		SourceType:         sourceType,
		ReferrerID:         referrerID,
		NumCandidatesHired: hired,
		NumExperienced:     experienced,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "report_date"}, {Name: "branch_id"}, {Name: "block_id"},
				{Name: "department_id"}, {Name: "source_type"}, {Name: "referrer_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"num_candidates_hired", "num_experienced", "updated_at"}),
		}).
		Create(&report).Error
}

// DistinctHiredOrgUnitsOn returns every org unit with a hire onboarded on
// date, for the reconciler's keep-fresh pass.
func (r *Repository) DistinctHiredOrgUnitsOn(ctx context.Context, date time.Time) ([]OrgUnit, error) {
	var orgs []OrgUnit
	err := r.db.WithContext(ctx).
		Model(&dbm.RecruitmentCandidate{}).
		Distinct("branch_id, block_id, department_id").
		Where("status = ? AND onboard_date = ?", models.CandidateHired, date).
		Scan(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

// TouchedWorkHistory returns the events created or updated on runDay whose
// business date sits inside the lookback window. These rows decide which
// date range and org units the batch reconciler must recompute.
func (r *Repository) TouchedWorkHistory(ctx context.Context, runDay time.Time, lookbackDays int) ([]dbm.WorkHistoryEvent, error) {
	dayEnd := runDay.AddDate(0, 0, 1)
	earliest := runDay.AddDate(0, 0, -lookbackDays)

	var events []dbm.WorkHistoryEvent
	err := r.db.WithContext(ctx).
		Model(&dbm.WorkHistoryEvent{}).
		Where("(created_at >= ? AND created_at < ?) OR (updated_at >= ? AND updated_at < ?)",
			runDay, dayEnd, runDay, dayEnd).
		Where("date >= ? AND date <= ?", earliest, runDay).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// TouchedCandidates returns the candidates created or updated on runDay
// whose onboard date sits inside the lookback window. Detection must not
// filter on status: a candidate edited out of HIRED still marks its old
// (date, org unit) bucket dirty, and the rebuild is what drops it.
func (r *Repository) TouchedCandidates(ctx context.Context, runDay time.Time, lookbackDays int) ([]dbm.RecruitmentCandidate, error) {
	dayEnd := runDay.AddDate(0, 0, 1)
	earliest := runDay.AddDate(0, 0, -lookbackDays)

	var candidates []dbm.RecruitmentCandidate
	err := r.db.WithContext(ctx).
		Model(&dbm.RecruitmentCandidate{}).
		Where("(created_at >= ? AND created_at < ?) OR (updated_at >= ? AND updated_at < ?)",
			runDay, dayEnd, runDay, dayEnd).
		Where("onboard_date >= ? AND onboard_date <= ?", earliest, runDay).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
