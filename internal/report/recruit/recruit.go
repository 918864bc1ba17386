// Package recruit maintains the recruitment report tables. The incremental
// path applies signed deltas when a candidate moves into or out of HIRED;
// the rebuild path recomputes a whole (date, org unit) from the candidate
// and expense tables with overwrite semantics.
package recruit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hrplane/reporting/internal/report/db"
	"github.com/hrplane/reporting/internal/report/models"
	"go.uber.org/zap"
)

// Service fans a hired-candidate change out to the source, channel,
// hired-candidate, and cost reports.
type Service struct {
	repo   *db.Repository
	logger *zap.Logger
}

// NewService constructs a recruitment Service.
func NewService(repo *db.Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.Named("recruitment_reports"),
	}
}

// Apply adjusts every recruitment report touched by one hired candidate by
// delta (+1 on hire, -1 on un-hire). Cost figures use the best-effort share
// approximation; the batch rebuild replaces them with exact values.
func (s *Service) Apply(ctx context.Context, snap *models.CandidateSnapshot, delta int) error {
	date := snap.OnboardDate.Time
	org := db.OrgUnit{
		BranchID:     snap.BranchID,
		BlockID:      snap.BlockID,
		DepartmentID: snap.DepartmentID,
	}
	sourceType := snap.SourceType()

	if err := s.repo.IncrementSourceReport(ctx, date, org, snap.SourceID, delta); err != nil {
		return fmt.Errorf("failed to adjust source report: %w", err)
	}
	if err := s.repo.IncrementChannelReport(ctx, date, org, snap.ChannelID, delta); err != nil {
		return fmt.Errorf("failed to adjust channel report: %w", err)
	}

	referrer := uuid.Nil
	if sourceType == models.ReferralSource {
		referrer = snap.ReferrerID
	}
	if err := s.repo.IncrementHiredReport(ctx, date, org, sourceType, referrer, delta, snap.Experienced()); err != nil {
		return fmt.Errorf("failed to adjust hired-candidate report: %w", err)
	}

	if sourceType.CarriesCost() {
		if err := s.adjustCost(ctx, snap, sourceType, delta); err != nil {
			return fmt.Errorf("failed to adjust cost report: %w", err)
		}
	}
	return nil
}

// adjustCost applies the incremental per-hire share approximation: the
// request's expense total on or before the report date, divided across the
// post-delta hire count. Exact apportioning happens in RebuildDay.
func (s *Service) adjustCost(ctx context.Context, snap *models.CandidateSnapshot, sourceType models.SourceType, delta int) error {
	date := snap.OnboardDate.Time
	org := db.OrgUnit{
		BranchID:     snap.BranchID,
		BlockID:      snap.BlockID,
		DepartmentID: snap.DepartmentID,
	}

	report, err := s.repo.GetOrCreateCostReport(ctx, date, org, sourceType)
	if err != nil {
		return err
	}

	totalExpense, err := s.repo.SumExpenses(ctx, snap.RequestID, date)
	if err != nil {
		return err
	}

	newHires := report.NumHires + delta
	if newHires < 0 {
		newHires = 0
	}
	share := totalExpense / int64(maxInt(1, newHires))

	report.NumHires = newHires
	report.TotalCost += int64(delta) * share
	if report.TotalCost < 0 {
		report.TotalCost = 0
	}
	report.RecalcAverage()

	return s.repo.SaveCostReport(ctx, report)
}

// RebuildDay recomputes every recruitment report for (date, org unit) from
// scratch: counters overwritten, cost apportioned exactly per request.
func (s *Service) RebuildDay(ctx context.Context, date time.Time, org db.OrgUnit) error {
	if err := s.repo.ResetRecruitmentDay(ctx, date, org); err != nil {
		return fmt.Errorf("failed to reset recruitment reports: %w", err)
	}

	rows, err := s.repo.HiredCandidatesOn(ctx, date, org)
	if err != nil {
		return fmt.Errorf("failed to load hired candidates: %w", err)
	}

	type hiredKey struct {
		sourceType models.SourceType
		referrerID uuid.UUID
	}
	type hiredCounts struct {
		hired       int
		experienced int
	}
	type costTotals struct {
		total int64
		hires int
	}

	sourceCounts := map[uuid.UUID]int{}
	channelCounts := map[uuid.UUID]int{}
	hired := map[hiredKey]*hiredCounts{}
	costs := map[models.SourceType]*costTotals{}

	for _, row := range rows {
		sourceType := models.SourceTypeOf(row.AllowReferral, row.BelongTo)
		sourceCounts[row.SourceID]++
		channelCounts[row.ChannelID]++

		key := hiredKey{sourceType: sourceType, referrerID: uuid.Nil}
		if sourceType == models.ReferralSource {
			key.referrerID = row.ReferrerID
		}
		hc := hired[key]
		if hc == nil {
			hc = &hiredCounts{}
			hired[key] = hc
		}
		hc.hired++
		if row.YearsOfExperience >= 1 {
			hc.experienced++
		}

		if !sourceType.CarriesCost() {
			continue
		}
		requestTotal, err := s.repo.SumExpenses(ctx, row.RequestID, date)
		if err != nil {
			return fmt.Errorf("failed to sum expenses: %w", err)
		}
		requestHires, err := s.repo.CountHiredOfRequest(ctx, row.RequestID, date)
		if err != nil {
			return fmt.Errorf("failed to count request hires: %w", err)
		}
		ct := costs[sourceType]
		if ct == nil {
			ct = &costTotals{}
			costs[sourceType] = ct
		}
		ct.total += requestTotal / maxInt64(1, requestHires)
		ct.hires++
	}

	for sourceID, n := range sourceCounts {
		if err := s.repo.UpsertSourceReportCount(ctx, date, org, sourceID, n); err != nil {
			return fmt.Errorf("failed to overwrite source report: %w", err)
		}
	}
	for channelID, n := range channelCounts {
		if err := s.repo.UpsertChannelReportCount(ctx, date, org, channelID, n); err != nil {
			return fmt.Errorf("failed to overwrite channel report: %w", err)
		}
	}
	for key, counts := range hired {
		if err := s.repo.UpsertHiredReportCounts(ctx, date, org, key.sourceType, key.referrerID, counts.hired, counts.experienced); err != nil {
			return fmt.Errorf("failed to overwrite hired-candidate report: %w", err)
		}
	}
	// Returning-employee hires live outside the candidate pipeline: rebuild
	// their bucket from the work-history events of the same day.
	returning, err := s.repo.CountReturningOn(ctx, date, org)
	if err != nil {
		return fmt.Errorf("failed to count returning employees: %w", err)
	}
	if returning > 0 {
		if err := s.repo.UpsertHiredReportCounts(ctx, date, org, models.ReturningEmployee, uuid.Nil, int(returning), 0); err != nil {
			return fmt.Errorf("failed to overwrite returning-employee report: %w", err)
		}
	}

	for sourceType, totals := range costs {
		report, err := s.repo.GetOrCreateCostReport(ctx, date, org, sourceType)
		if err != nil {
			return fmt.Errorf("failed to load cost report: %w", err)
		}
		report.TotalCost = totals.total
		report.NumHires = totals.hires
		report.RecalcAverage()
		if err := s.repo.SaveCostReport(ctx, report); err != nil {
			return fmt.Errorf("failed to overwrite cost report: %w", err)
		}
	}
	return nil
}

// RecomputeRequest rebuilds every (date, org unit) bucket containing hires
// of one recruitment request. Expense mutations route here: a cost record
// changes the per-hire share of every bucket its request feeds.
func (s *Service) RecomputeRequest(ctx context.Context, requestID uuid.UUID) error {
	rows, err := s.repo.HiredCandidatesOfRequest(ctx, requestID, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to load request hires: %w", err)
	}

	type bucket struct {
		date time.Time
		org  db.OrgUnit
	}
	seen := map[bucket]bool{}
	for _, row := range rows {
		if row.OnboardDate == nil {
			continue
		}
		b := bucket{
			date: *row.OnboardDate,
			org: db.OrgUnit{
				BranchID:     row.BranchID,
				BlockID:      row.BlockID,
				DepartmentID: row.DepartmentID,
			},
		}
		if seen[b] {
			continue
		}
		seen[b] = true
		if err := s.RebuildDay(ctx, b.date, b.org); err != nil {
			return err
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
