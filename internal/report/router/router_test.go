package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hrplane/reporting/internal/report/db"
	dbm "github.com/hrplane/reporting/internal/report/db/models"
	e "github.com/hrplane/reporting/internal/report/errors"
	"github.com/hrplane/reporting/internal/report/models"
	"github.com/hrplane/reporting/internal/report/timeframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*Router, *db.Repository) {
	repo, err := db.NewSQLiteRepository(":memory:")
	require.NoError(t, err, "failed to open test database")
	return New(repo, zap.NewNop()), repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testOrg() db.OrgUnit {
	return db.OrgUnit{BranchID: uuid.New(), BlockID: uuid.New(), DepartmentID: uuid.New()}
}

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func addEmployee(t *testing.T, repo *db.Repository, codeType models.CodeType, excluded bool) uuid.UUID {
	t.Helper()
	emp := &dbm.Employee{ID: uuid.New(), CodeType: codeType, ReportExcluded: excluded}
	require.NoError(t, repo.Create(context.Background(), emp))
	return emp.ID
}

// addEventRow persists the source row the snapshot describes, as the ingest
// layer would have before the envelope reaches the router.
func addEventRow(t *testing.T, repo *db.Repository, snap *models.WorkHistorySnapshot) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &dbm.WorkHistoryEvent{
		ID:             snap.EventID,
		EmployeeID:     snap.EmployeeID,
		Date:           snap.Date.Time,
		Name:           snap.Name,
		Status:         snap.Status,
		PreviousStatus: snap.PreviousStatus,
		ResignReason:   snap.ResignReason,
		BranchID:       snap.BranchID,
		BlockID:        snap.BlockID,
		DepartmentID:   snap.DepartmentID,
	}))
}

func resignationSnapshot(employeeID uuid.UUID, org db.OrgUnit, date time.Time) *models.WorkHistorySnapshot {
	return &models.WorkHistorySnapshot{
		EventID:      uuid.New(),
		EmployeeID:   employeeID,
		Date:         models.DateOf(date),
		Name:         models.EventChangeStatus,
		Status:       models.StatusResigned,
		ResignReason: models.ReasonSalary,
		BranchID:     org.BranchID,
		BlockID:      org.BlockID,
		DepartmentID: org.DepartmentID,
	}
}

func TestRouteWorkHistoryResignation(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()
	org := testOrg()
	date := day(2026, time.January, 5)

	employeeID := addEmployee(t, repo, models.CodeTypeOfficial, false)
	snap := resignationSnapshot(employeeID, org, date)
	addEventRow(t, repo, snap)

	msg := models.Message{
		Entity:  models.EntityWorkHistory,
		Action:  models.ActionCreate,
		Current: mustRaw(t, snap),
	}
	require.NoError(t, rt.Route(ctx, msg))

	week, err := repo.GetGrowthReport(ctx, timeframe.Week, "W02-2026", org)
	require.NoError(t, err)
	assert.Equal(t, 1, week.NumResignations)

	month, err := repo.GetGrowthReport(ctx, timeframe.Month, "01/2026", org)
	require.NoError(t, err)
	assert.Equal(t, 1, month.NumResignations)

	breakdown, err := repo.GetStatusBreakdown(ctx, date, org)
	require.NoError(t, err)
	assert.Equal(t, 1, breakdown.CountResigned)
	assert.Equal(t, 1, breakdown.ReasonHistogram[string(models.ReasonSalary)])
}

func TestRouteWorkHistoryRedeliveryIsIdempotent(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()
	org := testOrg()

	employeeID := addEmployee(t, repo, models.CodeTypeOfficial, false)
	snap := resignationSnapshot(employeeID, org, day(2026, time.January, 5))
	addEventRow(t, repo, snap)

	msg := models.Message{
		Entity:  models.EntityWorkHistory,
		Action:  models.ActionCreate,
		Current: mustRaw(t, snap),
	}
	require.NoError(t, rt.Route(ctx, msg))
	require.NoError(t, rt.Route(ctx, msg))

	month, err := repo.GetGrowthReport(ctx, timeframe.Month, "01/2026", org)
	require.NoError(t, err)
	assert.Equal(t, 1, month.NumResignations, "redelivered message must not double count")
}

func TestRouteWorkHistoryExcludedEmployee(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()
	org := testOrg()

	employeeID := addEmployee(t, repo, models.CodeTypeOutsourced, false)
	snap := resignationSnapshot(employeeID, org, day(2026, time.January, 5))
	addEventRow(t, repo, snap)

	msg := models.Message{
		Entity:  models.EntityWorkHistory,
		Action:  models.ActionCreate,
		Current: mustRaw(t, snap),
	}
	require.NoError(t, rt.Route(ctx, msg))

	_, err := repo.GetGrowthReport(ctx, timeframe.Month, "01/2026", org)
	assert.ErrorIs(t, err, e.ErrNotFound, "excluded employees feed no growth counters")
}

func TestRouteWorkHistoryMissingEmployeeIsSkipped(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()
	org := testOrg()

	snap := resignationSnapshot(uuid.New(), org, day(2026, time.January, 5))
	msg := models.Message{
		Entity:  models.EntityWorkHistory,
		Action:  models.ActionCreate,
		Current: mustRaw(t, snap),
	}
	assert.NoError(t, rt.Route(ctx, msg), "a stale snapshot must not wedge the consumer")

	_, err := repo.GetGrowthReport(ctx, timeframe.Month, "01/2026", org)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestRouteWorkHistoryReturnFeedsHiredReport(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()
	org := testOrg()
	date := day(2026, time.February, 3)

	employeeID := addEmployee(t, repo, models.CodeTypeOfficial, false)
	snap := &models.WorkHistorySnapshot{
		EventID:      uuid.New(),
		EmployeeID:   employeeID,
		Date:         models.DateOf(date),
		Name:         models.EventReturnToWork,
		BranchID:     org.BranchID,
		BlockID:      org.BlockID,
		DepartmentID: org.DepartmentID,
	}
	addEventRow(t, repo, snap)

	msg := models.Message{
		Entity:  models.EntityWorkHistory,
		Action:  models.ActionCreate,
		Current: mustRaw(t, snap),
	}
	require.NoError(t, rt.Route(ctx, msg))

	hired, err := repo.GetHiredReport(ctx, date, org, models.ReturningEmployee, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hired.NumCandidatesHired)

	month, err := repo.GetGrowthReport(ctx, timeframe.Month, "02/2026", org)
	require.NoError(t, err)
	assert.Equal(t, 1, month.NumReturns)
}

func TestRouteWorkHistoryDeleteReverses(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()
	org := testOrg()

	employeeID := addEmployee(t, repo, models.CodeTypeOfficial, false)
	snap := resignationSnapshot(employeeID, org, day(2026, time.January, 5))
	addEventRow(t, repo, snap)

	create := models.Message{
		Entity:  models.EntityWorkHistory,
		Action:  models.ActionCreate,
		Current: mustRaw(t, snap),
	}
	require.NoError(t, rt.Route(ctx, create))

	require.NoError(t, repo.DeleteWorkHistoryEvent(ctx, snap.EventID))
	del := models.Message{
		Entity:   models.EntityWorkHistory,
		Action:   models.ActionDelete,
		Previous: mustRaw(t, snap),
	}
	require.NoError(t, rt.Route(ctx, del))

	month, err := repo.GetGrowthReport(ctx, timeframe.Month, "01/2026", org)
	require.NoError(t, err)
	assert.Equal(t, 0, month.NumResignations)

	breakdown, err := repo.GetStatusBreakdown(ctx, snap.Date.Time, org)
	require.NoError(t, err)
	assert.Equal(t, 0, breakdown.CountResigned)
}

func TestRouteCandidateHired(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()
	org := testOrg()
	date := day(2026, time.January, 10)

	sourceID := uuid.New()
	channelID := uuid.New()
	require.NoError(t, repo.Create(ctx, &dbm.RecruitmentSource{ID: sourceID, Name: "job board"}))
	require.NoError(t, repo.Create(ctx, &dbm.RecruitmentChannel{
		ID: channelID, Name: "careers site", BelongTo: models.ChannelJobWebsite,
	}))

	// Flags left empty: the router must backfill them from the lookups.
	snap := &models.CandidateSnapshot{
		CandidateID:       uuid.New(),
		Status:            models.CandidateHired,
		OnboardDate:       models.DateOf(date),
		BranchID:          org.BranchID,
		BlockID:           org.BlockID,
		DepartmentID:      org.DepartmentID,
		SourceID:          sourceID,
		ChannelID:         channelID,
		YearsOfExperience: 2,
		RequestID:         uuid.New(),
	}
	msg := models.Message{
		Entity:  models.EntityCandidate,
		Action:  models.ActionCreate,
		Current: mustRaw(t, snap),
	}
	require.NoError(t, rt.Route(ctx, msg))

	src, err := repo.GetSourceReport(ctx, date, org, sourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.NumHires)

	hired, err := repo.GetHiredReport(ctx, date, org, models.JobWebsiteChannel, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hired.NumCandidatesHired)
	assert.Equal(t, 1, hired.NumExperienced)
}

func TestRouteCandidateNonHiredStageIsIgnored(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()

	snap := &models.CandidateSnapshot{
		CandidateID: uuid.New(),
		Status:      models.CandidateInterviewed,
		SourceID:    uuid.New(),
	}
	msg := models.Message{
		Entity:  models.EntityCandidate,
		Action:  models.ActionCreate,
		Current: mustRaw(t, snap),
	}
	require.NoError(t, rt.Route(ctx, msg))

	_, err := repo.GetSourceReport(ctx, time.Time{}, db.OrgUnit{}, snap.SourceID)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestRouteCandidateHiredToHiredMovesBuckets(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()
	org := testOrg()
	prevDate := day(2026, time.January, 10)
	curDate := day(2026, time.January, 17)

	prev := &models.CandidateSnapshot{
		CandidateID:     uuid.New(),
		Status:          models.CandidateHired,
		OnboardDate:     models.DateOf(prevDate),
		BranchID:        org.BranchID,
		BlockID:         org.BlockID,
		DepartmentID:    org.DepartmentID,
		ChannelBelongTo: models.ChannelMarketing,
		RequestID:       uuid.New(),
	}
	create := models.Message{
		Entity:  models.EntityCandidate,
		Action:  models.ActionCreate,
		Current: mustRaw(t, prev),
	}
	require.NoError(t, rt.Route(ctx, create))

	cur := *prev
	cur.OnboardDate = models.DateOf(curDate)
	update := models.Message{
		Entity:   models.EntityCandidate,
		Action:   models.ActionUpdate,
		Previous: mustRaw(t, prev),
		Current:  mustRaw(t, &cur),
	}
	require.NoError(t, rt.Route(ctx, update))

	old, err := repo.GetHiredReport(ctx, prevDate, org, models.MarketingChannel, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 0, old.NumCandidatesHired)

	moved, err := repo.GetHiredReport(ctx, curDate, org, models.MarketingChannel, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.NumCandidatesHired)
}

func TestRouteExpenseRecomputesRequest(t *testing.T) {
	rt, repo := setup(t)
	ctx := context.Background()
	org := testOrg()
	date := day(2026, time.January, 10)
	requestID := uuid.New()

	channelID := uuid.New()
	require.NoError(t, repo.Create(ctx, &dbm.RecruitmentChannel{
		ID: channelID, Name: "ads", BelongTo: models.ChannelMarketing,
	}))
	onboard := date
	require.NoError(t, repo.Create(ctx, &dbm.RecruitmentCandidate{
		ID:          uuid.New(),
		Status:      models.CandidateHired,
		OnboardDate: &onboard,
		BranchID:    org.BranchID,
		BlockID:     org.BlockID, DepartmentID: org.DepartmentID,
		ChannelID: channelID,
		RequestID: requestID,
	}))

	expense := &models.ExpenseSnapshot{
		ExpenseID: uuid.New(),
		RequestID: requestID,
		Date:      models.DateOf(day(2026, time.January, 3)),
		Amount:    2500000,
	}
	require.NoError(t, repo.Create(ctx, &dbm.RecruitmentExpense{
		ID: expense.ExpenseID, RequestID: requestID, Date: expense.Date.Time, Amount: expense.Amount,
	}))

	msg := models.Message{
		Entity:  models.EntityExpense,
		Action:  models.ActionCreate,
		Current: mustRaw(t, expense),
	}
	require.NoError(t, rt.Route(ctx, msg))

	cost, err := repo.GetCostReport(ctx, date, org, models.MarketingChannel)
	require.NoError(t, err)
	assert.Equal(t, int64(2500000), cost.TotalCost)
	assert.Equal(t, int64(2500000), cost.AvgCostPerHire)
}

func TestRouteInvalidEnvelope(t *testing.T) {
	rt, _ := setup(t)
	ctx := context.Background()

	err := rt.Route(ctx, models.Message{Entity: models.EntityWorkHistory, Action: models.ActionCreate})
	assert.ErrorIs(t, err, e.ErrInvalidSnapshot)

	err = rt.Route(ctx, models.Message{Entity: "unknown", Action: models.ActionCreate})
	assert.ErrorIs(t, err, e.ErrInvalidSnapshot)
}
