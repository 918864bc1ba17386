package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hrplane/reporting/internal/pkg/utils"
	"github.com/hrplane/reporting/internal/report/db"
	dbm "github.com/hrplane/reporting/internal/report/db/models"
	e "github.com/hrplane/reporting/internal/report/errors"
	"github.com/hrplane/reporting/internal/report/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingProducer captures published envelopes for inspection.
type recordingProducer struct {
	keys      []string
	envelopes []models.Message
}

func (p *recordingProducer) Produce(entityID string, envelope models.Message) {
	p.keys = append(p.keys, entityID)
	p.envelopes = append(p.envelopes, envelope)
}

func setup(t *testing.T) (*Service, *db.Repository, *recordingProducer) {
	repo, err := db.NewSQLiteRepository(":memory:")
	require.NoError(t, err, "failed to open test database")
	producer := &recordingProducer{}
	return NewService(repo, producer, zap.NewNop()), repo, producer
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRecordWorkHistoryPersistsAndPublishes(t *testing.T) {
	svc, repo, producer := setup(t)
	ctx := context.Background()

	ev := &dbm.WorkHistoryEvent{
		EmployeeID:   uuid.New(),
		Date:         time.Date(2026, time.January, 5, 14, 30, 0, 0, time.UTC),
		Name:         models.EventChangeStatus,
		Status:       models.StatusResigned,
		ResignReason: models.ReasonSalary,
		DepartmentID: uuid.New(),
	}
	require.NoError(t, svc.RecordWorkHistory(ctx, ev))
	assert.NotEqual(t, uuid.Nil, ev.ID, "id must be assigned when absent")

	stored, err := repo.GetWorkHistoryEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2026, time.January, 5), stored.Date, "business date must be truncated to the day")

	require.Len(t, producer.envelopes, 1)
	assert.Equal(t, ev.ID.String(), producer.keys[0])

	envelope := producer.envelopes[0]
	assert.Equal(t, models.EntityWorkHistory, envelope.Entity)
	assert.Equal(t, models.ActionCreate, envelope.Action)

	change, err := envelope.WorkHistory()
	require.NoError(t, err)
	assert.Nil(t, change.Previous)
	require.NotNil(t, change.Current)
	assert.Equal(t, models.StatusResigned, change.Current.Status)
	assert.Equal(t, "2026-01-05", change.Current.Date.Format(models.DateLayout))
}

func TestRemoveWorkHistoryPublishesReversal(t *testing.T) {
	svc, _, producer := setup(t)
	ctx := context.Background()

	ev := &dbm.WorkHistoryEvent{
		ID:         uuid.New(),
		EmployeeID: uuid.New(),
		Date:       day(2026, time.January, 5),
		Name:       models.EventTransfer,
	}
	require.NoError(t, svc.RecordWorkHistory(ctx, ev))
	require.NoError(t, svc.RemoveWorkHistory(ctx, ev.ID))

	require.Len(t, producer.envelopes, 2)
	envelope := producer.envelopes[1]
	assert.Equal(t, models.ActionDelete, envelope.Action)

	change, err := envelope.WorkHistory()
	require.NoError(t, err)
	assert.Nil(t, change.Current)
	require.NotNil(t, change.Previous)
	assert.Equal(t, ev.ID, change.Previous.EventID)
}

func TestRemoveWorkHistoryMissingRow(t *testing.T) {
	svc, _, producer := setup(t)
	err := svc.RemoveWorkHistory(context.Background(), uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound)
	assert.Empty(t, producer.envelopes, "nothing published when the row is missing")
}

func TestUpdateCandidateCapturesBothSides(t *testing.T) {
	svc, repo, producer := setup(t)
	ctx := context.Background()

	sourceID := uuid.New()
	channelID := uuid.New()
	require.NoError(t, repo.Create(ctx, &dbm.RecruitmentSource{ID: sourceID, AllowReferral: true}))
	require.NoError(t, repo.Create(ctx, &dbm.RecruitmentChannel{ID: channelID, BelongTo: models.ChannelMarketing}))

	candidate := &dbm.RecruitmentCandidate{
		ID:        uuid.New(),
		Status:    models.CandidateOffered,
		SourceID:  sourceID,
		ChannelID: channelID,
		RequestID: uuid.New(),
	}
	require.NoError(t, svc.CreateCandidate(ctx, candidate))

	candidate.Status = models.CandidateHired
	candidate.OnboardDate = utils.Ptr(day(2026, time.March, 2))
	require.NoError(t, svc.UpdateCandidate(ctx, candidate))

	require.Len(t, producer.envelopes, 2)
	envelope := producer.envelopes[1]
	assert.Equal(t, models.EntityCandidate, envelope.Entity)
	assert.Equal(t, models.ActionUpdate, envelope.Action)

	change, err := envelope.Candidate()
	require.NoError(t, err)
	assert.Equal(t, models.CandidateOffered, change.Previous.Status)
	assert.Equal(t, models.CandidateHired, change.Current.Status)
	assert.Equal(t, "2026-03-02", change.Current.OnboardDate.Format(models.DateLayout))
	assert.True(t, change.Current.SourceAllowReferral, "classification flags must be resolved eagerly")
	assert.Equal(t, models.ChannelMarketing, change.Current.ChannelBelongTo)
}

func TestDeleteCandidatePublishesPreviousOnly(t *testing.T) {
	svc, _, producer := setup(t)
	ctx := context.Background()

	candidate := &dbm.RecruitmentCandidate{
		ID:          uuid.New(),
		Status:      models.CandidateHired,
		OnboardDate: utils.Ptr(day(2026, time.February, 10)),
		RequestID:   uuid.New(),
	}
	require.NoError(t, svc.CreateCandidate(ctx, candidate))
	require.NoError(t, svc.DeleteCandidate(ctx, candidate.ID))

	require.Len(t, producer.envelopes, 2)
	envelope := producer.envelopes[1]
	assert.Equal(t, models.ActionDelete, envelope.Action)

	change, err := envelope.Candidate()
	require.NoError(t, err)
	assert.Nil(t, change.Current)
	require.NotNil(t, change.Previous)
	assert.Equal(t, candidate.ID, change.Previous.CandidateID)
}

func TestExpenseLifecyclePublishesPairs(t *testing.T) {
	svc, repo, producer := setup(t)
	ctx := context.Background()
	requestID := uuid.New()

	expense := &dbm.RecruitmentExpense{
		RequestID: requestID,
		Date:      day(2026, time.January, 3),
		Amount:    2000000,
	}
	require.NoError(t, svc.CreateExpense(ctx, expense))

	expense.Amount = 2500000
	require.NoError(t, svc.UpdateExpense(ctx, expense))
	require.NoError(t, svc.DeleteExpense(ctx, expense.ID))

	_, err := repo.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)

	require.Len(t, producer.envelopes, 3)

	update, err := producer.envelopes[1].Expense()
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), update.Previous.Amount)
	assert.Equal(t, int64(2500000), update.Current.Amount)

	del, err := producer.envelopes[2].Expense()
	require.NoError(t, err)
	assert.Nil(t, del.Current)
	assert.Equal(t, requestID, del.Previous.RequestID)
}
