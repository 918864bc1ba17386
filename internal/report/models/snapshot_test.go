package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	e "github.com/hrplane/reporting/internal/report/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2026, time.January, 5)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-01-05"`, string(data))

	var parsed Date
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.True(t, parsed.Equal(d.Time))
}

func TestDateUnmarshalRejectsBadFormat(t *testing.T) {
	var d Date
	err := json.Unmarshal([]byte(`"05/01/2026"`), &d)
	assert.ErrorIs(t, err, e.ErrInvalidSnapshot)
}

func TestDateUnmarshalEmptyIsZero(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.True(t, d.IsZero())
}

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestMessageWorkHistoryDecode(t *testing.T) {
	snap := &WorkHistorySnapshot{
		EventID:    uuid.New(),
		EmployeeID: uuid.New(),
		Date:       NewDate(2026, time.January, 5),
		Name:       EventChangeStatus,
		Status:     StatusResigned,
	}
	msg := Message{
		Entity:  EntityWorkHistory,
		Action:  ActionCreate,
		Current: mustRaw(t, snap),
	}

	change, err := msg.WorkHistory()
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, change.Action)
	assert.Nil(t, change.Previous)
	require.NotNil(t, change.Current)
	assert.Equal(t, snap.EventID, change.Current.EventID)
	assert.Equal(t, StatusResigned, change.Current.Status)
}

func TestMessageWorkHistoryRejectsEmptyEnvelope(t *testing.T) {
	msg := Message{Entity: EntityWorkHistory, Action: ActionUpdate}
	_, err := msg.WorkHistory()
	assert.ErrorIs(t, err, e.ErrInvalidSnapshot)
}

func TestMessageWorkHistoryRejectsNullSides(t *testing.T) {
	msg := Message{
		Entity:   EntityWorkHistory,
		Action:   ActionUpdate,
		Previous: json.RawMessage("null"),
		Current:  json.RawMessage("null"),
	}
	_, err := msg.WorkHistory()
	assert.ErrorIs(t, err, e.ErrInvalidSnapshot)
}

func TestMessageWorkHistoryRejectsMissingDate(t *testing.T) {
	msg := Message{
		Entity:  EntityWorkHistory,
		Action:  ActionCreate,
		Current: mustRaw(t, &WorkHistorySnapshot{EventID: uuid.New(), Name: EventTransfer}),
	}
	_, err := msg.WorkHistory()
	assert.ErrorIs(t, err, e.ErrInvalidSnapshot)
}

func TestMessageCandidateHiredRequiresOnboardDate(t *testing.T) {
	msg := Message{
		Entity:  EntityCandidate,
		Action:  ActionCreate,
		Current: mustRaw(t, &CandidateSnapshot{CandidateID: uuid.New(), Status: CandidateHired}),
	}
	_, err := msg.Candidate()
	assert.ErrorIs(t, err, e.ErrInvalidSnapshot)
}

func TestMessageCandidatePipelineStageNeedsNoOnboardDate(t *testing.T) {
	msg := Message{
		Entity:  EntityCandidate,
		Action:  ActionCreate,
		Current: mustRaw(t, &CandidateSnapshot{CandidateID: uuid.New(), Status: CandidateApplied}),
	}
	change, err := msg.Candidate()
	require.NoError(t, err)
	assert.Equal(t, CandidateApplied, change.Current.Status)
}

func TestMessageCandidateDecodePair(t *testing.T) {
	prev := &CandidateSnapshot{
		CandidateID: uuid.New(),
		Status:      CandidateOffered,
	}
	cur := *prev
	cur.Status = CandidateHired
	cur.OnboardDate = NewDate(2026, time.March, 2)

	msg := Message{
		Entity:   EntityCandidate,
		Action:   ActionUpdate,
		Previous: mustRaw(t, prev),
		Current:  mustRaw(t, &cur),
	}

	change, err := msg.Candidate()
	require.NoError(t, err)
	assert.Equal(t, CandidateOffered, change.Previous.Status)
	assert.Equal(t, CandidateHired, change.Current.Status)
	assert.Equal(t, "2026-03-02", change.Current.OnboardDate.Format(DateLayout))
}

func TestMessageExpenseDecode(t *testing.T) {
	snap := &ExpenseSnapshot{
		ExpenseID: uuid.New(),
		RequestID: uuid.New(),
		Date:      NewDate(2026, time.February, 1),
		Amount:    1500000,
	}
	msg := Message{
		Entity:   EntityExpense,
		Action:   ActionDelete,
		Previous: mustRaw(t, snap),
	}

	change, err := msg.Expense()
	require.NoError(t, err)
	assert.Nil(t, change.Current)
	assert.Equal(t, int64(1500000), change.Previous.Amount)
}

func TestMessageExpenseRejectsMissingDate(t *testing.T) {
	msg := Message{
		Entity:  EntityExpense,
		Action:  ActionCreate,
		Current: mustRaw(t, &ExpenseSnapshot{ExpenseID: uuid.New(), Amount: 100}),
	}
	_, err := msg.Expense()
	assert.ErrorIs(t, err, e.ErrInvalidSnapshot)
}

func TestMessageRejectsMalformedPayload(t *testing.T) {
	msg := Message{
		Entity:  EntityWorkHistory,
		Action:  ActionCreate,
		Current: json.RawMessage(`{"date": 42}`),
	}
	_, err := msg.WorkHistory()
	assert.ErrorIs(t, err, e.ErrInvalidSnapshot)
}
