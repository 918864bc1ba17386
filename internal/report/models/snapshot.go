package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	e "github.com/hrplane/reporting/internal/report/errors"
)

// DateLayout is the wire format for business dates in snapshot payloads.
const DateLayout = "2006-01-02"

// Date is a calendar day. It marshals as "YYYY-MM-DD" and carries no
// time-of-day or zone information.
type Date struct {
	time.Time
}

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return fmt.Errorf("%w: bad date %q", e.ErrInvalidSnapshot, raw)
	}
	d.Time = t
	return nil
}

// Message is the raw snapshot envelope as delivered by the queue. Previous
// and Current are decoded lazily per entity kind.
type Message struct {
	Entity   EntityKind      `json:"entity"`
	Action   Action          `json:"action"`
	Previous json.RawMessage `json:"previous,omitempty"`
	Current  json.RawMessage `json:"current,omitempty"`
}

// WorkHistorySnapshot carries the aggregation-relevant fields of a
// work-history event row at enqueue time.
type WorkHistorySnapshot struct {
	EventID        uuid.UUID      `json:"event_id"`
	EmployeeID     uuid.UUID      `json:"employee_id"`
	Date           Date           `json:"date"`
	Name           EventName      `json:"name"`
	Status         EmployeeStatus `json:"status,omitempty"`
	PreviousStatus EmployeeStatus `json:"previous_status,omitempty"`
	ResignReason   ResignReason   `json:"resign_reason,omitempty"`
	BranchID       uuid.UUID      `json:"branch_id"`
	BlockID        uuid.UUID      `json:"block_id"`
	DepartmentID   uuid.UUID      `json:"department_id"`
}

// CandidateSnapshot carries the aggregation-relevant fields of a recruitment
// candidate row at enqueue time.
type CandidateSnapshot struct {
	CandidateID         uuid.UUID       `json:"candidate_id"`
	Status              CandidateStatus `json:"status"`
	OnboardDate         Date            `json:"onboard_date"`
	BranchID            uuid.UUID       `json:"branch_id"`
	BlockID             uuid.UUID       `json:"block_id"`
	DepartmentID        uuid.UUID       `json:"department_id"`
	SourceID            uuid.UUID       `json:"recruitment_source_id"`
	ChannelID           uuid.UUID       `json:"recruitment_channel_id"`
	SourceAllowReferral bool            `json:"source_allow_referral"`
	ChannelBelongTo     ChannelGroup    `json:"channel_belong_to"`
	YearsOfExperience   float64         `json:"years_of_experience"`
	ReferrerID          uuid.UUID       `json:"referrer_id,omitempty"`
	RequestID           uuid.UUID       `json:"recruitment_request_id"`
}

// ExpenseSnapshot carries the aggregation-relevant fields of a recruitment
// expense row at enqueue time.
type ExpenseSnapshot struct {
	ExpenseID uuid.UUID `json:"expense_id"`
	RequestID uuid.UUID `json:"recruitment_request_id"`
	Date      Date      `json:"date"`
	Amount    int64     `json:"amount"`
}

// WorkHistoryChange is the decoded {previous, current} pair for a
// work-history mutation. Previous is nil on create, Current is nil on delete.
type WorkHistoryChange struct {
	Action   Action
	Previous *WorkHistorySnapshot
	Current  *WorkHistorySnapshot
}

// CandidateChange is the decoded pair for a candidate mutation.
type CandidateChange struct {
	Action   Action
	Previous *CandidateSnapshot
	Current  *CandidateSnapshot
}

// ExpenseChange is the decoded pair for an expense mutation.
type ExpenseChange struct {
	Action   Action
	Previous *ExpenseSnapshot
	Current  *ExpenseSnapshot
}

// WorkHistory decodes the envelope into a validated WorkHistoryChange.
func (m Message) WorkHistory() (*WorkHistoryChange, error) {
	c := &WorkHistoryChange{Action: m.Action}
	if err := decodePair(m, &c.Previous, &c.Current); err != nil {
		return nil, err
	}
	if c.Previous == nil && c.Current == nil {
		return nil, fmt.Errorf("%w: work history envelope has no state", e.ErrInvalidSnapshot)
	}
	for _, s := range []*WorkHistorySnapshot{c.Previous, c.Current} {
		if s != nil && s.Date.IsZero() {
			return nil, fmt.Errorf("%w: work history snapshot missing date", e.ErrInvalidSnapshot)
		}
	}
	return c, nil
}

// Candidate decodes the envelope into a validated CandidateChange. A missing
// onboard date is only fatal on the HIRED side of the pair; pipeline stages
// before hiring legitimately have none.
func (m Message) Candidate() (*CandidateChange, error) {
	c := &CandidateChange{Action: m.Action}
	if err := decodePair(m, &c.Previous, &c.Current); err != nil {
		return nil, err
	}
	if c.Previous == nil && c.Current == nil {
		return nil, fmt.Errorf("%w: candidate envelope has no state", e.ErrInvalidSnapshot)
	}
	for _, s := range []*CandidateSnapshot{c.Previous, c.Current} {
		if s != nil && s.Status == CandidateHired && s.OnboardDate.IsZero() {
			return nil, fmt.Errorf("%w: hired candidate snapshot missing onboard date", e.ErrInvalidSnapshot)
		}
	}
	return c, nil
}

// Expense decodes the envelope into a validated ExpenseChange.
func (m Message) Expense() (*ExpenseChange, error) {
	c := &ExpenseChange{Action: m.Action}
	if err := decodePair(m, &c.Previous, &c.Current); err != nil {
		return nil, err
	}
	if c.Previous == nil && c.Current == nil {
		return nil, fmt.Errorf("%w: expense envelope has no state", e.ErrInvalidSnapshot)
	}
	for _, s := range []*ExpenseSnapshot{c.Previous, c.Current} {
		if s != nil && s.Date.IsZero() {
			return nil, fmt.Errorf("%w: expense snapshot missing date", e.ErrInvalidSnapshot)
		}
	}
	return c, nil
}

func decodePair[T any](m Message, prev, cur **T) error {
	if len(m.Previous) > 0 && string(m.Previous) != "null" {
		v := new(T)
		if err := json.Unmarshal(m.Previous, v); err != nil {
			return fmt.Errorf("%w: %v", e.ErrInvalidSnapshot, err)
		}
		*prev = v
	}
	if len(m.Current) > 0 && string(m.Current) != "null" {
		v := new(T)
		if err := json.Unmarshal(m.Current, v); err != nil {
			return fmt.Errorf("%w: %v", e.ErrInvalidSnapshot, err)
		}
		*cur = v
	}
	return nil
}
