// Package models contains the persistence models for the reporting engine,
// configured to work using GORM as the ORM. Source-of-truth tables live in
// source.go, pre-aggregated report tables in reports.go.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/hrplane/reporting/internal/report/models"
)

// Branch is an organizational unit lookup row.
type Branch struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"size:255"`
}

// Block is an organizational unit lookup row.
type Block struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"size:255"`
}

// Department is an organizational unit lookup row.
type Department struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"size:255"`
}

// Employee carries the fields the aggregation layer reads: the contract
// classification used by the exclusion pre-filter and the resignation-reason
// fallback.
type Employee struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Code           string              `gorm:"size:32;index"`
	CodeType       models.CodeType     `gorm:"size:8;index"`
	ReportExcluded bool                // position flagged "exclude from employee report"
	ResignReason   models.ResignReason `gorm:"size:32"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RecruitmentSource is a lookup row; AllowReferral marks referral sources.
type RecruitmentSource struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name          string    `gorm:"size:255"`
	AllowReferral bool
}

// RecruitmentChannel is a lookup row; BelongTo groups channels into
// marketing and job-website families.
type RecruitmentChannel struct {
	ID       uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Name     string              `gorm:"size:255"`
	BelongTo models.ChannelGroup `gorm:"size:32"`
}

// WorkHistoryEvent is one discrete change to an employee's employment state.
// Rows are immutable in the normal flow; PreviousData keeps the prior state
// so retroactive inspection never needs a second table.
type WorkHistoryEvent struct {
	ID             uuid.UUID             `gorm:"type:uuid;primaryKey"`
	EmployeeID     uuid.UUID             `gorm:"type:uuid;index"`
	Date           time.Time             `gorm:"index"`
	Name           models.EventName      `gorm:"size:32;index"`
	Status         models.EmployeeStatus `gorm:"size:32"`
	PreviousStatus models.EmployeeStatus `gorm:"size:32"`
	ResignReason   models.ResignReason   `gorm:"size:32"`
	BranchID       uuid.UUID             `gorm:"type:uuid"`
	BlockID        uuid.UUID             `gorm:"type:uuid"`
	DepartmentID   uuid.UUID             `gorm:"type:uuid;index"`
	PreviousData   map[string]any        `gorm:"serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RecruitmentCandidate is a pipeline candidate. Only HIRED rows feed the
// recruitment reports; OnboardDate may be unset before hiring.
type RecruitmentCandidate struct {
	ID                uuid.UUID              `gorm:"type:uuid;primaryKey"`
	Status            models.CandidateStatus `gorm:"size:32;index"`
	OnboardDate       *time.Time             `gorm:"index"`
	BranchID          uuid.UUID              `gorm:"type:uuid"`
	BlockID           uuid.UUID              `gorm:"type:uuid"`
	DepartmentID      uuid.UUID              `gorm:"type:uuid;index"`
	SourceID          uuid.UUID              `gorm:"type:uuid"`
	ChannelID         uuid.UUID              `gorm:"type:uuid"`
	YearsOfExperience float64
	ReferrerID        uuid.UUID `gorm:"type:uuid"` // uuid.Nil when not a referral hire
	RequestID         uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RecruitmentExpense is a cost record tied to a recruitment request.
type RecruitmentExpense struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequestID uuid.UUID `gorm:"type:uuid;index"`
	Date      time.Time `gorm:"index"`
	Amount    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
