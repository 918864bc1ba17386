package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/hrplane/reporting/internal/report/models"
	"github.com/hrplane/reporting/internal/report/timeframe"
)

// StaffGrowthReport is the incrementally-maintained growth counter row, one
// per (timeframe, org unit).
type StaffGrowthReport struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TimeframeKind        timeframe.Kind `gorm:"size:8;uniqueIndex:ux_staff_growth"`
	TimeframeKey         string         `gorm:"size:16;uniqueIndex:ux_staff_growth"`
	BranchID             uuid.UUID      `gorm:"type:uuid;uniqueIndex:ux_staff_growth"`
	BlockID              uuid.UUID      `gorm:"type:uuid;uniqueIndex:ux_staff_growth"`
	DepartmentID         uuid.UUID      `gorm:"type:uuid;uniqueIndex:ux_staff_growth"`
	ReportDate           time.Time
	NumResignations      int `gorm:"not null;default:0"`
	NumTransfers         int `gorm:"not null;default:0"`
	NumReturns           int `gorm:"not null;default:0"`
	NumIntroductions     int `gorm:"not null;default:0"`
	NumRecruitmentSource int `gorm:"not null;default:0"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Counter returns the counter value for a growth event kind.
func (r *StaffGrowthReport) Counter(kind models.GrowthEvent) int {
	switch kind {
	case models.GrowthResignation:
		return r.NumResignations
	case models.GrowthTransfer:
		return r.NumTransfers
	case models.GrowthReturn:
		return r.NumReturns
	case models.GrowthIntroduction:
		return r.NumIntroductions
	case models.GrowthRecruitmentSource:
		return r.NumRecruitmentSource
	}
	return 0
}

// StaffGrowthEventLog records that an employee already counted toward a
// growth report for an event kind. The composite unique index is the
// authoritative dedup guard: the insert either claims the count or
// conflicts.
type StaffGrowthEventLog struct {
	ID         uuid.UUID          `gorm:"type:uuid;primaryKey"`
	ReportID   uuid.UUID          `gorm:"type:uuid;uniqueIndex:ux_growth_log"`
	EmployeeID uuid.UUID          `gorm:"type:uuid;uniqueIndex:ux_growth_log"`
	EventKind  models.GrowthEvent `gorm:"size:32;uniqueIndex:ux_growth_log"`
	EventID    uuid.UUID          `gorm:"type:uuid"` // the event that claimed the count, for audit
	CreatedAt  time.Time
}

// EmployeeStatusBreakdownReport is a point-in-time head-count snapshot per
// (date, org unit). Always fully overwritten, never incremented.
type EmployeeStatusBreakdownReport struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportDate          time.Time `gorm:"uniqueIndex:ux_status_breakdown"`
	BranchID            uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_status_breakdown"`
	BlockID             uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_status_breakdown"`
	DepartmentID        uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_status_breakdown"`
	CountActive         int       `gorm:"not null;default:0"`
	CountOnboarding     int       `gorm:"not null;default:0"`
	CountMaternityLeave int       `gorm:"not null;default:0"`
	CountUnpaidLeave    int       `gorm:"not null;default:0"`
	CountResigned       int       `gorm:"not null;default:0"`
	TotalNotResigned    int       `gorm:"not null;default:0"`
	ReasonHistogram     map[string]int `gorm:"serializer:json"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EmployeeResignedReasonReport is a point-in-time resignation-reason
// breakdown per (date, org unit). Always fully overwritten.
type EmployeeResignedReasonReport struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportDate           time.Time `gorm:"uniqueIndex:ux_resigned_reason"`
	BranchID             uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_resigned_reason"`
	BlockID              uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_resigned_reason"`
	DepartmentID         uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_resigned_reason"`
	CountResigned        int       `gorm:"not null;default:0"`
	CountSalary          int       `gorm:"not null;default:0"`
	CountCareerChange    int       `gorm:"not null;default:0"`
	CountRelocation      int       `gorm:"not null;default:0"`
	CountHealth          int       `gorm:"not null;default:0"`
	CountFamily          int       `gorm:"not null;default:0"`
	CountWorkEnvironment int       `gorm:"not null;default:0"`
	CountStudy           int       `gorm:"not null;default:0"`
	CountContractEnd     int       `gorm:"not null;default:0"`
	CountOther           int       `gorm:"not null;default:0"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AddReason bumps the integer field for a resignation reason. Unknown
// reasons land in the OTHER bucket.
func (r *EmployeeResignedReasonReport) AddReason(reason models.ResignReason) {
	switch reason {
	case models.ReasonSalary:
		r.CountSalary++
	case models.ReasonCareerChange:
		r.CountCareerChange++
	case models.ReasonRelocation:
		r.CountRelocation++
	case models.ReasonHealth:
		r.CountHealth++
	case models.ReasonFamily:
		r.CountFamily++
	case models.ReasonWorkEnvironment:
		r.CountWorkEnvironment++
	case models.ReasonStudy:
		r.CountStudy++
	case models.ReasonContractEnd:
		r.CountContractEnd++
	default:
		r.CountOther++
	}
}

// ReasonCount returns the counter for a reason, for tests and readers.
func (r *EmployeeResignedReasonReport) ReasonCount(reason models.ResignReason) int {
	switch reason {
	case models.ReasonSalary:
		return r.CountSalary
	case models.ReasonCareerChange:
		return r.CountCareerChange
	case models.ReasonRelocation:
		return r.CountRelocation
	case models.ReasonHealth:
		return r.CountHealth
	case models.ReasonFamily:
		return r.CountFamily
	case models.ReasonWorkEnvironment:
		return r.CountWorkEnvironment
	case models.ReasonStudy:
		return r.CountStudy
	case models.ReasonContractEnd:
		return r.CountContractEnd
	default:
		return r.CountOther
	}
}

// RecruitmentSourceReport counts hires per (date, org unit, source).
type RecruitmentSourceReport struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportDate   time.Time `gorm:"uniqueIndex:ux_recruit_source"`
	BranchID     uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_recruit_source"`
	BlockID      uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_recruit_source"`
	DepartmentID uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_recruit_source"`
	SourceID     uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_recruit_source"`
	NumHires     int       `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RecruitmentChannelReport counts hires per (date, org unit, channel).
type RecruitmentChannelReport struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportDate   time.Time `gorm:"uniqueIndex:ux_recruit_channel"`
	BranchID     uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_recruit_channel"`
	BlockID      uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_recruit_channel"`
	DepartmentID uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_recruit_channel"`
	ChannelID    uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_recruit_channel"`
	NumHires     int       `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HiredCandidateReport counts hires per (date, org unit, source type,
// referrer). ReferrerID is uuid.Nil for non-referral rows so the composite
// unique index still dedupes them.
type HiredCandidateReport struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ReportDate         time.Time         `gorm:"uniqueIndex:ux_hired_candidate"`
	BranchID           uuid.UUID         `gorm:"type:uuid;uniqueIndex:ux_hired_candidate"`
	BlockID            uuid.UUID         `gorm:"type:uuid;uniqueIndex:ux_hired_candidate"`
	DepartmentID       uuid.UUID         `gorm:"type:uuid;uniqueIndex:ux_hired_candidate"`
	SourceType         models.SourceType `gorm:"size:40;uniqueIndex:ux_hired_candidate"`
	ReferrerID         uuid.UUID         `gorm:"type:uuid;uniqueIndex:ux_hired_candidate"`
	NumCandidatesHired int               `gorm:"not null;default:0"`
	NumExperienced     int               `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RecruitmentCostReport tracks spend per (date, org unit, source type).
// AvgCostPerHire is always derived as TotalCost / NumHires, zero-floored.
type RecruitmentCostReport struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ReportDate     time.Time         `gorm:"uniqueIndex:ux_recruit_cost"`
	BranchID       uuid.UUID         `gorm:"type:uuid;uniqueIndex:ux_recruit_cost"`
	BlockID        uuid.UUID         `gorm:"type:uuid;uniqueIndex:ux_recruit_cost"`
	DepartmentID   uuid.UUID         `gorm:"type:uuid;uniqueIndex:ux_recruit_cost"`
	SourceType     models.SourceType `gorm:"size:40;uniqueIndex:ux_recruit_cost"`
	TotalCost      int64             `gorm:"not null;default:0"`
	NumHires       int               `gorm:"not null;default:0"`
	AvgCostPerHire int64             `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RecalcAverage recomputes AvgCostPerHire from TotalCost and NumHires,
// guarding the division.
func (r *RecruitmentCostReport) RecalcAverage() {
	if r.NumHires > 0 {
		r.AvgCostPerHire = r.TotalCost / int64(r.NumHires)
	} else {
		r.AvgCostPerHire = 0
	}
}
