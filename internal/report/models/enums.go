// Package models defines the core domain types for the reporting engine:
// snapshot envelopes, event and status enumerations, and the classification
// rules that map raw work-history and candidate data onto report buckets.
package models

// Action is the mutation kind carried by a snapshot envelope.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// EntityKind identifies which source entity a snapshot envelope describes.
type EntityKind string

const (
	EntityWorkHistory EntityKind = "work_history"
	EntityCandidate   EntityKind = "candidate"
	EntityExpense     EntityKind = "expense"
)

// EventName is the discriminator on a work-history event row.
type EventName string

const (
	EventChangeStatus      EventName = "CHANGE_STATUS"
	EventTransfer          EventName = "TRANSFER"
	EventReturnToWork      EventName = "RETURN_TO_WORK"
	EventIntroduction      EventName = "INTRODUCTION"
	EventRecruitmentSource EventName = "RECRUITMENT_SOURCE"
)

// EmployeeStatus is the employment state resulting from a work-history event.
type EmployeeStatus string

const (
	StatusActive         EmployeeStatus = "ACTIVE"
	StatusOnboarding     EmployeeStatus = "ONBOARDING"
	StatusMaternityLeave EmployeeStatus = "MATERNITY_LEAVE"
	StatusUnpaidLeave    EmployeeStatus = "UNPAID_LEAVE"
	StatusResigned       EmployeeStatus = "RESIGNED"
)

// IsLeave reports whether the status is a leave status. A CHANGE_STATUS back
// to ACTIVE from one of these counts as a return-to-work.
func (s EmployeeStatus) IsLeave() bool {
	return s == StatusMaternityLeave || s == StatusUnpaidLeave
}

// ResignReason enumerates the resignation-reason histogram buckets.
type ResignReason string

const (
	ReasonSalary          ResignReason = "SALARY"
	ReasonCareerChange    ResignReason = "CAREER_CHANGE"
	ReasonRelocation      ResignReason = "RELOCATION"
	ReasonHealth          ResignReason = "HEALTH"
	ReasonFamily          ResignReason = "FAMILY"
	ReasonWorkEnvironment ResignReason = "WORK_ENVIRONMENT"
	ReasonStudy           ResignReason = "STUDY"
	ReasonContractEnd     ResignReason = "CONTRACT_END"
	ReasonOther           ResignReason = "OTHER"
)

// AllResignReasons lists every histogram bucket in a stable order.
var AllResignReasons = []ResignReason{
	ReasonSalary,
	ReasonCareerChange,
	ReasonRelocation,
	ReasonHealth,
	ReasonFamily,
	ReasonWorkEnvironment,
	ReasonStudy,
	ReasonContractEnd,
	ReasonOther,
}

// GrowthEvent is the classified staff-growth event kind. Exactly one growth
// counter maps to each kind.
type GrowthEvent string

const (
	GrowthResignation       GrowthEvent = "resignation"
	GrowthTransfer          GrowthEvent = "transfer"
	GrowthReturn            GrowthEvent = "return"
	GrowthIntroduction      GrowthEvent = "introduction"
	GrowthRecruitmentSource GrowthEvent = "recruitment_source"
)

// CounterColumn returns the StaffGrowthReport column the event kind maps to.
func (g GrowthEvent) CounterColumn() string {
	switch g {
	case GrowthResignation:
		return "num_resignations"
	case GrowthTransfer:
		return "num_transfers"
	case GrowthReturn:
		return "num_returns"
	case GrowthIntroduction:
		return "num_introductions"
	case GrowthRecruitmentSource:
		return "num_recruitment_source"
	}
	return ""
}

// CandidateStatus is a recruitment pipeline stage. Only HIRED is
// aggregation-relevant.
type CandidateStatus string

const (
	CandidateApplied     CandidateStatus = "APPLIED"
	CandidateInterviewed CandidateStatus = "INTERVIEWED"
	CandidateOffered     CandidateStatus = "OFFERED"
	CandidateHired       CandidateStatus = "HIRED"
	CandidateRejected    CandidateStatus = "REJECTED"
)

// ChannelGroup is the belong_to flag on a recruitment channel.
type ChannelGroup string

const (
	ChannelMarketing  ChannelGroup = "marketing"
	ChannelJobWebsite ChannelGroup = "job_website"
)

// SourceType classifies where a hire came from.
type SourceType string

const (
	ReferralSource              SourceType = "REFERRAL_SOURCE"
	MarketingChannel            SourceType = "MARKETING_CHANNEL"
	JobWebsiteChannel           SourceType = "JOB_WEBSITE_CHANNEL"
	RecruitmentDepartmentSource SourceType = "RECRUITMENT_DEPARTMENT_SOURCE"
	ReturningEmployee           SourceType = "RETURNING_EMPLOYEE"
)

// CarriesCost reports whether hires of this source type share real
// recruitment expenses. Department-sourced and returning hires cost nothing.
func (s SourceType) CarriesCost() bool {
	return s == ReferralSource || s == MarketingChannel || s == JobWebsiteChannel
}

// CodeType is the employee contract classification.
type CodeType string

const (
	CodeTypeOfficial   CodeType = "OF"
	CodeTypeOutsourced CodeType = "OS"
	CodeTypeExternal   CodeType = "EX"
)

// ExcludedCodeTypes are the contract types that never contribute to the
// HR report tables.
var ExcludedCodeTypes = []CodeType{CodeTypeOutsourced, CodeTypeExternal}
