package models

// GrowthEventOf classifies a work-history snapshot into a staff-growth event
// kind. The mapping is fixed:
//
//	TRANSFER                                    -> transfer
//	INTRODUCTION                                -> introduction
//	RECRUITMENT_SOURCE                          -> recruitment_source
//	RETURN_TO_WORK                              -> return
//	CHANGE_STATUS + RESIGNED                    -> resignation
//	CHANGE_STATUS + ACTIVE from a leave status  -> return
//
// Any other combination contributes to no growth counter.
func GrowthEventOf(s *WorkHistorySnapshot) (GrowthEvent, bool) {
	if s == nil {
		return "", false
	}
	switch s.Name {
	case EventTransfer:
		return GrowthTransfer, true
	case EventIntroduction:
		return GrowthIntroduction, true
	case EventRecruitmentSource:
		return GrowthRecruitmentSource, true
	case EventReturnToWork:
		return GrowthReturn, true
	case EventChangeStatus:
		if s.Status == StatusResigned {
			return GrowthResignation, true
		}
		if s.Status == StatusActive && s.PreviousStatus.IsLeave() {
			return GrowthReturn, true
		}
	}
	return "", false
}

// SourceTypeOf classifies a hire's origin. Decision order is fixed and the
// first match wins: referral beats channel grouping, channel grouping beats
// the department fallback.
func SourceTypeOf(allowReferral bool, belongTo ChannelGroup) SourceType {
	switch {
	case allowReferral:
		return ReferralSource
	case belongTo == ChannelMarketing:
		return MarketingChannel
	case belongTo == ChannelJobWebsite:
		return JobWebsiteChannel
	default:
		return RecruitmentDepartmentSource
	}
}

// Hired reports whether the snapshot side exists and is in the HIRED state.
func (s *CandidateSnapshot) Hired() bool {
	return s != nil && s.Status == CandidateHired
}

// Experienced reports whether the candidate counts toward the experienced
// hire counter.
func (s *CandidateSnapshot) Experienced() bool {
	return s != nil && s.YearsOfExperience >= 1
}

// SourceType classifies this snapshot's hire origin.
func (s *CandidateSnapshot) SourceType() SourceType {
	return SourceTypeOf(s.SourceAllowReferral, s.ChannelBelongTo)
}
