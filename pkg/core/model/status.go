package model

// RoundStatus is derived from an application round's dates and flags
type RoundStatus string

const (
	RoundUpcoming     RoundStatus = "UPCOMING"
	RoundOpen         RoundStatus = "OPEN"
	RoundInAllocation RoundStatus = "IN_ALLOCATION"
	RoundHandled      RoundStatus = "HANDLED"
	RoundResultsSent  RoundStatus = "RESULTS_SENT"
)

// AllowsResetting reports whether allocations in the round may be reset
func (s RoundStatus) AllowsResetting() bool {
	return s == RoundInAllocation
}

// AllowsAllocation reports whether new slots may be allocated in the round
func (s RoundStatus) AllowsAllocation() bool {
	return s == RoundInAllocation
}

// IsApplicationPeriodOver is true once the round has stopped taking applications
func (s RoundStatus) IsApplicationPeriodOver() bool {
	return s != RoundUpcoming && s != RoundOpen
}

// IsAllocationFinished is true once the round is handled
func (s RoundStatus) IsAllocationFinished() bool {
	return s == RoundHandled || s == RoundResultsSent
}

// ApplicationStatus is derived from an application and its round
type ApplicationStatus string

const (
	ApplicationDraft        ApplicationStatus = "DRAFT"
	ApplicationReceived     ApplicationStatus = "RECEIVED"
	ApplicationInAllocation ApplicationStatus = "IN_ALLOCATION"
	ApplicationHandled      ApplicationStatus = "HANDLED"
	ApplicationResultsSent  ApplicationStatus = "RESULTS_SENT"
	ApplicationExpired      ApplicationStatus = "EXPIRED"
	ApplicationCancelled    ApplicationStatus = "CANCELLED"
)

// CanAllocate reports whether sections of the application may receive allocations
func (s ApplicationStatus) CanAllocate() bool {
	return s == ApplicationInAllocation || s == ApplicationHandled
}

// SectionStatus is derived from a section, its round and its allocations
type SectionStatus string

const (
	SectionUnallocated  SectionStatus = "UNALLOCATED"
	SectionInAllocation SectionStatus = "IN_ALLOCATION"
	SectionHandled      SectionStatus = "HANDLED"
	SectionFailed       SectionStatus = "FAILED"
	SectionReserved     SectionStatus = "RESERVED"
)

// CanAllocate reports whether the section may receive new allocations
func (s SectionStatus) CanAllocate() bool {
	return s == SectionInAllocation
}

// IsInAllocationPhase is true for the two statuses before allocation is finished
func (s SectionStatus) IsInAllocationPhase() bool {
	return s == SectionUnallocated || s == SectionInAllocation
}
