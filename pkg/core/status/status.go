// Package status derives round, application and section statuses.
//
// Statuses are never stored. Every resolver is a pure function of the stored
// timestamps and a handful of related counts, so callers recompute them on
// read and after every mutation.
package status

import (
	"time"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// Round resolves the status of an application round at now
func Round(round model.ApplicationRound, now time.Time) model.RoundStatus {
	switch {
	case round.SentDate != nil:
		return model.RoundResultsSent
	case round.HandledDate != nil:
		return model.RoundHandled
	case now.Before(round.ApplicationPeriodBegin):
		return model.RoundUpcoming
	case now.Before(round.ApplicationPeriodEnd):
		return model.RoundOpen
	}
	return model.RoundInAllocation
}

// Application resolves the status of an application.
//
// hasUnallocatedSection is true when any section of the application is still
// in the allocation phase (UNALLOCATED or IN_ALLOCATION).
func Application(app model.Application, roundStatus model.RoundStatus, hasUnallocatedSection bool) model.ApplicationStatus {
	if app.CancelledDate != nil {
		return model.ApplicationCancelled
	}

	if app.SentDate == nil {
		// Unsent applications stay drafts until allocation is finished
		if !roundStatus.IsAllocationFinished() {
			return model.ApplicationDraft
		}
		return model.ApplicationExpired
	}

	switch roundStatus {
	case model.RoundResultsSent:
		return model.ApplicationResultsSent
	case model.RoundHandled:
		return model.ApplicationHandled
	case model.RoundUpcoming, model.RoundOpen:
		return model.ApplicationReceived
	}

	if hasUnallocatedSection {
		return model.ApplicationInAllocation
	}
	return model.ApplicationHandled
}

// SectionInput is the minimal data needed to resolve a section status
type SectionInput struct {
	RoundStatus model.RoundStatus

	// AppliedReservationsPerWeek is the section's weekly quota
	AppliedReservationsPerWeek int

	// AllocationsCount is the number of allocated time slots the section owns
	AllocationsCount int

	// UsableOptionCount counts options that are neither rejected nor locked
	UsableOptionCount int

	// SeriesCount is the number of recurring reservations created from the
	// section's slots. Zero until the round is materialised.
	SeriesCount int

	// ConfirmedOccurrences and DeniedOccurrences count the reservations of
	// every series of the section
	ConfirmedOccurrences int
	DeniedOccurrences    int
}

// Section resolves the status of an application section.
//
// Once the round is handled and series exist the section is RESERVED if any
// occurrence was confirmed, or FAILED if every occurrence was denied.
func Section(in SectionInput) model.SectionStatus {
	if !in.RoundStatus.IsApplicationPeriodOver() {
		return model.SectionUnallocated
	}

	if in.RoundStatus.IsAllocationFinished() && in.SeriesCount > 0 {
		if in.ConfirmedOccurrences > 0 {
			return model.SectionReserved
		}
		if in.DeniedOccurrences > 0 {
			return model.SectionFailed
		}
	}

	if in.RoundStatus.IsAllocationFinished() ||
		in.AllocationsCount >= in.AppliedReservationsPerWeek ||
		in.UsableOptionCount == 0 {
		return model.SectionHandled
	}

	return model.SectionInAllocation
}

// TimeRangeFulfilled reports whether a suitable time range no longer needs an
// allocation: the section has left the allocation phase or a slot already
// exists on the range's weekday
func TimeRangeFulfilled(sectionStatus model.SectionStatus, allocationExistsForWeekday bool) bool {
	return !sectionStatus.IsInAllocationPhase() || allocationExistsForWeekday
}
