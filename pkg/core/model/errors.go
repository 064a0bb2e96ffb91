package model

import (
	"fmt"
	"strings"
)

// Violation codes reported by allocation validation
const (
	CodeDayNotSuitable       = "day_not_suitable"
	CodeDurationOutOfBounds  = "duration_out_of_bounds"
	CodeDurationStep         = "duration_not_multiple_of_30_minutes"
	CodeOutsideSuitableRange = "outside_suitable_time_range"
	CodeInvalidTimeRange     = "invalid_time_range"
	CodeDayAlreadyAllocated  = "day_already_allocated"
	CodeQuotaExceeded        = "quota_exceeded"
	CodeOverlappingAlloc     = "overlapping_allocation"
	CodeOptionRejected       = "option_rejected"
	CodeOptionLocked         = "option_locked"
	CodeRoundStatus          = "round_status"
	CodeApplicationStatus    = "application_status"
	CodeSectionStatus        = "section_status"
	CodeNoOptions            = "no_options"
	CodeUnknownOption        = "unknown_option"
)

// Violation is one itemized reason for rejecting input
type Violation struct {
	Field   string
	Code    string
	Message string
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// ValidationError reports rejected input with every violated rule
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// HasCode reports whether any violation carries the given code
func (e *ValidationError) HasCode(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// NewValidationError builds a ValidationError with a single violation
func NewValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Violations: []Violation{{Field: field, Code: code, Message: message}}}
}

// StateConflictError is returned when an entity's current status forbids an action
type StateConflictError struct {
	Entity string
	ID     string
	Status string
	Action string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.Status)
}

// ExternalCollaboratorError wraps a failure of an opening hours or hierarchy source
type ExternalCollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *ExternalCollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

func (e *ExternalCollaboratorError) Unwrap() error {
	return e.Err
}
