package schedule

import "fmt"

// Status is the lifecycle state of a visit.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus maps external input onto the closed status set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown visit status %q", s)
}

// transitions is the single source of truth for the lifecycle. Exactly four
// (from, to) pairs are legal; completed and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to, returning the new status or an
// *InvalidTransitionError without touching anything.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

// CanCreateMedicalRecord gates the medical-records subsystem: records may
// only be written against confirmed or completed visits.
func CanCreateMedicalRecord(status Status) bool {
	return status == StatusConfirmed || status == StatusCompleted
}
