package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrPetNotFound      = errors.New("pet not found")
	ErrVisitNotFound    = errors.New("visit not found")
	ErrTimeOffNotFound  = errors.New("time-off period not found")

	ErrInvalidTime         = errors.New("invalid time of day")
	ErrInvalidSchedule     = errors.New("invalid weekly schedule")
	ErrInvalidTimeOff      = errors.New("invalid time-off period")
	ErrOutsideWorkingHours = errors.New("requested time is outside provider working hours")
	ErrDateInPast          = errors.New("visit date cannot be in the past")
	ErrProviderOnTimeOff   = errors.New("provider is on time off on the selected date")

	ErrSlotTaken       = errors.New("slot is already taken")
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")

	ErrRecordNotAllowed = errors.New("visit status does not allow creating a medical record")
)

// InvalidTransitionError reports a status change that the lifecycle table
// rejects. The visit is left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
