package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
// It is the unit all slot arithmetic is done in.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24h). Anything else fails with ErrInvalidTime.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Minutes returns the raw minute count, for persistence.
func (t TimeOfDay) Minutes() int { return int(t) }

// At anchors the clock time on a calendar date.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(t)/60, int(t)%60, 0, 0, date.Location())
}

// WorkBlock is one recurring weekly working interval for a provider,
// e.g. every Monday 09:00-13:00 with 30-minute slots.
type WorkBlock struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Weekday    time.Weekday
	Start      TimeOfDay
	End        TimeOfDay
	SlotLength int // minutes
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TimeOffPeriod is an inclusive date range during which the provider is
// unavailable regardless of work blocks.
type TimeOffPeriod struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
	Reason     *string
	CreatedAt  time.Time
}

// Covers reports whether date falls inside the period.
func (p TimeOffPeriod) Covers(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(p.StartDate)) && !d.After(DateOnly(p.EndDate))
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Pet struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Species   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Visit is a booked appointment for a pet with a provider. Visits are never
// physically deleted; cancellation is a terminal status and the ledger keeps
// history.
type Visit struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	PetID      uuid.UUID
	Date       time.Time
	Start      TimeOfDay
	End        TimeOfDay
	Status     Status
	Reason     string
	Notes      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type EventLog struct {
	ID        int64
	EventType string
	VisitID   *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// DateOnly truncates t to its civil date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
