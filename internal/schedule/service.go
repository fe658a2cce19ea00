package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/petcare/visit-scheduling/internal/config"
	redisclient "github.com/petcare/visit-scheduling/internal/redis"
)

const (
	EventVisitBooked        = "VISIT_BOOKED"
	EventVisitStatusChanged = "VISIT_STATUS_CHANGED"
	EventScheduleReplaced   = "SCHEDULE_REPLACED"
	EventTimeOffCreated     = "TIME_OFF_CREATED"
)

// Service combines the schedule, time-off and visit stores into the
// availability and booking operations the API exposes. It holds no mutable
// state of its own; the only shared mutable resource is the visit ledger
// behind the repository.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Tests use this to pin "today".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AvailableDates returns the bookable dates for a provider over the horizon.
// An unknown provider fails the whole query rather than returning an empty
// list.
func (s *Service) AvailableDates(ctx context.Context, providerID uuid.UUID, horizonDays int) ([]time.Time, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return nil, err
	}
	if horizonDays <= 0 {
		horizonDays = s.cfg.HorizonDays
	}

	blocks, err := s.repo.ListWorkBlocks(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	timeOff, err := s.repo.ListTimeOff(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("load time off: %w", err)
	}

	return AvailableDates(blocks, timeOff, horizonDays, s.now()), nil
}

// FreeSlots returns the open slot start times for a provider on a date,
// computed from the weekly schedule minus already-occupied starts, with
// same-day past slots filtered out.
func (s *Service) FreeSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]TimeOfDay, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return nil, err
	}

	blocks, err := s.repo.ListWorkBlocks(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	occupied, err := s.repo.OccupiedStarts(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("load occupied starts: %w", err)
	}

	dayBlocks := blocksForWeekday(blocks, DateOnly(date).Weekday())
	return FreeSlots(dayBlocks, occupied, date, s.now()), nil
}

// BookVisitCommand carries everything a booking request submits.
type BookVisitCommand struct {
	ProviderID uuid.UUID
	PetID      uuid.UUID
	Date       time.Time
	Start      TimeOfDay
	Reason     string
	Notes      *string
}

// BookVisit validates the request against the provider's schedule and time
// off, then creates the visit under a per-slot lock with a commit-time
// occupancy re-check. Availability shown to the caller may be stale by the
// time the request lands here, so this path, not the read path, is what
// prevents double booking.
func (s *Service) BookVisit(ctx context.Context, cmd BookVisitCommand) (*Visit, error) {
	if _, err := s.repo.GetPetByID(ctx, cmd.PetID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetProviderByID(ctx, cmd.ProviderID); err != nil {
		return nil, err
	}

	now := s.now()
	date := DateOnly(cmd.Date)
	if date.Before(DateOnly(now)) {
		return nil, ErrDateInPast
	}
	if date.Equal(DateOnly(now)) && !cmd.Start.At(date).After(now) {
		return nil, fmt.Errorf("%w: start time already passed", ErrDateInPast)
	}

	blocks, err := s.repo.ListWorkBlocks(ctx, cmd.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	block, err := matchingBlock(blocks, date, cmd.Start)
	if err != nil {
		return nil, err
	}

	timeOff, err := s.repo.ListTimeOff(ctx, cmd.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load time off: %w", err)
	}
	if onTimeOff(timeOff, date) {
		return nil, ErrProviderOnTimeOff
	}

	visit := Visit{
		ProviderID: cmd.ProviderID,
		PetID:      cmd.PetID,
		Date:       date,
		Start:      cmd.Start,
		End:        cmd.Start + TimeOfDay(block.SlotLength),
		Status:     StatusScheduled,
		Reason:     cmd.Reason,
		Notes:      cmd.Notes,
	}

	var created *Visit
	err = s.locker.WithSlotLock(ctx, cmd.ProviderID, date, cmd.Start.Minutes(), func(lockCtx context.Context) error {
		// Authoritative re-check inside the critical section; the snapshot
		// the caller booked from may be stale.
		occupied, err := s.repo.OccupiedStarts(lockCtx, cmd.ProviderID, date)
		if err != nil {
			return fmt.Errorf("re-check occupied starts: %w", err)
		}
		if occupied[cmd.Start] {
			return ErrSlotTaken
		}

		created, err = s.repo.CreateVisit(lockCtx, visit)
		if err != nil {
			return err
		}

		s.logEvent(lockCtx, created.ID, EventVisitBooked, map[string]any{
			"provider_id": cmd.ProviderID.String(),
			"pet_id":      cmd.PetID.String(),
			"date":        date.Format("2006-01-02"),
			"start":       cmd.Start.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// matchingBlock finds the work block the requested start falls into, and
// requires the start to sit on a slot boundary with a full slot of room
// before the block ends.
func matchingBlock(blocks []WorkBlock, date time.Time, start TimeOfDay) (*WorkBlock, error) {
	for _, b := range blocksForWeekday(blocks, date.Weekday()) {
		if start < b.Start || start >= b.End {
			continue
		}
		if (start-b.Start)%TimeOfDay(b.SlotLength) != 0 {
			continue
		}
		if start+TimeOfDay(b.SlotLength) > b.End {
			continue
		}
		block := b
		return &block, nil
	}
	return nil, ErrOutsideWorkingHours
}

// ChangeVisitStatus applies a lifecycle transition. The transition table is
// the single gate; callers cannot skip states or leave a terminal state.
func (s *Service) ChangeVisitStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Visit, error) {
	visit, err := s.repo.GetVisitByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := Transition(visit.Status, newStatus); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateVisitStatus(ctx, id, visit.Status, newStatus)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) {
			// Row exists but the status moved underneath us; the
			// precondition for the transition no longer holds.
			return nil, &InvalidTransitionError{From: visit.Status, To: newStatus}
		}
		return nil, fmt.Errorf("update visit status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventVisitStatusChanged, map[string]any{
		"from": string(visit.Status),
		"to":   string(newStatus),
	})

	return updated, nil
}

// CanCreateMedicalRecord is the precondition the medical-records subsystem
// checks before creating a record against a visit.
func (s *Service) CanCreateMedicalRecord(ctx context.Context, visitID uuid.UUID) (bool, error) {
	visit, err := s.repo.GetVisitByID(ctx, visitID)
	if err != nil {
		return false, err
	}
	return CanCreateMedicalRecord(visit.Status), nil
}

// AssertRecordAllowed fails with ErrRecordNotAllowed when the visit is not
// in a record-eligible state. It never mutates anything.
func (s *Service) AssertRecordAllowed(ctx context.Context, visitID uuid.UUID) error {
	ok, err := s.CanCreateMedicalRecord(ctx, visitID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRecordNotAllowed
	}
	return nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.repo.GetVisitByID(ctx, id)
}

func (s *Service) VisitsForPet(ctx context.Context, petID uuid.UUID) ([]Visit, error) {
	if _, err := s.repo.GetPetByID(ctx, petID); err != nil {
		return nil, err
	}
	return s.repo.ListVisitsForPet(ctx, petID)
}

// VisitsForProviderOnDate backs the booking UI's view of a provider's day.
func (s *Service) VisitsForProviderOnDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Visit, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return nil, err
	}
	return s.repo.ListVisitsForProviderDate(ctx, providerID, date)
}

func (s *Service) UpdateVisitFields(ctx context.Context, id uuid.UUID, reason, notes *string) (*Visit, error) {
	return s.repo.UpdateVisitFields(ctx, id, reason, notes)
}

// UpdateWeeklySchedule validates and replaces the provider's weekly work
// blocks. Overlapping blocks within a weekday are rejected here, at write
// time, so the availability math can assume disjoint blocks.
func (s *Service) UpdateWeeklySchedule(ctx context.Context, providerID uuid.UUID, blocks []WorkBlock) ([]WorkBlock, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return nil, err
	}
	if err := ValidateWeeklySchedule(blocks); err != nil {
		return nil, err
	}

	replaced, err := s.repo.ReplaceWeeklySchedule(ctx, providerID, blocks)
	if err != nil {
		return nil, fmt.Errorf("replace schedule: %w", err)
	}

	s.logEvent(ctx, uuid.Nil, EventScheduleReplaced, map[string]any{
		"provider_id": providerID.String(),
		"blocks":      len(replaced),
	})
	return replaced, nil
}

func (s *Service) WeeklySchedule(ctx context.Context, providerID uuid.UUID) ([]WorkBlock, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return nil, err
	}
	return s.repo.ListWorkBlocks(ctx, providerID)
}

func (s *Service) TimeOff(ctx context.Context, providerID uuid.UUID) ([]TimeOffPeriod, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return nil, err
	}
	return s.repo.ListTimeOff(ctx, providerID)
}

func (s *Service) CreateTimeOff(ctx context.Context, providerID uuid.UUID, start, end time.Time, reason *string) (*TimeOffPeriod, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return nil, err
	}
	if err := ValidateTimeOff(start, end); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateTimeOff(ctx, TimeOffPeriod{
		ProviderID: providerID,
		StartDate:  DateOnly(start),
		EndDate:    DateOnly(end),
		Reason:     reason,
	})
	if err != nil {
		return nil, fmt.Errorf("create time off: %w", err)
	}

	s.logEvent(ctx, uuid.Nil, EventTimeOffCreated, map[string]any{
		"provider_id": providerID.String(),
		"start_date":  created.StartDate.Format("2006-01-02"),
		"end_date":    created.EndDate.Format("2006-01-02"),
	})
	return created, nil
}

func (s *Service) DeleteTimeOff(ctx context.Context, providerID, id uuid.UUID) error {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return err
	}
	return s.repo.DeleteTimeOff(ctx, providerID, id)
}

func (s *Service) logEvent(ctx context.Context, visitID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if visitID != uuid.Nil {
		id := visitID
		ev.VisitID = &id
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s: %v", eventType, err)
	}
}
