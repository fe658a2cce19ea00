package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error)

	// Weekly schedule
	ListWorkBlocks(ctx context.Context, providerID uuid.UUID) ([]WorkBlock, error)
	ReplaceWeeklySchedule(ctx context.Context, providerID uuid.UUID, blocks []WorkBlock) ([]WorkBlock, error)

	// Time off
	ListTimeOff(ctx context.Context, providerID uuid.UUID) ([]TimeOffPeriod, error)
	CreateTimeOff(ctx context.Context, period TimeOffPeriod) (*TimeOffPeriod, error)
	DeleteTimeOff(ctx context.Context, providerID, id uuid.UUID) error

	// Booking ledger
	OccupiedStarts(ctx context.Context, providerID uuid.UUID, date time.Time) (map[TimeOfDay]bool, error)
	CreateVisit(ctx context.Context, visit Visit) (*Visit, error)
	GetVisitByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	ListVisitsForPet(ctx context.Context, petID uuid.UUID) ([]Visit, error)
	ListVisitsForProviderDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Visit, error)
	UpdateVisitStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Visit, error)
	UpdateVisitFields(ctx context.Context, id uuid.UUID, reason, notes *string) (*Visit, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
