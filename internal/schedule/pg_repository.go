package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the repository uses. Narrowed to an
// interface so tests can substitute pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPet(row pgx.Row) (*Pet, error) {
	var p Pet
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Species, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanWorkBlock(row pgx.Row) (*WorkBlock, error) {
	var (
		b       WorkBlock
		weekday int
		start   int
		end     int
	)
	err := row.Scan(&b.ID, &b.ProviderID, &weekday, &start, &end, &b.SlotLength, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Weekday = time.Weekday(weekday)
	b.Start = TimeOfDay(start)
	b.End = TimeOfDay(end)
	return &b, nil
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var (
		v      Visit
		start  int
		end    int
		status string
	)
	err := row.Scan(&v.ID, &v.ProviderID, &v.PetID, &v.Date, &start, &end, &status, &v.Reason, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}
	v.Start = TimeOfDay(start)
	v.End = TimeOfDay(end)
	v.Status = Status(status)
	v.Date = DateOnly(v.Date)
	return &v, nil
}

const visitColumns = `id, provider_id, pet_id, visit_date, start_minutes, end_minutes, status, reason, notes, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, owner_id, name, species, created_at, updated_at
		FROM pets
		WHERE id = $1
	`, id)
	return scanPet(row)
}

func (r *PgRepository) ListWorkBlocks(ctx context.Context, providerID uuid.UUID) ([]WorkBlock, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, provider_id, weekday, start_minutes, end_minutes, slot_length_minutes, created_at, updated_at
		FROM work_blocks
		WHERE provider_id = $1
		ORDER BY weekday, start_minutes
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []WorkBlock
	for rows.Next() {
		b, err := scanWorkBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

// ReplaceWeeklySchedule swaps the provider's entire weekly schedule in one
// transaction, mirroring how providers edit it: delete everything, insert
// the new set.
func (r *PgRepository) ReplaceWeeklySchedule(ctx context.Context, providerID uuid.UUID, blocks []WorkBlock) ([]WorkBlock, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM work_blocks WHERE provider_id = $1`, providerID); err != nil {
		return nil, fmt.Errorf("clear schedule: %w", err)
	}

	out := make([]WorkBlock, 0, len(blocks))
	for _, b := range blocks {
		row := tx.QueryRow(ctx, `
			INSERT INTO work_blocks (id, provider_id, weekday, start_minutes, end_minutes, slot_length_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			RETURNING id, provider_id, weekday, start_minutes, end_minutes, slot_length_minutes, created_at, updated_at
		`, uuid.New(), providerID, int(b.Weekday), b.Start.Minutes(), b.End.Minutes(), b.SlotLength)

		inserted, err := scanWorkBlock(row)
		if err != nil {
			return nil, fmt.Errorf("insert work block: %w", err)
		}
		out = append(out, *inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) ListTimeOff(ctx context.Context, providerID uuid.UUID) ([]TimeOffPeriod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, provider_id, start_date, end_date, reason, created_at
		FROM time_off_periods
		WHERE provider_id = $1
		ORDER BY start_date
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []TimeOffPeriod
	for rows.Next() {
		var p TimeOffPeriod
		if err := rows.Scan(&p.ID, &p.ProviderID, &p.StartDate, &p.EndDate, &p.Reason, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.StartDate = DateOnly(p.StartDate)
		p.EndDate = DateOnly(p.EndDate)
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (r *PgRepository) CreateTimeOff(ctx context.Context, period TimeOffPeriod) (*TimeOffPeriod, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO time_off_periods (id, provider_id, start_date, end_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, provider_id, start_date, end_date, reason, created_at
	`, uuid.New(), period.ProviderID, DateOnly(period.StartDate), DateOnly(period.EndDate), period.Reason)

	var p TimeOffPeriod
	if err := row.Scan(&p.ID, &p.ProviderID, &p.StartDate, &p.EndDate, &p.Reason, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.StartDate = DateOnly(p.StartDate)
	p.EndDate = DateOnly(p.EndDate)
	return &p, nil
}

func (r *PgRepository) DeleteTimeOff(ctx context.Context, providerID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM time_off_periods
		WHERE id = $1 AND provider_id = $2
	`, id, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTimeOffNotFound
	}
	return nil
}

// OccupiedStarts returns the start times of all non-cancelled visits for the
// provider on the date. Cancelled visits do not occupy their slot, which is
// what lets a cancelled time be rebooked.
func (r *PgRepository) OccupiedStarts(ctx context.Context, providerID uuid.UUID, date time.Time) (map[TimeOfDay]bool, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_minutes
		FROM visits
		WHERE provider_id = $1
		  AND visit_date = $2
		  AND status <> 'cancelled'
	`, providerID, DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occupied := make(map[TimeOfDay]bool)
	for rows.Next() {
		var start int
		if err := rows.Scan(&start); err != nil {
			return nil, err
		}
		occupied[TimeOfDay(start)] = true
	}
	return occupied, rows.Err()
}

// CreateVisit inserts the visit inside a transaction that first re-checks
// occupancy for the exact slot. The partial unique index on
// (provider_id, visit_date, start_minutes) WHERE status <> 'cancelled' is
// the final arbiter when two transactions race past the re-check; the loser
// surfaces as ErrSlotTaken.
func (r *PgRepository) CreateVisit(ctx context.Context, visit Visit) (*Visit, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM visits
			WHERE provider_id = $1
			  AND visit_date = $2
			  AND start_minutes = $3
			  AND status <> 'cancelled'
		)
	`, visit.ProviderID, DateOnly(visit.Date), visit.Start.Minutes()).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("re-check occupancy: %w", err)
	}
	if taken {
		return nil, ErrSlotTaken
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO visits (id, provider_id, pet_id, visit_date, start_minutes, end_minutes, status, reason, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', $7, $8, now(), now())
		RETURNING `+visitColumns+`
	`, uuid.New(), visit.ProviderID, visit.PetID, DateOnly(visit.Date),
		visit.Start.Minutes(), visit.End.Minutes(), visit.Reason, visit.Notes)

	created, err := scanVisit(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert visit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PgRepository) GetVisitByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE id = $1
	`, id)
	return scanVisit(row)
}

func (r *PgRepository) ListVisitsForPet(ctx context.Context, petID uuid.UUID) ([]Visit, error) {
	return r.listVisits(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE pet_id = $1
		ORDER BY visit_date, start_minutes
	`, petID)
}

func (r *PgRepository) ListVisitsForProviderDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Visit, error) {
	return r.listVisits(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE provider_id = $1 AND visit_date = $2
		ORDER BY start_minutes
	`, providerID, DateOnly(date))
}

func (r *PgRepository) listVisits(ctx context.Context, sql string, args ...any) ([]Visit, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, *v)
	}
	return visits, rows.Err()
}

// UpdateVisitStatus is a compare-and-set: the row only changes if it is
// still in the expected source status.
func (r *PgRepository) UpdateVisitStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Visit, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE visits
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+visitColumns+`
	`, id, string(to), string(from))

	return scanVisit(row)
}

func (r *PgRepository) UpdateVisitFields(ctx context.Context, id uuid.UUID, reason, notes *string) (*Visit, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE visits
		SET reason = COALESCE($2, reason),
		    notes = COALESCE($3, notes),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+visitColumns+`
	`, id, reason, notes)

	return scanVisit(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, visit_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.VisitID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
