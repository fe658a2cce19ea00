package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petcare/visit-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	providerIDs, err := seedProviders(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedSchedules(context.Background(), pool, providerIDs); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}
	if err := seedTimeOff(context.Background(), pool, providerIDs); err != nil {
		log.Fatalf("seed time off: %v", err)
	}
	if err := seedPets(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed pets: %v", err)
	}

	log.Println("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"General Practice",
		"Surgery",
		"Dermatology",
		"Dentistry",
		"Cardiology",
		"Exotic Animals",
		"Ophthalmology",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("providers seeded")
	return ids, nil
}

// seedSchedules gives each provider 2-4 weekday blocks with common clinic
// hours and slot lengths.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, providerIDs []uuid.UUID) error {
	log.Printf("seeding schedules for %d providers", len(providerIDs))

	slotLengths := []int{15, 20, 30}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, providerID := range providerIDs {
		days := gofakeit.Number(2, 4)
		used := map[int]bool{}
		for d := 0; d < days; d++ {
			weekday := gofakeit.Number(1, 5) // Monday..Friday
			if used[weekday] {
				continue
			}
			used[weekday] = true

			startHour := gofakeit.Number(8, 10)
			endHour := gofakeit.Number(13, 17)
			slotLen := slotLengths[gofakeit.Number(0, len(slotLengths)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO work_blocks (id, provider_id, weekday, start_minutes, end_minutes, slot_length_minutes, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			`, uuid.New(), providerID, weekday, startHour*60, endHour*60, slotLen)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("schedules seeded")
	return nil
}

func seedTimeOff(ctx context.Context, pool *pgxpool.Pool, providerIDs []uuid.UUID) error {
	log.Println("seeding time off")

	reasons := []string{"vacation", "conference", "sick leave", "training"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, providerID := range providerIDs {
		if gofakeit.Number(0, 2) == 0 {
			continue // not everyone has time off booked
		}

		start := time.Now().AddDate(0, 0, gofakeit.Number(5, 60))
		end := start.AddDate(0, 0, gofakeit.Number(0, 10))
		reason := reasons[gofakeit.Number(0, len(reasons)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO time_off_periods (id, provider_id, start_date, end_date, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, uuid.New(), providerID, start, end, reason)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("time off seeded")
	return nil
}

func seedPets(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d pets", count)

	const batchSize = 500
	species := []string{"dog", "cat", "rabbit", "parrot", "hamster", "guinea pig"}

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO pets (id, owner_id, name, species, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), uuid.New(), gofakeit.PetName(), species[gofakeit.Number(0, len(species)-1)])
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("pets seeded: %d/%d", end, count)
	}

	log.Println("pets seeded")
	return nil
}
