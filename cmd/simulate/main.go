// Booking race simulator. Drives concurrent availability reads and booking
// attempts against a running api-server and reports how many attempts won,
// lost the slot race, or errored. Useful for demonstrating that two
// requests for the same provider/date/start can never both succeed.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petcare/visit-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	ContendedOnly bool // every worker fights over the same slot
	PetLimit      int
	PostgresDSN   string
}

type DataPool struct {
	Pets      []uuid.UUID
	Providers []uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]
	return avg, p50, p95
}

type Simulator struct {
	config   SimConfig
	pool     *DataPool
	client   *http.Client
	bookings OperationMetrics
	reads    OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d pets, %d providers", len(dataPool.Pets), len(dataPool.Providers))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		ContendedOnly: os.Getenv("SIM_CONTENDED_ONLY") == "true",
		PetLimit:      getInt("SIM_PET_LIMIT", 1000),
		PostgresDSN:   dsn,
	}
	if cfg.Workers <= 0 {
		log.Fatal("SIM_WORKERS must be positive")
	}
	return cfg
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM pets LIMIT $1`, cfg.PetLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Pets = append(dp.Pets, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	provRows, err := pool.Query(ctx, `SELECT id FROM providers`)
	if err != nil {
		return nil, err
	}
	defer provRows.Close()
	for provRows.Next() {
		var id uuid.UUID
		if err := provRows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Providers = append(dp.Providers, id)
	}
	if err := provRows.Err(); err != nil {
		return nil, err
	}

	if len(dp.Pets) == 0 || len(dp.Providers) == 0 {
		return nil, fmt.Errorf("no pets or providers seeded; run cmd/seed first")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	log.Printf("running for %s with %d workers (contended_only=%v)",
		s.config.Duration, s.config.Workers, s.config.ContendedOnly)

	deadline := time.Now().Add(s.config.Duration)

	// In contended mode every worker targets one provider so the per-slot
	// conflict path gets exercised constantly.
	contendedProvider := s.pool.Providers[rand.Intn(len(s.pool.Providers))]

	var wg sync.WaitGroup
	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				provider := contendedProvider
				if !s.config.ContendedOnly {
					provider = s.pool.Providers[rand.Intn(len(s.pool.Providers))]
				}
				s.attemptBooking(provider)
			}
		}()
	}
	wg.Wait()
}

// attemptBooking walks the same path a booking UI does: read dates, read
// slots, submit. In contended mode everyone picks the first slot of the
// first date, maximizing collisions.
func (s *Simulator) attemptBooking(provider uuid.UUID) {
	start := time.Now()

	dates := s.fetchDates(provider)
	if len(dates) == 0 {
		s.reads.Record(time.Since(start), false, false)
		return
	}
	date := dates[0]
	if !s.config.ContendedOnly {
		date = dates[rand.Intn(len(dates))]
	}

	slots := s.fetchSlots(provider, date)
	s.reads.Record(time.Since(start), len(slots) > 0, false)
	if len(slots) == 0 {
		return
	}
	slot := slots[0]
	if !s.config.ContendedOnly {
		slot = slots[rand.Intn(len(slots))]
	}

	pet := s.pool.Pets[rand.Intn(len(s.pool.Pets))]

	body, _ := json.Marshal(map[string]any{
		"provider_id": provider.String(),
		"pet_id":      pet.String(),
		"date":        date,
		"start":       slot,
		"reason":      "simulated checkup",
	})

	bookStart := time.Now()
	resp, err := s.client.Post(s.config.APIBaseURL+"/visits", "application/json", bytes.NewReader(body))
	if err != nil {
		s.bookings.Record(time.Since(bookStart), false, false)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	s.bookings.Record(time.Since(bookStart),
		resp.StatusCode == http.StatusCreated,
		resp.StatusCode == http.StatusConflict)
}

func (s *Simulator) fetchDates(provider uuid.UUID) []string {
	resp, err := s.client.Get(fmt.Sprintf("%s/providers/%s/available-dates", s.config.APIBaseURL, provider))
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var out struct {
		Dates []string `json:"dates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil
	}
	return out.Dates
}

func (s *Simulator) fetchSlots(provider uuid.UUID, date string) []string {
	resp, err := s.client.Get(fmt.Sprintf("%s/providers/%s/free-slots?date=%s", s.config.APIBaseURL, provider, date))
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var out struct {
		Slots []string `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil
	}
	return out.Slots
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== simulation report ===")

	printOp := func(name string, om *OperationMetrics) {
		avg, p50, p95 := om.Stats()
		fmt.Printf("%-12s total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
			name, om.Total, om.Success, om.Conflict, om.Error, avg, p50, p95)
	}

	printOp("reads", &s.reads)
	printOp("bookings", &s.bookings)

	if s.bookings.Conflict > 0 {
		fmt.Printf("\n%d booking attempts lost the slot race and got 409, as designed\n", s.bookings.Conflict)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
