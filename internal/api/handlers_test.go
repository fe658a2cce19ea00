package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petcare/visit-scheduling/internal/config"
	"github.com/petcare/visit-scheduling/internal/observability/metrics"
	"github.com/petcare/visit-scheduling/internal/schedule"
)

var testMonday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

// stubRepo is a minimal in-memory schedule.Repository for handler tests.
type stubRepo struct {
	mu        sync.Mutex
	providers map[uuid.UUID]schedule.Provider
	pets      map[uuid.UUID]schedule.Pet
	blocks    []schedule.WorkBlock
	timeOff   map[uuid.UUID]schedule.TimeOffPeriod
	visits    map[uuid.UUID]schedule.Visit
}

func (s *stubRepo) GetProviderByID(_ context.Context, id uuid.UUID) (*schedule.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, schedule.ErrProviderNotFound
	}
	return &p, nil
}

func (s *stubRepo) GetPetByID(_ context.Context, id uuid.UUID) (*schedule.Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pets[id]
	if !ok {
		return nil, schedule.ErrPetNotFound
	}
	return &p, nil
}

func (s *stubRepo) ListWorkBlocks(_ context.Context, providerID uuid.UUID) ([]schedule.WorkBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schedule.WorkBlock
	for _, b := range s.blocks {
		if b.ProviderID == providerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubRepo) ReplaceWeeklySchedule(_ context.Context, providerID uuid.UUID, blocks []schedule.WorkBlock) ([]schedule.WorkBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []schedule.WorkBlock
	for _, b := range s.blocks {
		if b.ProviderID != providerID {
			kept = append(kept, b)
		}
	}
	out := make([]schedule.WorkBlock, 0, len(blocks))
	for _, b := range blocks {
		b.ID = uuid.New()
		b.ProviderID = providerID
		kept = append(kept, b)
		out = append(out, b)
	}
	s.blocks = kept
	return out, nil
}

func (s *stubRepo) ListTimeOff(_ context.Context, providerID uuid.UUID) ([]schedule.TimeOffPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schedule.TimeOffPeriod
	for _, p := range s.timeOff {
		if p.ProviderID == providerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) CreateTimeOff(_ context.Context, period schedule.TimeOffPeriod) (*schedule.TimeOffPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	period.ID = uuid.New()
	period.CreatedAt = time.Now()
	s.timeOff[period.ID] = period
	return &period, nil
}

func (s *stubRepo) DeleteTimeOff(_ context.Context, providerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.timeOff[id]
	if !ok || p.ProviderID != providerID {
		return schedule.ErrTimeOffNotFound
	}
	delete(s.timeOff, id)
	return nil
}

func (s *stubRepo) OccupiedStarts(_ context.Context, providerID uuid.UUID, date time.Time) (map[schedule.TimeOfDay]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupiedLocked(providerID, date), nil
}

func (s *stubRepo) occupiedLocked(providerID uuid.UUID, date time.Time) map[schedule.TimeOfDay]bool {
	occupied := map[schedule.TimeOfDay]bool{}
	for _, v := range s.visits {
		if v.ProviderID == providerID && v.Date.Equal(schedule.DateOnly(date)) && v.Status != schedule.StatusCancelled {
			occupied[v.Start] = true
		}
	}
	return occupied
}

func (s *stubRepo) CreateVisit(_ context.Context, visit schedule.Visit) (*schedule.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.occupiedLocked(visit.ProviderID, visit.Date)[visit.Start] {
		return nil, schedule.ErrSlotTaken
	}
	visit.ID = uuid.New()
	visit.Status = schedule.StatusScheduled
	s.visits[visit.ID] = visit
	return &visit, nil
}

func (s *stubRepo) GetVisitByID(_ context.Context, id uuid.UUID) (*schedule.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok {
		return nil, schedule.ErrVisitNotFound
	}
	return &v, nil
}

func (s *stubRepo) ListVisitsForPet(_ context.Context, petID uuid.UUID) ([]schedule.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schedule.Visit
	for _, v := range s.visits {
		if v.PetID == petID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *stubRepo) ListVisitsForProviderDate(_ context.Context, providerID uuid.UUID, date time.Time) ([]schedule.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schedule.Visit
	for _, v := range s.visits {
		if v.ProviderID == providerID && v.Date.Equal(schedule.DateOnly(date)) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *stubRepo) UpdateVisitStatus(_ context.Context, id uuid.UUID, from, to schedule.Status) (*schedule.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok || v.Status != from {
		return nil, schedule.ErrVisitNotFound
	}
	v.Status = to
	s.visits[id] = v
	return &v, nil
}

func (s *stubRepo) UpdateVisitFields(_ context.Context, id uuid.UUID, reason, notes *string) (*schedule.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok {
		return nil, schedule.ErrVisitNotFound
	}
	if reason != nil {
		v.Reason = *reason
	}
	if notes != nil {
		v.Notes = notes
	}
	s.visits[id] = v
	return &v, nil
}

func (s *stubRepo) InsertEvent(_ context.Context, _ schedule.EventLog) error { return nil }

type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, _ time.Time, _ int, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type testEnv struct {
	router   http.Handler
	provider uuid.UUID
	pet      uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := &stubRepo{
		providers: map[uuid.UUID]schedule.Provider{},
		pets:      map[uuid.UUID]schedule.Pet{},
		timeOff:   map[uuid.UUID]schedule.TimeOffPeriod{},
		visits:    map[uuid.UUID]schedule.Visit{},
	}

	providerID := uuid.New()
	petID := uuid.New()
	repo.providers[providerID] = schedule.Provider{ID: providerID, Name: "Dr. Vet"}
	repo.pets[petID] = schedule.Pet{ID: petID, Name: "Rex", Species: "dog"}

	start, err := schedule.ParseTimeOfDay("09:00")
	require.NoError(t, err)
	end, err := schedule.ParseTimeOfDay("13:00")
	require.NoError(t, err)
	repo.blocks = []schedule.WorkBlock{{
		ID:         uuid.New(),
		ProviderID: providerID,
		Weekday:    time.Monday,
		Start:      start,
		End:        end,
		SlotLength: 30,
	}}

	svc := schedule.NewService(repo, passLocker{}, config.Config{HorizonDays: 90, Env: "test"}).
		WithClock(func() time.Time { return testMonday.AddDate(0, 0, -3) })

	router := NewRouter(RouterConfig{
		Service: svc,
		Metrics: metrics.NewBookingMetrics(prometheus.NewRegistry()),
		Env:     "test",
		Version: "test",
	})

	return &testEnv{router: router, provider: providerID, pet: petID}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) bookVisit(t *testing.T, start string) VisitResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/visits", BookVisitRequest{
		ProviderID: e.provider.String(),
		PetID:      e.pet.String(),
		Date:       "2026-03-02",
		Start:      start,
		Reason:     "checkup",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var visit VisitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visit))
	return visit
}

func TestAvailableDatesEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/providers/%s/available-dates?horizon=14", env.provider), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailableDatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2026-03-02", "2026-03-09"}, resp.Dates)

	t.Run("unknown provider is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/providers/%s/available-dates", uuid.New()), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed provider id is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/providers/not-a-uuid/available-dates", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-positive horizon is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/providers/%s/available-dates?horizon=0", env.provider), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFreeSlotsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/providers/%s/free-slots?date=2026-03-02", env.provider), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FreeSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-03-02", resp.Date)
	assert.Len(t, resp.Slots, 8)
	assert.Equal(t, "09:00", resp.Slots[0])

	t.Run("missing date is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/providers/%s/free-slots", env.provider), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBookVisitEndpoint(t *testing.T) {
	t.Run("books and reports the created visit", func(t *testing.T) {
		env := newTestEnv(t)
		visit := env.bookVisit(t, "10:00")

		assert.Equal(t, "scheduled", visit.Status)
		assert.Equal(t, "10:00", visit.Start)
		assert.Equal(t, "10:30", visit.End)
	})

	t.Run("double booking the slot is 409", func(t *testing.T) {
		env := newTestEnv(t)
		env.bookVisit(t, "10:00")

		rec := env.do(t, http.MethodPost, "/visits", BookVisitRequest{
			ProviderID: env.provider.String(),
			PetID:      env.pet.String(),
			Date:       "2026-03-02",
			Start:      "10:00",
		})
		require.Equal(t, http.StatusConflict, rec.Code)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		assert.Equal(t, "slot_taken", errResp.Error)
	})

	t.Run("validation failures are 400", func(t *testing.T) {
		env := newTestEnv(t)

		cases := []BookVisitRequest{
			{ProviderID: "nope", PetID: env.pet.String(), Date: "2026-03-02", Start: "10:00"},
			{ProviderID: env.provider.String(), PetID: env.pet.String(), Date: "03/02/2026", Start: "10:00"},
			{ProviderID: env.provider.String(), PetID: env.pet.String(), Date: "2026-03-02", Start: "10am"},
			// off the slot grid
			{ProviderID: env.provider.String(), PetID: env.pet.String(), Date: "2026-03-02", Start: "10:10"},
			// in the past
			{ProviderID: env.provider.String(), PetID: env.pet.String(), Date: "2026-02-23", Start: "10:00"},
		}
		for _, c := range cases {
			rec := env.do(t, http.MethodPost, "/visits", c)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown pet is 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/visits", BookVisitRequest{
			ProviderID: env.provider.String(),
			PetID:      uuid.NewString(),
			Date:       "2026-03-02",
			Start:      "10:00",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestVisitStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	visit := env.bookVisit(t, "09:00")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/visits/%s/status", visit.ID), ChangeStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated VisitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "confirmed", updated.Status)

	t.Run("illegal transition is 409", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, fmt.Sprintf("/visits/%s/status", visit.ID), ChangeStatusRequest{Status: "scheduled"})
		require.Equal(t, http.StatusConflict, rec.Code)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		assert.Equal(t, "invalid_status_transition", errResp.Error)
	})

	t.Run("unknown status string is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, fmt.Sprintf("/visits/%s/status", visit.ID), ChangeStatusRequest{Status: "CONFIRMED"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown visit is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, fmt.Sprintf("/visits/%s/status", uuid.New()), ChangeStatusRequest{Status: "confirmed"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRecordAllowedEndpoint(t *testing.T) {
	env := newTestEnv(t)
	visit := env.bookVisit(t, "09:00")

	check := func(t *testing.T, want bool) {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/visits/%s/record-allowed", visit.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RecordAllowedResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, want, resp.Allowed)
	}

	check(t, false)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/visits/%s/status", visit.ID), ChangeStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	check(t, true)
}

func TestScheduleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("overlapping blocks are rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, fmt.Sprintf("/providers/%s/schedule", env.provider), []WorkBlockPayload{
			{Weekday: "MONDAY", Start: "09:00", End: "12:00", SlotLength: 30},
			{Weekday: "MONDAY", Start: "11:00", End: "14:00", SlotLength: 30},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid weekday name is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, fmt.Sprintf("/providers/%s/schedule", env.provider), []WorkBlockPayload{
			{Weekday: "Monday", Start: "09:00", End: "12:00", SlotLength: 30},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("replace then read back", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, fmt.Sprintf("/providers/%s/schedule", env.provider), []WorkBlockPayload{
			{Weekday: "TUESDAY", Start: "08:00", End: "12:00", SlotLength: 20},
			{Weekday: "THURSDAY", Start: "13:00", End: "17:00", SlotLength: 20},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodGet, fmt.Sprintf("/providers/%s/schedule", env.provider), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var blocks []WorkBlockResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &blocks))
		require.Len(t, blocks, 2)
		assert.Equal(t, "TUESDAY", blocks[0].Weekday)
	})
}

func TestTimeOffEndpoints(t *testing.T) {
	env := newTestEnv(t)
	base := fmt.Sprintf("/providers/%s/time-off", env.provider)

	t.Run("end before start is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base, TimeOffPayload{StartDate: "2026-03-09", EndDate: "2026-03-02"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec := env.do(t, http.MethodPost, base, TimeOffPayload{StartDate: "2026-03-02", EndDate: "2026-03-06"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created TimeOffResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "2026-03-02", created.StartDate)

	rec = env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var periods []TimeOffResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &periods))
	assert.Len(t, periods, 1)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("%s/%s", base, created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("%s/%s", base, created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVisitListEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.bookVisit(t, "09:00")
	env.bookVisit(t, "10:00")

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/visits/by-pet/%s", env.pet), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byPet []VisitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byPet))
	assert.Len(t, byPet, 2)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/visits/by-provider/%s?date=2026-03-02", env.provider), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byProvider []VisitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byProvider))
	assert.Len(t, byProvider, 2)

	t.Run("unknown visit id is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/visits/%s", uuid.New()), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateVisitEndpoint(t *testing.T) {
	env := newTestEnv(t)
	visit := env.bookVisit(t, "09:00")

	reason := "vaccination"
	rec := env.do(t, http.MethodPatch, fmt.Sprintf("/visits/%s", visit.ID), UpdateVisitRequest{Reason: &reason})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated VisitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "vaccination", updated.Reason)
}
