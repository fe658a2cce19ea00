package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petcare/visit-scheduling/internal/observability/metrics"
	"github.com/petcare/visit-scheduling/internal/schedule"
)

func availableDatesHandler(svc *schedule.Service, m *metrics.BookingMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID")
		if !ok {
			return
		}

		horizon := 0
		if raw := r.URL.Query().Get("horizon"); raw != "" {
			n, err := parsePositiveInt(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_horizon", "horizon must be a positive integer")
				return
			}
			horizon = n
		}

		dates, err := svc.AvailableDates(r.Context(), providerID, horizon)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		m.ObserveAvailabilityQuery()

		resp := AvailableDatesResponse{Dates: make([]string, 0, len(dates))}
		for _, d := range dates {
			resp.Dates = append(resp.Dates, d.Format("2006-01-02"))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func freeSlotsHandler(svc *schedule.Service, m *metrics.BookingMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID")
		if !ok {
			return
		}

		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.FreeSlots(r.Context(), providerID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		m.ObserveSlotQuery()

		resp := FreeSlotsResponse{
			Date:  date.Format("2006-01-02"),
			Slots: make([]string, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, s.String())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bookVisitHandler(svc *schedule.Service, m *metrics.BookingMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookVisitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}
		petID, err := uuid.Parse(req.PetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pet_id", "pet_id must be a valid UUID")
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := schedule.ParseTimeOfDay(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start must be HH:MM")
			return
		}

		visit, err := svc.BookVisit(r.Context(), schedule.BookVisitCommand{
			ProviderID: providerID,
			PetID:      petID,
			Date:       date,
			Start:      start,
			Reason:     req.Reason,
			Notes:      req.Notes,
		})
		if err != nil {
			m.ObserveBooking(outcomeFor(err))
			handleServiceError(w, err)
			return
		}

		m.ObserveBooking("success")
		writeJSON(w, http.StatusCreated, toVisitResponse(visit))
	}
}

func getVisitHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "visitID")
		if !ok {
			return
		}

		visit, err := svc.GetVisit(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponse(visit))
	}
}

func updateVisitHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "visitID")
		if !ok {
			return
		}

		var req UpdateVisitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		visit, err := svc.UpdateVisitFields(r.Context(), id, req.Reason, req.Notes)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponse(visit))
	}
}

func changeVisitStatusHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "visitID")
		if !ok {
			return
		}

		var req ChangeStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := schedule.ParseStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}

		visit, err := svc.ChangeVisitStatus(r.Context(), id, status)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponse(visit))
	}
}

func recordAllowedHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "visitID")
		if !ok {
			return
		}

		allowed, err := svc.CanCreateMedicalRecord(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, RecordAllowedResponse{Allowed: allowed})
	}
}

func visitsForPetHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		petID, ok := parseUUIDParam(w, r, "petID")
		if !ok {
			return
		}

		visits, err := svc.VisitsForPet(r.Context(), petID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponses(visits))
	}
}

func visitsForProviderHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID")
		if !ok {
			return
		}

		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		visits, err := svc.VisitsForProviderOnDate(r.Context(), providerID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponses(visits))
	}
}

func getScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID")
		if !ok {
			return
		}

		blocks, err := svc.WeeklySchedule(r.Context(), providerID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWorkBlockResponses(blocks))
	}
}

func replaceScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID")
		if !ok {
			return
		}

		var payload []WorkBlockPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		blocks := make([]schedule.WorkBlock, 0, len(payload))
		for _, p := range payload {
			wd, ok := parseWeekday(p.Weekday)
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid_weekday", "weekday must be MONDAY..SUNDAY")
				return
			}
			start, err := schedule.ParseTimeOfDay(p.Start)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_time", "start must be HH:MM")
				return
			}
			end, err := schedule.ParseTimeOfDay(p.End)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_time", "end must be HH:MM")
				return
			}
			blocks = append(blocks, schedule.WorkBlock{
				ProviderID: providerID,
				Weekday:    wd,
				Start:      start,
				End:        end,
				SlotLength: p.SlotLength,
			})
		}

		replaced, err := svc.UpdateWeeklySchedule(r.Context(), providerID, blocks)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWorkBlockResponses(replaced))
	}
}

func listTimeOffHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID")
		if !ok {
			return
		}

		periods, err := svc.TimeOff(r.Context(), providerID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]TimeOffResponse, 0, len(periods))
		for i := range periods {
			out = append(out, toTimeOffResponse(&periods[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createTimeOffHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID")
		if !ok {
			return
		}

		var req TimeOffPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
			return
		}
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
			return
		}

		created, err := svc.CreateTimeOff(r.Context(), providerID, start, end, req.Reason)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTimeOffResponse(created))
	}
}

func deleteTimeOffHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID")
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "timeOffID")
		if !ok {
			return
		}

		if err := svc.DeleteTimeOff(r.Context(), providerID, id); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleServiceError maps domain errors onto HTTP statuses in one place.
func handleServiceError(w http.ResponseWriter, err error) {
	var transitionErr *schedule.InvalidTransitionError

	switch {
	case errors.Is(err, schedule.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, schedule.ErrPetNotFound):
		writeError(w, http.StatusNotFound, "pet_not_found", err.Error())
	case errors.Is(err, schedule.ErrVisitNotFound):
		writeError(w, http.StatusNotFound, "visit_not_found", err.Error())
	case errors.Is(err, schedule.ErrTimeOffNotFound):
		writeError(w, http.StatusNotFound, "time_off_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, schedule.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrRecordNotAllowed):
		writeError(w, http.StatusPreconditionFailed, "record_not_allowed", err.Error())
	case errors.Is(err, schedule.ErrInvalidTime),
		errors.Is(err, schedule.ErrInvalidSchedule),
		errors.Is(err, schedule.ErrInvalidTimeOff),
		errors.Is(err, schedule.ErrOutsideWorkingHours),
		errors.Is(err, schedule.ErrDateInPast),
		errors.Is(err, schedule.ErrProviderOnTimeOff):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// outcomeFor labels a booking attempt for the metrics counters.
func outcomeFor(err error) string {
	switch {
	case errors.Is(err, schedule.ErrSlotTaken), errors.Is(err, schedule.ErrSlotBeingBooked):
		return "conflict"
	default:
		return "error"
	}
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}
