package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/petcare/visit-scheduling/internal/schedule"
)

type BookVisitRequest struct {
	ProviderID string  `json:"provider_id"`
	PetID      string  `json:"pet_id"`
	Date       string  `json:"date"`  // YYYY-MM-DD
	Start      string  `json:"start"` // HH:MM
	Reason     string  `json:"reason"`
	Notes      *string `json:"notes,omitempty"`
}

type VisitResponse struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	PetID      uuid.UUID `json:"pet_id"`
	Date       string    `json:"date"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
	Notes      *string   `json:"notes,omitempty"`
}

func toVisitResponse(v *schedule.Visit) VisitResponse {
	return VisitResponse{
		ID:         v.ID,
		ProviderID: v.ProviderID,
		PetID:      v.PetID,
		Date:       v.Date.Format("2006-01-02"),
		Start:      v.Start.String(),
		End:        v.End.String(),
		Status:     string(v.Status),
		Reason:     v.Reason,
		Notes:      v.Notes,
	}
}

func toVisitResponses(visits []schedule.Visit) []VisitResponse {
	out := make([]VisitResponse, 0, len(visits))
	for i := range visits {
		out = append(out, toVisitResponse(&visits[i]))
	}
	return out
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type AvailableDatesResponse struct {
	Dates []string `json:"dates"`
}

type FreeSlotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

type RecordAllowedResponse struct {
	Allowed bool `json:"allowed"`
}

type WorkBlockPayload struct {
	Weekday    string `json:"weekday"` // MONDAY..SUNDAY
	Start      string `json:"start"`   // HH:MM
	End        string `json:"end"`     // HH:MM
	SlotLength int    `json:"slot_length_minutes"`
}

type WorkBlockResponse struct {
	ID         uuid.UUID `json:"id"`
	Weekday    string    `json:"weekday"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	SlotLength int       `json:"slot_length_minutes"`
}

func toWorkBlockResponses(blocks []schedule.WorkBlock) []WorkBlockResponse {
	out := make([]WorkBlockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, WorkBlockResponse{
			ID:         b.ID,
			Weekday:    weekdayName(b.Weekday),
			Start:      b.Start.String(),
			End:        b.End.String(),
			SlotLength: b.SlotLength,
		})
	}
	return out
}

type TimeOffPayload struct {
	StartDate string  `json:"start_date"` // YYYY-MM-DD
	EndDate   string  `json:"end_date"`   // YYYY-MM-DD
	Reason    *string `json:"reason,omitempty"`
}

type TimeOffResponse struct {
	ID        uuid.UUID `json:"id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toTimeOffResponse(p *schedule.TimeOffPeriod) TimeOffResponse {
	return TimeOffResponse{
		ID:        p.ID,
		StartDate: p.StartDate.Format("2006-01-02"),
		EndDate:   p.EndDate.Format("2006-01-02"),
		Reason:    p.Reason,
		CreatedAt: p.CreatedAt,
	}
}

type UpdateVisitRequest struct {
	Reason *string `json:"reason,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

func parseWeekday(s string) (time.Weekday, bool) {
	wd, ok := weekdayNames[s]
	return wd, ok
}

func weekdayName(wd time.Weekday) string {
	for name, w := range weekdayNames {
		if w == wd {
			return name
		}
	}
	return ""
}
