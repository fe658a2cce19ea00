package schedule

import (
	"fmt"
	"sort"
	"time"
)

// ValidateWeeklySchedule checks a provider's full weekly schedule before it
// is written: every block needs End > Start and a positive slot length, and
// blocks on the same weekday must not overlap. The availability engine
// assumes this input contract instead of re-checking it on every query.
func ValidateWeeklySchedule(blocks []WorkBlock) error {
	for _, b := range blocks {
		if b.SlotLength <= 0 {
			return fmt.Errorf("%w: slot length must be positive, got %d", ErrInvalidSchedule, b.SlotLength)
		}
		if b.End <= b.Start {
			return fmt.Errorf("%w: block %s-%s ends before it starts", ErrInvalidSchedule, b.Start, b.End)
		}
	}

	byDay := make(map[time.Weekday][]WorkBlock)
	for _, b := range blocks {
		byDay[b.Weekday] = append(byDay[b.Weekday], b)
	}

	for wd, day := range byDay {
		sort.Slice(day, func(i, j int) bool { return day[i].Start < day[j].Start })
		for i := 1; i < len(day); i++ {
			if day[i].Start < day[i-1].End {
				return fmt.Errorf("%w: overlapping blocks on %s (%s-%s and %s-%s)",
					ErrInvalidSchedule, wd,
					day[i-1].Start, day[i-1].End, day[i].Start, day[i].End)
			}
		}
	}
	return nil
}

// ValidateTimeOff checks the inclusive date range of a time-off period.
func ValidateTimeOff(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidTimeOff)
	}
	if DateOnly(end).Before(DateOnly(start)) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidTimeOff)
	}
	return nil
}
