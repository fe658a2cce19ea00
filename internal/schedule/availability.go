package schedule

import (
	"sort"
	"time"
)

// DefaultHorizonDays is how far ahead AvailableDates looks when the caller
// does not say otherwise.
const DefaultHorizonDays = 90

// AvailableDates walks today .. today+horizonDays-1 and keeps every date
// whose weekday has at least one work block and which no time-off period
// covers. Time off always wins over the weekly schedule. The result is
// ascending and duplicate free.
func AvailableDates(blocks []WorkBlock, timeOff []TimeOffPeriod, horizonDays int, today time.Time) []time.Time {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	working := make(map[time.Weekday]bool, len(blocks))
	for _, b := range blocks {
		working[b.Weekday] = true
	}

	var dates []time.Time
	day := DateOnly(today)
	for i := 0; i < horizonDays; i++ {
		if working[day.Weekday()] && !onTimeOff(timeOff, day) {
			dates = append(dates, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return dates
}

func onTimeOff(timeOff []TimeOffPeriod, date time.Time) bool {
	for _, p := range timeOff {
		if p.Covers(date) {
			return true
		}
	}
	return false
}

// FreeSlots segments the given work blocks (already filtered to the date's
// weekday) into slot start times and removes occupied and, for today,
// already-started ones. Blocks are merged into one ascending list.
//
// A block whose duration does not divide evenly by its slot length loses the
// trailing partial interval; short slots are never offered. Occupancy is an
// exact start-time match: overlap between slots of different lengths is an
// accepted scope limitation of this engine, not detected here.
func FreeSlots(blocks []WorkBlock, occupied map[TimeOfDay]bool, date time.Time, now time.Time) []TimeOfDay {
	sameDay := DateOnly(date).Equal(DateOnly(now))

	var slots []TimeOfDay
	for _, b := range blocks {
		if b.SlotLength <= 0 {
			continue
		}
		for start := b.Start; start+TimeOfDay(b.SlotLength) <= b.End; start += TimeOfDay(b.SlotLength) {
			if occupied[start] {
				continue
			}
			if sameDay && !start.At(DateOnly(now)).After(now) {
				continue
			}
			slots = append(slots, start)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// blocksForWeekday filters a full weekly schedule down to one weekday.
func blocksForWeekday(blocks []WorkBlock, wd time.Weekday) []WorkBlock {
	var out []WorkBlock
	for _, b := range blocks {
		if b.Weekday == wd {
			out = append(out, b)
		}
	}
	return out
}
