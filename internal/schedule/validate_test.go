package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateWeeklySchedule(t *testing.T) {
	t.Run("accepts disjoint blocks", func(t *testing.T) {
		blocks := []WorkBlock{
			block(t, time.Monday, "09:00", "12:00", 30),
			block(t, time.Monday, "13:00", "17:00", 30),
			block(t, time.Tuesday, "09:00", "12:00", 20),
		}
		assert.NoError(t, ValidateWeeklySchedule(blocks))
	})

	t.Run("adjacent blocks are not overlapping", func(t *testing.T) {
		blocks := []WorkBlock{
			block(t, time.Monday, "09:00", "12:00", 30),
			block(t, time.Monday, "12:00", "15:00", 30),
		}
		assert.NoError(t, ValidateWeeklySchedule(blocks))
	})

	t.Run("rejects overlap within a weekday", func(t *testing.T) {
		blocks := []WorkBlock{
			block(t, time.Monday, "09:00", "12:00", 30),
			block(t, time.Monday, "11:00", "14:00", 30),
		}
		assert.ErrorIs(t, ValidateWeeklySchedule(blocks), ErrInvalidSchedule)
	})

	t.Run("same hours on different weekdays do not clash", func(t *testing.T) {
		blocks := []WorkBlock{
			block(t, time.Monday, "09:00", "12:00", 30),
			block(t, time.Tuesday, "09:00", "12:00", 30),
		}
		assert.NoError(t, ValidateWeeklySchedule(blocks))
	})

	t.Run("rejects end before start", func(t *testing.T) {
		b := block(t, time.Monday, "12:00", "09:00", 30)
		assert.ErrorIs(t, ValidateWeeklySchedule([]WorkBlock{b}), ErrInvalidSchedule)
	})

	t.Run("rejects zero-length block", func(t *testing.T) {
		b := block(t, time.Monday, "09:00", "09:00", 30)
		assert.ErrorIs(t, ValidateWeeklySchedule([]WorkBlock{b}), ErrInvalidSchedule)
	})

	t.Run("rejects non-positive slot length", func(t *testing.T) {
		b := block(t, time.Monday, "09:00", "12:00", 0)
		assert.ErrorIs(t, ValidateWeeklySchedule([]WorkBlock{b}), ErrInvalidSchedule)
	})

	t.Run("empty schedule is valid", func(t *testing.T) {
		assert.NoError(t, ValidateWeeklySchedule(nil))
	})
}

func TestValidateTimeOff(t *testing.T) {
	assert.NoError(t, ValidateTimeOff(monday, monday))
	assert.NoError(t, ValidateTimeOff(monday, monday.AddDate(0, 0, 5)))
	assert.ErrorIs(t, ValidateTimeOff(monday, monday.AddDate(0, 0, -1)), ErrInvalidTimeOff)
	assert.ErrorIs(t, ValidateTimeOff(time.Time{}, monday), ErrInvalidTimeOff)
}
