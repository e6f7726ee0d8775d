package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHolidayCalendar_IsOpenDay(t *testing.T) {
	july4 := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC) // a Friday
	calendar := NewHolidayCalendar([]time.Time{july4})

	t.Run("regular weekday open", func(t *testing.T) {
		assert.True(t, calendar.IsOpenDay(time.Date(2025, 7, 3, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("weekend closed", func(t *testing.T) {
		assert.False(t, calendar.IsOpenDay(time.Date(2025, 7, 5, 12, 0, 0, 0, time.UTC)))
		assert.False(t, calendar.IsOpenDay(time.Date(2025, 7, 6, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("holiday closed", func(t *testing.T) {
		assert.False(t, calendar.IsOpenDay(july4))
		assert.True(t, calendar.IsHoliday(july4))
	})

	t.Run("holiday matches on civil date regardless of clock time", func(t *testing.T) {
		assert.False(t, calendar.IsOpenDay(time.Date(2025, 7, 4, 23, 59, 0, 0, time.UTC)))
	})
}

func TestHolidayCalendar_OpenTimeOn(t *testing.T) {
	calendar := NewHolidayCalendar(nil)

	open := calendar.OpenTimeOn(time.Date(2025, 7, 3, 18, 45, 12, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 7, 3, 9, 30, 0, 0, time.UTC), open)

	calendar.SetOpenTime(14, 0)
	open = calendar.OpenTimeOn(time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 7, 3, 14, 0, 0, 0, time.UTC), open)
}

func TestHolidayCalendar_NextOpen(t *testing.T) {
	july4 := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	calendar := NewHolidayCalendar([]time.Time{july4})

	t.Run("before open same day", func(t *testing.T) {
		next := calendar.NextOpen(time.Date(2025, 7, 3, 8, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2025, 7, 3, 9, 30, 0, 0, time.UTC), next)
	})

	t.Run("after open rolls past weekend and holiday", func(t *testing.T) {
		next := calendar.NextOpen(time.Date(2025, 7, 3, 15, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2025, 7, 7, 9, 30, 0, 0, time.UTC), next)
	})

	t.Run("exactly at open returns that instant", func(t *testing.T) {
		open := time.Date(2025, 7, 3, 9, 30, 0, 0, time.UTC)
		assert.Equal(t, open, calendar.NextOpen(open))
	})

	t.Run("added holiday is skipped", func(t *testing.T) {
		calendar.AddHoliday(time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC))
		next := calendar.NextOpen(time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2025, 7, 8, 9, 30, 0, 0, time.UTC), next)
	})
}
