package scheduling

import (
	"time"

	"github.com/aristath/folios/internal/domain"
)

// HolidayCalendar answers "is the market open on day D" from a weekday mask
// plus an explicit holiday set, and computes the next open timestamp at the
// configured market-open time.
type HolidayCalendar struct {
	holidays     map[civilDate]struct{}
	openWeekdays map[time.Weekday]struct{}
	openHour     int
	openMinute   int
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func toCivil(t time.Time) civilDate {
	utc := t.UTC()
	return civilDate{year: utc.Year(), month: utc.Month(), day: utc.Day()}
}

// NewHolidayCalendar creates a calendar open Monday through Friday at
// 09:30 UTC with the given holidays.
func NewHolidayCalendar(holidays []time.Time) *HolidayCalendar {
	c := &HolidayCalendar{
		holidays: make(map[civilDate]struct{}, len(holidays)),
		openWeekdays: map[time.Weekday]struct{}{
			time.Monday:    {},
			time.Tuesday:   {},
			time.Wednesday: {},
			time.Thursday:  {},
			time.Friday:    {},
		},
		openHour:   9,
		openMinute: 30,
	}
	for _, holiday := range holidays {
		c.holidays[toCivil(holiday)] = struct{}{}
	}
	return c
}

// SetOpenTime overrides the market-open time (UTC).
func (c *HolidayCalendar) SetOpenTime(hour, minute int) {
	c.openHour = hour
	c.openMinute = minute
}

// AddHoliday adds a closed day.
func (c *HolidayCalendar) AddHoliday(day time.Time) {
	c.holidays[toCivil(day)] = struct{}{}
}

// IsHoliday reports whether the given day is an explicit holiday.
func (c *HolidayCalendar) IsHoliday(day time.Time) bool {
	_, ok := c.holidays[toCivil(day)]
	return ok
}

// IsOpenDay reports whether trading is open on the given day.
func (c *HolidayCalendar) IsOpenDay(day time.Time) bool {
	utc := day.UTC()
	if _, open := c.openWeekdays[utc.Weekday()]; !open {
		return false
	}
	return !c.IsHoliday(utc)
}

// OpenTimeOn returns the market-open instant for the given day.
func (c *HolidayCalendar) OpenTimeOn(day time.Time) time.Time {
	utc := day.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), c.openHour, c.openMinute, 0, 0, time.UTC)
}

// NextOpen returns the first market-open instant at or after the given time,
// skipping weekends and holidays.
func (c *HolidayCalendar) NextOpen(after time.Time) time.Time {
	current := domain.EnsureUTC(after)
	day := current
	for {
		if c.IsOpenDay(day) {
			candidate := c.OpenTimeOn(day)
			if !candidate.Before(current) {
				return candidate
			}
		}
		day = day.AddDate(0, 0, 1)
	}
}
