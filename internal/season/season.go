// Package season maps calendar dates to the venue's operating-hour window.
// Every date maps to exactly one window; there are no error cases.
package season

import "time"

// Window is the bookable range for one date. Slots run hourly from OpenHour
// (inclusive) to CloseHour (exclusive of the final hour's end).
type Window struct {
	OpenHour  int
	CloseHour int
	SlotCount int
}

// Hours yields each bookable hour of day in ascending order.
func (w Window) Hours() []int {
	hours := make([]int, 0, w.SlotCount)
	for h := w.OpenHour; h < w.CloseHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// Boundary marks a month/day point of the year, compared year-agnostically.
type Boundary struct {
	Month time.Month
	Day   int
}

// Calendar decides operating hours from season boundaries. The zero-value
// boundaries are invalid; construct via New or NewDefault.
type Calendar struct {
	springStart Boundary
	springEnd   Boundary
	spring      Window
	standard    Window
}

// New builds a calendar with explicit season boundaries and windows.
func New(springStart, springEnd Boundary, spring, standard Window) Calendar {
	return Calendar{
		springStart: springStart,
		springEnd:   springEnd,
		spring:      spring,
		standard:    standard,
	}
}

// NewDefault builds the venue's stock calendar: spring runs Aug 21 – Oct 31
// inclusive with a 09:00 open, all other dates open at 10:00, both closing
// at 23:00.
func NewDefault() Calendar {
	return New(
		Boundary{Month: time.August, Day: 21},
		Boundary{Month: time.October, Day: 31},
		Window{OpenHour: 9, CloseHour: 23, SlotCount: 14},
		Window{OpenHour: 10, CloseHour: 23, SlotCount: 13},
	)
}

// HoursFor returns the operating window for a date. Year-agnostic: only the
// month and day are compared.
func (c Calendar) HoursFor(date time.Time) Window {
	if c.InSpring(date) {
		return c.spring
	}
	return c.standard
}

// InSpring reports whether the date falls inside the spring season,
// boundaries inclusive.
func (c Calendar) InSpring(date time.Time) bool {
	md := int(date.Month())*100 + date.Day()
	lo := int(c.springStart.Month)*100 + c.springStart.Day
	hi := int(c.springEnd.Month)*100 + c.springEnd.Day
	return md >= lo && md <= hi
}
