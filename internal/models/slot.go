package models

import (
	"errors"
	"fmt"
	"time"
)

// TimeSlot identifies one bookable hour on one date. Identity is
// (date, hour of day); the horizon label records which forecast bucket
// observed it. Immutable once created.
type TimeSlot struct {
	Date      time.Time `json:"date"`
	HourOfDay int       `json:"hour_of_day"`
	Horizon   Horizon   `json:"horizon"`
}

// NewTimeSlot builds a slot with the date truncated to midnight so that
// identity comparisons ignore the time-of-day component.
func NewTimeSlot(date time.Time, hour int, horizon Horizon) TimeSlot {
	return TimeSlot{
		Date:      time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()),
		HourOfDay: hour,
		Horizon:   horizon,
	}
}

// Key returns the slot's identity as "YYYY-MM-DD/HH".
func (s TimeSlot) Key() string {
	return fmt.Sprintf("%s/%02d", s.Date.Format("2006-01-02"), s.HourOfDay)
}

// Label renders the slot as a booking-window string, e.g. "15:00–16:00".
func (s TimeSlot) Label() string {
	return fmt.Sprintf("%02d:00–%02d:00", s.HourOfDay, s.HourOfDay+1)
}

// Validate checks that all slot fields are valid.
func (s TimeSlot) Validate() error {
	if s.Date.IsZero() {
		return errors.New("slot date must not be zero")
	}
	if s.HourOfDay < 0 || s.HourOfDay > 23 {
		return fmt.Errorf("slot hour %d out of range [0, 23]", s.HourOfDay)
	}
	return s.Horizon.Validate()
}
