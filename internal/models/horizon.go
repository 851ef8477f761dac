package models

import (
	"fmt"
	"time"
)

// Horizon is a forecast lead-time bucket determining which future dates are
// fetched in a run.
type Horizon string

const (
	SameDay    Horizon = "SameDay"
	SevenDays  Horizon = "SevenDays"
	ThirtyDays Horizon = "ThirtyDays"
	SixtyDays  Horizon = "SixtyDays"
	NinetyDays Horizon = "NinetyDays"
)

// AllHorizons lists every horizon in ascending lead-time order.
var AllHorizons = []Horizon{SameDay, SevenDays, ThirtyDays, SixtyDays, NinetyDays}

var horizonDays = map[Horizon]int{
	SameDay:    1,
	SevenDays:  7,
	ThirtyDays: 30,
	SixtyDays:  60,
	NinetyDays: 90,
}

// ParseHorizon converts a config string into a Horizon.
func ParseHorizon(s string) (Horizon, error) {
	h := Horizon(s)
	if _, ok := horizonDays[h]; !ok {
		return "", fmt.Errorf("unknown horizon %q", s)
	}
	return h, nil
}

// Days returns the number of calendar days the horizon covers.
func (h Horizon) Days() int {
	return horizonDays[h]
}

// Window returns the dates the horizon observes for a given run day,
// starting at today. Dates recurring across horizons is expected: the same
// physical date is re-observed with fresher data as it approaches.
func (h Horizon) Window(today time.Time) []time.Time {
	days := horizonDays[h]
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	dates := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, day.AddDate(0, 0, i))
	}
	return dates
}

// Validate checks that the horizon is one of the known labels.
func (h Horizon) Validate() error {
	if _, ok := horizonDays[h]; !ok {
		return fmt.Errorf("unknown horizon %q", string(h))
	}
	return nil
}
