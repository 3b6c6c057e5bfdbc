package core

import (
	"fmt"
	"strings"
	"time"

	"rfid.attendance/internal/core/model"
)

const (
	quarter        = 15
	roundUpMinutes = 8
)

// Round snaps raw to a quarter hour: minutes 0-7 past a quarter round down, 8-14
// round up. Seconds are dropped. Rounding up from :52-:59 rolls into the next hour,
// and at 23:52-23:59 into the next day. The second value is raw, unchanged.
func Round(raw time.Time) (time.Time, time.Time) {
	m := raw.Minute()
	base := m - m%quarter
	if m%quarter >= roundUpMinutes {
		base += quarter
	}
	// time.Date normalizes minute 60 into the following hour.
	rounded := time.Date(raw.Year(), raw.Month(), raw.Day(), raw.Hour(), base, 0, 0, raw.Location())
	return rounded, raw
}

// ClockOn parses "HH:MM" or "HH:MM:SS" and places it on day's date.
func ClockOn(day time.Time, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)

	layout := model.ClockLayout
	if strings.Count(clock, ":") == 2 {
		layout = model.ClockLayoutFull
	}
	t, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location()), nil
}

// RoundClock rounds a clock string and returns the rounded "HH:MM" and the input as given.
func RoundClock(clock string) (string, string, error) {
	t, err := ClockOn(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), clock)
	if err != nil {
		return "", "", err
	}
	rounded, _ := Round(t)
	return rounded.Format(model.ClockLayout), clock, nil
}
