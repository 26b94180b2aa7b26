package model

import (
	"fmt"
	"strings"
	"time"
)

// Layouts used for the two halves of a departure.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DepartureAt combines a calendar date and a wall-clock time in loc.
// Seconds in the time part ("15:04:05") are accepted and honoured.
func DepartureAt(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	layout := DateLayout + " " + TimeLayout
	if strings.Count(clock, ":") == 2 {
		layout += ":05"
	}
	t, err := time.ParseInLocation(layout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid departure %q %q: %w", date, clock, err)
	}
	return t, nil
}

// IsExpired reports whether departure has been reached at now.  The
// predicate is monotonic: once true for some now it is true for every
// later now.
func IsExpired(now, departure time.Time) bool {
	return !now.Before(departure)
}

// Countdown is the display breakdown of the time left until departure.
type Countdown struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	Expired bool `json:"expired"`
}

// CountdownAt computes the countdown to departure at one-second granularity.
func CountdownAt(now, departure time.Time) Countdown {
	if IsExpired(now, departure) {
		return Countdown{Expired: true}
	}
	left := int64(departure.Sub(now) / time.Second)
	return Countdown{
		Days:    int(left / 86400),
		Hours:   int(left % 86400 / 3600),
		Minutes: int(left % 3600 / 60),
		Seconds: int(left % 60),
	}
}
