package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time in the snapshot's local timezone.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%d:%02d", t.Hour, t.Minute)
}

// On returns the instant of t on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// ParseTime parses "H:MM" or "HH:MM".
func ParseTime(raw string) (TimeOfDay, error) {
	hour, minute, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: want H:MM", raw)
	}
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", raw)
	}
	if len(minute) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", raw)
	}
	m, err := strconv.Atoi(minute)
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// ParseTimes parses a newline or comma separated list, sorted ascending.
func ParseTimes(raw string) ([]TimeOfDay, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ','
	})

	var times []TimeOfDay
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			continue
		}
		t, err := ParseTime(f)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool {
		if times[i].Hour != times[j].Hour {
			return times[i].Hour < times[j].Hour
		}
		return times[i].Minute < times[j].Minute
	})
	return times, nil
}
