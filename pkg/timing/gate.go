// Package timing computes whether an instant falls inside a workflow's
// allowed execution window and, if not, the next allowed instant.
package timing

import (
	"fmt"
	"strings"
	"time"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
)

// Result is the outcome of a window check.
type Result struct {
	Allowed bool
	// NextAllowed is the next instant inside the window, set when Allowed is
	// false. Expressed in absolute time.
	NextAllowed time.Time
	Reason      string
}

var defaultDays = map[time.Weekday]bool{
	time.Monday:    true,
	time.Tuesday:   true,
	time.Wednesday: true,
	time.Thursday:  true,
	time.Friday:    true,
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Check projects now into the configured zone and reports whether it falls on
// an allowed weekday with time-of-day in [start, end). When blocked, it scans
// forward at most 7 days for the next allowed day's start time.
func Check(cfg *models.TimingConfig, now time.Time) (Result, error) {
	if cfg == nil || !cfg.Enabled {
		return Result{Allowed: true}, nil
	}

	loc := time.UTC

	if cfg.Timezone != "" {
		var err error

		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Result{}, fmt.Errorf("invalid timing window timezone %q: %w", cfg.Timezone, err)
		}
	}

	startHour, startMin, err := parseTimeOfDay(cfg.Start, 9, 0)
	if err != nil {
		return Result{}, err
	}

	endHour, endMin, err := parseTimeOfDay(cfg.End, 17, 0)
	if err != nil {
		return Result{}, err
	}

	days := allowedDays(cfg.Days)
	local := now.In(loc)
	minuteOfDay := local.Hour()*60 + local.Minute()
	startMinute := startHour*60 + startMin
	endMinute := endHour*60 + endMin

	if days[local.Weekday()] && minuteOfDay >= startMinute && minuteOfDay < endMinute {
		return Result{Allowed: true}, nil
	}

	// Today's window has not opened yet.
	if days[local.Weekday()] && minuteOfDay < startMinute {
		next := time.Date(local.Year(), local.Month(), local.Day(), startHour, startMin, 0, 0, loc)

		return Result{Allowed: false, NextAllowed: next.UTC(), Reason: "before window start"}, nil
	}

	for offset := 1; offset <= 7; offset++ {
		candidate := local.AddDate(0, 0, offset)
		if !days[candidate.Weekday()] {
			continue
		}

		next := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), startHour, startMin, 0, 0, loc)

		return Result{Allowed: false, NextAllowed: next.UTC(), Reason: "outside allowed days"}, nil
	}

	return Result{}, fmt.Errorf("timing window has no allowed days")
}

func allowedDays(names []string) map[time.Weekday]bool {
	if len(names) == 0 {
		return defaultDays
	}

	days := make(map[time.Weekday]bool, len(names))

	for _, name := range names {
		if day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			days[day] = true
		}
	}

	if len(days) == 0 {
		return defaultDays
	}

	return days
}

func parseTimeOfDay(s string, defaultHour, defaultMin int) (int, int, error) {
	if strings.TrimSpace(s) == "" {
		return defaultHour, defaultMin, nil
	}

	var hour, minute int

	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}

	return hour, minute, nil
}
