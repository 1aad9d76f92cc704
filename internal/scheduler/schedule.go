package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type scheduleKind int

const (
	kindHourly   scheduleKind = iota // every hour at :MM
	kindDaily                        // once a day at HH:MM
	kindInterval                     // every fixed interval
)

// Schedule is a recurring cadence, evaluated in the scheduler's location.
type Schedule struct {
	kind     scheduleKind
	hour     int
	minute   int
	interval time.Duration
}

// Hourly fires every hour at the given minute.
func Hourly(minute int) Schedule {
	return Schedule{kind: kindHourly, minute: minute}
}

// DailyAt fires once a day at hour:minute wall-clock time.
func DailyAt(hour, minute int) Schedule {
	return Schedule{kind: kindDaily, hour: hour, minute: minute}
}

func Every(d time.Duration) Schedule {
	return Schedule{kind: kindInterval, interval: d}
}

// ParseDailyAt reads "HH:MM" into a DailyAt schedule.
func ParseDailyAt(s string) (Schedule, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Schedule{}, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return Schedule{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return Schedule{}, fmt.Errorf("invalid minute in %q", s)
	}
	return DailyAt(hour, minute), nil
}

// next returns the first firing strictly after now.
func (s Schedule) next(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	switch s.kind {
	case kindHourly:
		next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), s.minute, 0, 0, loc)
		if !next.After(now) {
			next = next.Add(time.Hour)
		}
		return next
	case kindDaily:
		next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, loc)
		if !next.After(now) {
			// day+1 rather than 24h so the wall clock survives DST changes
			next = time.Date(now.Year(), now.Month(), now.Day()+1, s.hour, s.minute, 0, 0, loc)
		}
		return next
	case kindInterval:
		return now.Add(s.interval)
	default:
		return now.Add(24 * time.Hour)
	}
}

func (s Schedule) String() string {
	switch s.kind {
	case kindHourly:
		return fmt.Sprintf("hourly at :%02d", s.minute)
	case kindDaily:
		return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
	case kindInterval:
		return "every " + s.interval.String()
	default:
		return "unknown"
	}
}
