// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package window derives the candidate search windows around an account
// creation time. Windows widen progressively and the calendar-bound ones
// are clipped to the day, week or month containing the timestamp.
package window

import (
	"time"

	"github.com/pdiddy/twinmatch/pkg/types"
)

// Count is the number of windows Generate returns.
const Count = 6

const (
	day       = 24 * time.Hour
	halfDay   = 12 * time.Hour
	halfWeek  = 84 * time.Hour // 3.5 days
	threeDays = 3 * day
	halfMonth = 15 * day
	month     = 30 * day
)

// Generate returns the six search windows for t, narrowest first:
//
//	±12h within the same day
//	±24h
//	±3.5d within the same week (weeks start on Monday)
//	±3d
//	±15d within the same month
//	±30d
//
// Calendar periods are evaluated in loc; nil means time.Local. The end of a
// period is its last whole second, so t is truncated to whole seconds
// (account creation times are stored as epoch seconds anyway).
func Generate(t time.Time, loc *time.Location) []types.SearchWindow {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc).Truncate(time.Second)

	dayStart, dayEnd := dayBounds(t)
	weekStart, weekEnd := weekBounds(t)
	monthStart, monthEnd := monthBounds(t)

	return []types.SearchWindow{
		clipped(t, halfDay, dayStart, dayEnd),
		symmetric(t, day),
		clipped(t, halfWeek, weekStart, weekEnd),
		symmetric(t, threeDays),
		clipped(t, halfMonth, monthStart, monthEnd),
		symmetric(t, month),
	}
}

func symmetric(t time.Time, d time.Duration) types.SearchWindow {
	return types.SearchWindow{Lower: t.Add(-d), Upper: t.Add(d)}
}

func clipped(t time.Time, d time.Duration, start, end time.Time) types.SearchWindow {
	return types.SearchWindow{
		Lower: later(start, t.Add(-d)),
		Upper: earlier(end, t.Add(d)),
	}
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	return start, end
}

func weekBounds(t time.Time) (time.Time, time.Time) {
	// time.Weekday counts from Sunday; shift so Monday is 0.
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
	end := time.Date(t.Year(), t.Month(), t.Day()-offset+6, 23, 59, 59, 0, t.Location())
	return start, end
}

func monthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	// Day 0 of the next month normalizes to the last day of this one.
	end := time.Date(t.Year(), t.Month()+1, 0, 23, 59, 59, 0, t.Location())
	return start, end
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
