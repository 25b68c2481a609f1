/*
timeframe.go - Grain boundaries for date spans

PURPOSE:
  Snapping rules that put a timeframe onto canonical boundaries for its
  grain. Boundaries use millisecond precision: a span always runs from
  00:00:00.000 on its first day through 23:59:59.999 on its last.

GRAIN RULES:
  day      same calendar day
  week     Monday through Sunday of the ISO week
  month    1st through last day of the month
  quarter  first through last day of the 3-month block
  year     Jan 1 through Dec 31
  custom   left untouched
*/
package intent

import (
	"strings"
	"time"
)

// Grain is the temporal granularity of a timeframe.
type Grain string

const (
	GrainDay     Grain = "day"
	GrainWeek    Grain = "week"
	GrainMonth   Grain = "month"
	GrainQuarter Grain = "quarter"
	GrainYear    Grain = "year"
	GrainCustom  Grain = "custom"
)

// GrainFromText derives a grain from keywords in a recognized span text.
// Priority: quarter > year > month > week > day; anything else is custom.
func GrainFromText(span string) Grain {
	lower := strings.ToLower(span)
	switch {
	case containsAny(lower, "quarter"):
		return GrainQuarter
	case containsAny(lower, "year"):
		return GrainYear
	case containsAny(lower, "month"):
		return GrainMonth
	case containsAny(lower, "week"):
		return GrainWeek
	case containsAny(lower, "day", "today", "yesterday"):
		return GrainDay
	default:
		return GrainCustom
	}
}

func containsAny(lower string, words ...string) bool {
	for _, w := range words {
		if containsWord(lower, w) {
			return true
		}
	}
	return false
}

// =============================================================================
// BOUNDARY HELPERS
// =============================================================================

// endOfDayNanos is 23:59:59.999 expressed as nanoseconds into the last second.
const endOfDayNanos = 999 * int(time.Millisecond)

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, endOfDayNanos, t.Location())
}

// StartOfWeek returns Monday 00:00:00.000 of t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 { // Sunday closes the ISO week
		weekday = 7
	}
	return StartOfDay(t.AddDate(0, 0, 1-weekday))
}

// EndOfWeek returns Sunday 23:59:59.999 of t's ISO week.
func EndOfWeek(t time.Time) time.Time {
	return EndOfDay(StartOfWeek(t).AddDate(0, 0, 6))
}

func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func EndOfMonth(t time.Time) time.Time {
	return EndOfDay(StartOfMonth(t).AddDate(0, 1, -1))
}

// StartOfQuarter returns the first day of t's 3-month block.
func StartOfQuarter(t time.Time) time.Time {
	firstMonth := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), firstMonth, 1, 0, 0, 0, 0, t.Location())
}

func EndOfQuarter(t time.Time) time.Time {
	return EndOfDay(StartOfQuarter(t).AddDate(0, 3, -1))
}

func StartOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

func EndOfYear(t time.Time) time.Time {
	return EndOfDay(time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location()))
}

// SnapRange snaps a start/end pair to the canonical boundaries for grain.
// A zero start stays zero: open-ended spans keep only their upper bound.
// GrainCustom passes both through untouched.
func SnapRange(start, end time.Time, grain Grain) (time.Time, time.Time) {
	if grain == GrainCustom {
		return start, end
	}

	snapStart := func(t time.Time) time.Time { return t }
	snapEnd := func(t time.Time) time.Time { return t }
	switch grain {
	case GrainDay:
		snapStart, snapEnd = StartOfDay, EndOfDay
	case GrainWeek:
		snapStart, snapEnd = StartOfWeek, EndOfWeek
	case GrainMonth:
		snapStart, snapEnd = StartOfMonth, EndOfMonth
	case GrainQuarter:
		snapStart, snapEnd = StartOfQuarter, EndOfQuarter
	case GrainYear:
		snapStart, snapEnd = StartOfYear, EndOfYear
	}

	if !start.IsZero() {
		start = snapStart(start)
	}
	if !end.IsZero() {
		end = snapEnd(end)
	}
	return start, end
}
