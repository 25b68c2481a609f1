/*
daterange.go - Date-range candidates from message text

PURPOSE:
  The detector does not parse dates itself; it consumes candidates from a
  RangeSource collaborator. KeywordRanges is the built-in implementation
  covering the relative expressions the system actually sees ("yesterday",
  "last month", "this quarter", "last 30 days"). A richer parser can be
  swapped in behind the same interface.
*/
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateRange is one recognized span in a message.
type DateRange struct {
	Text  string // the recognized span text
	Start time.Time
	End   time.Time
	Grain Grain
}

// RangeSource produces date-range candidates for a message, resolved
// against a reference time. Candidates are ordered by position in text.
type RangeSource interface {
	Ranges(text string, ref time.Time) []DateRange
}

// =============================================================================
// KEYWORD RANGES - Built-in relative-date implementation
// =============================================================================

// KeywordRanges resolves common relative-date expressions against a
// reference time. It is deterministic: same text + ref, same candidates.
type KeywordRanges struct{}

var lastNDaysRe = regexp.MustCompile(`(?i)\b(?:last|past)\s+(\d{1,3})\s+days?\b`)

type rangeRule struct {
	phrase  string
	resolve func(ref time.Time) (time.Time, time.Time)
	grain   Grain
}

// rangeRules are checked in order; more specific phrases come first so
// "last month" does not lose to a bare "month" rule.
var rangeRules = []rangeRule{
	{"today", func(r time.Time) (time.Time, time.Time) { return StartOfDay(r), EndOfDay(r) }, GrainDay},
	{"yesterday", func(r time.Time) (time.Time, time.Time) {
		y := r.AddDate(0, 0, -1)
		return StartOfDay(y), EndOfDay(y)
	}, GrainDay},
	{"this week", func(r time.Time) (time.Time, time.Time) { return StartOfWeek(r), EndOfWeek(r) }, GrainWeek},
	{"last week", func(r time.Time) (time.Time, time.Time) {
		p := r.AddDate(0, 0, -7)
		return StartOfWeek(p), EndOfWeek(p)
	}, GrainWeek},
	{"this month", func(r time.Time) (time.Time, time.Time) { return StartOfMonth(r), EndOfMonth(r) }, GrainMonth},
	{"last month", func(r time.Time) (time.Time, time.Time) {
		p := StartOfMonth(r).AddDate(0, -1, 0)
		return p, EndOfMonth(p)
	}, GrainMonth},
	{"this quarter", func(r time.Time) (time.Time, time.Time) { return StartOfQuarter(r), EndOfQuarter(r) }, GrainQuarter},
	{"last quarter", func(r time.Time) (time.Time, time.Time) {
		p := StartOfQuarter(r).AddDate(0, -3, 0)
		return p, EndOfQuarter(p)
	}, GrainQuarter},
	{"this year", func(r time.Time) (time.Time, time.Time) { return StartOfYear(r), EndOfYear(r) }, GrainYear},
	{"last year", func(r time.Time) (time.Time, time.Time) {
		p := r.AddDate(-1, 0, 0)
		return StartOfYear(p), EndOfYear(p)
	}, GrainYear},
}

// Ranges returns candidates ordered by where their phrase occurs in text.
func (KeywordRanges) Ranges(text string, ref time.Time) []DateRange {
	lower := strings.ToLower(text)

	type positioned struct {
		at int
		dr DateRange
	}
	var found []positioned

	for _, rule := range rangeRules {
		idx := wordIndex(lower, rule.phrase)
		if idx < 0 {
			continue
		}
		start, end := rule.resolve(ref)
		found = append(found, positioned{at: idx, dr: DateRange{
			Text:  rule.phrase,
			Start: start,
			End:   end,
			Grain: rule.grain,
		}})
	}

	if m := lastNDaysRe.FindStringSubmatchIndex(lower); m != nil {
		n, err := strconv.Atoi(lower[m[2]:m[3]])
		if err == nil && n > 0 {
			found = append(found, positioned{at: m[0], dr: DateRange{
				Text:  text[m[0]:m[1]],
				Start: StartOfDay(ref.AddDate(0, 0, -n)),
				End:   EndOfDay(ref),
				Grain: GrainCustom,
			}})
		}
	}

	// Order by text position, earliest phrase first.
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].at < found[j-1].at; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}

	out := make([]DateRange, len(found))
	for i, f := range found {
		out[i] = f.dr
	}
	return out
}
