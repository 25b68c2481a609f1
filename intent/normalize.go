/*
normalize.go - Intent validation and normalization

PURPOSE:
  Applies defaulting and consistency rules after an intent has been
  resolved (by rules or by the fallback model). This stage never rejects:
  it clamps, defaults, and reorders. Every change is recorded as an
  ordered "enhancement" tag so tests can assert exactly what happened,
  and so a second pass over already-normalized input provably does
  nothing (zero tags).

TRANSACTION RULES:
  - currency: default USD, always uppercase
  - amount: secondary regex sweep over the original text if absent;
    absolute value if negative
  - category: taxonomy normalization, unknown -> "other"
  - description: defaults to the original message
  - date: relative parse from the original text if absent, else the
    reference time

INSIGHT RULES:
  - category normalization as above
  - inverted start/end filters are swapped
  - timeframe boundaries snapped to grain (custom untouched); a zero
    start stays open-ended
  - question defaults to the original message
  - inverted min/max amount bounds are swapped
*/
package intent

import (
	"strings"
	"time"
)

// Enhancement tags recorded by the normalizer.
const (
	EnhDefaultCurrency    = "default-currency"
	EnhUppercaseCurrency  = "uppercase-currency"
	EnhRecoveredAmount    = "recovered-amount"
	EnhAbsoluteAmount     = "absolute-amount"
	EnhNormalizedCategory = "normalized-category"
	EnhDefaultCategory    = "default-category"
	EnhDefaultDescription = "default-description"
	EnhParsedRelativeDate = "parsed-relative-date"
	EnhDefaultDate        = "default-date"
	EnhSwappedDateRange   = "swapped-date-range"
	EnhSwappedTimeframe   = "swapped-timeframe"
	EnhSnappedTimeframe   = "snapped-timeframe"
	EnhDefaultQuestion    = "default-question"
	EnhSwappedAmountBound = "swapped-amount-bounds"
)

// Normalizer fills defaults and reconciles inconsistencies. Pure: the
// input intent is not mutated.
type Normalizer struct {
	Categories *CategorySet
	Ranges     RangeSource
}

// NewNormalizer builds a normalizer with the default taxonomy and the
// built-in keyword range source.
func NewNormalizer() *Normalizer {
	return &Normalizer{Categories: DefaultCategories(), Ranges: KeywordRanges{}}
}

// Normalize returns the normalized intent and the ordered enhancement
// tags. originalText is the raw message; ref resolves relative dates.
func (n *Normalizer) Normalize(in Intent, originalText string, ref time.Time) (Intent, []string) {
	enhancements := []string{}

	switch in.Kind {
	case KindTransaction:
		if in.Transaction == nil {
			return in, enhancements
		}
		tx := *in.Transaction
		tx.Entities = n.normalizeEntities(tx.Entities, originalText, ref, &enhancements)
		in.Transaction = &tx
	case KindInsight:
		if in.Insight == nil {
			return in, enhancements
		}
		ins := *in.Insight
		ins.Filters = n.normalizeFilters(ins.Filters, &enhancements)
		if ins.Question == "" {
			ins.Question = originalText
			enhancements = append(enhancements, EnhDefaultQuestion)
		}
		in.Insight = &ins
	}

	return in, enhancements
}

// =============================================================================
// TRANSACTION NORMALIZATION
// =============================================================================

func (n *Normalizer) normalizeEntities(e TransactionEntities, originalText string, ref time.Time, tags *[]string) TransactionEntities {
	// Amount: secondary sweep before defaulting currency, because the
	// sweep may also recover a currency signal.
	if !e.Amount.Valid {
		if match, ok := ExtractAmount(originalText); ok {
			e.Amount.Decimal = match.Value
			e.Amount.Valid = true
			if e.Currency == "" {
				e.Currency = match.Currency
			}
			*tags = append(*tags, EnhRecoveredAmount)
		}
	}
	if e.Amount.Valid && e.Amount.Decimal.IsNegative() {
		e.Amount.Decimal = e.Amount.Decimal.Abs()
		*tags = append(*tags, EnhAbsoluteAmount)
	}

	if e.Currency == "" {
		e.Currency = "USD"
		*tags = append(*tags, EnhDefaultCurrency)
	} else if upper := strings.ToUpper(e.Currency); upper != e.Currency {
		e.Currency = upper
		*tags = append(*tags, EnhUppercaseCurrency)
	}

	e.Category = n.normalizeCategory(e.Category, tags)

	if e.Description == "" {
		e.Description = originalText
		*tags = append(*tags, EnhDefaultDescription)
	}

	if e.Date.IsZero() {
		if ranges := n.Ranges.Ranges(originalText, ref); len(ranges) > 0 {
			e.Date = ranges[0].Start
			*tags = append(*tags, EnhParsedRelativeDate)
		} else {
			e.Date = ref
			*tags = append(*tags, EnhDefaultDate)
		}
	}

	return e
}

func (n *Normalizer) normalizeCategory(raw string, tags *[]string) string {
	if raw == "" {
		*tags = append(*tags, EnhDefaultCategory)
		return CategoryOther
	}
	normalized, changed := n.Categories.Normalize(raw)
	if changed {
		*tags = append(*tags, EnhNormalizedCategory)
	}
	return normalized
}

// =============================================================================
// INSIGHT NORMALIZATION
// =============================================================================

func (n *Normalizer) normalizeFilters(f InsightFilters, tags *[]string) InsightFilters {
	if f.Category != "" {
		f.Category = n.normalizeCategory(f.Category, tags)
	}

	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.StartDate.After(f.EndDate) {
		f.StartDate, f.EndDate = f.EndDate, f.StartDate
		*tags = append(*tags, EnhSwappedDateRange)
	}

	if f.Timeframe != nil {
		tf := *f.Timeframe
		if !tf.Start.IsZero() && !tf.End.IsZero() && tf.Start.After(tf.End) {
			tf.Start, tf.End = tf.End, tf.Start
			*tags = append(*tags, EnhSwappedTimeframe)
		}
		start, end := SnapRange(tf.Start, tf.End, tf.Grain)
		if !start.Equal(tf.Start) || !end.Equal(tf.End) {
			tf.Start, tf.End = start, end
			*tags = append(*tags, EnhSnappedTimeframe)
		}
		f.Timeframe = &tf
	}

	if f.MinAmount.Valid && f.MaxAmount.Valid && f.MinAmount.Decimal.GreaterThan(f.MaxAmount.Decimal) {
		f.MinAmount, f.MaxAmount = f.MaxAmount, f.MinAmount
		*tags = append(*tags, EnhSwappedAmountBound)
	}

	return f
}
