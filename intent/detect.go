/*
detect.go - Rule-based intent detector

PURPOSE:
  Combines the entity extractors into scored transaction and insight
  candidates, then selects one. Detection is deterministic and pure:
  identical text + reference time always produces the identical intent,
  score, and rule tags.

SCORING:
  Transaction: 2.0 amount + 1.5 spending verb + 1.0 merchant
               + 0.5 category + 0.5 date
               confidence: >=3.5 high, >=2.0 medium, else low
  Insight:     query-type keyword weight (sum/average/count/list 2.0,
               trend/comparison 2.5; bare query signal 1.0)
               + 1.0 resolved date range + 0.5 merchant + 0.5 category
               confidence: >=3.0 high, >=2.0 medium, else low

SELECTION:
  A transaction candidate requires an amount, or a spending verb together
  with a merchant. An insight candidate requires a query signal. When both
  exist the transaction wins unless the insight scores strictly higher.
  Neither -> Other with low confidence.
*/
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// THRESHOLDS & WEIGHTS
// =============================================================================

const (
	weightAmount   = 2.0
	weightVerb     = 1.5
	weightMerchant = 1.0
	weightCategory = 0.5
	weightDate     = 0.5

	weightQuerySignal    = 1.0
	weightQueryBasic     = 2.0 // sum, average, count, list
	weightQueryComposite = 2.5 // trend, comparison
	weightQueryDate      = 1.0
	weightQueryMerchant  = 0.5
	weightQueryCategory  = 0.5

	txHighThreshold      = 3.5
	txMediumThreshold    = 2.0
	queryHighThreshold   = 3.0
	queryMediumThreshold = 2.0
)

// querySignals mark a message as a question about history.
var querySignals = []string{
	"how much", "how many", "show me", "what did", "what have",
	"compare", "vs", "versus", "than last", "did i spend", "am i spending",
}

// queryTypeTable resolves the query type by first keyword match, in
// priority order. Default when only a bare signal matched: sum.
var queryTypeTable = []struct {
	qt       QueryType
	weight   float64
	keywords []string
}{
	{QuerySum, weightQueryBasic, []string{"how much", "total", "sum", "altogether"}},
	{QueryAverage, weightQueryBasic, []string{"average", "avg", "typically", "per day", "per week", "per month"}},
	{QueryCount, weightQueryBasic, []string{"how many", "count", "number of", "times did"}},
	{QueryTrend, weightQueryComposite, []string{"trend", "over time", "pattern", "growing", "increasing", "decreasing"}},
	{QueryComparison, weightQueryComposite, []string{"compare", "vs", "versus", "than last", "difference between"}},
	{QueryList, weightQueryBasic, []string{"show me", "list", "what did i buy", "what did i spend on"}},
}

// openEndedPhrases make a range lower-bound-free.
var openEndedPhrases = []string{"till now", "so far", "to date", "until now", "up to now"}

var lastNTxRe = regexp.MustCompile(`(?i)\b(?:last|recent)\s+(\d{1,3})\s+(?:transactions|purchases|expenses)\b`)

// =============================================================================
// DETECTOR
// =============================================================================

// Detector runs the extraction rules over a message. The zero value is not
// usable; construct with NewDetector.
type Detector struct {
	Categories *CategorySet
	Ranges     RangeSource
}

// NewDetector builds a detector with the default taxonomy and the built-in
// keyword range source.
func NewDetector() *Detector {
	return &Detector{Categories: DefaultCategories(), Ranges: KeywordRanges{}}
}

// Detection is the detector's full output, including both candidate scores
// so callers (and tests) can audit the selection.
type Detection struct {
	Intent           Intent
	Score            float64
	TransactionScore float64
	InsightScore     float64
	RulesFired       []string
}

// Detect resolves a message into an intent using rules only.
func (d *Detector) Detect(text string, ref time.Time) Detection {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Detection{
			Intent:     NewOtherIntent(ConfidenceHigh, "Empty message"),
			RulesFired: []string{"empty-message"},
		}
	}

	lower := strings.ToLower(trimmed)
	var rules []string
	fire := func(tag string) { rules = append(rules, tag) }

	// Shared extractions.
	amount, hasAmount := ExtractAmount(trimmed)
	if hasAmount {
		fire(amount.Rule)
	}
	hasVerb := HasSpendingVerb(lower)
	if hasVerb {
		fire("spending-verb")
	}
	merchant, hasMerchant := ExtractMerchant(trimmed)
	if hasMerchant {
		fire("merchant-preposition")
	}
	category, hasCategory := d.Categories.Match(lower)
	if hasCategory {
		fire("category-keyword")
	}
	ranges := d.Ranges.Ranges(trimmed, ref)
	var dateRange *DateRange
	if len(ranges) > 0 {
		dateRange = &ranges[0]
		if g := GrainFromText(dateRange.Text); g != GrainCustom {
			dateRange.Grain = g
		}
		fire("date-range")
	}

	txScore, txIntent := d.transactionCandidate(amount, hasAmount, hasVerb, merchant, hasMerchant, category, hasCategory, dateRange)
	inScore, inIntent := d.insightCandidate(trimmed, lower, merchant, hasMerchant, category, hasCategory, dateRange, ref, fire)

	switch {
	case txIntent != nil && inIntent != nil:
		if inScore > txScore {
			fire("selected-insight")
			return Detection{Intent: *inIntent, Score: inScore, TransactionScore: txScore, InsightScore: inScore, RulesFired: rules}
		}
		fire("selected-transaction")
		return Detection{Intent: *txIntent, Score: txScore, TransactionScore: txScore, InsightScore: inScore, RulesFired: rules}
	case txIntent != nil:
		fire("selected-transaction")
		return Detection{Intent: *txIntent, Score: txScore, TransactionScore: txScore, RulesFired: rules}
	case inIntent != nil:
		fire("selected-insight")
		return Detection{Intent: *inIntent, Score: inScore, InsightScore: inScore, RulesFired: rules}
	default:
		fire("no-candidate")
		return Detection{Intent: NewOtherIntent(ConfidenceLow, "No clear intent"), RulesFired: rules}
	}
}

// =============================================================================
// TRANSACTION CANDIDATE
// =============================================================================

func (d *Detector) transactionCandidate(
	amount AmountMatch, hasAmount, hasVerb bool,
	merchant string, hasMerchant bool,
	category string, hasCategory bool,
	dateRange *DateRange,
) (float64, *Intent) {
	// Emitted only with an amount, or a spending verb next to a merchant.
	if !hasAmount && !(hasVerb && hasMerchant) {
		return 0, nil
	}

	score := 0.0
	if hasAmount {
		score += weightAmount
	}
	if hasVerb {
		score += weightVerb
	}
	if hasMerchant {
		score += weightMerchant
	}
	if hasCategory {
		score += weightCategory
	}
	if dateRange != nil {
		score += weightDate
	}

	conf := ConfidenceLow
	switch {
	case score >= txHighThreshold:
		conf = ConfidenceHigh
	case score >= txMediumThreshold:
		conf = ConfidenceMedium
	}

	entities := TransactionEntities{
		Currency: amount.Currency,
		Merchant: merchant,
		Category: category,
	}
	if hasAmount {
		entities.Amount = decimal.NullDecimal{Decimal: amount.Value, Valid: true}
	}
	if dateRange != nil {
		entities.Date = dateRange.Start
	}

	candidate := NewTransactionIntent(conf, entities)
	return score, &candidate
}

// =============================================================================
// INSIGHT CANDIDATE
// =============================================================================

func (d *Detector) insightCandidate(
	text, lower string,
	merchant string, hasMerchant bool,
	category string, hasCategory bool,
	dateRange *DateRange,
	ref time.Time,
	fire func(string),
) (float64, *Intent) {
	if !d.hasQuerySignal(lower) {
		return 0, nil
	}
	fire("query-signal")

	qt, typeWeight, matched := resolveQueryType(lower)
	if matched {
		fire("query-type-" + string(qt))
	}

	score := weightQuerySignal
	if matched {
		score = typeWeight
	}

	filters := InsightFilters{}
	if hasMerchant {
		filters.Merchant = merchant
		score += weightQueryMerchant
	}
	if hasCategory {
		filters.Category = category
		score += weightQueryCategory
	}

	if dateRange != nil {
		filters.Timeframe = &Timeframe{
			Text:  dateRange.Text,
			Start: dateRange.Start,
			End:   dateRange.End,
			Grain: dateRange.Grain,
		}
		score += weightQueryDate
	}

	if m := lastNTxRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			filters.LastN = n
			fire("last-n")
		}
	}

	// Open-ended phrasing drops the lower bound: the query runs from the
	// beginning of history through end.
	if phrase, ok := openEndedPhrase(lower); ok {
		if filters.Timeframe != nil {
			filters.Timeframe.Start = time.Time{}
		} else {
			filters.Timeframe = &Timeframe{Text: phrase, End: EndOfDay(ref), Grain: GrainCustom}
		}
		fire("open-ended-range")
	}

	// An implied comparison gets an equal-duration range immediately
	// preceding the primary one.
	if d.comparisonImplied(lower, qt, matched, filters.Timeframe) {
		if cp := previousPeriod(filters.Timeframe); cp != nil {
			filters.CompareTo = cp
			fire("compare-derived")
		}
	}

	conf := ConfidenceLow
	switch {
	case score >= queryHighThreshold:
		conf = ConfidenceHigh
	case score >= queryMediumThreshold:
		conf = ConfidenceMedium
	}

	candidate := NewInsightIntent(conf, qt, text, filters)
	return score, &candidate
}

func (d *Detector) hasQuerySignal(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	for _, signal := range querySignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}

func resolveQueryType(lower string) (QueryType, float64, bool) {
	for _, entry := range queryTypeTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.qt, entry.weight, true
			}
		}
	}
	return QuerySum, 0, false
}

func openEndedPhrase(lower string) (string, bool) {
	for _, phrase := range openEndedPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func (d *Detector) comparisonImplied(lower string, qt QueryType, matched bool, tf *Timeframe) bool {
	if matched && qt == QueryComparison {
		return true
	}
	if tf == nil {
		return false
	}
	return strings.Contains(lower, "vs") || strings.Contains(lower, "versus") || strings.Contains(lower, "than last")
}

// previousPeriod derives the equal-duration range that precedes tf:
// compare end is one tick before the primary start, compare start keeps
// the duration. Requires a bounded timeframe.
func previousPeriod(tf *Timeframe) *ComparePeriod {
	if tf == nil || tf.Start.IsZero() || tf.End.IsZero() || !tf.End.After(tf.Start) {
		return nil
	}
	duration := tf.End.Sub(tf.Start)
	end := tf.Start.Add(-time.Millisecond)
	return &ComparePeriod{
		Start: end.Add(-duration),
		End:   end,
		Label: "previous " + string(tf.Grain),
	}
}
