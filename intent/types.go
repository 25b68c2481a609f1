/*
Package intent provides the core intent resolution model.

PURPOSE:
  This package contains the pure domain types and algorithms for turning a
  free-form financial message into a structured intent. A message resolves
  to exactly one of three variants: a logged transaction, an analytical
  query (insight), or "other" when no confident reading exists.

KEY CONCEPTS IN THIS FILE (types.go):
  - Intent: Tagged union over transaction/insight/other variants
  - TransactionEntities: Extracted amount, currency, merchant, category, date
  - InsightFilters: Query constraints (category, timeframe, amount bounds)
  - Diagnostics: Audit trail of which rules fired and whether the model ran

DESIGN PRINCIPLES:
  1. Purity: Detection and normalization are pure functions over Intent
  2. Precision: Uses decimal.Decimal for money, never float64
  3. One variant: Exactly one union arm is populated at a time
  4. Auditability: Every fired rule and applied enhancement is recorded

SEE ALSO:
  - detect.go: Rule-based detector producing Intents
  - normalize.go: Validator/normalizer over Intents
  - errors.go: Central error types
*/
package intent

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KIND & CONFIDENCE
// =============================================================================

// Kind discriminates the intent union.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindInsight     Kind = "insight"
	KindOther       Kind = "other"
)

// Confidence is the ordinal strength of a resolved intent.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SanitizeConfidence maps arbitrary input to a valid confidence level.
// Unknown values default to medium.
func SanitizeConfidence(raw string) Confidence {
	switch Confidence(raw) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return Confidence(raw)
	default:
		return ConfidenceMedium
	}
}

// =============================================================================
// INTENT - Tagged union
// =============================================================================

// Intent is the result of resolving a message. Exactly one of the three
// variant pointers is non-nil, matching Kind.
type Intent struct {
	Kind        Kind
	Transaction *TransactionIntent
	Insight     *InsightIntent
	Other       *OtherIntent
}

// TransactionIntent records a spending event to be persisted.
type TransactionIntent struct {
	Action     string
	Confidence Confidence
	Entities   TransactionEntities
}

// InsightIntent is an analytical query over transaction history.
type InsightIntent struct {
	Confidence Confidence
	QueryType  QueryType
	Question   string
	Filters    InsightFilters
}

// OtherIntent is the fallback variant when no confident reading exists.
type OtherIntent struct {
	Confidence Confidence
	Reason     string
}

// Action values for transaction intents.
const (
	ActionLogExpense = "log_expense"
)

// QueryType classifies what an insight query computes.
type QueryType string

const (
	QuerySum        QueryType = "sum"
	QueryAverage    QueryType = "average"
	QueryCount      QueryType = "count"
	QueryTrend      QueryType = "trend"
	QueryComparison QueryType = "comparison"
	QueryList       QueryType = "list"
)

// Constructors keep the union well-formed.

func NewTransactionIntent(conf Confidence, entities TransactionEntities) Intent {
	return Intent{
		Kind:        KindTransaction,
		Transaction: &TransactionIntent{Action: ActionLogExpense, Confidence: conf, Entities: entities},
	}
}

func NewInsightIntent(conf Confidence, qt QueryType, question string, filters InsightFilters) Intent {
	return Intent{
		Kind:    KindInsight,
		Insight: &InsightIntent{Confidence: conf, QueryType: qt, Question: question, Filters: filters},
	}
}

func NewOtherIntent(conf Confidence, reason string) Intent {
	return Intent{
		Kind:  KindOther,
		Other: &OtherIntent{Confidence: conf, Reason: reason},
	}
}

// Confidence returns the confidence of whichever variant is active.
func (i Intent) Confidence() Confidence {
	switch i.Kind {
	case KindTransaction:
		if i.Transaction != nil {
			return i.Transaction.Confidence
		}
	case KindInsight:
		if i.Insight != nil {
			return i.Insight.Confidence
		}
	case KindOther:
		if i.Other != nil {
			return i.Other.Confidence
		}
	}
	return ConfidenceLow
}

// Validate checks the union shape: a known kind with exactly the matching
// variant populated. Used by the model-output decoder to fail closed.
func (i Intent) Validate() error {
	set := 0
	if i.Transaction != nil {
		set++
	}
	if i.Insight != nil {
		set++
	}
	if i.Other != nil {
		set++
	}
	if set != 1 {
		return ErrMalformedIntent
	}
	switch i.Kind {
	case KindTransaction:
		if i.Transaction == nil {
			return ErrMalformedIntent
		}
	case KindInsight:
		if i.Insight == nil {
			return ErrMalformedIntent
		}
	case KindOther:
		if i.Other == nil {
			return ErrMalformedIntent
		}
	default:
		return ErrMalformedIntent
	}
	return nil
}

// =============================================================================
// TRANSACTION ENTITIES
// =============================================================================

// TransactionEntities carries everything extracted for a spending event.
// Amount uses NullDecimal because a message may carry no amount at all;
// the normalizer runs a secondary sweep before defaulting.
type TransactionEntities struct {
	Amount      decimal.NullDecimal
	Currency    string // ISO-4217, uppercase
	Merchant    string // may be empty
	Category    string // defaults to "other"
	Description string
	Date        time.Time // zero means absent
	Timezone    string    // IANA name, optional
}

// =============================================================================
// INSIGHT FILTERS
// =============================================================================

// Timeframe is a recognized date span with its temporal grain.
type Timeframe struct {
	Text  string
	Start time.Time // zero means open-ended (from the beginning of history)
	End   time.Time
	Grain Grain
}

// ComparePeriod is the reference range for comparison queries.
type ComparePeriod struct {
	Start time.Time
	End   time.Time
	Label string
}

// InsightFilters constrains an analytical query.
type InsightFilters struct {
	Merchant  string
	Category  string
	StartDate time.Time
	EndDate   time.Time
	Timeframe *Timeframe
	CompareTo *ComparePeriod
	MinAmount decimal.NullDecimal
	MaxAmount decimal.NullDecimal
	LastN     int
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// Diagnostics records how an intent was resolved, for auditing and tests.
type Diagnostics struct {
	RulesFired []string
	UsedModel  bool
	CacheHit   bool
}
