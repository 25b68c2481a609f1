/*
decode.go - Strict structural decoding of model output

PURPOSE:
  The model is asked for strict JSON matching the intent schema, but its
  output is still untrusted text: it may arrive wrapped in code fences,
  carry extra fields, or not be JSON at all. Decoding fails closed - any
  shape mismatch yields "no result" rather than an error escaping the
  classifier.

WIRE SHAPE (closed - unknown fields are rejected):
  {"kind": "transaction" | "insight" | "other",
   "confidence": "high" | "medium" | "low",
   "entities": {...} | "query_type"+"filters" | "reason"}
*/
package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/intent-engine/intent"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

type wireIntent struct {
	Kind       string        `json:"kind"`
	Confidence string        `json:"confidence"`
	Entities   *wireEntities `json:"entities,omitempty"`
	QueryType  string        `json:"query_type,omitempty"`
	Question   string        `json:"question,omitempty"`
	Filters    *wireFilters  `json:"filters,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

type wireEntities struct {
	Amount          *json.Number `json:"amount,omitempty"`
	Currency        string       `json:"currency,omitempty"`
	Merchant        string       `json:"merchant,omitempty"`
	Category        string       `json:"category,omitempty"`
	Description     string       `json:"description,omitempty"`
	TransactionDate string       `json:"transaction_date,omitempty"`
	Timezone        string       `json:"timezone,omitempty"`
}

type wireFilters struct {
	Merchant  string         `json:"merchant,omitempty"`
	Category  string         `json:"category,omitempty"`
	StartDate string         `json:"start_date,omitempty"`
	EndDate   string         `json:"end_date,omitempty"`
	Timeframe *wireTimeframe `json:"timeframe,omitempty"`
	CompareTo *wireCompare   `json:"compare_to,omitempty"`
	MinAmount *json.Number   `json:"min_amount,omitempty"`
	MaxAmount *json.Number   `json:"max_amount,omitempty"`
	LastN     int            `json:"last_n,omitempty"`
}

type wireTimeframe struct {
	Text  string `json:"text,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Grain string `json:"grain,omitempty"`
}

type wireCompare struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Label     string `json:"label,omitempty"`
}

// =============================================================================
// DECODE
// =============================================================================

// DecodeModelOutput parses raw model text into an intent. Returns nil on
// any decode or validation failure.
func DecodeModelOutput(raw string) *intent.Intent {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return nil
	}
	resolved, err := DecodeIntent([]byte(cleaned))
	if err != nil {
		return nil
	}
	return resolved
}

// DecodeIntent strictly decodes a serialized intent. Used both for model
// output and for cache payloads (which share the wire shape).
func DecodeIntent(data []byte) (*intent.Intent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	var w wireIntent
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}

	conf := intent.SanitizeConfidence(w.Confidence)

	var out intent.Intent
	switch intent.Kind(w.Kind) {
	case intent.KindTransaction:
		if w.Entities == nil {
			return nil, intent.ErrMalformedIntent
		}
		out = intent.NewTransactionIntent(conf, decodeEntities(w.Entities))
	case intent.KindInsight:
		filters := intent.InsightFilters{}
		if w.Filters != nil {
			filters = decodeFilters(w.Filters)
		}
		out = intent.NewInsightIntent(conf, decodeQueryType(w.QueryType), w.Question, filters)
	case intent.KindOther:
		out = intent.NewOtherIntent(conf, w.Reason)
	default:
		return nil, intent.ErrMalformedIntent
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// EncodeIntent serializes an intent into the wire shape, for cache
// payloads.
func EncodeIntent(in intent.Intent) ([]byte, error) {
	w := wireIntent{Kind: string(in.Kind), Confidence: string(in.Confidence())}
	switch in.Kind {
	case intent.KindTransaction:
		e := in.Transaction.Entities
		we := &wireEntities{
			Currency:    e.Currency,
			Merchant:    e.Merchant,
			Category:    e.Category,
			Description: e.Description,
			Timezone:    e.Timezone,
		}
		if e.Amount.Valid {
			n := json.Number(e.Amount.Decimal.String())
			we.Amount = &n
		}
		if !e.Date.IsZero() {
			we.TransactionDate = e.Date.Format(time.RFC3339Nano)
		}
		w.Entities = we
	case intent.KindInsight:
		w.QueryType = string(in.Insight.QueryType)
		w.Question = in.Insight.Question
		w.Filters = encodeFilters(in.Insight.Filters)
	case intent.KindOther:
		w.Reason = in.Other.Reason
	}
	return json.Marshal(w)
}

// =============================================================================
// FIELD CONVERSION
// =============================================================================

func decodeEntities(w *wireEntities) intent.TransactionEntities {
	e := intent.TransactionEntities{
		Currency:    w.Currency,
		Merchant:    w.Merchant,
		Category:    w.Category,
		Description: w.Description,
		Timezone:    w.Timezone,
	}
	if w.Amount != nil {
		if d, err := decimal.NewFromString(w.Amount.String()); err == nil {
			e.Amount = decimal.NullDecimal{Decimal: d, Valid: true}
		}
	}
	e.Date = parseWireTime(w.TransactionDate)
	return e
}

func decodeFilters(w *wireFilters) intent.InsightFilters {
	f := intent.InsightFilters{
		Merchant:  w.Merchant,
		Category:  w.Category,
		StartDate: parseWireTime(w.StartDate),
		EndDate:   parseWireTime(w.EndDate),
		LastN:     w.LastN,
	}
	if w.Timeframe != nil {
		f.Timeframe = &intent.Timeframe{
			Text:  w.Timeframe.Text,
			Start: parseWireTime(w.Timeframe.Start),
			End:   parseWireTime(w.Timeframe.End),
			Grain: decodeGrain(w.Timeframe.Grain),
		}
	}
	if w.CompareTo != nil {
		f.CompareTo = &intent.ComparePeriod{
			Start: parseWireTime(w.CompareTo.StartDate),
			End:   parseWireTime(w.CompareTo.EndDate),
			Label: w.CompareTo.Label,
		}
	}
	if w.MinAmount != nil {
		if d, err := decimal.NewFromString(w.MinAmount.String()); err == nil {
			f.MinAmount = decimal.NullDecimal{Decimal: d, Valid: true}
		}
	}
	if w.MaxAmount != nil {
		if d, err := decimal.NewFromString(w.MaxAmount.String()); err == nil {
			f.MaxAmount = decimal.NullDecimal{Decimal: d, Valid: true}
		}
	}
	return f
}

func encodeFilters(f intent.InsightFilters) *wireFilters {
	w := &wireFilters{
		Merchant: f.Merchant,
		Category: f.Category,
		LastN:    f.LastN,
	}
	if !f.StartDate.IsZero() {
		w.StartDate = f.StartDate.Format(time.RFC3339Nano)
	}
	if !f.EndDate.IsZero() {
		w.EndDate = f.EndDate.Format(time.RFC3339Nano)
	}
	if f.Timeframe != nil {
		wt := &wireTimeframe{Text: f.Timeframe.Text, Grain: string(f.Timeframe.Grain)}
		if !f.Timeframe.Start.IsZero() {
			wt.Start = f.Timeframe.Start.Format(time.RFC3339Nano)
		}
		if !f.Timeframe.End.IsZero() {
			wt.End = f.Timeframe.End.Format(time.RFC3339Nano)
		}
		w.Timeframe = wt
	}
	if f.CompareTo != nil {
		wc := &wireCompare{Label: f.CompareTo.Label}
		if !f.CompareTo.Start.IsZero() {
			wc.StartDate = f.CompareTo.Start.Format(time.RFC3339Nano)
		}
		if !f.CompareTo.End.IsZero() {
			wc.EndDate = f.CompareTo.End.Format(time.RFC3339Nano)
		}
		w.CompareTo = wc
	}
	if f.MinAmount.Valid {
		n := json.Number(f.MinAmount.Decimal.String())
		w.MinAmount = &n
	}
	if f.MaxAmount.Valid {
		n := json.Number(f.MaxAmount.Decimal.String())
		w.MaxAmount = &n
	}
	return w
}

func decodeQueryType(raw string) intent.QueryType {
	switch intent.QueryType(raw) {
	case intent.QuerySum, intent.QueryAverage, intent.QueryCount,
		intent.QueryTrend, intent.QueryComparison, intent.QueryList:
		return intent.QueryType(raw)
	default:
		return intent.QuerySum
	}
}

func decodeGrain(raw string) intent.Grain {
	switch intent.Grain(raw) {
	case intent.GrainDay, intent.GrainWeek, intent.GrainMonth,
		intent.GrainQuarter, intent.GrainYear:
		return intent.Grain(raw)
	default:
		return intent.GrainCustom
	}
}

// parseWireTime accepts RFC3339 or bare dates; anything else is zero time
// and gets defaulted by the normalizer downstream.
func parseWireTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// stripCodeFence removes Markdown fences the model may wrap around its
// JSON, then keeps only the outermost object.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Keep only the first '{' through the last '}' in case of stray prose.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
