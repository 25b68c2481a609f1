/*
extract.go - Entity extraction from message text

PURPOSE:
  Pure extraction functions pulling amount/currency, merchant, and
  spending-verb signals out of free-form text. Each extractor tries its
  patterns most-specific first and stops at the first hit.

EXTRACTION ORDER (amount):
  1. Currency symbol + number     "$45", "€ 12.50"
  2. Number + currency keyword    "45 dollars", "12.50 eur"
  3. Bare number next to a verb   "spent 45 at ..."

MERCHANT:
  Text following a preposition (at/from/in/to), truncated at the next
  connector word (for/on/because/since) and at trailing temporal words.
  Results shorter than 2 characters are discarded.
*/
package intent

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT & CURRENCY
// =============================================================================

// AmountMatch is a successful amount extraction with its provenance tag.
type AmountMatch struct {
	Value    decimal.Decimal
	Currency string // empty when the pattern carried no currency signal
	Rule     string // "amount-symbol" | "amount-keyword" | "amount-verb"
}

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
}

var currencyKeywords = map[string]string{
	"dollar": "USD", "dollars": "USD", "usd": "USD", "bucks": "USD",
	"euro": "EUR", "euros": "EUR", "eur": "EUR",
	"pound": "GBP", "pounds": "GBP", "gbp": "GBP", "quid": "GBP",
	"yen": "JPY", "jpy": "JPY",
	"rupee": "INR", "rupees": "INR", "inr": "INR",
}

// spendingVerbs signal a transaction even without an explicit amount.
var spendingVerbs = []string{"spent", "paid", "bought", "purchased"}

const numberPattern = `(\d+(?:,\d{3})*(?:\.\d{1,2})?)`

var (
	symbolAmountRe  = regexp.MustCompile(`([$€£¥₹])\s*` + numberPattern)
	keywordAmountRe = regexp.MustCompile(`(?i)` + numberPattern + `\s*(dollars?|usd|bucks|euros?|eur|pounds?|gbp|quid|yen|jpy|rupees?|inr)\b`)
	verbAmountRe    = regexp.MustCompile(`(?i)\b(?:spent|paid|bought|purchased)\b[^\d]{0,20}` + numberPattern)
)

// ExtractAmount pulls the first amount from text, most-specific pattern
// first. The returned currency is empty unless the pattern implied one.
func ExtractAmount(text string) (AmountMatch, bool) {
	if m := symbolAmountRe.FindStringSubmatch(text); m != nil {
		if value, ok := parseNumber(m[2]); ok {
			return AmountMatch{Value: value, Currency: currencySymbols[m[1]], Rule: "amount-symbol"}, true
		}
	}
	if m := keywordAmountRe.FindStringSubmatch(text); m != nil {
		if value, ok := parseNumber(m[1]); ok {
			return AmountMatch{Value: value, Currency: currencyKeywords[strings.ToLower(m[2])], Rule: "amount-keyword"}, true
		}
	}
	if m := verbAmountRe.FindStringSubmatch(text); m != nil {
		if value, ok := parseNumber(m[1]); ok {
			return AmountMatch{Value: value, Rule: "amount-verb"}, true
		}
	}
	return AmountMatch{}, false
}

func parseNumber(raw string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// HasSpendingVerb reports whether the text contains a spending verb.
func HasSpendingVerb(text string) bool {
	lower := strings.ToLower(text)
	for _, verb := range spendingVerbs {
		if containsWord(lower, verb) {
			return true
		}
	}
	return false
}

// =============================================================================
// MERCHANT
// =============================================================================

var merchantRe = regexp.MustCompile(`(?i)\b(?:at|from|in|to)\s+(.+)`)

// connectorWords terminate a merchant span.
var connectorWords = []string{"for", "on", "because", "since"}

// temporalTailWords are trimmed off the end of a merchant span so that
// "at Trader Joe's yesterday" yields "Trader Joe's".
var temporalTailWords = []string{
	"today", "yesterday", "tomorrow", "tonight",
	"last week", "last month", "last quarter", "last year",
	"this week", "this month", "this quarter", "this year",
}

// ExtractMerchant pulls the merchant name following a preposition.
func ExtractMerchant(text string) (string, bool) {
	m := merchantRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	span := m[1]

	// Truncate at the first connector word.
	lower := strings.ToLower(span)
	cut := len(span)
	for _, conn := range connectorWords {
		if idx := wordIndex(lower, conn); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	span = span[:cut]

	// Strip amounts and trailing temporal words.
	span = symbolAmountRe.ReplaceAllString(span, "")
	span = keywordAmountRe.ReplaceAllString(span, "")
	lower = strings.ToLower(span)
	for _, tail := range temporalTailWords {
		if idx := wordIndex(lower, tail); idx >= 0 {
			span = span[:idx]
			lower = lower[:idx]
		}
	}

	merchant := strings.Trim(strings.TrimSpace(span), ".,!?;:")
	if len(merchant) < 2 {
		return "", false
	}
	return merchant, true
}

// =============================================================================
// WORD HELPERS
// =============================================================================

// containsWord reports whether lower contains needle on word boundaries.
func containsWord(lower, needle string) bool {
	return wordIndex(lower, needle) >= 0
}

// wordIndex returns the index of needle in lower when bounded by non-letter
// characters on both sides, or -1.
func wordIndex(lower, needle string) int {
	from := 0
	for {
		idx := strings.Index(lower[from:], needle)
		if idx < 0 {
			return -1
		}
		idx += from
		beforeOK := idx == 0 || !isLetter(lower[idx-1])
		afterIdx := idx + len(needle)
		afterOK := afterIdx >= len(lower) || !isLetter(lower[afterIdx])
		if beforeOK && afterOK {
			return idx
		}
		from = idx + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
