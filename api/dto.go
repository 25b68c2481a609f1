/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON contracts between HTTP clients and the engine.
  DTOs are deliberately separate from domain types: the wire format can
  evolve without touching domain logic, and domain types never carry
  json tags for the public surface.

CONVENTIONS:
  - Dates as RFC3339 strings
  - Amounts as decimal strings (never floats)
  - Resolved intents use the same snake_case wire shape as the model
    codec, so clients see one intent schema everywhere
*/
package api

import "encoding/json"

// =============================================================================
// REQUEST DTOs
// =============================================================================

// MessageRequest is an inbound natural-language message.
type MessageRequest struct {
	Text               string `json:"text"`
	UserID             int64  `json:"userId"`
	FirstName          string `json:"firstName,omitempty"`
	Username           string `json:"username,omitempty"`
	ReferenceTimestamp string `json:"referenceTimestamp,omitempty"` // RFC3339; defaults to now
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

// DiagnosticsDTO reports how a message was resolved.
type DiagnosticsDTO struct {
	RulesFired []string `json:"rulesFired"`
	UsedModel  bool     `json:"usedModel"`
	CacheHit   bool     `json:"cacheHit"`
}

// SavedTransactionDTO identifies a persisted transaction.
type SavedTransactionDTO struct {
	RecordID  string `json:"recordId"`
	DisplayID int64  `json:"displayId"`
	Attempts  int    `json:"attempts"`
}

// MessageResponse is the full outcome of resolving one message.
type MessageResponse struct {
	Intent       json.RawMessage      `json:"intent"`
	Enhancements []string             `json:"enhancements"`
	Diagnostics  DiagnosticsDTO       `json:"diagnostics"`
	Saved        *SavedTransactionDTO `json:"saved,omitempty"`
}

// TransactionDTO is one stored transaction.
type TransactionDTO struct {
	ID          string `json:"id"`
	DisplayID   int64  `json:"displayId"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Merchant    string `json:"merchant,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	CreatedAt   string `json:"createdAt"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
