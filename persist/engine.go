/*
Package persist durably stores validated transactions and assigns each one
a user-scoped, monotonically-unique display id.

PURPOSE:
  The backing store is the sole serialization point for display-id
  allocation: it allocates the next id atomically and enforces a unique
  (user_id, display_id) constraint. Two concurrent savers for the same
  user can still compute the same next id; the constraint trips for the
  loser and this engine retries it with jittered backoff. The retry loop
  does not prevent races - it detects and recovers from them.

RETRY DISCIPLINE:
  - Only the display-id constraint violation is retried.
  - Timeouts, auth failures, unrelated constraints, malformed payloads
    surface immediately without retry.
  - Every retry emits a structured diagnostic (attempt number, reason).
  - Budget exhaustion emits a terminal event classified race_condition
    and returns a ConflictError whose message is user-safe and never
    contains the raw store error text.

GUARANTEE:
  For N concurrent saves for one user with a sufficient budget, all N
  succeed with N distinct display ids. Each retry is a brand-new insert,
  never a resumption of a half-committed one: a failed attempt leaves no
  partial row.
*/
package persist

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/intent-engine/intent"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// UserProfile is the upserted owner of a transaction.
type UserProfile struct {
	ID        int64
	FirstName string
	Username  string
}

// TransactionRecord is the store-facing insert payload. Each attempt is a
// fresh insert; the store allocates the display id.
type TransactionRecord struct {
	UserID          int64
	Amount          decimal.Decimal
	Currency        string
	Merchant        string
	Category        string
	Description     string
	TransactionDate time.Time
}

// InsertedRef identifies a successfully stored transaction.
type InsertedRef struct {
	ID        string // opaque record id
	DisplayID int64  // user-facing sequential id
}

// Store is the relational backing store. InsertTransaction must return an
// error matching intent.ErrDisplayIDConflict (via errors.Is) when, and
// only when, the (user_id, display_id) uniqueness constraint was violated.
type Store interface {
	UpsertUser(ctx context.Context, user UserProfile) error
	InsertTransaction(ctx context.Context, rec TransactionRecord) (InsertedRef, error)
}

// =============================================================================
// ENGINE
// =============================================================================

const (
	DefaultMaxAttempts = 8
	DefaultBaseBackoff = 25 * time.Millisecond
	maxBackoff         = 800 * time.Millisecond
)

// SaveRequest is a validated transaction ready to persist.
type SaveRequest struct {
	User            UserProfile
	Amount          decimal.Decimal
	Currency        string
	Merchant        string
	Category        string
	Description     string
	TransactionDate time.Time
}

// SaveResult reports a successful save.
type SaveResult struct {
	RecordID  string
	DisplayID int64
	Attempts  int
	Elapsed   time.Duration
}

// Engine is the concurrency-safe write path.
type Engine struct {
	Store       Store
	Log         zerolog.Logger
	MaxAttempts int
	BaseBackoff time.Duration
}

// NewEngine builds an engine with the default retry budget.
func NewEngine(store Store, log zerolog.Logger) *Engine {
	return &Engine{
		Store:       store,
		Log:         log,
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// Save upserts the user profile and inserts the transaction, retrying
// display-id races up to the budget.
func (e *Engine) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return SaveResult{}, err
	}

	if err := e.Store.UpsertUser(ctx, req.User); err != nil {
		return SaveResult{}, &FatalError{Op: "upsert user", UserID: req.User.ID, Err: err}
	}

	rec := TransactionRecord{
		UserID:          req.User.ID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Merchant:        req.Merchant,
		Category:        req.Category,
		Description:     req.Description,
		TransactionDate: req.TransactionDate,
	}

	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ref, err := e.Store.InsertTransaction(ctx, rec)
		if err == nil {
			e.Log.Debug().
				Int64("user_id", req.User.ID).
				Int64("display_id", ref.DisplayID).
				Int("attempts", attempt).
				Dur("elapsed", time.Since(start)).
				Msg("transaction saved")
			return SaveResult{
				RecordID:  ref.ID,
				DisplayID: ref.DisplayID,
				Attempts:  attempt,
				Elapsed:   time.Since(start),
			}, nil
		}

		if !intent.IsRetryable(err) {
			return SaveResult{}, &FatalError{Op: "insert transaction", UserID: req.User.ID, Err: err}
		}

		e.Log.Warn().
			Int64("user_id", req.User.ID).
			Int("attempt", attempt).
			Str("reason", "display id conflict").
			Msg("transaction save retry")

		if attempt == maxAttempts {
			break
		}
		if err := e.sleep(ctx, attempt); err != nil {
			return SaveResult{}, &FatalError{Op: "insert transaction", UserID: req.User.ID, Err: err}
		}
	}

	e.Log.Error().
		Int64("user_id", req.User.ID).
		Int("attempts", maxAttempts).
		Str("classification", "race_condition").
		Msg("transaction save budget exhausted")

	return SaveResult{}, &ConflictError{UserID: req.User.ID, Attempts: maxAttempts}
}

// sleep waits the jittered exponential backoff for the given attempt, or
// returns early when ctx is done.
func (e *Engine) sleep(ctx context.Context, attempt int) error {
	base := e.BaseBackoff
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	backoff := base << (attempt - 1)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	// Half fixed, half jitter, so concurrent losers spread out.
	wait := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func validateRequest(req SaveRequest) error {
	switch {
	case req.User.ID <= 0:
		return &FatalError{Op: "validate", UserID: req.User.ID, Err: fmt.Errorf("user id must be positive")}
	case req.Amount.IsNegative():
		return &FatalError{Op: "validate", UserID: req.User.ID, Err: fmt.Errorf("amount must be non-negative")}
	case req.Currency == "":
		return &FatalError{Op: "validate", UserID: req.User.ID, Err: fmt.Errorf("currency is required")}
	case req.TransactionDate.IsZero():
		return &FatalError{Op: "validate", UserID: req.User.ID, Err: fmt.Errorf("transaction date is required")}
	}
	return nil
}
