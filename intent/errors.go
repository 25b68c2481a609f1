/*
errors.go - Centralized error types for intent resolution and persistence

PURPOSE:
  All cross-cutting error values in one place. Downstream packages wrap
  these with additional context rather than defining parallel sentinels.

ERROR CATEGORIES:
  1. Classification errors - Model fallback and decode failures (soft)
  2. Persistence errors - Display-id races vs fatal store failures

USAGE:
  The persistence engine selects retry behavior with errors.Is():

    if intent.IsRetryable(err) {
        // display-id race: back off and re-insert
    }

SEE ALSO:
  - persist/engine.go: Retry loop built on these predicates
  - store/sqlite/sqlite.go: Maps driver errors onto these sentinels
*/
package intent

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDisplayIDConflict is returned when an insert loses the race for the
	// next per-user display id. This is the ONLY retryable persistence error.
	ErrDisplayIDConflict = errors.New("display id already allocated")

	// ErrModelUnavailable is returned when the fallback model call failed
	// (transport, timeout, or unusable output). Always soft-failed: callers
	// degrade to the rule-based result, never surface this to users.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrMalformedIntent is returned when decoded model output does not
	// form a valid tagged union.
	ErrMalformedIntent = errors.New("malformed intent")

	// ErrUserNotFound is returned when a persistence call references a user
	// that could not be upserted.
	ErrUserNotFound = errors.New("user not found")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable reports whether a persistence failure may succeed on retry.
// Only the display-id allocation race qualifies; timeouts, auth failures and
// unrelated constraint violations must surface immediately.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDisplayIDConflict)
}
