/*
errors.go - Typed terminal errors for the persistence engine

ConflictError is deliberately opaque: its message is safe to show a user
and never embeds store error text, which can expose internal schema or
constraint names. FatalError wraps the underlying cause for logs and
errors.Is/As inspection, but callers translate it before display.
*/
package persist

import (
	"errors"
	"fmt"

	"github.com/warp/intent-engine/intent"
)

// UserSafeConflictMessage is what end users see after retry exhaustion.
const UserSafeConflictMessage = "temporary conflict saving your transaction, please try again"

// ConflictError is returned when the retry budget is exhausted by
// display-id races. Classified race_condition.
type ConflictError struct {
	UserID   int64
	Attempts int
}

func (e *ConflictError) Error() string {
	return UserSafeConflictMessage
}

func (e *ConflictError) Unwrap() error {
	return intent.ErrDisplayIDConflict
}

// FatalError is any non-retryable persistence failure, surfaced on the
// first occurrence.
type FatalError struct {
	Op     string
	UserID int64
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("persistence: %s for user %d: %v", e.Op, e.UserID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a non-retryable persistence failure.
// Retrying the identical request cannot succeed; callers should surface
// the failure instead.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
