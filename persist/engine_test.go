package persist_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/intent-engine/intent"
	"github.com/warp/intent-engine/logging"
	"github.com/warp/intent-engine/persist"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// scriptedStore fails InsertTransaction a configured number of times with
// a configurable error before succeeding.
type scriptedStore struct {
	mu          sync.Mutex
	failures    int
	failWith    error
	inserts     int
	userUpserts int
	upsertErr   error
	nextDisplay int64
}

func (s *scriptedStore) UpsertUser(ctx context.Context, user persist.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userUpserts++
	return s.upsertErr
}

func (s *scriptedStore) InsertTransaction(ctx context.Context, rec persist.TransactionRecord) (persist.InsertedRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.failures > 0 {
		s.failures--
		return persist.InsertedRef{}, s.failWith
	}
	s.nextDisplay++
	return persist.InsertedRef{ID: uuid.NewString(), DisplayID: s.nextDisplay}, nil
}

// racyStore simulates real allocation races: it hands out the current
// max+1 non-atomically, so concurrent savers collide and must retry.
type racyStore struct {
	mu       sync.Mutex
	assigned map[int64]bool
}

func newRacyStore() *racyStore {
	return &racyStore{assigned: make(map[int64]bool)}
}

func (s *racyStore) UpsertUser(ctx context.Context, user persist.UserProfile) error { return nil }

func (s *racyStore) InsertTransaction(ctx context.Context, rec persist.TransactionRecord) (persist.InsertedRef, error) {
	s.mu.Lock()
	next := int64(len(s.assigned)) + 1
	s.mu.Unlock()

	// The gap between reading max and inserting is where real stores race.
	time.Sleep(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assigned[next] {
		return persist.InsertedRef{}, fmt.Errorf("insert transaction: %w", intent.ErrDisplayIDConflict)
	}
	s.assigned[next] = true
	return persist.InsertedRef{ID: uuid.NewString(), DisplayID: next}, nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testEngine(store persist.Store) *persist.Engine {
	e := persist.NewEngine(store, logging.NewWithWriter(discard{}))
	e.BaseBackoff = time.Millisecond
	return e
}

func validSave(userID int64) persist.SaveRequest {
	return persist.SaveRequest{
		User:            persist.UserProfile{ID: userID, FirstName: "Ada", Username: "ada"},
		Amount:          decimal.RequireFromString("45"),
		Currency:        "USD",
		Merchant:        "Trader Joe's",
		Category:        "groceries",
		Description:     "groceries run",
		TransactionDate: time.Date(2025, time.February, 14, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestSave_FirstAttemptSucceeds(t *testing.T) {
	store := &scriptedStore{}
	e := testEngine(store)

	result, err := e.Save(context.Background(), validSave(1))
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.DisplayID)
	assert.Equal(t, 1, result.Attempts)
	assert.NotEmpty(t, result.RecordID)
	assert.Equal(t, 1, store.userUpserts, "profile upserted before insert")
}

func TestSave_ConflictRetriedThenSucceeds(t *testing.T) {
	// GIVEN: The store loses the display-id race twice
	// WHEN: Saving
	// THEN: The third attempt succeeds; the caller sees one clean result

	store := &scriptedStore{
		failures: 2,
		failWith: fmt.Errorf("insert: %w", intent.ErrDisplayIDConflict),
	}
	e := testEngine(store)

	result, err := e.Save(context.Background(), validSave(1))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, store.inserts)
	assert.Equal(t, 1, store.userUpserts, "profile is upserted once, not per attempt")
}

// =============================================================================
// RETRY DISCIPLINE
// =============================================================================

func TestSave_NonRetryableErrorFailsImmediately(t *testing.T) {
	// Only the display-id conflict is retryable. Anything else surfaces
	// on the first attempt.
	store := &scriptedStore{
		failures: 1,
		failWith: errors.New("disk I/O error"),
	}
	e := testEngine(store)

	_, err := e.Save(context.Background(), validSave(1))
	require.Error(t, err)

	var fatal *persist.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.True(t, persist.IsFatal(err))
	assert.Equal(t, 1, store.inserts, "no retry for non-conflict errors")
}

func TestSave_BudgetExhaustionYieldsConflictError(t *testing.T) {
	store := &scriptedStore{
		failures: 100, // more than any budget
		failWith: fmt.Errorf("insert: %w", intent.ErrDisplayIDConflict),
	}
	e := testEngine(store)
	e.MaxAttempts = 4

	_, err := e.Save(context.Background(), validSave(1))
	require.Error(t, err)

	var conflict *persist.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 4, conflict.Attempts)
	assert.Equal(t, 4, store.inserts)

	// The surfaced message is user-safe and carries no store internals.
	assert.Equal(t, persist.UserSafeConflictMessage, err.Error())
	assert.NotContains(t, err.Error(), "insert")

	// Still classified as the retryable family for errors.Is callers.
	assert.True(t, errors.Is(err, intent.ErrDisplayIDConflict))
	assert.False(t, persist.IsFatal(err))
}

func TestSave_UpsertUserFailureIsFatal(t *testing.T) {
	store := &scriptedStore{upsertErr: errors.New("users table locked")}
	e := testEngine(store)

	_, err := e.Save(context.Background(), validSave(1))

	require.Error(t, err)
	assert.True(t, persist.IsFatal(err))
	assert.Zero(t, store.inserts, "no insert after a failed upsert")
}

func TestSave_ContextCancelledDuringBackoff(t *testing.T) {
	store := &scriptedStore{
		failures: 100,
		failWith: fmt.Errorf("insert: %w", intent.ErrDisplayIDConflict),
	}
	e := testEngine(store)
	e.BaseBackoff = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := e.Save(ctx, validSave(1))

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestSave_RejectsInvalidRequests(t *testing.T) {
	e := testEngine(&scriptedStore{})

	cases := map[string]func(*persist.SaveRequest){
		"missing user":     func(r *persist.SaveRequest) { r.User.ID = 0 },
		"negative amount":  func(r *persist.SaveRequest) { r.Amount = decimal.RequireFromString("-5") },
		"missing currency": func(r *persist.SaveRequest) { r.Currency = "" },
		"missing date":     func(r *persist.SaveRequest) { r.TransactionDate = time.Time{} },
	}

	for name, mutate := range cases {
		req := validSave(1)
		mutate(&req)

		_, err := e.Save(context.Background(), req)
		assert.Error(t, err, name)
		assert.True(t, persist.IsFatal(err), name)
	}
}

// =============================================================================
// CONCURRENCY GUARANTEE
// =============================================================================

func TestSave_ConcurrentSavesGetDistinctDisplayIDs(t *testing.T) {
	// GIVEN: N concurrent saves for one user against a store that races
	// WHEN: All run with a sufficient retry budget
	// THEN: Every save succeeds with a distinct display id

	const n = 10
	store := newRacyStore()
	e := testEngine(store)
	e.MaxAttempts = 50

	var wg sync.WaitGroup
	results := make([]persist.SaveResult, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Save(context.Background(), validSave(1))
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "save %d", i)
		assert.False(t, seen[results[i].DisplayID], "display id %d assigned twice", results[i].DisplayID)
		seen[results[i].DisplayID] = true
	}
	assert.Len(t, seen, n)
}
