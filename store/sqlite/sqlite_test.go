package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/intent-engine/intent"
	"github.com/warp/intent-engine/persist"
	"github.com/warp/intent-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(userID int64) persist.TransactionRecord {
	return persist.TransactionRecord{
		UserID:          userID,
		Amount:          decimal.RequireFromString("45.50"),
		Currency:        "USD",
		Merchant:        "Trader Joe's",
		Category:        "groceries",
		Description:     "weekly shop",
		TransactionDate: time.Date(2025, time.February, 14, 0, 0, 0, 0, time.UTC),
	}
}

func mustUpsert(t *testing.T, store *sqlite.Store, userID int64) {
	t.Helper()
	require.NoError(t, store.UpsertUser(context.Background(), persist.UserProfile{
		ID: userID, FirstName: "Ada", Username: "ada",
	}))
}

// =============================================================================
// USER TESTS
// =============================================================================

func TestUpsertUser_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, persist.UserProfile{ID: 1, FirstName: "Ada", Username: "ada"}))
	require.NoError(t, store.UpsertUser(ctx, persist.UserProfile{ID: 1, FirstName: "Ada L.", Username: "ada"}))
}

// =============================================================================
// DISPLAY-ID ALLOCATION TESTS
// =============================================================================

func TestInsertTransaction_SequentialDisplayIDs(t *testing.T) {
	// GIVEN: One user saving several transactions
	// WHEN: Inserting them in sequence
	// THEN: Display ids are 1, 2, 3, ...

	store := newTestStore(t)
	ctx := context.Background()
	mustUpsert(t, store, 1)

	for want := int64(1); want <= 5; want++ {
		ref, err := store.InsertTransaction(ctx, testRecord(1))
		require.NoError(t, err)
		assert.Equal(t, want, ref.DisplayID)
		assert.NotEmpty(t, ref.ID)
	}
}

func TestInsertTransaction_DisplayIDsArePerUser(t *testing.T) {
	// Each user has their own sequence starting at 1.
	store := newTestStore(t)
	ctx := context.Background()
	mustUpsert(t, store, 1)
	mustUpsert(t, store, 2)

	ref1, err := store.InsertTransaction(ctx, testRecord(1))
	require.NoError(t, err)
	ref2, err := store.InsertTransaction(ctx, testRecord(2))
	require.NoError(t, err)
	ref3, err := store.InsertTransaction(ctx, testRecord(1))
	require.NoError(t, err)

	assert.Equal(t, int64(1), ref1.DisplayID)
	assert.Equal(t, int64(1), ref2.DisplayID)
	assert.Equal(t, int64(2), ref3.DisplayID)
}

func TestInsertTransaction_ForeignKeyEnforced(t *testing.T) {
	// Inserting for an unknown user trips the foreign key, which is a
	// plain error, not the retryable conflict.
	store := newTestStore(t)

	_, err := store.InsertTransaction(context.Background(), testRecord(99))

	require.Error(t, err)
	assert.False(t, errors.Is(err, intent.ErrDisplayIDConflict))
}

// =============================================================================
// LISTING TESTS
// =============================================================================

func TestListTransactions_OrderedAndRoundTripped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustUpsert(t, store, 1)

	first := testRecord(1)
	second := testRecord(1)
	second.Amount = decimal.RequireFromString("12.99")
	second.Merchant = ""
	second.Description = ""

	_, err := store.InsertTransaction(ctx, first)
	require.NoError(t, err)
	_, err = store.InsertTransaction(ctx, second)
	require.NoError(t, err)

	txs, err := store.ListTransactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, int64(1), txs[0].DisplayID)
	assert.Equal(t, int64(2), txs[1].DisplayID)

	assert.Equal(t, "45.5", txs[0].Amount.String())
	assert.Equal(t, "Trader Joe's", txs[0].Merchant)
	assert.Equal(t, "weekly shop", txs[0].Description)
	assert.Equal(t, first.TransactionDate, txs[0].TransactionDate)

	assert.Equal(t, "12.99", txs[1].Amount.String())
	assert.Empty(t, txs[1].Merchant)
	assert.Empty(t, txs[1].Description)
}

func TestListTransactions_EmptyForUnknownUser(t *testing.T) {
	store := newTestStore(t)

	txs, err := store.ListTransactions(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
