package sqlite_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/intent-engine/classify"
)

// =============================================================================
// INTENT CACHE TESTS
// =============================================================================

func TestCache_MissOnEmptyStore(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.Get(context.Background(), "no-such-key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := classify.Entry{
		Key:     classify.CacheKey(1, "spent $45"),
		Payload: []byte(`{"kind":"other","confidence":"low","reason":"x"}`),
		Version: classify.SchemaVersion,
	}
	require.NoError(t, store.Put(ctx, entry))

	got, found, err := store.Get(ctx, entry.Key)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, entry.Key, got.Key)
	assert.Equal(t, entry.Payload, got.Payload)
	assert.Equal(t, classify.SchemaVersion, got.Version)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestCache_PutOverwrites(t *testing.T) {
	// Last write wins; the version travels with the payload.
	store := newTestStore(t)
	ctx := context.Background()

	key := classify.CacheKey(1, "spent $45")
	require.NoError(t, store.Put(ctx, classify.Entry{Key: key, Payload: []byte(`old`), Version: 1}))
	require.NoError(t, store.Put(ctx, classify.Entry{Key: key, Payload: []byte(`new`), Version: 2}))

	got, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`new`), got.Payload)
	assert.Equal(t, 2, got.Version)
}

func TestCache_ConcurrentFirstUse(t *testing.T) {
	// The cache table is created lazily; a burst of first callers must
	// all succeed with exactly one initialization between them.
	store := newTestStore(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				errs[i] = store.Put(ctx, classify.Entry{
					Key:     classify.CacheKey(int64(i), "text"),
					Payload: []byte(`{}`),
					Version: classify.SchemaVersion,
				})
				return
			}
			_, _, errs[i] = store.Get(ctx, classify.CacheKey(int64(i), "text"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
}
