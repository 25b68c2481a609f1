package classify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/intent-engine/classify"
	"github.com/warp/intent-engine/intent"
	"github.com/warp/intent-engine/logging"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// fakeGenerator returns a canned reply and counts calls.
type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, system, content string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// mapCache is an in-memory classify.Cache.
type mapCache struct {
	entries map[string]classify.Entry
	getErr  error
	putErr  error
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]classify.Entry)}
}

func (m *mapCache) Get(ctx context.Context, key string) (classify.Entry, bool, error) {
	if m.getErr != nil {
		return classify.Entry{}, false, m.getErr
	}
	entry, ok := m.entries[key]
	return entry, ok, nil
}

func (m *mapCache) Put(ctx context.Context, entry classify.Entry) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.entries[entry.Key] = entry
	return nil
}

const otherReply = `{"kind":"other","confidence":"low","reason":"unclear"}`

func newTestClassifier(gen classify.TextGenerator, cache classify.Cache) *classify.Classifier {
	return classify.NewClassifier(gen, cache, logging.NewWithWriter(testWriter{}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

var classifyRef = time.Date(2025, time.February, 15, 12, 0, 0, 0, time.UTC)

// =============================================================================
// CACHE SHIELD TESTS
// =============================================================================

func TestClassify_MissCallsModelAndWritesThrough(t *testing.T) {
	// GIVEN: An empty cache
	// WHEN: Classifying a message
	// THEN: The model is called once and the result is cached

	gen := &fakeGenerator{reply: otherReply}
	cache := newMapCache()
	c := newTestClassifier(gen, cache)

	resolved, fromCache := c.Classify(context.Background(), 7, "mystery text", classifyRef)

	require.NotNil(t, resolved)
	assert.False(t, fromCache)
	assert.Equal(t, intent.KindOther, resolved.Kind)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, cache.puts)

	entry := cache.entries[classify.CacheKey(7, "mystery text")]
	assert.Equal(t, classify.SchemaVersion, entry.Version)
}

func TestClassify_HitSkipsModel(t *testing.T) {
	gen := &fakeGenerator{reply: otherReply}
	cache := newMapCache()
	c := newTestClassifier(gen, cache)

	first, fromCache := c.Classify(context.Background(), 7, "mystery text", classifyRef)
	require.NotNil(t, first)
	require.False(t, fromCache)

	second, fromCache := c.Classify(context.Background(), 7, "mystery text", classifyRef)
	require.NotNil(t, second)
	assert.True(t, fromCache)
	assert.Equal(t, *first, *second)
	assert.Equal(t, 1, gen.calls, "second call must be served from cache")
}

func TestClassify_VersionMismatchIsAMiss(t *testing.T) {
	// A schema bump invalidates every existing entry; the model is
	// consulted again and the entry overwritten at the current version.
	gen := &fakeGenerator{reply: otherReply}
	cache := newMapCache()
	c := newTestClassifier(gen, cache)

	key := classify.CacheKey(7, "mystery text")
	payload, err := classify.EncodeIntent(intent.NewOtherIntent(intent.ConfidenceLow, "stale"))
	require.NoError(t, err)
	cache.entries[key] = classify.Entry{Key: key, Payload: payload, Version: classify.SchemaVersion - 1}

	resolved, fromCache := c.Classify(context.Background(), 7, "mystery text", classifyRef)

	require.NotNil(t, resolved)
	assert.False(t, fromCache)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, classify.SchemaVersion, cache.entries[key].Version, "entry rewritten at current version")
}

func TestClassify_CorruptCachePayloadIsAMiss(t *testing.T) {
	gen := &fakeGenerator{reply: otherReply}
	cache := newMapCache()
	c := newTestClassifier(gen, cache)

	key := classify.CacheKey(7, "mystery text")
	cache.entries[key] = classify.Entry{Key: key, Payload: []byte("{not json"), Version: classify.SchemaVersion}

	resolved, fromCache := c.Classify(context.Background(), 7, "mystery text", classifyRef)

	require.NotNil(t, resolved)
	assert.False(t, fromCache)
	assert.Equal(t, 1, gen.calls)
}

func TestClassify_CacheErrorsAreSoft(t *testing.T) {
	// Read and write failures never block classification.
	gen := &fakeGenerator{reply: otherReply}
	cache := newMapCache()
	cache.getErr = errors.New("disk on fire")
	cache.putErr = errors.New("disk still on fire")
	c := newTestClassifier(gen, cache)

	resolved, fromCache := c.Classify(context.Background(), 7, "mystery text", classifyRef)

	require.NotNil(t, resolved)
	assert.False(t, fromCache)
	assert.Equal(t, 1, gen.calls)
}

func TestClassify_KeysAreUserScoped(t *testing.T) {
	// The same text for two users resolves independently.
	gen := &fakeGenerator{reply: otherReply}
	cache := newMapCache()
	c := newTestClassifier(gen, cache)

	c.Classify(context.Background(), 1, "same text", classifyRef)
	c.Classify(context.Background(), 2, "same text", classifyRef)

	assert.Equal(t, 2, gen.calls, "no cross-user cache sharing")
	assert.NotEqual(t, classify.CacheKey(1, "same text"), classify.CacheKey(2, "same text"))
}

func TestCacheKey_NormalizesText(t *testing.T) {
	assert.Equal(t,
		classify.CacheKey(1, "  Spent $45 HERE  "),
		classify.CacheKey(1, "spent $45 here"))
}

// =============================================================================
// FAILURE MODES
// =============================================================================

func TestClassify_ModelErrorYieldsNoResult(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("transport down")}
	c := newTestClassifier(gen, newMapCache())

	resolved, fromCache := c.Classify(context.Background(), 7, "text", classifyRef)

	assert.Nil(t, resolved)
	assert.False(t, fromCache)
}

func TestClassify_UndecodableOutputYieldsNoResultAndNoCacheWrite(t *testing.T) {
	gen := &fakeGenerator{reply: "sorry, I can't help with that"}
	cache := newMapCache()
	c := newTestClassifier(gen, cache)

	resolved, _ := c.Classify(context.Background(), 7, "text", classifyRef)

	assert.Nil(t, resolved)
	assert.Zero(t, cache.puts, "rejected output must not poison the cache")
}

func TestClassify_DisabledWithoutGenerator(t *testing.T) {
	var nilClassifier *classify.Classifier
	assert.False(t, nilClassifier.Enabled())

	c := newTestClassifier(nil, newMapCache())
	assert.False(t, c.Enabled())

	resolved, fromCache := c.Classify(context.Background(), 7, "text", classifyRef)
	assert.Nil(t, resolved)
	assert.False(t, fromCache)
}

func TestClassify_NilCacheStillClassifies(t *testing.T) {
	gen := &fakeGenerator{reply: otherReply}
	c := newTestClassifier(gen, nil)

	resolved, fromCache := c.Classify(context.Background(), 7, "text", classifyRef)

	require.NotNil(t, resolved)
	assert.False(t, fromCache)
}
