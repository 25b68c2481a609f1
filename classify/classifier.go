/*
classifier.go - Model fallback with cache shield

PURPOSE:
  Invoked only when the rule detector's confidence is low. Consults the
  versioned cache first; on a miss it calls the text-generation
  collaborator, strictly decodes the reply, and writes the result back
  through the cache.

CONTRACT:
  Classify never raises to its caller. Every failure mode - cache error,
  model timeout, transport error, undecodable output - degrades to
  (nil, false) and the pipeline keeps the rule-based result.
*/
package classify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/intent-engine/intent"
)

// DefaultCallTimeout bounds a single model call.
const DefaultCallTimeout = 15 * time.Second

// Classifier resolves low-confidence messages through the model, shielded
// by the cache. Cache and Generator may each be nil (disabled).
type Classifier struct {
	Generator TextGenerator
	Cache     Cache
	Timeout   time.Duration
	Log       zerolog.Logger
}

// NewClassifier wires a classifier with the default call timeout.
func NewClassifier(gen TextGenerator, cache Cache, log zerolog.Logger) *Classifier {
	return &Classifier{Generator: gen, Cache: cache, Timeout: DefaultCallTimeout, Log: log}
}

// Enabled reports whether a model is configured at all.
func (c *Classifier) Enabled() bool {
	return c != nil && c.Generator != nil
}

// Classify resolves the message via cache or model. Returns the resolved
// intent and whether it came from the cache; nil means no result and the
// caller keeps its rule-based intent.
func (c *Classifier) Classify(ctx context.Context, userID int64, text string, ref time.Time) (*intent.Intent, bool) {
	if !c.Enabled() {
		return nil, false
	}

	key := CacheKey(userID, text)

	if cached := c.lookup(ctx, key); cached != nil {
		return cached, true
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := c.Generator.Generate(callCtx, SystemPrompt(), UserContent(text, ref))
	if err != nil {
		c.Log.Warn().Err(err).Str("class", intent.ErrModelUnavailable.Error()).Msg("fallback model call failed")
		return nil, false
	}

	resolved := DecodeModelOutput(raw)
	if resolved == nil {
		c.Log.Warn().Str("raw_prefix", truncate(raw, 120)).Msg("fallback model output rejected")
		return nil, false
	}

	c.storeResult(ctx, key, *resolved)
	return resolved, false
}

// lookup returns a decodable, current-version cache entry or nil.
func (c *Classifier) lookup(ctx context.Context, key string) *intent.Intent {
	if c.Cache == nil {
		return nil
	}
	entry, found, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.Log.Warn().Err(err).Msg("intent cache read failed")
		return nil
	}
	if !found || entry.Version != SchemaVersion {
		return nil
	}
	cached, err := DecodeIntent(entry.Payload)
	if err != nil {
		c.Log.Warn().Err(err).Str("key", key).Msg("intent cache payload unreadable")
		return nil
	}
	return cached
}

// storeResult writes through the cache; failures are soft.
func (c *Classifier) storeResult(ctx context.Context, key string, resolved intent.Intent) {
	if c.Cache == nil {
		return
	}
	payload, err := EncodeIntent(resolved)
	if err != nil {
		c.Log.Warn().Err(err).Msg("intent cache encode failed")
		return
	}
	now := time.Now().UTC()
	err = c.Cache.Put(ctx, Entry{
		Key:       key,
		Payload:   payload,
		Version:   SchemaVersion,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		c.Log.Warn().Err(err).Msg("intent cache write failed")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
