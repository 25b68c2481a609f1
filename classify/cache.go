/*
Package classify provides the fallback classifier: when the rule detector
is not confident, a text-generation model resolves the message, shielded
by a versioned cache of previous resolutions.

cache.go - Cache contract and key derivation

CACHE SEMANTICS:
  - Best-effort accelerator only. Get/Put failures are soft: logged and
    ignored, classification continues without the cache.
  - An entry is valid only when its version equals SchemaVersion; older
    entries are treated as misses and overwritten on the next Put.
  - Concurrent writers use last-write-wins. A stale entry can only degrade
    classification quality, never persisted data.

KEY SCOPING:
  Keys hash the normalized message text together with the user id, so one
  user's cached resolution can never serve another user's similarly worded
  message.
*/
package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// SchemaVersion is the current intent payload schema. Bump it whenever the
// wire shape changes; all existing cache entries become invalid misses.
const SchemaVersion = 2

// Entry is one cached model resolution.
type Entry struct {
	Key       string
	Payload   []byte // serialized intent
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cache is the versioned key-value store of model resolutions.
type Cache interface {
	// Get returns the entry for key, with found=false on miss.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Put stores an entry, overwriting any existing one (last write wins).
	Put(ctx context.Context, entry Entry) error
}

// CacheKey derives the cache key for a user's message: SHA-256 over the
// user id and the trimmed, lowercased text.
func CacheKey(userID int64, text string) string {
	normalized := strings.TrimSpace(strings.ToLower(text))
	sum := sha256.Sum256([]byte(strconv.FormatInt(userID, 10) + "\n" + normalized))
	return hex.EncodeToString(sum[:])
}
