/*
cache.go - Versioned intent cache table with lazy, idempotent setup

PURPOSE:
  Implements classify.Cache on SQLite. The intent_cache table is not part
  of the core migration: it is created on first use by a memoized
  initializer. Concurrent first callers share one in-flight attempt
  rather than racing to create the table twice, and a failed attempt
  clears the memo so a later call retries cleanly.

WRITE SEMANTICS:
  Put is last-write-wins (ON CONFLICT DO UPDATE), no locking. The cache
  is an accelerator, not a correctness boundary.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warp/intent-engine/classify"
)

// =============================================================================
// INIT GUARD - Resettable memoized initialization
// =============================================================================

// initGuard memoizes a one-time initialization. Success is remembered
// forever; failure resets the guard so the next caller tries again.
type initGuard struct {
	mu       sync.Mutex
	ready    bool
	inflight chan struct{}
}

// run executes fn at most once concurrently. Callers arriving during an
// in-flight attempt wait for it; if it failed, the next caller starts a
// fresh attempt of its own.
func (g *initGuard) run(ctx context.Context, fn func() error) error {
	for {
		g.mu.Lock()
		if g.ready {
			g.mu.Unlock()
			return nil
		}
		if g.inflight == nil {
			done := make(chan struct{})
			g.inflight = done
			g.mu.Unlock()

			err := fn()

			g.mu.Lock()
			g.ready = err == nil
			g.inflight = nil
			g.mu.Unlock()
			close(done)

			return err
		}
		wait := g.inflight
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// =============================================================================
// CACHE TABLE
// =============================================================================

func (s *Store) ensureCacheTable(ctx context.Context) error {
	return s.cacheGuard.run(ctx, func() error {
		_, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS intent_cache (
				key TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				version INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)
		`)
		if err != nil {
			return fmt.Errorf("failed to create intent_cache: %w", err)
		}
		return nil
	})
}

// Get returns the cache entry for key, if any. Version checking is the
// caller's concern: the store returns whatever it has.
func (s *Store) Get(ctx context.Context, key string) (classify.Entry, bool, error) {
	if err := s.ensureCacheTable(ctx); err != nil {
		return classify.Entry{}, false, err
	}

	var entry classify.Entry
	var payload, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT key, payload, version, created_at, updated_at
		FROM intent_cache WHERE key = ?
	`, key).Scan(&entry.Key, &payload, &entry.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return classify.Entry{}, false, nil
		}
		return classify.Entry{}, false, fmt.Errorf("failed to read intent_cache: %w", err)
	}

	entry.Payload = []byte(payload)
	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	entry.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return entry, true, nil
}

// Put stores an entry, overwriting any existing one.
func (s *Store) Put(ctx context.Context, entry classify.Entry) error {
	if err := s.ensureCacheTable(ctx); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intent_cache (key, payload, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, entry.Key, string(entry.Payload), entry.Version, now, now)
	if err != nil {
		return fmt.Errorf("failed to write intent_cache: %w", err)
	}
	return nil
}
