/*
Package sqlite provides the SQLite-backed relational store.

PURPOSE:
  Implements the persistence contracts (persist.Store, classify.Cache)
  on SQLite. The same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  users         Upserted user profiles
  transactions  One row per saved transaction; display_id is allocated
                per user and protected by idx_user_display
  intent_cache  Versioned model resolutions (created lazily, see cache.go)

DISPLAY-ID ALLOCATION:
  The next display id is computed as MAX(display_id)+1 for the user and
  inserted under a UNIQUE(user_id, display_id) index. Two concurrent
  savers can compute the same next value; the loser's insert fails with
  a unique-constraint violation that this package maps onto
  intent.ErrDisplayIDConflict. Only that specific index maps to the
  retryable sentinel - any other unique violation stays a plain error.

WAL MODE:
  The database is opened with WAL so readers don't block and crash
  recovery is sane. ":memory:" is supported for tests; it pins the pool
  to one connection so every handle sees the same database.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/intent-engine/intent"
	"github.com/warp/intent-engine/persist"
)

// Store implements the storage contracts using SQLite.
type Store struct {
	db *sql.DB

	cacheGuard initGuard
}

// New opens (or creates) the database at dbPath and migrates the core
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pool connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the core schema. The intent_cache table is created
// lazily on first use (cache.go).
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		display_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		merchant TEXT,
		category TEXT NOT NULL DEFAULT 'other',
		description TEXT,
		transaction_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_user_display
		ON transactions(user_id, display_id);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_date
		ON transactions(user_id, transaction_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

// UpsertUser creates or refreshes a user profile.
func (s *Store) UpsertUser(ctx context.Context, user persist.UserProfile) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, username, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			username = excluded.username,
			updated_at = excluded.updated_at
	`, user.ID, user.FirstName, user.Username, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// InsertTransaction stores one transaction, allocating the next display
// id for the user. On a display-id race the returned error matches
// intent.ErrDisplayIDConflict; the persistence engine owns the retry.
func (s *Store) InsertTransaction(ctx context.Context, rec persist.TransactionRecord) (persist.InsertedRef, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(display_id), 0) + 1 FROM transactions WHERE user_id = ?`,
		rec.UserID,
	).Scan(&next)
	if err != nil {
		return persist.InsertedRef{}, fmt.Errorf("failed to allocate display id for user %d: %w", rec.UserID, err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, user_id, display_id, amount, currency, merchant, category, description, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		rec.UserID,
		next,
		rec.Amount.String(),
		rec.Currency,
		nullString(rec.Merchant),
		rec.Category,
		nullString(rec.Description),
		rec.TransactionDate.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isDisplayIDConflict(err) {
			return persist.InsertedRef{}, fmt.Errorf("display id %d taken for user %d: %w", next, rec.UserID, intent.ErrDisplayIDConflict)
		}
		return persist.InsertedRef{}, fmt.Errorf("failed to insert transaction: %w", err)
	}

	return persist.InsertedRef{ID: id, DisplayID: next}, nil
}

// StoredTransaction is one persisted row.
type StoredTransaction struct {
	ID              string
	UserID          int64
	DisplayID       int64
	Amount          decimal.Decimal
	Currency        string
	Merchant        string
	Category        string
	Description     string
	TransactionDate time.Time
	CreatedAt       time.Time
}

// ListTransactions returns a user's transactions in display-id order.
func (s *Store) ListTransactions(ctx context.Context, userID int64) ([]StoredTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, display_id, amount, currency,
		       COALESCE(merchant, ''), category, COALESCE(description, ''),
		       transaction_date, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY display_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []StoredTransaction
	for rows.Next() {
		var tx StoredTransaction
		var amount, txDate, createdAt string
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.DisplayID, &amount, &tx.Currency,
			&tx.Merchant, &tx.Category, &tx.Description, &txDate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Amount, _ = decimal.NewFromString(amount)
		tx.TransactionDate, _ = time.Parse(time.RFC3339Nano, txDate)
		tx.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// isDisplayIDConflict recognizes a violation of idx_user_display and
// nothing else. Both the driver's typed error and the message are
// checked, so an unrelated unique index never triggers a retry.
func isDisplayIDConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
			return false
		}
	} else if !strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return false
	}
	return strings.Contains(err.Error(), "transactions.user_id") &&
		strings.Contains(err.Error(), "transactions.display_id")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
