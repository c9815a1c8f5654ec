// Package sqlite provides a SQLite-backed CounterStore.
//
// Counter state lives in a single usage_counters table keyed by
// (principal_id, month). The ceiling-guarded increment is one conditional
// upsert, so concurrent callers at the limit boundary are serialized by the
// database and never both win the last slot.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/arcanahq/usagegate"
)

// Store is a SQLite-backed CounterStore.
type Store struct {
	db *sql.DB
}

var _ usagegate.CounterStore = (*Store)(nil)

// columns whitelists counter names against column names.
var columns = map[usagegate.Counter]string{
	usagegate.CounterReadings: "readings_count",
	usagegate.CounterTTS:      "tts_count",
	usagegate.CounterAPICalls: "api_calls_count",
}

// Open opens the database file with WAL mode and a single writer
// connection, and returns a Store. The schema is not created; call
// EnsureSchema, or rely on migrations having run.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("usagegate/sqlite: open: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the usage_counters table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_counters (
		principal_id TEXT NOT NULL,
		month TEXT NOT NULL,
		readings_count INTEGER NOT NULL DEFAULT 0,
		tts_count INTEGER NOT NULL DEFAULT 0,
		api_calls_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (principal_id, month)
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("usagegate/sqlite: ensure schema: %w", err)
	}
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Usage returns the row for (principalID, month), or nil if none exists.
func (s *Store) Usage(ctx context.Context, principalID, month string) (*usagegate.UsageRow, error) {
	row := usagegate.UsageRow{PrincipalID: principalID, Month: month}
	err := s.db.QueryRowContext(ctx, `
		SELECT readings_count, tts_count, api_calls_count, created_at, updated_at
		FROM usage_counters
		WHERE principal_id = ? AND month = ?`,
		principalID, month,
	).Scan(&row.Readings, &row.TTS, &row.APICalls, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("usage", err)
	}
	return &row, nil
}

// Increment adds 1 to the named counter iff the ceiling allows it, creating
// the row on first use. The whole operation is one conditional upsert.
func (s *Store) Increment(ctx context.Context, args usagegate.IncrementArgs) (bool, error) {
	col, ok := columns[args.Counter]
	if !ok {
		return false, usagegate.ErrUnknownCounter
	}
	if args.Limit == 0 {
		return false, nil
	}

	nowSec := args.NowMs / 1000
	q := fmt.Sprintf(`
		INSERT INTO usage_counters (principal_id, month, %[1]s, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (principal_id, month) DO UPDATE SET
			%[1]s = %[1]s + 1,
			updated_at = excluded.updated_at
		WHERE ? < 0 OR usage_counters.%[1]s < ?`, col)

	res, err := s.db.ExecContext(ctx, q,
		args.PrincipalID, args.Month, nowSec, nowSec, args.Limit, args.Limit)
	if err != nil {
		return false, classify("increment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("increment", err)
	}
	return n > 0, nil
}

// Decrement subtracts 1 from the named counter, clamped at zero.
func (s *Store) Decrement(ctx context.Context, principalID, month string, counter usagegate.Counter, nowMs int64) error {
	col, ok := columns[counter]
	if !ok {
		return usagegate.ErrUnknownCounter
	}

	q := fmt.Sprintf(`
		UPDATE usage_counters SET
			%[1]s = max(%[1]s - 1, 0),
			updated_at = ?
		WHERE principal_id = ? AND month = ?`, col)

	if _, err := s.db.ExecContext(ctx, q, nowMs/1000, principalID, month); err != nil {
		return classify("decrement", err)
	}
	return nil
}

// classify maps a missing-schema condition (pending migration) to
// ErrStoreUnavailable so callers fail open instead of erroring.
func classify(op string, err error) error {
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("usagegate/sqlite: %s: %v: %w", op, err, usagegate.ErrStoreUnavailable)
	}
	return fmt.Errorf("usagegate/sqlite: %s: %w", op, err)
}
