// Package postgres provides a PostgreSQL-backed CounterStore on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcanahq/usagegate"
)

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// Store is a PostgreSQL-backed CounterStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ usagegate.CounterStore = (*Store)(nil)

var columns = map[usagegate.Counter]string{
	usagegate.CounterReadings: "readings_count",
	usagegate.CounterTTS:      "tts_count",
	usagegate.CounterAPICalls: "api_calls_count",
}

// Connect opens a pool against the given URL and pings it.
func Connect(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("usagegate/postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("usagegate/postgres: ping: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the usage_counters table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_counters (
		principal_id TEXT NOT NULL,
		month TEXT NOT NULL,
		readings_count BIGINT NOT NULL DEFAULT 0,
		tts_count BIGINT NOT NULL DEFAULT 0,
		api_calls_count BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (principal_id, month)
	);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("usagegate/postgres: ensure schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Usage returns the row for (principalID, month), or nil if none exists.
func (s *Store) Usage(ctx context.Context, principalID, month string) (*usagegate.UsageRow, error) {
	row := usagegate.UsageRow{PrincipalID: principalID, Month: month}
	err := s.pool.QueryRow(ctx, `
		SELECT readings_count, tts_count, api_calls_count, created_at, updated_at
		FROM usage_counters
		WHERE principal_id = $1 AND month = $2`,
		principalID, month,
	).Scan(&row.Readings, &row.TTS, &row.APICalls, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("usage", err)
	}
	return &row, nil
}

// Increment adds 1 to the named counter iff the ceiling allows it, creating
// the row on first use. One conditional upsert, so the ceiling holds under
// concurrent callers.
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
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (principal_id, month) DO UPDATE SET
			%[1]s = usage_counters.%[1]s + 1,
			updated_at = excluded.updated_at
		WHERE $4::bigint < 0 OR usage_counters.%[1]s < $4::bigint`, col)

	tag, err := s.pool.Exec(ctx, q, args.PrincipalID, args.Month, nowSec, args.Limit)
	if err != nil {
		return false, classify("increment", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Decrement subtracts 1 from the named counter, clamped at zero.
func (s *Store) Decrement(ctx context.Context, principalID, month string, counter usagegate.Counter, nowMs int64) error {
	col, ok := columns[counter]
	if !ok {
		return usagegate.ErrUnknownCounter
	}

	q := fmt.Sprintf(`
		UPDATE usage_counters SET
			%[1]s = GREATEST(%[1]s - 1, 0),
			updated_at = $1
		WHERE principal_id = $2 AND month = $3`, col)

	if _, err := s.pool.Exec(ctx, q, nowMs/1000, principalID, month); err != nil {
		return classify("decrement", err)
	}
	return nil
}

// classify maps a missing-schema condition (pending migration) to
// ErrStoreUnavailable so callers fail open instead of erroring.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("usagegate/postgres: %s: %v: %w", op, err, usagegate.ErrStoreUnavailable)
	}
	return fmt.Errorf("usagegate/postgres: %s: %w", op, err)
}
