package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/arcanahq/usagegate"
	"github.com/arcanahq/usagegate/counter/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := sqlite.New(db)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func incrArgs(c usagegate.Counter, limit int64) usagegate.IncrementArgs {
	return usagegate.IncrementArgs{
		PrincipalID: "u1",
		Month:       "2025-03",
		Counter:     c,
		Limit:       limit,
		NowMs:       1_742_040_000_000,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	row, err := s.Usage(ctx, "u1", "2025-03")
	require.NoError(t, err)
	require.Nil(t, row)

	changed, err := s.Increment(ctx, incrArgs(usagegate.CounterReadings, 5))
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.Increment(ctx, incrArgs(usagegate.CounterTTS, 20))
	require.NoError(t, err)
	require.True(t, changed)

	row, err = s.Usage(ctx, "u1", "2025-03")
	require.NoError(t, err)
	require.Equal(t, int64(1), row.Readings)
	require.Equal(t, int64(1), row.TTS)
	require.Zero(t, row.APICalls)
	require.Equal(t, int64(1_742_040_000), row.UpdatedAt)
}

func TestStoreCeiling(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		changed, err := s.Increment(ctx, incrArgs(usagegate.CounterReadings, 3))
		require.NoError(t, err)
		require.True(t, changed)
	}

	changed, err := s.Increment(ctx, incrArgs(usagegate.CounterReadings, 3))
	require.NoError(t, err)
	require.False(t, changed)

	row, err := s.Usage(ctx, "u1", "2025-03")
	require.NoError(t, err)
	require.Equal(t, int64(3), row.Readings)
}

func TestStoreConcurrentCeiling(t *testing.T) {
	s := newTestStore(t)

	var changed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Increment(context.Background(), incrArgs(usagegate.CounterReadings, 5))
			require.NoError(t, err)
			if ok {
				changed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(5), changed.Load())
}

func TestStoreUnlimitedAndZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	changed, err := s.Increment(ctx, incrArgs(usagegate.CounterAPICalls, usagegate.Unlimited))
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.Increment(ctx, incrArgs(usagegate.CounterAPICalls, 0))
	require.NoError(t, err)
	require.False(t, changed)
}

func TestStoreDecrementClamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Increment(ctx, incrArgs(usagegate.CounterTTS, 10))
	require.NoError(t, err)

	require.NoError(t, s.Decrement(ctx, "u1", "2025-03", usagegate.CounterTTS, 0))
	require.NoError(t, s.Decrement(ctx, "u1", "2025-03", usagegate.CounterTTS, 0))

	row, err := s.Usage(ctx, "u1", "2025-03")
	require.NoError(t, err)
	require.Zero(t, row.TTS)
}

func TestStoreUnknownCounter(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Increment(context.Background(), incrArgs(usagegate.Counter("spins"), 5))
	require.ErrorIs(t, err, usagegate.ErrUnknownCounter)
}

func TestStoreMissingSchemaIsUnavailable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	// EnsureSchema deliberately not run.
	s := sqlite.New(db)

	_, err = s.Increment(context.Background(), incrArgs(usagegate.CounterReadings, 5))
	require.Error(t, err)
	require.True(t, usagegate.IsUnavailable(err), "a missing table means a pending migration, not a hard failure")

	_, err = s.Usage(context.Background(), "u1", "2025-03")
	require.True(t, usagegate.IsUnavailable(err))
}

func TestStoreOtherErrorsAreNotUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("INSERT INTO usage_counters").WillReturnError(errors.New("disk I/O error"))

	s := sqlite.New(db)
	_, err = s.Increment(context.Background(), incrArgs(usagegate.CounterReadings, 5))
	require.Error(t, err)
	require.False(t, usagegate.IsUnavailable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
