// Package counter provides an in-memory CounterStore for tests and
// single-process deployments. Durable backends live in the sqlite and
// postgres subpackages.
package counter

import (
	"context"
	"sync"

	"github.com/arcanahq/usagegate"
)

// MemoryStore is an in-memory CounterStore. The mutex gives Increment the
// same atomicity the SQL backends get from a conditional write.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*usagegate.UsageRow
}

var _ usagegate.CounterStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*usagegate.UsageRow)}
}

func rowKey(principalID, month string) string {
	return principalID + "|" + month
}

// Usage returns a copy of the row, or nil if none exists.
func (s *MemoryStore) Usage(_ context.Context, principalID, month string) (*usagegate.UsageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[rowKey(principalID, month)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

// Increment adds 1 to the named counter iff below the ceiling, creating
// the row lazily on first increment.
func (s *MemoryStore) Increment(_ context.Context, args usagegate.IncrementArgs) (bool, error) {
	if err := validCounter(args.Counter); err != nil {
		return false, err
	}
	if args.Limit == 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nowSec := args.NowMs / 1000
	key := rowKey(args.PrincipalID, args.Month)
	row, ok := s.rows[key]
	if !ok {
		row = &usagegate.UsageRow{
			PrincipalID: args.PrincipalID,
			Month:       args.Month,
			CreatedAt:   nowSec,
			UpdatedAt:   nowSec,
		}
		s.rows[key] = row
	}

	current := counterField(row, args.Counter)
	if args.Limit != usagegate.Unlimited && *current >= args.Limit {
		return false, nil
	}
	*current++
	row.UpdatedAt = nowSec
	return true, nil
}

// Decrement subtracts 1, clamped at zero. Missing rows are a no-op.
func (s *MemoryStore) Decrement(_ context.Context, principalID, month string, counter usagegate.Counter, nowMs int64) error {
	if err := validCounter(counter); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[rowKey(principalID, month)]
	if !ok {
		return nil
	}
	current := counterField(row, counter)
	if *current > 0 {
		*current--
	}
	row.UpdatedAt = nowMs / 1000
	return nil
}

func counterField(row *usagegate.UsageRow, c usagegate.Counter) *int64 {
	switch c {
	case usagegate.CounterReadings:
		return &row.Readings
	case usagegate.CounterTTS:
		return &row.TTS
	default:
		return &row.APICalls
	}
}

func validCounter(c usagegate.Counter) error {
	switch c {
	case usagegate.CounterReadings, usagegate.CounterTTS, usagegate.CounterAPICalls:
		return nil
	default:
		return usagegate.ErrUnknownCounter
	}
}
