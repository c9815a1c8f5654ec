package usagegate_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcanahq/usagegate"
	"github.com/arcanahq/usagegate/counter"
)

func newReadingGate(t *testing.T) *usagegate.Gate {
	t.Helper()
	g, err := usagegate.New(testConfig(), usagegate.WithCounterStore(counter.NewMemoryStore()))
	require.NoError(t, err)
	return g
}

func TestEnforceReadingFreeTierSequential(t *testing.T) {
	g := newReadingGate(t)
	ctx := context.Background()
	user := usagegate.Principal{ID: "u1", Tier: usagegate.TierFree, Status: usagegate.StatusActive, Auth: usagegate.AuthSession}

	for i := int64(1); i <= 5; i++ {
		d := g.EnforceReading(ctx, usagegate.ReadingRequest{Principal: user})
		require.Equal(t, usagegate.OutcomeAllowed, d.Outcome)
		require.Equal(t, i, d.Used)
		require.Equal(t, int64(5), d.Limit)
		require.NotNil(t, d.Reservation)
		require.Equal(t, usagegate.ReservationDurable, d.Reservation.Kind)
	}

	d := g.EnforceReading(ctx, usagegate.ReadingRequest{Principal: user})
	require.Equal(t, usagegate.OutcomeRejected, d.Outcome)
	require.False(t, d.Allowed())
	require.True(t, d.TierLimited)
	require.Equal(t, int64(5), d.Used)
	require.Contains(t, d.Message, "Monthly reading limit of 5 reached")
	require.Nil(t, d.Reservation)
}

func TestEnforceReadingConcurrentCeiling(t *testing.T) {
	g := newReadingGate(t)
	user := usagegate.Principal{ID: "u1", Tier: usagegate.TierFree, Status: usagegate.StatusActive}

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := g.EnforceReading(context.Background(), usagegate.ReadingRequest{Principal: user})
			if d.Outcome == usagegate.OutcomeAllowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(5), allowed.Load(), "exactly the limit must win under contention")
}

func TestEnforceReadingGuestIsolation(t *testing.T) {
	g := newReadingGate(t)
	ctx := context.Background()

	guest := func(fp string) usagegate.ReadingRequest {
		return usagegate.ReadingRequest{
			Principal:   usagegate.Principal{Tier: usagegate.TierFree, Auth: usagegate.AuthAnonymous},
			Fingerprint: fp,
		}
	}

	// Guests have no active subscription, so status never matters; they get
	// the free policy, tracked per hashed fingerprint.
	for i := 0; i < 5; i++ {
		require.Equal(t, usagegate.OutcomeAllowed, g.EnforceReading(ctx, guest("client-a")).Outcome)
	}
	require.Equal(t, usagegate.OutcomeRejected, g.EnforceReading(ctx, guest("client-a")).Outcome)

	// A different client starts fresh.
	require.Equal(t, usagegate.OutcomeAllowed, g.EnforceReading(ctx, guest("client-b")).Outcome)
}

func TestReleaseReadingRefunds(t *testing.T) {
	g := newReadingGate(t)
	ctx := context.Background()
	user := usagegate.Principal{ID: "u1", Tier: usagegate.TierFree, Status: usagegate.StatusActive}

	var last *usagegate.Reservation
	for i := 0; i < 5; i++ {
		d := g.EnforceReading(ctx, usagegate.ReadingRequest{Principal: user})
		require.Equal(t, usagegate.OutcomeAllowed, d.Outcome)
		last = d.Reservation
	}

	// Quota exhausted; a downstream failure refunds one slot.
	require.Equal(t, usagegate.OutcomeRejected, g.EnforceReading(ctx, usagegate.ReadingRequest{Principal: user}).Outcome)
	g.ReleaseReading(ctx, last)

	d := g.EnforceReading(ctx, usagegate.ReadingRequest{Principal: user})
	require.Equal(t, usagegate.OutcomeAllowed, d.Outcome)
	require.Equal(t, int64(5), d.Used)
}

func TestEnforceReadingProUnlimited(t *testing.T) {
	g := newReadingGate(t)
	ctx := context.Background()
	user := usagegate.Principal{ID: "pro-1", Tier: usagegate.TierPro, Status: usagegate.StatusActive}

	for i := int64(1); i <= 50; i++ {
		d := g.EnforceReading(ctx, usagegate.ReadingRequest{Principal: user})
		require.Equal(t, usagegate.OutcomeAllowed, d.Outcome)
		require.Equal(t, usagegate.Unlimited, d.Limit)
		require.Equal(t, i, d.Used, "unlimited plans still count usage for display")
		require.Nil(t, d.Reservation, "nothing to refund on an unlimited plan")
	}
}

func TestEnforceReadingInactiveSubscriptionDowngrades(t *testing.T) {
	g := newReadingGate(t)
	ctx := context.Background()
	user := usagegate.Principal{ID: "u1", Tier: usagegate.TierPro, Status: "canceled"}

	for i := 0; i < 5; i++ {
		require.Equal(t, usagegate.OutcomeAllowed, g.EnforceReading(ctx, usagegate.ReadingRequest{Principal: user}).Outcome)
	}
	d := g.EnforceReading(ctx, usagegate.ReadingRequest{Principal: user})
	require.Equal(t, usagegate.OutcomeRejected, d.Outcome)
	require.Equal(t, int64(5), d.Limit, "canceled pro is entitled to free limits only")
}

func TestEnforceReadingAnonymousWithoutFingerprint(t *testing.T) {
	g := newReadingGate(t)

	// No id and no fingerprint leaves nothing to key a counter on.
	d := g.EnforceReading(context.Background(), usagegate.ReadingRequest{
		Principal: usagegate.Principal{Tier: usagegate.TierFree, Auth: usagegate.AuthAnonymous},
	})
	require.Equal(t, usagegate.OutcomeDegraded, d.Outcome)
	require.True(t, d.Allowed())
}

func ExampleGate_EnforceReading() {
	cfg := usagegate.DefaultConfig()
	cfg.FingerprintSecret = "example-secret"
	g, _ := usagegate.New(cfg, usagegate.WithCounterStore(counter.NewMemoryStore()))

	user := usagegate.Principal{ID: "u1", Tier: usagegate.TierFree, Status: usagegate.StatusActive}
	d := g.EnforceReading(context.Background(), usagegate.ReadingRequest{Principal: user})
	fmt.Println(d.Outcome, d.Used, d.Limit)
	// Output: allowed 1 5
}
