package usagegate_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arcanahq/usagegate"
)

func TestNewRejection(t *testing.T) {
	p := usagegate.Principal{ID: "u1", Tier: usagegate.TierPro, Status: "canceled"}
	d := usagegate.Decision{
		Outcome:     usagegate.OutcomeRejected,
		Used:        5,
		Limit:       5,
		ResetAt:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		TierLimited: true,
		Message:     "Monthly reading limit of 5 reached.",
	}

	r := usagegate.NewRejection(p, d)
	require.Equal(t, d.Message, r.Error)
	require.True(t, r.TierLimited)
	require.Equal(t, usagegate.TierPro, r.CurrentTier)
	require.Equal(t, usagegate.TierFree, r.EffectiveTier)
	require.NotNil(t, r.Limit)
	require.Equal(t, int64(5), *r.Limit)
	require.Equal(t, "2025-04-01T00:00:00Z", r.ResetAt)

	body, err := json.Marshal(r)
	require.NoError(t, err)
	require.Contains(t, string(body), `"tierLimited":true`)
	require.Contains(t, string(body), `"effectiveTier":"free"`)
}

func TestNewRejectionUnlimitedHasNullLimit(t *testing.T) {
	r := usagegate.NewRejection(usagegate.Principal{Tier: usagegate.TierPro, Status: usagegate.StatusActive}, usagegate.Decision{
		Outcome: usagegate.OutcomeRejected,
		Limit:   usagegate.Unlimited,
	})
	require.Nil(t, r.Limit)

	body, err := json.Marshal(r)
	require.NoError(t, err)
	require.Contains(t, string(body), `"limit":null`)
}

func TestDecisionErr(t *testing.T) {
	require.NoError(t, usagegate.Decision{Outcome: usagegate.OutcomeAllowed}.Err())
	require.NoError(t, usagegate.Decision{Outcome: usagegate.OutcomeDegraded}.Err())
	require.ErrorIs(t, usagegate.Decision{Outcome: usagegate.OutcomeRejected}.Err(), usagegate.ErrLimitReached)
}

func TestRetryAfterSeconds(t *testing.T) {
	require.Zero(t, usagegate.Decision{}.RetryAfterSeconds())
	require.Equal(t, int64(1), usagegate.Decision{RetryAfter: 200 * time.Millisecond}.RetryAfterSeconds())
	require.Equal(t, int64(43), usagegate.Decision{RetryAfter: 42*time.Second + time.Millisecond}.RetryAfterSeconds())
}
