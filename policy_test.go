package usagegate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEffectiveTier(t *testing.T) {
	require.Equal(t, TierPro, EffectiveTier(TierPro, StatusActive))
	require.Equal(t, TierPlus, EffectiveTier(TierPlus, StatusActive))

	// Anything but an active subscription is entitled to free only.
	require.Equal(t, TierFree, EffectiveTier(TierPro, "canceled"))
	require.Equal(t, TierFree, EffectiveTier(TierPlus, "past_due"))
	require.Equal(t, TierFree, EffectiveTier(TierPro, ""))
}

func TestPolicyFor(t *testing.T) {
	cfg := DefaultConfig()

	free := cfg.PolicyFor(TierFree, StatusActive)
	require.Equal(t, int64(5), free.MonthlyReadings)
	require.Equal(t, int64(20), free.MonthlyTTS)
	require.False(t, free.APIAccess)

	plus := cfg.PolicyFor(TierPlus, StatusActive)
	require.Equal(t, int64(50), plus.MonthlyReadings)
	require.Equal(t, int64(200), plus.MonthlyTTS)
	require.False(t, plus.APIAccess)

	pro := cfg.PolicyFor(TierPro, StatusActive)
	require.Equal(t, Unlimited, pro.MonthlyReadings)
	require.Equal(t, int64(1000), pro.MonthlyTTS)
	require.Equal(t, int64(5000), pro.APICallsPerMonth)
	require.True(t, pro.APIAccess)
}

func TestPolicyForDowngradesInactive(t *testing.T) {
	cfg := DefaultConfig()

	p := cfg.PolicyFor(TierPro, "canceled")
	require.Equal(t, cfg.PolicyFor(TierFree, StatusActive), p)
	require.False(t, p.APIAccess)
}

func TestPolicyForUnknownTierFallsBackToFree(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, cfg.PolicyFor(TierFree, StatusActive), cfg.PolicyFor(Tier("enterprise"), StatusActive))
}

func TestPolicyForNoTiersConfigured(t *testing.T) {
	var cfg Config
	require.Equal(t, QuotaPolicy{}, cfg.PolicyFor(TierPro, StatusActive))
}
