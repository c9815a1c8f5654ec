package usagegate

// QuotaPolicy is the set of numeric ceilings derived from a tier. Derived,
// never stored.
type QuotaPolicy struct {
	MonthlyReadings  int64 // Unlimited for no ceiling
	MonthlyTTS       int64
	APICallsPerMonth int64
	APIAccess        bool
}

// EffectiveTier resolves the tier used for policy lookup. Entitlement is a
// function of (tier, status), never tier alone: anything but an active
// subscription downgrades to free.
func EffectiveTier(tier Tier, status string) Tier {
	if status != StatusActive {
		return TierFree
	}
	return tier
}

// PolicyFor maps a principal's (tier, status) to its quota policy.
// Unknown tiers fall back to the free policy.
func (c Config) PolicyFor(tier Tier, status string) QuotaPolicy {
	limits, ok := c.Tiers[EffectiveTier(tier, status)]
	if !ok {
		limits, ok = c.Tiers[TierFree]
		if !ok {
			return QuotaPolicy{}
		}
	}
	return QuotaPolicy{
		MonthlyReadings:  limits.MonthlyReadings,
		MonthlyTTS:       limits.MonthlyTTS,
		APICallsPerMonth: limits.APICallsPerMonth,
		APIAccess:        limits.APIAccess,
	}
}
