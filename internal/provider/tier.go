package provider

import "strings"

const (
	TierFree       = "free"
	TierStarter    = "starter"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
	TierUnknown    = "unknown"
)

// NormalizeTier collapses plan name synonyms onto the canonical tiers.
func NormalizeTier(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case "", "free", "trial":
		return TierFree
	case "starter", "basic":
		return TierStarter
	case "pro", "premium", "business":
		return TierPro
	case "enterprise", "team":
		return TierEnterprise
	default:
		return TierUnknown
	}
}

func IsPaidTier(tier string) bool {
	switch NormalizeTier(tier) {
	case TierStarter, TierPro, TierEnterprise:
		return true
	}
	return false
}
