package services

import (
	"strings"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/pkg/ctxutil"
)

const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

var tierRank = map[string]int{
	TierFree:       0,
	TierPro:        1,
	TierEnterprise: 2,
}

// NormalizeTier lowercases a tier name. Unknown or empty tiers are free.
func NormalizeTier(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if _, ok := tierRank[t]; !ok {
		return TierFree
	}
	return t
}

// EffectiveTier is the caller's tier at now. A paid tier whose subscription has lapsed counts as
// free; expired reports that case so callers can point at billing instead of pricing.
func EffectiveTier(rd *ctxutil.RequestData, now time.Time) (tier string, expired bool) {
	if rd == nil {
		return TierFree, false
	}
	tier = NormalizeTier(rd.Tier)
	if tier != TierFree && rd.SubscriptionExpiresAt != nil && !rd.SubscriptionExpiresAt.After(now) {
		return TierFree, true
	}
	return tier, false
}

// HasTier reports whether the caller's effective tier is at least min.
func HasTier(rd *ctxutil.RequestData, min string, now time.Time) (ok bool, expired bool) {
	tier, expired := EffectiveTier(rd, now)
	return tierRank[tier] >= tierRank[NormalizeTier(min)], expired
}
