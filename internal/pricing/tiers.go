package pricing

import (
	"sort"

	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
)

// ===============================
// Group Tier Resolver
// ===============================

// ResolveTier returns the unique tier covering headcount. A validated tier
// set guarantees at most one match.
func ResolveTier(tiers []models.GroupPricingTier, headcount int) (*models.GroupPricingTier, error) {
	if headcount < 2 {
		return nil, httperr.ErrBusiness("invalid_headcount")
	}

	for i := range tiers {
		t := &tiers[i]
		if headcount < t.MinParticipants {
			continue
		}
		if t.MaxParticipants == nil || headcount <= *t.MaxParticipants {
			return t, nil
		}
	}

	return nil, httperr.ErrBusiness("no_matching_tier")
}

// ValidateTierSet checks a full replacement set: every tier well-formed,
// no overlaps once sorted, only the last tier unbounded. Gaps are allowed.
func ValidateTierSet(tiers []models.GroupPricingTier) error {
	for _, t := range tiers {
		if t.MinParticipants < 2 {
			return httperr.ErrBusiness("invalid_tier_range")
		}
		if t.MaxParticipants != nil && *t.MaxParticipants < t.MinParticipants {
			return httperr.ErrBusiness("invalid_tier_range")
		}
		if t.PricePerPersonCents <= 0 {
			return httperr.ErrBusiness("invalid_rate")
		}
	}

	sorted := make([]models.GroupPricingTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinParticipants < sorted[j].MinParticipants
	})

	for i := 0; i < len(sorted)-1; i++ {
		cur, next := sorted[i], sorted[i+1]
		if cur.MaxParticipants == nil {
			// Unbounded anywhere but last swallows everything after it.
			return httperr.ErrBusiness("tier_overlap")
		}
		if next.MinParticipants <= *cur.MaxParticipants {
			return httperr.ErrBusiness("tier_overlap")
		}
	}

	return nil
}
