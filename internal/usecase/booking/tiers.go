package booking

import (
	"context"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/pricing"
)

// UpdatePricingTiers replaces a coach's whole group tier set. Bookings
// created before the swap keep their frozen breakdowns; only future
// private-group quotes see the new set.
type UpdatePricingTiers struct {
	repo domain.Repository
}

func NewUpdatePricingTiers(repo domain.Repository) *UpdatePricingTiers {
	return &UpdatePricingTiers{repo: repo}
}

func (uc *UpdatePricingTiers) Execute(
	ctx context.Context,
	coachID uint,
	tiers []models.GroupPricingTier,
) ([]models.GroupPricingTier, error) {

	if err := pricing.ValidateTierSet(tiers); err != nil {
		return nil, err
	}

	for i := range tiers {
		tiers[i].ID = 0
		tiers[i].CoachID = coachID
	}

	if err := uc.repo.ReplaceTiers(ctx, coachID, tiers); err != nil {
		return nil, err
	}
	return uc.repo.ListTiers(ctx, coachID)
}
