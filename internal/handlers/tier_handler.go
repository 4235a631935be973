package handlers

import (
	"github.com/gin-gonic/gin"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/httpresp"
	"github.com/peakform-app/peakform-api/internal/models"
	usecase "github.com/peakform-app/peakform-api/internal/usecase/booking"
)

// ======================================================
// HANDLER
// ======================================================

type TierHandler struct {
	update *usecase.UpdatePricingTiers
	repo   domain.Repository
}

func NewTierHandler(update *usecase.UpdatePricingTiers, repo domain.Repository) *TierHandler {
	return &TierHandler{
		update: update,
		repo:   repo,
	}
}

// ======================================================
// REQUESTS
// ======================================================

type TierRequest struct {
	MinParticipants     int   `json:"min_participants" binding:"required"`
	MaxParticipants     *int  `json:"max_participants"`
	PricePerPersonCents int64 `json:"price_per_person_cents" binding:"required"`
}

type ReplaceTiersRequest struct {
	Tiers []TierRequest `json:"tiers" binding:"required"`
}

// ======================================================
// REPLACE / LIST
// ======================================================

func (h *TierHandler) Replace(c *gin.Context) {
	coachID := currentUserID(c)

	var req ReplaceTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "Invalid request body.")
		return
	}

	tiers := make([]models.GroupPricingTier, 0, len(req.Tiers))
	for _, t := range req.Tiers {
		tiers = append(tiers, models.GroupPricingTier{
			MinParticipants:     t.MinParticipants,
			MaxParticipants:     t.MaxParticipants,
			PricePerPersonCents: t.PricePerPersonCents,
		})
	}

	saved, err := h.update.Execute(c.Request.Context(), coachID, tiers)
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.List(c, saved)
}

func (h *TierHandler) List(c *gin.Context) {
	coachID := currentUserID(c)

	tiers, err := h.repo.ListTiers(c.Request.Context(), coachID)
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.List(c, tiers)
}
