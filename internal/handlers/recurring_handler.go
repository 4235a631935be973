package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/httpresp"
	usecase "github.com/peakform-app/peakform-api/internal/usecase/booking"
)

// ======================================================
// HANDLER
// ======================================================

type RecurringHandler struct {
	create   *usecase.CreateRecurringTemplate
	cancel   *usecase.CancelRecurringTemplate
	generate *usecase.GenerateRecurringInstances
}

func NewRecurringHandler(
	create *usecase.CreateRecurringTemplate,
	cancel *usecase.CancelRecurringTemplate,
	generate *usecase.GenerateRecurringInstances,
) *RecurringHandler {
	return &RecurringHandler{
		create:   create,
		cancel:   cancel,
		generate: generate,
	}
}

// ======================================================
// REQUESTS
// ======================================================

type CreateTemplateRequest struct {
	Weekday        int    `json:"weekday"`
	StartTimeLocal string `json:"start_time_local" binding:"required"`
	DurationMin    int    `json:"duration_min" binding:"required"`
	Timezone       string `json:"timezone" binding:"required"`

	MinParticipants     int   `json:"min_participants" binding:"required"`
	MaxParticipants     int   `json:"max_participants" binding:"required"`
	PricePerPersonCents int64 `json:"price_per_person_cents" binding:"required"`

	Location    string `json:"location"`
	ActiveFrom  string `json:"active_from"`
	ActiveUntil string `json:"active_until"`
}

// ======================================================
// CREATE / CANCEL / GENERATE
// ======================================================

func (h *RecurringHandler) Create(c *gin.Context) {
	coachID := currentUserID(c)

	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "Invalid request body.")
		return
	}

	var activeFrom time.Time
	if req.ActiveFrom != "" {
		t, err := time.Parse(time.RFC3339, req.ActiveFrom)
		if err != nil {
			httperr.BadRequest(c, "invalid_active_from", "active_from must be RFC3339.")
			return
		}
		activeFrom = t.UTC()
	}

	var activeUntil *time.Time
	if req.ActiveUntil != "" {
		t, err := time.Parse(time.RFC3339, req.ActiveUntil)
		if err != nil {
			httperr.BadRequest(c, "invalid_active_until", "active_until must be RFC3339.")
			return
		}
		u := t.UTC()
		activeUntil = &u
	}

	tpl, err := h.create.Execute(c.Request.Context(), usecase.CreateRecurringTemplateInput{
		CoachID:             coachID,
		Weekday:             req.Weekday,
		StartTimeLocal:      req.StartTimeLocal,
		DurationMin:         req.DurationMin,
		Timezone:            req.Timezone,
		MinParticipants:     req.MinParticipants,
		MaxParticipants:     req.MaxParticipants,
		PricePerPersonCents: req.PricePerPersonCents,
		Location:            req.Location,
		ActiveFrom:          activeFrom,
		ActiveUntil:         activeUntil,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, tpl)
}

func (h *RecurringHandler) Cancel(c *gin.Context) {
	coachID := currentUserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	removed, err := h.cancel.Execute(c.Request.Context(), coachID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"removed_instances": removed})
}

func (h *RecurringHandler) Generate(c *gin.Context) {
	res, err := h.generate.Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.OK(c, res)
}
