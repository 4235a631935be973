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

type LessonHandler struct {
	create  *usecase.CreatePublicGroupLesson
	join    *usecase.JoinPublicLesson
	confirm *usecase.ConfirmLessonPayment
}

func NewLessonHandler(
	create *usecase.CreatePublicGroupLesson,
	join *usecase.JoinPublicLesson,
	confirm *usecase.ConfirmLessonPayment,
) *LessonHandler {
	return &LessonHandler{
		create:  create,
		join:    join,
		confirm: confirm,
	}
}

// ======================================================
// REQUESTS
// ======================================================

type CreateLessonRequest struct {
	Start               string `json:"start" binding:"required"`
	DurationMin         int    `json:"duration_min" binding:"required"`
	Location            string `json:"location"`
	MinParticipants     int    `json:"min_participants" binding:"required"`
	MaxParticipants     int    `json:"max_participants" binding:"required"`
	PricePerPersonCents int64  `json:"price_per_person_cents" binding:"required"`
}

// ======================================================
// CREATE
// ======================================================

func (h *LessonHandler) Create(c *gin.Context) {
	coachID := currentUserID(c)

	var req CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "Invalid request body.")
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		httperr.BadRequest(c, "invalid_start", "Start must be RFC3339.")
		return
	}

	b, err := h.create.Execute(c.Request.Context(), usecase.CreatePublicGroupLessonInput{
		CoachID:             coachID,
		Start:               start.UTC(),
		DurationMin:         req.DurationMin,
		Location:            req.Location,
		MinParticipants:     req.MinParticipants,
		MaxParticipants:     req.MaxParticipants,
		PricePerPersonCents: req.PricePerPersonCents,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, b)
}

// ======================================================
// JOIN / CONFIRM
// ======================================================

func (h *LessonHandler) Join(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	p, err := h.join.Execute(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, p)
}

func (h *LessonHandler) Confirm(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	p, err := h.confirm.Execute(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.OK(c, p)
}
