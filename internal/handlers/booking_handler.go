package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/httpresp"
	usecase "github.com/peakform-app/peakform-api/internal/usecase/booking"
)

// ======================================================
// HANDLER
// ======================================================

type BookingHandler struct {
	createIndividual *usecase.CreateIndividualBooking
	createGroup      *usecase.CreatePrivateGroupBooking
	accept           *usecase.AcceptBooking
	decline          *usecase.DeclineBooking
	cancel           *usecase.CancelBooking
	pay              *usecase.PayBooking
	repo             domain.Repository
}

func NewBookingHandler(
	createIndividual *usecase.CreateIndividualBooking,
	createGroup *usecase.CreatePrivateGroupBooking,
	accept *usecase.AcceptBooking,
	decline *usecase.DeclineBooking,
	cancel *usecase.CancelBooking,
	pay *usecase.PayBooking,
	repo domain.Repository,
) *BookingHandler {
	return &BookingHandler{
		createIndividual: createIndividual,
		createGroup:      createGroup,
		accept:           accept,
		decline:          decline,
		cancel:           cancel,
		pay:              pay,
		repo:             repo,
	}
}

// ======================================================
// REQUESTS
// ======================================================

type CreateIndividualRequest struct {
	CoachID         uint   `json:"coach_id" binding:"required"`
	Start           string `json:"start" binding:"required"`
	DurationMin     int    `json:"duration_min" binding:"required"`
	Location        string `json:"location"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
}

type CreatePrivateGroupRequest struct {
	CoachID        uint   `json:"coach_id" binding:"required"`
	Start          string `json:"start" binding:"required"`
	DurationMin    int    `json:"duration_min" binding:"required"`
	Location       string `json:"location"`
	ParticipantIDs []uint `json:"participant_ids" binding:"required"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// ======================================================
// CREATE
// ======================================================

func (h *BookingHandler) CreateIndividual(c *gin.Context) {
	clientID := currentUserID(c)

	var req CreateIndividualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "Invalid request body.")
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		httperr.BadRequest(c, "invalid_start", "Start must be RFC3339.")
		return
	}

	b, err := h.createIndividual.Execute(c.Request.Context(), usecase.CreateIndividualBookingInput{
		ClientID:        clientID,
		CoachID:         req.CoachID,
		Start:           start.UTC(),
		DurationMin:     req.DurationMin,
		Location:        req.Location,
		HourlyRateCents: req.HourlyRateCents,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, b)
}

func (h *BookingHandler) CreatePrivateGroup(c *gin.Context) {
	organizerID := currentUserID(c)

	var req CreatePrivateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "Invalid request body.")
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		httperr.BadRequest(c, "invalid_start", "Start must be RFC3339.")
		return
	}

	b, err := h.createGroup.Execute(c.Request.Context(), usecase.CreatePrivateGroupBookingInput{
		OrganizerID:    organizerID,
		CoachID:        req.CoachID,
		Start:          start.UTC(),
		DurationMin:    req.DurationMin,
		Location:       req.Location,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, b)
}

// ======================================================
// LIFECYCLE
// ======================================================

func (h *BookingHandler) Accept(c *gin.Context) {
	coachID := currentUserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	b, err := h.accept.Execute(c.Request.Context(), coachID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.OK(c, b)
}

func (h *BookingHandler) Decline(c *gin.Context) {
	coachID := currentUserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	b, err := h.decline.Execute(c.Request.Context(), coachID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.OK(c, b)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	actorID := currentUserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req CancelBookingRequest
	_ = c.ShouldBindJSON(&req)

	b, err := h.cancel.Execute(c.Request.Context(), actorID, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.OK(c, b)
}

func (h *BookingHandler) Pay(c *gin.Context) {
	payerID := currentUserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	b, err := h.pay.Execute(c.Request.Context(), payerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.OK(c, b)
}

// ======================================================
// READ
// ======================================================

func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	b, err := h.repo.GetBookingByID(c.Request.Context(), id)
	if err != nil {
		httperr.NotFound(c, "booking_not_found", "Booking not found.")
		return
	}
	httpresp.OK(c, b)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		httperr.BadRequest(c, "invalid_id", "Invalid id.")
		return 0, false
	}
	return uint(id), true
}
