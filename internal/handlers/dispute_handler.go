package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/httpresp"
	usecase "github.com/peakform-app/peakform-api/internal/usecase/booking"
)

// ======================================================
// HANDLER
// ======================================================

type DisputeHandler struct {
	initiate *usecase.InitiateDispute
	resolve  *usecase.ResolveDispute
	refund   *usecase.RefundBooking
}

func NewDisputeHandler(
	initiate *usecase.InitiateDispute,
	resolve *usecase.ResolveDispute,
	refund *usecase.RefundBooking,
) *DisputeHandler {
	return &DisputeHandler{
		initiate: initiate,
		resolve:  resolve,
		refund:   refund,
	}
}

// ======================================================
// REQUESTS
// ======================================================

type DisputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ResolveRequest struct {
	// "resolved" keeps the money with the coach, "refunded" returns it.
	Resolution  string `json:"resolution" binding:"required"`
	Note        string `json:"note"`
	AmountCents int64  `json:"amount_cents"`
}

// ======================================================
// DISPUTE
// ======================================================

func (h *DisputeHandler) Dispute(c *gin.Context) {
	actorID := currentUserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "Reason is required.")
		return
	}

	b, err := h.initiate.Execute(c.Request.Context(), actorID, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	httpresp.OK(c, b)
}

// ======================================================
// RESOLVE (admin)
// ======================================================

func (h *DisputeHandler) Resolve(c *gin.Context) {
	adminID := currentUserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "Resolution is required.")
		return
	}

	switch req.Resolution {
	case "refunded":
		b, err := h.refund.Execute(c.Request.Context(), adminID, id, req.AmountCents)
		if err != nil {
			respondError(c, err)
			return
		}
		httpresp.OK(c, b)

	case "resolved":
		b, err := h.resolve.Execute(c.Request.Context(), adminID, id, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		httpresp.OK(c, b)

	default:
		httperr.BadRequest(c, "invalid_resolution", "Resolution must be resolved or refunded.")
	}
}
