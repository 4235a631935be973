package handlers

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/middleware"
)

// respondError maps a business code onto its HTTP status. Anything that is
// not a BusinessError is an internal failure.
func respondError(c *gin.Context, err error) {
	var be httperr.BusinessError
	if !errors.As(err, &be) {
		log.Printf("handler: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		httperr.Internal(c, "internal_error", "Something went wrong.")
		return
	}

	switch be.Code {
	case "booking_not_found", "lesson_not_found", "coach_not_found",
		"participant_not_found", "template_not_found":
		httperr.NotFound(c, be.Code, "Resource not found.")

	case "unauthorized_actor":
		httperr.Forbidden(c, be.Code, "You may not act on this booking.")

	case "time_conflict", "capacity_full", "duplicate_participant",
		"invalid_state", "not_disputed", "payment_window_expired",
		"seat_hold_expired", "not_a_public_lesson":
		httperr.Conflict(c, be.Code, "The booking state does not allow this.")

	case "payment_failed", "coach_account_unverified":
		httperr.UnprocessableEntity(c, be.Code, "Payment could not be completed.")

	case "processor_unavailable":
		httperr.DependencyFailed(c, be.Code, "Payment processor unavailable, try again.")

	default:
		httperr.BadRequest(c, be.Code, "Invalid request.")
	}
}

func currentUserID(c *gin.Context) uint {
	return c.MustGet(middleware.ContextUserID).(uint)
}
