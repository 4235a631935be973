package booking

import (
	"time"

	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
)

// ===============================
// Domain Actions
// ===============================
//
// Each action mutates the aggregate in memory after checking the guard.
// Persisting the change and recording the StateTransition row is the
// caller's job, inside one transaction.

func Accept(b *models.Booking, now time.Time) error {
	if err := CanAccept(ApprovalStatus(b.ApprovalStatus)); err != nil {
		return err
	}

	b.ApprovalStatus = string(ApprovalAccepted)
	b.AcceptedAt = &now
	return nil
}

func Decline(b *models.Booking) error {
	if err := CanDecline(ApprovalStatus(b.ApprovalStatus)); err != nil {
		return err
	}

	b.ApprovalStatus = string(ApprovalDeclined)
	return nil
}

func Cancel(b *models.Booking, now time.Time) error {
	if err := CanCancel(ApprovalStatus(b.ApprovalStatus), FulfillmentStatus(b.FulfillmentStatus)); err != nil {
		return err
	}

	b.ApprovalStatus = string(ApprovalCancelled)
	b.CancelledAt = &now
	return nil
}

func Expire(b *models.Booking) error {
	if err := CanExpire(ApprovalStatus(b.ApprovalStatus)); err != nil {
		return err
	}

	b.ApprovalStatus = string(ApprovalExpired)
	return nil
}

func Dispute(b *models.Booking, now time.Time) error {
	if err := CanDispute(ApprovalStatus(b.ApprovalStatus), FulfillmentStatus(b.FulfillmentStatus)); err != nil {
		return err
	}
	if now.Before(b.EndTime) {
		return httperr.ErrBusiness("session_not_finished")
	}

	b.FulfillmentStatus = string(FulfillmentDisputed)
	b.DisputedAt = &now
	return nil
}

// Resolve closes a dispute without moving money.
func Resolve(b *models.Booking, now time.Time) error {
	if err := CanResolve(FulfillmentStatus(b.FulfillmentStatus)); err != nil {
		return err
	}

	b.FulfillmentStatus = string(FulfillmentCompleted)
	b.CompletedAt = &now
	return nil
}

func Complete(b *models.Booking, now time.Time) error {
	if err := CanComplete(FulfillmentStatus(b.FulfillmentStatus)); err != nil {
		return err
	}
	if b.ApprovalStatus != string(ApprovalAccepted) {
		return httperr.ErrBusiness("invalid_state")
	}

	b.FulfillmentStatus = string(FulfillmentCompleted)
	b.CompletedAt = &now
	return nil
}

// Breakdown returns the payment breakdown of the paying detail record, or
// nil for booking shapes that carry no booking-level money (public groups).
func Breakdown(b *models.Booking) *models.PaymentBreakdown {
	switch Type(b.Type) {
	case TypeIndividual:
		if b.Individual == nil {
			return nil
		}
		return &b.Individual.PaymentBreakdown
	case TypePrivateGroup:
		if b.PrivateGroup == nil {
			return nil
		}
		return &b.PrivateGroup.PaymentBreakdown
	default:
		return nil
	}
}

// PayerID returns the user who owes the booking-level gross amount.
func PayerID(b *models.Booking) uint {
	switch Type(b.Type) {
	case TypeIndividual:
		if b.Individual != nil {
			return b.Individual.ClientID
		}
	case TypePrivateGroup:
		if b.PrivateGroup != nil {
			return b.PrivateGroup.OrganizerID
		}
	}
	return 0
}
