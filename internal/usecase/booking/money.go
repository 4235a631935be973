package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/payments"
)

// refundBookingCharge refunds part or all of a booking-level captured
// charge. The local captured->refunded flip commits before the processor
// call, and the processor key is derived from the booking id, so neither a
// concurrent caller nor a retry after an unknown outcome can refund twice.
func refundBookingCharge(
	ctx context.Context,
	repo domain.Repository,
	processor payments.Processor,
	bookingID uint,
	amountCents int64,
	actorID *uint,
	reason string,
) (string, error) {

	// --------------------------------------------------
	// 1. Guarded local flip, committed first
	// --------------------------------------------------
	var chargeRef string
	var gross int64

	err := repo.Transaction(ctx, func(tx domain.Repository) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return httperr.ErrBusiness("booking_not_found")
		}

		bd := domain.Breakdown(b)
		if bd == nil {
			return httperr.ErrBusiness("invalid_state")
		}
		if err := domain.CanRefund(domain.PaymentStatus(bd.PaymentStatus)); err != nil {
			return err
		}
		if amountCents <= 0 || amountCents > bd.GrossAmountCents {
			return httperr.ErrBusiness("invalid_refund_amount")
		}

		chargeRef = bd.ChargeRef
		gross = bd.GrossAmountCents

		old := bd.PaymentStatus
		bd.PaymentStatus = string(domain.PaymentRefunded)
		bd.RefundedAmountCents = amountCents
		if err := saveDetails(ctx, tx, b); err != nil {
			return err
		}
		return transition(ctx, tx, bookingID, nil,
			fieldPayment, old, bd.PaymentStatus,
			actorID, reason)
	})
	if err != nil {
		return "", err
	}

	// --------------------------------------------------
	// 2. Processor refund, deterministic idempotency key
	// --------------------------------------------------
	requested := amountCents
	if requested == gross {
		requested = 0 // full refund
	}

	refundRef, err := processor.Refund(ctx, chargeRef, requested, fmt.Sprintf("refund-bk-%d", bookingID))
	if err != nil {
		log.Printf("refund booking=%d charge=%s amount=%d: %v", bookingID, chargeRef, amountCents, err)

		if payments.UnknownOutcome(err) {
			// The refund may have gone through. Leave the local state
			// flipped; a retry with the same key reconciles, it never
			// re-refunds.
			return "", httperr.ErrBusiness("processor_unavailable")
		}

		// Definite failure: compensate the flip so the charge stays
		// refundable.
		if compErr := repo.Transaction(ctx, func(tx domain.Repository) error {
			b, err := tx.GetBookingForUpdate(ctx, bookingID)
			if err != nil {
				return err
			}
			bd := domain.Breakdown(b)
			if bd == nil || bd.PaymentStatus != string(domain.PaymentRefunded) {
				return nil
			}
			bd.PaymentStatus = string(domain.PaymentCaptured)
			bd.RefundedAmountCents = 0
			if err := saveDetails(ctx, tx, b); err != nil {
				return err
			}
			return transition(ctx, tx, bookingID, nil,
				fieldPayment, string(domain.PaymentRefunded), string(domain.PaymentCaptured),
				actorID, "refund_failed")
		}); compErr != nil {
			log.Printf("refund booking=%d: compensation failed: %v", bookingID, compErr)
		}
		return "", httperr.ErrBusiness("processor_unavailable")
	}

	// --------------------------------------------------
	// 3. Persist the processor reference
	// --------------------------------------------------
	err = repo.Transaction(ctx, func(tx domain.Repository) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		bd := domain.Breakdown(b)
		if bd == nil {
			return nil
		}
		bd.RefundRef = refundRef
		return saveDetails(ctx, tx, b)
	})
	if err != nil {
		// Refund done processor-side; only the reference is missing.
		log.Printf("refund booking=%d: refund %s issued but reference not persisted: %v",
			bookingID, refundRef, err)
	}

	return refundRef, nil
}

func saveDetails(ctx context.Context, tx domain.Repository, b *models.Booking) error {
	switch {
	case b.Individual != nil:
		return tx.SaveIndividualDetails(ctx, b.Individual)
	case b.PrivateGroup != nil:
		return tx.SavePrivateGroupDetails(ctx, b.PrivateGroup)
	case b.PublicGroup != nil:
		return tx.SavePublicGroupDetails(ctx, b.PublicGroup)
	}
	return nil
}

// cancelApproval flips the approval axis to cancelled with an audit row,
// tolerating already-cancelled bookings.
func cancelApproval(
	ctx context.Context,
	tx domain.Repository,
	b *models.Booking,
	actorID *uint,
	reason string,
	now time.Time,
) error {
	if b.ApprovalStatus == string(domain.ApprovalCancelled) {
		return nil
	}

	old := b.ApprovalStatus
	b.ApprovalStatus = string(domain.ApprovalCancelled)
	b.CancelledAt = &now
	if err := tx.UpdateBooking(ctx, b); err != nil {
		return err
	}
	return transition(ctx, tx, b.ID, nil,
		fieldApproval, old, b.ApprovalStatus,
		actorID, reason)
}
