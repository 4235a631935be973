package booking

import (
	"context"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/notify"
	"github.com/peakform-app/peakform-api/internal/payments"
)

// ======================================================
// USE CASE
// ======================================================

// RefundBooking resolves a dispute in the client's favor: the captured
// booking-level charge is refunded, fully or partially, and the dispute
// closes. Public lessons carry no booking-level charge; their seats are
// refunded through cancellation and seat release.
type RefundBooking struct {
	repo      domain.Repository
	processor payments.Processor
	notifier  *notify.Dispatcher
}

func NewRefundBooking(
	repo domain.Repository,
	processor payments.Processor,
	notifier *notify.Dispatcher,
) *RefundBooking {
	return &RefundBooking{
		repo:      repo,
		processor: processor,
		notifier:  notifier,
	}
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *RefundBooking) Execute(
	ctx context.Context,
	adminID uint,
	bookingID uint,
	amountCents int64,
) (*models.Booking, error) {

	now := time.Now().UTC()

	// --------------------------------------------------
	// 1. Validate the dispute context
	// --------------------------------------------------
	var gross int64

	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return httperr.ErrBusiness("booking_not_found")
		}
		if b.FulfillmentStatus != string(domain.FulfillmentDisputed) {
			return httperr.ErrBusiness("not_disputed")
		}
		bd := domain.Breakdown(b)
		if bd == nil {
			return httperr.ErrBusiness("invalid_state")
		}
		gross = bd.GrossAmountCents
		return nil
	})
	if err != nil {
		return nil, err
	}

	if amountCents == 0 {
		amountCents = gross // full refund by default
	}

	// --------------------------------------------------
	// 2. Move the money
	// --------------------------------------------------
	refundRef, err := refundBookingCharge(ctx, uc.repo, uc.processor,
		bookingID, amountCents, uintPtr(adminID), "dispute_refund")
	if err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// 3. Close the dispute
	// --------------------------------------------------
	var b *models.Booking
	err = uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		var err error
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		if b.FulfillmentStatus == string(domain.FulfillmentDisputed) {
			old := b.FulfillmentStatus
			b.FulfillmentStatus = string(domain.FulfillmentCompleted)
			b.CompletedAt = &now
			if err := tx.UpdateBooking(ctx, b); err != nil {
				return err
			}
			if err := transition(ctx, tx, b.ID, nil,
				fieldFulfillment, old, b.FulfillmentStatus,
				uintPtr(adminID), "dispute_refund"); err != nil {
				return err
			}
		}
		return cancelApproval(ctx, tx, b, uintPtr(adminID), "dispute_refund", now)
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"booking_id":   b.ID,
		"amount_cents": amountCents,
		"refund_ref":   refundRef,
	}
	if payer := domain.PayerID(b); payer != 0 {
		uc.notifier.Notify(payer, notify.KindRefundIssued, payload)
	}
	uc.notifier.Notify(b.CoachID, notify.KindDisputeResolved, payload)

	return b, nil
}
