package booking

import (
	"context"
	"log"
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

// CancelBooking cancels a booking before fulfillment. Money already held
// or captured is unwound after the local cancellation commits: seat holds
// and charges for public lessons through ReleaseSeat, the booking-level
// charge for individual and private-group bookings through a full refund.
type CancelBooking struct {
	repo      domain.Repository
	processor payments.Processor
	notifier  *notify.Dispatcher
	releaser  *ReleaseSeat
}

func NewCancelBooking(
	repo domain.Repository,
	processor payments.Processor,
	notifier *notify.Dispatcher,
	releaser *ReleaseSeat,
) *CancelBooking {
	return &CancelBooking{
		repo:      repo,
		processor: processor,
		notifier:  notifier,
		releaser:  releaser,
	}
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *CancelBooking) Execute(
	ctx context.Context,
	actorID uint,
	bookingID uint,
	reason string,
) (*models.Booking, error) {

	now := time.Now().UTC()
	if reason == "" {
		reason = "cancelled_by_party"
	}

	var b *models.Booking
	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		var err error
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return httperr.ErrBusiness("booking_not_found")
		}
		if err := uc.authorize(b, actorID); err != nil {
			return err
		}

		old := b.ApprovalStatus
		if err := domain.Cancel(b, now); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if err := transition(ctx, tx, b.ID, nil,
			fieldApproval, old, b.ApprovalStatus,
			uintPtr(actorID), reason); err != nil {
			return err
		}

		if d := b.PublicGroup; d != nil && d.CapacityStatus != string(domain.CapacityCancelled) {
			oldCapacity := d.CapacityStatus
			d.CapacityStatus = string(domain.CapacityCancelled)
			if err := tx.SavePublicGroupDetails(ctx, d); err != nil {
				return err
			}
			if err := transition(ctx, tx, b.ID, nil,
				fieldCapacity, oldCapacity, d.CapacityStatus,
				uintPtr(actorID), reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch domain.Type(b.Type) {
	case domain.TypePublicGroup:
		uc.releaseAllSeats(ctx, b)
	default:
		uc.unwindBookingPayment(ctx, b, actorID)
	}

	uc.notifyParties(b, actorID)
	return b, nil
}

// releaseAllSeats frees every non-cancelled seat of a cancelled lesson.
// Individual failures are logged and retried by the reconciliation sweep,
// which finds the seats still non-cancelled on a cancelled lesson.
func (uc *CancelBooking) releaseAllSeats(ctx context.Context, b *models.Booking) {
	participants, err := uc.repo.ListParticipants(ctx, b.ID)
	if err != nil {
		log.Printf("cancel lesson=%d: listing participants: %v", b.ID, err)
		return
	}

	for _, p := range participants {
		if p.Status == string(domain.ParticipantCancelled) {
			continue
		}
		if err := uc.releaser.Execute(ctx, b.ID, p.UserID, "lesson_cancelled"); err != nil {
			log.Printf("cancel lesson=%d: releasing seat user=%d: %v", b.ID, p.UserID, err)
			continue
		}
		uc.notifier.Notify(p.UserID, notify.KindLessonCancelled, map[string]any{
			"booking_id": b.ID,
		})
	}
}

// unwindBookingPayment reverses whatever money state the booking reached.
// A refund failure leaves the payment axis captured for a later retry; the
// cancellation itself stands.
func (uc *CancelBooking) unwindBookingPayment(ctx context.Context, b *models.Booking, actorID uint) {
	bd := domain.Breakdown(b)
	if bd == nil {
		return
	}

	switch domain.PaymentStatus(bd.PaymentStatus) {
	case domain.PaymentCaptured:
		if _, err := refundBookingCharge(ctx, uc.repo, uc.processor,
			b.ID, bd.GrossAmountCents, uintPtr(actorID), "booking_cancelled"); err != nil {
			log.Printf("cancel booking=%d: refund pending retry: %v", b.ID, err)
		}
	case domain.PaymentAwaitingClient:
		if bd.HoldRef != "" {
			if err := uc.processor.CancelHold(ctx, bd.HoldRef); err != nil {
				log.Printf("cancel booking=%d: cancel hold %s: %v", b.ID, bd.HoldRef, err)
			}
		}
	}
}

func (uc *CancelBooking) authorize(b *models.Booking, actorID uint) error {
	if domain.Type(b.Type) == domain.TypePublicGroup {
		// Joiners leave via seat release; only the coach cancels the lesson.
		if b.CoachID != actorID {
			return httperr.ErrBusiness("unauthorized_actor")
		}
		return nil
	}
	if b.CoachID != actorID && domain.PayerID(b) != actorID {
		return httperr.ErrBusiness("unauthorized_actor")
	}
	return nil
}

func (uc *CancelBooking) notifyParties(b *models.Booking, actorID uint) {
	payload := map[string]any{"booking_id": b.ID}
	if b.CoachID != actorID {
		uc.notifier.Notify(b.CoachID, notify.KindBookingCancelled, payload)
	}
	if payer := domain.PayerID(b); payer != 0 && payer != actorID {
		uc.notifier.Notify(payer, notify.KindBookingCancelled, payload)
	}
}
