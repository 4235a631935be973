package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/notify"
	"github.com/peakform-app/peakform-api/internal/payments"
)

// ReleaseSeat frees one public-lesson seat, reconciling the processor
// side: uncaptured holds are cancelled, captured seats are refunded in
// full. Shared by lesson cancellation and the expiry/under-minimum sweeps.
type ReleaseSeat struct {
	repo      domain.Repository
	processor payments.Processor
	notifier  *notify.Dispatcher
}

func NewReleaseSeat(
	repo domain.Repository,
	processor payments.Processor,
	notifier *notify.Dispatcher,
) *ReleaseSeat {
	return &ReleaseSeat{
		repo:      repo,
		processor: processor,
		notifier:  notifier,
	}
}

func (uc *ReleaseSeat) Execute(
	ctx context.Context,
	lessonID uint,
	userID uint,
	reason string,
) error {

	now := time.Now().UTC()

	p, err := uc.repo.GetParticipant(ctx, lessonID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return httperr.ErrBusiness("participant_not_found")
	}

	switch domain.ParticipantStatus(p.Status) {
	case domain.ParticipantCancelled:
		// Already released; re-running a sweep is a no-op.
		return nil

	case domain.ParticipantAwaitingPayment:
		if p.HoldRef != "" {
			// Releasing the hold is not money movement: a failure here is
			// logged and the hold ages out processor-side.
			if err := uc.processor.CancelHold(ctx, p.HoldRef); err != nil {
				log.Printf("release lesson=%d user=%d: cancel hold %s: %v", lessonID, userID, p.HoldRef, err)
			}
		}
		return uc.markReleased(ctx, lessonID, p, string(domain.ParticipantPaymentFailed), "", reason, now, false)

	case domain.ParticipantConfirmed:
		// Flip away from captured before calling the processor, with a
		// deterministic idempotency key, so a retry can never double-refund.
		if err := uc.markReleased(ctx, lessonID, p, string(domain.ParticipantPaymentRefunded), "", reason, now, true); err != nil {
			return err
		}

		idemKey := fmt.Sprintf("refund-seat-%d", p.ID)
		refundRef, err := uc.processor.Refund(ctx, p.ChargeRef, p.AmountCents, idemKey)
		if err != nil {
			// Either a definite failure or an undetermined outcome; the
			// deterministic idempotency key makes the next sweep's retry
			// converge on at most one refund.
			log.Printf("release lesson=%d user=%d: refund of charge %s failed (amount=%d): %v",
				lessonID, userID, p.ChargeRef, p.AmountCents, err)
			return httperr.ErrBusiness("processor_unavailable")
		}

		p.RefundRef = refundRef
		if err := uc.repo.SaveParticipant(ctx, p); err != nil {
			log.Printf("release lesson=%d user=%d: refund %s issued but not persisted: %v",
				lessonID, userID, refundRef, err)
			return err
		}

		uc.notifier.Notify(userID, notify.KindRefundIssued, map[string]any{
			"booking_id":   lessonID,
			"amount_cents": p.AmountCents,
			"refund_ref":   refundRef,
		})
		return nil
	}

	return httperr.ErrBusiness("invalid_state")
}

// markReleased cancels the participant row and gives the seat back to the
// lesson counters, inside one transaction.
func (uc *ReleaseSeat) markReleased(
	ctx context.Context,
	lessonID uint,
	p *models.BookingParticipant,
	paymentStatus string,
	chargeRef string,
	reason string,
	now time.Time,
	wasCaptured bool,
) error {
	return uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		b, err := tx.GetBookingForUpdate(ctx, lessonID)
		if err != nil {
			return err
		}
		d := b.PublicGroup
		if d == nil {
			return httperr.ErrBusiness("not_a_public_lesson")
		}

		fresh, err := tx.GetParticipant(ctx, lessonID, p.UserID)
		if err != nil {
			return err
		}
		if fresh == nil || fresh.Status == string(domain.ParticipantCancelled) {
			return nil
		}

		oldStatus := fresh.Status
		oldPayment := fresh.PaymentStatus
		fresh.Status = string(domain.ParticipantCancelled)
		fresh.PaymentStatus = paymentStatus
		fresh.CancelledAt = &now
		if chargeRef != "" {
			fresh.ChargeRef = chargeRef
		}
		if err := tx.SaveParticipant(ctx, fresh); err != nil {
			return err
		}
		*p = *fresh

		if d.CurrentParticipants > 0 {
			d.CurrentParticipants--
		}
		if d.AuthorizedParticipants > 0 {
			d.AuthorizedParticipants--
		}
		if wasCaptured && d.CapturedParticipants > 0 {
			d.CapturedParticipants--
		}
		oldCapacity := d.CapacityStatus
		if d.CapacityStatus == string(domain.CapacityFull) && d.CurrentParticipants < d.MaxParticipants {
			d.CapacityStatus = string(domain.CapacityOpen)
		}
		if err := tx.SavePublicGroupDetails(ctx, d); err != nil {
			return err
		}

		if err := transition(ctx, tx, lessonID, uintPtr(fresh.ID),
			fieldParticipantStatus, oldStatus, fresh.Status,
			nil, reason); err != nil {
			return err
		}
		if err := transition(ctx, tx, lessonID, uintPtr(fresh.ID),
			fieldPayment, oldPayment, fresh.PaymentStatus,
			nil, reason); err != nil {
			return err
		}
		return transition(ctx, tx, lessonID, nil,
			fieldCapacity, oldCapacity, d.CapacityStatus,
			nil, reason)
	})
}
