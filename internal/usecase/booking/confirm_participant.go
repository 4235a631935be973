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

// ConfirmLessonPayment captures a joiner's seat hold once the processor
// reports a usable payment method. Local state moves only after the
// capture result returns: never speculatively.
type ConfirmLessonPayment struct {
	repo      domain.Repository
	processor payments.Processor
	notifier  *notify.Dispatcher
}

func NewConfirmLessonPayment(
	repo domain.Repository,
	processor payments.Processor,
	notifier *notify.Dispatcher,
) *ConfirmLessonPayment {
	return &ConfirmLessonPayment{
		repo:      repo,
		processor: processor,
		notifier:  notifier,
	}
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *ConfirmLessonPayment) Execute(
	ctx context.Context,
	lessonID uint,
	userID uint,
) (*models.BookingParticipant, error) {

	now := time.Now().UTC()

	// --------------------------------------------------
	// 1. Validate the seat without writing anything
	// --------------------------------------------------
	var holdRef string

	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		_, p, err := uc.lockSeat(ctx, tx, lessonID, userID, now)
		if err != nil {
			return err
		}
		holdRef = p.HoldRef
		return nil
	})
	if err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// 2. Capture, outside any transaction
	// --------------------------------------------------
	chargeRef, err := uc.processor.Capture(ctx, holdRef)
	if err != nil {
		if payments.UnknownOutcome(err) {
			// Result undetermined: leave the seat untouched and let the
			// reconciliation sweep settle it.
			log.Printf("confirm lesson=%d user=%d: capture outcome unknown: %v", lessonID, userID, err)
			return nil, httperr.ErrBusiness("processor_unavailable")
		}

		// A definite failure can mean a racing confirm already captured
		// this hold. Releasing a seat whose money landed would strand the
		// charge, so only a verifiably uncaptured hold is a decline.
		h, rerr := uc.processor.RetrieveHold(ctx, holdRef)
		switch {
		case rerr == nil && h.State == payments.HoldCaptured:
			chargeRef = h.ChargeRef
		case rerr != nil:
			log.Printf("confirm lesson=%d user=%d: capture failed and hold %s unverifiable: %v / %v",
				lessonID, userID, holdRef, err, rerr)
			return nil, httperr.ErrBusiness("processor_unavailable")
		default:
			log.Printf("confirm lesson=%d user=%d: capture declined: %v", lessonID, userID, err)
			uc.releaseDeclinedSeat(ctx, lessonID, userID, now)
			return nil, httperr.ErrBusiness("payment_failed")
		}
	}

	// --------------------------------------------------
	// 3. Confirm under lock
	// --------------------------------------------------
	var participant *models.BookingParticipant

	err = uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		d, p, err := uc.lockSeat(ctx, tx, lessonID, userID, now)
		if err != nil {
			return err
		}

		oldStatus := p.Status
		oldPayment := p.PaymentStatus
		p.Status = string(domain.ParticipantConfirmed)
		p.PaymentStatus = string(domain.ParticipantPaymentCaptured)
		p.ChargeRef = chargeRef
		p.ExpiresAt = nil
		if err := tx.SaveParticipant(ctx, p); err != nil {
			return err
		}

		d.CapturedParticipants++
		if err := tx.SavePublicGroupDetails(ctx, d); err != nil {
			return err
		}

		if err := transition(ctx, tx, lessonID, uintPtr(p.ID),
			fieldParticipantStatus, oldStatus, p.Status,
			uintPtr(userID), "payment_captured"); err != nil {
			return err
		}
		if err := transition(ctx, tx, lessonID, uintPtr(p.ID),
			fieldPayment, oldPayment, p.PaymentStatus,
			uintPtr(userID), "payment_captured"); err != nil {
			return err
		}

		participant = p
		return nil
	})
	if err != nil {
		// Captured at the processor but not recorded locally: loud log so
		// reconciliation can repair by charge reference.
		log.Printf("confirm lesson=%d user=%d: captured charge %s not persisted: %v",
			lessonID, userID, chargeRef, err)
		return nil, err
	}

	uc.notifier.Notify(userID, notify.KindSeatConfirmed, map[string]any{
		"booking_id": lessonID,
		"charge_ref": chargeRef,
	})

	return participant, nil
}

// lockSeat loads the lesson and the caller's awaiting seat under the
// lesson row lock.
func (uc *ConfirmLessonPayment) lockSeat(
	ctx context.Context,
	tx domain.Repository,
	lessonID uint,
	userID uint,
	now time.Time,
) (*models.PublicGroupLessonDetails, *models.BookingParticipant, error) {

	b, err := tx.GetBookingForUpdate(ctx, lessonID)
	if err != nil {
		return nil, nil, httperr.ErrBusiness("lesson_not_found")
	}
	if domain.Type(b.Type) != domain.TypePublicGroup || b.PublicGroup == nil {
		return nil, nil, httperr.ErrBusiness("not_a_public_lesson")
	}

	p, err := tx.GetParticipant(ctx, lessonID, userID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, httperr.ErrBusiness("participant_not_found")
	}
	if p.Status != string(domain.ParticipantAwaitingPayment) {
		return nil, nil, httperr.ErrBusiness("invalid_state")
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
		return nil, nil, httperr.ErrBusiness("seat_hold_expired")
	}

	return b.PublicGroup, p, nil
}

// releaseDeclinedSeat frees a seat whose capture was definitively declined.
func (uc *ConfirmLessonPayment) releaseDeclinedSeat(
	ctx context.Context,
	lessonID uint,
	userID uint,
	now time.Time,
) {
	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		d, p, err := uc.lockSeat(ctx, tx, lessonID, userID, now)
		if err != nil {
			return err
		}

		oldStatus := p.Status
		p.Status = string(domain.ParticipantCancelled)
		p.PaymentStatus = string(domain.ParticipantPaymentFailed)
		p.CancelledAt = &now
		if err := tx.SaveParticipant(ctx, p); err != nil {
			return err
		}

		if d.CurrentParticipants > 0 {
			d.CurrentParticipants--
		}
		if d.AuthorizedParticipants > 0 {
			d.AuthorizedParticipants--
		}
		oldCapacity := d.CapacityStatus
		if d.CapacityStatus == string(domain.CapacityFull) && d.CurrentParticipants < d.MaxParticipants {
			d.CapacityStatus = string(domain.CapacityOpen)
		}
		if err := tx.SavePublicGroupDetails(ctx, d); err != nil {
			return err
		}

		if err := transition(ctx, tx, lessonID, uintPtr(p.ID),
			fieldParticipantStatus, oldStatus, p.Status,
			nil, "capture_declined"); err != nil {
			return err
		}
		return transition(ctx, tx, lessonID, nil,
			fieldCapacity, oldCapacity, d.CapacityStatus,
			nil, "capture_declined")
	})
	if err != nil {
		log.Printf("confirm lesson=%d user=%d: releasing declined seat failed: %v", lessonID, userID, err)
	}
}
