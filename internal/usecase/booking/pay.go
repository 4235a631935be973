package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/notify"
	"github.com/peakform-app/peakform-api/internal/payments"
)

// ======================================================
// USE CASE
// ======================================================

// PayBooking charges the paying party of an accepted individual or
// private-group booking inside its payment window. The charge runs as
// hold then capture so a decline leaves no money moved. A persisted hold
// reference from an earlier undetermined attempt is reconciled against
// the processor before any new hold is created: a retry can adopt an
// already-landed capture but can never issue a second charge.
type PayBooking struct {
	repo      domain.Repository
	processor payments.Processor
	notifier  *notify.Dispatcher
}

func NewPayBooking(
	repo domain.Repository,
	processor payments.Processor,
	notifier *notify.Dispatcher,
) *PayBooking {
	return &PayBooking{
		repo:      repo,
		processor: processor,
		notifier:  notifier,
	}
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *PayBooking) Execute(
	ctx context.Context,
	payerID uint,
	bookingID uint,
) (*models.Booking, error) {

	now := time.Now().UTC()

	// --------------------------------------------------
	// 1. Validate payability and collect charge inputs
	// --------------------------------------------------
	var (
		amount      int64
		destination string
		priorHold   string
	)

	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		b, bd, err := uc.lockPayable(ctx, tx, bookingID, payerID, now)
		if err != nil {
			return err
		}

		coach, err := tx.GetUserByID(ctx, b.CoachID)
		if err != nil || coach == nil {
			return httperr.ErrBusiness("coach_not_found")
		}

		amount = bd.GrossAmountCents
		destination = coach.PayoutAccountID
		priorHold = bd.HoldRef
		return nil
	})
	if err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// 2. Reconcile a prior hold before creating any new one
	// --------------------------------------------------
	holdRef := ""
	if priorHold != "" {
		h, err := uc.processor.RetrieveHold(ctx, priorHold)
		if err != nil {
			// Can't tell what the earlier attempt did; creating a second
			// hold here is how a client gets charged twice.
			log.Printf("pay booking=%d: retrieve hold %s: %v", bookingID, priorHold, err)
			return nil, httperr.ErrBusiness("processor_unavailable")
		}
		switch h.State {
		case payments.HoldCaptured:
			// The earlier capture landed; record it, charge nothing.
			log.Printf("pay booking=%d: adopting capture %s from prior attempt", bookingID, h.ChargeRef)
			return uc.recordCapture(ctx, bookingID, payerID, amount, h.ChargeRef)
		case payments.HoldActive:
			holdRef = priorHold
		}
		// Cancelled: the reference is dead, fall through to a fresh hold.
	}

	// --------------------------------------------------
	// 3. Hold, then persist the hold reference
	// --------------------------------------------------
	if holdRef == "" {
		holdRef, err = uc.processor.CreateHold(ctx, payments.HoldInput{
			AmountCents:        amount,
			DestinationAccount: destination,
			Metadata: map[string]string{
				"booking_id": fmt.Sprintf("%d", bookingID),
				"payer_id":   fmt.Sprintf("%d", payerID),
			},
			IdempotencyKey: uuid.NewString(),
		})
		if err != nil {
			log.Printf("pay booking=%d: hold failed: %v", bookingID, err)
			if payments.UnknownOutcome(err) {
				return nil, httperr.ErrBusiness("processor_unavailable")
			}
			return nil, httperr.ErrBusiness("payment_failed")
		}

		err = uc.repo.Transaction(ctx, func(tx domain.Repository) error {
			b, bd, err := uc.lockPayable(ctx, tx, bookingID, payerID, now)
			if err != nil {
				return err
			}
			if bd.HoldRef != "" && bd.HoldRef != priorHold {
				// A concurrent attempt persisted its hold first; ours is
				// the extra one and gets compensated below.
				return httperr.ErrBusiness("payment_in_progress")
			}
			bd.HoldRef = holdRef
			return saveDetails(ctx, tx, b)
		})
		if err != nil {
			// The booking moved under us between hold and persist. Free the
			// authorization and surface the state error.
			if cancelErr := uc.processor.CancelHold(ctx, holdRef); cancelErr != nil {
				log.Printf("pay booking=%d: cancel orphan hold %s: %v", bookingID, holdRef, cancelErr)
			}
			return nil, err
		}
	}

	// --------------------------------------------------
	// 4. Capture
	// --------------------------------------------------
	chargeRef, err := uc.processor.Capture(ctx, holdRef)
	if err != nil {
		if payments.UnknownOutcome(err) {
			// The hold reference stays persisted; the next attempt
			// reconciles it above instead of re-charging.
			log.Printf("pay booking=%d: capture outcome unknown for hold %s: %v", bookingID, holdRef, err)
			return nil, httperr.ErrBusiness("processor_unavailable")
		}

		// A definite failure can still mean the money landed: a racing
		// attempt may have captured this hold first. Only a verifiably
		// uncaptured hold is a decline.
		h, rerr := uc.processor.RetrieveHold(ctx, holdRef)
		if rerr != nil {
			log.Printf("pay booking=%d: capture failed and hold %s unverifiable: %v / %v",
				bookingID, holdRef, err, rerr)
			return nil, httperr.ErrBusiness("processor_unavailable")
		}
		if h.State == payments.HoldCaptured {
			chargeRef = h.ChargeRef
		} else {
			log.Printf("pay booking=%d: capture declined for hold %s: %v", bookingID, holdRef, err)
			if cancelErr := uc.processor.CancelHold(ctx, holdRef); cancelErr != nil {
				log.Printf("pay booking=%d: cancel declined hold %s: %v", bookingID, holdRef, cancelErr)
			}
			uc.clearHold(ctx, bookingID, payerID, holdRef)
			// Payment stays awaiting so the client can retry inside the window.
			return nil, httperr.ErrBusiness("payment_failed")
		}
	}

	// --------------------------------------------------
	// 5. Record the capture
	// --------------------------------------------------
	return uc.recordCapture(ctx, bookingID, payerID, amount, chargeRef)
}

// recordCapture flips the payment to captured under lock and notifies the
// coach. The deadline is deliberately not re-checked here: the money has
// already moved, so the local record must follow it.
func (uc *PayBooking) recordCapture(
	ctx context.Context,
	bookingID uint,
	payerID uint,
	amount int64,
	chargeRef string,
) (*models.Booking, error) {

	var b *models.Booking
	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		var err error
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return httperr.ErrBusiness("booking_not_found")
		}
		bd := domain.Breakdown(b)
		if bd == nil {
			return httperr.ErrBusiness("invalid_state")
		}
		if bd.PaymentStatus != string(domain.PaymentAwaitingClient) {
			return httperr.ErrBusiness("invalid_state")
		}

		old := bd.PaymentStatus
		bd.PaymentStatus = string(domain.PaymentCaptured)
		bd.ChargeRef = chargeRef
		if err := saveDetails(ctx, tx, b); err != nil {
			return err
		}
		return transition(ctx, tx, b.ID, nil,
			fieldPayment, old, bd.PaymentStatus,
			uintPtr(payerID), "client_paid")
	})
	if err != nil {
		log.Printf("pay booking=%d: captured charge %s not persisted: %v", bookingID, chargeRef, err)
		return nil, err
	}

	uc.notifier.Notify(b.CoachID, notify.KindPaymentReceived, map[string]any{
		"booking_id":   b.ID,
		"amount_cents": amount,
		"charge_ref":   chargeRef,
	})

	return b, nil
}

// clearHold drops a dead hold reference so the next attempt starts fresh.
// Best effort: a stale reference only costs the retry one reconcile call.
func (uc *PayBooking) clearHold(ctx context.Context, bookingID, payerID uint, holdRef string) {
	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		bd := domain.Breakdown(b)
		if bd == nil || bd.HoldRef != holdRef {
			return nil
		}
		bd.HoldRef = ""
		return saveDetails(ctx, tx, b)
	})
	if err != nil {
		log.Printf("pay booking=%d: clearing hold ref %s: %v", bookingID, holdRef, err)
	}
}

// lockPayable loads the booking under lock and checks that the caller may
// pay it right now.
func (uc *PayBooking) lockPayable(
	ctx context.Context,
	tx domain.Repository,
	bookingID uint,
	payerID uint,
	now time.Time,
) (*models.Booking, *models.PaymentBreakdown, error) {

	b, err := tx.GetBookingForUpdate(ctx, bookingID)
	if err != nil {
		return nil, nil, httperr.ErrBusiness("booking_not_found")
	}

	bd := domain.Breakdown(b)
	if bd == nil {
		return nil, nil, httperr.ErrBusiness("invalid_state")
	}
	if domain.PayerID(b) != payerID {
		return nil, nil, httperr.ErrBusiness("unauthorized_actor")
	}
	if b.ApprovalStatus != string(domain.ApprovalAccepted) {
		return nil, nil, httperr.ErrBusiness("invalid_state")
	}
	if bd.PaymentStatus != string(domain.PaymentAwaitingClient) {
		return nil, nil, httperr.ErrBusiness("invalid_state")
	}
	if bd.PaymentDueAt != nil && now.After(*bd.PaymentDueAt) {
		return nil, nil, httperr.ErrBusiness("payment_window_expired")
	}

	return b, bd, nil
}
