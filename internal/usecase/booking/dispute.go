package booking

import (
	"context"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/notify"
)

// ======================================================
// INITIATE
// ======================================================

// InitiateDispute lets either party of a finished session contest it,
// freezing the booking on the disputed fulfillment state until an admin
// resolves it.
type InitiateDispute struct {
	repo     domain.Repository
	notifier *notify.Dispatcher
}

func NewInitiateDispute(
	repo domain.Repository,
	notifier *notify.Dispatcher,
) *InitiateDispute {
	return &InitiateDispute{
		repo:     repo,
		notifier: notifier,
	}
}

func (uc *InitiateDispute) Execute(
	ctx context.Context,
	actorID uint,
	bookingID uint,
	reason string,
) (*models.Booking, error) {

	now := time.Now().UTC()
	if reason == "" {
		return nil, httperr.ErrBusiness("dispute_reason_required")
	}

	var b *models.Booking
	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		var err error
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return httperr.ErrBusiness("booking_not_found")
		}
		if b.CoachID != actorID && domain.PayerID(b) != actorID {
			return httperr.ErrBusiness("unauthorized_actor")
		}

		old := b.FulfillmentStatus
		if err := domain.Dispute(b, now); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		return transition(ctx, tx, b.ID, nil,
			fieldFulfillment, old, b.FulfillmentStatus,
			uintPtr(actorID), reason)
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"booking_id": b.ID,
		"reason":     reason,
	}
	uc.notifier.Notify(notify.AdminQueue, notify.KindDisputeOpened, payload)
	if other := uc.otherParty(b, actorID); other != 0 {
		uc.notifier.Notify(other, notify.KindDisputeOpened, payload)
	}

	return b, nil
}

func (uc *InitiateDispute) otherParty(b *models.Booking, actorID uint) uint {
	if b.CoachID != actorID {
		return b.CoachID
	}
	return domain.PayerID(b)
}

// ======================================================
// RESOLVE
// ======================================================

// ResolveDispute closes a dispute in the coach's favor: the session counts
// as completed and the captured money stays where it is. Resolutions that
// return money to the client go through RefundBooking instead.
type ResolveDispute struct {
	repo     domain.Repository
	notifier *notify.Dispatcher
}

func NewResolveDispute(
	repo domain.Repository,
	notifier *notify.Dispatcher,
) *ResolveDispute {
	return &ResolveDispute{
		repo:     repo,
		notifier: notifier,
	}
}

func (uc *ResolveDispute) Execute(
	ctx context.Context,
	adminID uint,
	bookingID uint,
	note string,
) (*models.Booking, error) {

	now := time.Now().UTC()
	if note == "" {
		note = "dispute_resolved"
	}

	var b *models.Booking
	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		var err error
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return httperr.ErrBusiness("booking_not_found")
		}

		old := b.FulfillmentStatus
		if err := domain.Resolve(b, now); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		return transition(ctx, tx, b.ID, nil,
			fieldFulfillment, old, b.FulfillmentStatus,
			uintPtr(adminID), note)
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"booking_id": b.ID,
		"note":       note,
	}
	uc.notifier.Notify(b.CoachID, notify.KindDisputeResolved, payload)
	if payer := domain.PayerID(b); payer != 0 {
		uc.notifier.Notify(payer, notify.KindDisputeResolved, payload)
	}

	return b, nil
}
