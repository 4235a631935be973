package booking

import (
	"context"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/notify"
)

type AcceptBooking struct {
	repo          domain.Repository
	notifier      *notify.Dispatcher
	paymentWindow time.Duration
}

func NewAcceptBooking(
	repo domain.Repository,
	notifier *notify.Dispatcher,
	paymentWindow time.Duration,
) *AcceptBooking {
	return &AcceptBooking{
		repo:          repo,
		notifier:      notifier,
		paymentWindow: paymentWindow,
	}
}

func (uc *AcceptBooking) Execute(
	ctx context.Context,
	coachID uint,
	bookingID uint,
) (*models.Booking, error) {

	now := time.Now().UTC()

	var b *models.Booking
	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		var err error
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return httperr.ErrBusiness("booking_not_found")
		}
		if b.CoachID != coachID {
			return httperr.ErrBusiness("unauthorized_actor")
		}

		old := b.ApprovalStatus
		if err := domain.Accept(b, now); err != nil {
			return err
		}

		// The only point where the payment window is fixed.
		if bd := domain.Breakdown(b); bd != nil && bd.PaymentDueAt == nil {
			due := now.Add(uc.paymentWindow)
			bd.PaymentDueAt = &due
		}

		if err := uc.saveWithDetails(ctx, tx, b); err != nil {
			return err
		}
		return transition(ctx, tx, b.ID, nil,
			fieldApproval, old, b.ApprovalStatus,
			uintPtr(coachID), "coach_accepted")
	})
	if err != nil {
		return nil, err
	}

	if payer := domain.PayerID(b); payer != 0 {
		ctxData := map[string]any{"booking_id": b.ID}
		if bd := domain.Breakdown(b); bd != nil {
			ctxData["amount_cents"] = bd.GrossAmountCents
			ctxData["payment_due_at"] = bd.PaymentDueAt
		}
		uc.notifier.Notify(payer, notify.KindBookingAccepted, ctxData)
	}

	return b, nil
}

func (uc *AcceptBooking) saveWithDetails(ctx context.Context, tx domain.Repository, b *models.Booking) error {
	if err := tx.UpdateBooking(ctx, b); err != nil {
		return err
	}
	switch {
	case b.Individual != nil:
		return tx.SaveIndividualDetails(ctx, b.Individual)
	case b.PrivateGroup != nil:
		return tx.SavePrivateGroupDetails(ctx, b.PrivateGroup)
	}
	return nil
}
