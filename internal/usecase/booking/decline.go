package booking

import (
	"context"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/notify"
)

type DeclineBooking struct {
	repo     domain.Repository
	notifier *notify.Dispatcher
}

func NewDeclineBooking(
	repo domain.Repository,
	notifier *notify.Dispatcher,
) *DeclineBooking {
	return &DeclineBooking{
		repo:     repo,
		notifier: notifier,
	}
}

func (uc *DeclineBooking) Execute(
	ctx context.Context,
	coachID uint,
	bookingID uint,
) (*models.Booking, error) {

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
		if err := domain.Decline(b); err != nil {
			return err
		}

		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		return transition(ctx, tx, b.ID, nil,
			fieldApproval, old, b.ApprovalStatus,
			uintPtr(coachID), "coach_declined")
	})
	if err != nil {
		return nil, err
	}

	if payer := domain.PayerID(b); payer != 0 {
		uc.notifier.Notify(payer, notify.KindBookingDeclined, map[string]any{
			"booking_id": b.ID,
		})
	}

	return b, nil
}
