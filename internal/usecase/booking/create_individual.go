package booking

import (
	"context"
	"time"

	"github.com/peakform-app/peakform-api/internal/cache"
	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/notify"
	"github.com/peakform-app/peakform-api/internal/payments"
	"github.com/peakform-app/peakform-api/internal/pricing"
)

// ======================================================
// INPUT
// ======================================================

type CreateIndividualBookingInput struct {
	ClientID uint
	CoachID  uint

	Start       time.Time
	DurationMin int
	Location    string

	// Coach's hourly take-home rate; 0 falls back to the coach profile.
	HourlyRateCents int64
}

// ======================================================
// USE CASE
// ======================================================

type CreateIndividualBooking struct {
	repo      domain.Repository
	processor payments.Processor
	notifier  *notify.Dispatcher
	idemCache *cache.IdempotencyCache
	fees      pricing.FeeSchedule
}

func NewCreateIndividualBooking(
	repo domain.Repository,
	processor payments.Processor,
	notifier *notify.Dispatcher,
	idemCache *cache.IdempotencyCache,
	fees pricing.FeeSchedule,
) *CreateIndividualBooking {
	return &CreateIndividualBooking{
		repo:      repo,
		processor: processor,
		notifier:  notifier,
		idemCache: idemCache,
		fees:      fees,
	}
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *CreateIndividualBooking) Execute(
	ctx context.Context,
	in CreateIndividualBookingInput,
) (*models.Booking, error) {

	now := time.Now().UTC()

	// --------------------------------------------------
	// 1. Validation (before any side effect)
	// --------------------------------------------------
	if in.DurationMin <= 0 {
		return nil, httperr.ErrBusiness("invalid_duration")
	}
	if !in.Start.After(now) {
		return nil, httperr.ErrBusiness("start_in_past")
	}

	// --------------------------------------------------
	// 2. Idempotent creation guard (24h window)
	// --------------------------------------------------
	key := domain.IdempotencyKey(in.ClientID, in.CoachID, in.Start, nil)

	if id, ok := uc.idemCache.Lookup(ctx, key); ok {
		if existing, err := uc.repo.GetBookingByID(ctx, id); err == nil {
			return existing, nil
		}
	}

	existing, err := uc.repo.FindBookingByIdempotencyKey(ctx, key, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	// --------------------------------------------------
	// 3. Coach + payout account capability
	// --------------------------------------------------
	coach, err := uc.repo.GetUserByID(ctx, in.CoachID)
	if err != nil {
		return nil, httperr.ErrBusiness("coach_not_found")
	}

	if err := verifyPayoutAccount(ctx, uc.processor, coach); err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// 4. Frozen pricing breakdown
	// --------------------------------------------------
	rate := in.HourlyRateCents
	if rate == 0 {
		rate = coach.HourlyRateCents
	}

	breakdown, err := pricing.FromHourlyRate(rate, in.DurationMin, uc.fees)
	if err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// 5. Conflict check + creation, one transaction
	// --------------------------------------------------
	end := in.Start.Add(time.Duration(in.DurationMin) * time.Minute)

	b := &models.Booking{
		Type:              string(domain.TypeIndividual),
		CoachID:           in.CoachID,
		StartTime:         in.Start,
		EndTime:           end,
		DurationMin:       in.DurationMin,
		Location:          in.Location,
		ApprovalStatus:    string(domain.ApprovalPendingReview),
		FulfillmentStatus: string(domain.FulfillmentScheduled),
		IdempotencyKey:    key,
		Individual: &models.IndividualBookingDetails{
			ClientID: in.ClientID,
			PaymentBreakdown: models.PaymentBreakdown{
				GrossAmountCents:  breakdown.ClientPaysCents,
				ProcessorFeeCents: breakdown.ProcessorFeeCents,
				PlatformFeeCents:  breakdown.PlatformFeeCents,
				CoachPayoutCents:  breakdown.CoachPayoutCents,
				PaymentStatus:     string(domain.PaymentAwaitingClient),
			},
		},
	}

	err = uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		if err := tx.AssertNoScheduleConflict(ctx, in.CoachID, in.Start, end); err != nil {
			return err
		}
		if err := tx.CreateBooking(ctx, b); err != nil {
			return err
		}
		return transition(ctx, tx, b.ID, nil,
			fieldApproval, "", string(domain.ApprovalPendingReview),
			uintPtr(in.ClientID), "booking_created")
	})
	if err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// 6. Fast-path cache + coach notification
	// --------------------------------------------------
	uc.idemCache.Store(ctx, key, b.ID)

	uc.notifier.Notify(in.CoachID, notify.KindBookingRequested, map[string]any{
		"booking_id": b.ID,
		"client_id":  in.ClientID,
		"start":      in.Start,
	})

	return b, nil
}
