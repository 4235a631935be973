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

type CreatePrivateGroupBookingInput struct {
	OrganizerID uint
	CoachID     uint

	Start       time.Time
	DurationMin int
	Location    string

	// Everyone attending, organizer included if they attend.
	ParticipantIDs []uint
}

// ======================================================
// USE CASE
// ======================================================

type CreatePrivateGroupBooking struct {
	repo      domain.Repository
	processor payments.Processor
	notifier  *notify.Dispatcher
	idemCache *cache.IdempotencyCache
	fees      pricing.FeeSchedule
}

func NewCreatePrivateGroupBooking(
	repo domain.Repository,
	processor payments.Processor,
	notifier *notify.Dispatcher,
	idemCache *cache.IdempotencyCache,
	fees pricing.FeeSchedule,
) *CreatePrivateGroupBooking {
	return &CreatePrivateGroupBooking{
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

func (uc *CreatePrivateGroupBooking) Execute(
	ctx context.Context,
	in CreatePrivateGroupBookingInput,
) (*models.Booking, error) {

	now := time.Now().UTC()

	// --------------------------------------------------
	// 1. Validation
	// --------------------------------------------------
	if in.DurationMin <= 0 {
		return nil, httperr.ErrBusiness("invalid_duration")
	}
	if !in.Start.After(now) {
		return nil, httperr.ErrBusiness("start_in_past")
	}

	headcount := len(in.ParticipantIDs)
	if headcount < 2 {
		return nil, httperr.ErrBusiness("invalid_headcount")
	}
	seen := make(map[uint]bool, headcount)
	for _, id := range in.ParticipantIDs {
		if seen[id] {
			return nil, httperr.ErrBusiness("duplicate_participant")
		}
		seen[id] = true
	}

	// --------------------------------------------------
	// 2. Idempotent creation guard
	// --------------------------------------------------
	key := domain.IdempotencyKey(in.OrganizerID, in.CoachID, in.Start, in.ParticipantIDs)

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
	// 4. Tier price for this headcount, frozen breakdown
	// --------------------------------------------------
	tiers, err := uc.repo.ListTiers(ctx, in.CoachID)
	if err != nil {
		return nil, err
	}

	tier, err := pricing.ResolveTier(tiers, headcount)
	if err != nil {
		return nil, err
	}

	gross := tier.PricePerPersonCents * int64(headcount)
	breakdown, err := pricing.FromClientCharge(gross, uc.fees)
	if err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// 5. Conflict check + creation, one transaction
	// --------------------------------------------------
	end := in.Start.Add(time.Duration(in.DurationMin) * time.Minute)

	b := &models.Booking{
		Type:              string(domain.TypePrivateGroup),
		CoachID:           in.CoachID,
		StartTime:         in.Start,
		EndTime:           end,
		DurationMin:       in.DurationMin,
		Location:          in.Location,
		ApprovalStatus:    string(domain.ApprovalPendingReview),
		FulfillmentStatus: string(domain.FulfillmentScheduled),
		IdempotencyKey:    key,
		PrivateGroup: &models.PrivateGroupBookingDetails{
			OrganizerID: in.OrganizerID,
			Headcount:   headcount,
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

		// Attendance rows; the organizer owes the whole gross, so the
		// per-seat amount here is zero.
		for _, userID := range in.ParticipantIDs {
			p := &models.BookingParticipant{
				BookingID:     b.ID,
				UserID:        userID,
				Status:        string(domain.ParticipantConfirmed),
				PaymentStatus: string(domain.ParticipantPaymentRequiresMethod),
			}
			if err := tx.CreateParticipant(ctx, p); err != nil {
				return err
			}
		}

		return transition(ctx, tx, b.ID, nil,
			fieldApproval, "", string(domain.ApprovalPendingReview),
			uintPtr(in.OrganizerID), "booking_created")
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
		"organizer":  in.OrganizerID,
		"headcount":  headcount,
		"start":      in.Start,
	})

	return b, nil
}
