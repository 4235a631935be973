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

// JoinPublicLesson reserves a seat without ever exceeding capacity. The
// flow is a short saga: check-and-reserve under a row lock, processor hold
// outside any transaction, then confirm under the lock again. Overbooking
// is a hard invariant violation, so both transactions take the lesson row
// lock before counting.
type JoinPublicLesson struct {
	repo      domain.Repository
	processor payments.Processor
	notifier  *notify.Dispatcher
	seatHold  time.Duration
}

func NewJoinPublicLesson(
	repo domain.Repository,
	processor payments.Processor,
	notifier *notify.Dispatcher,
	seatHold time.Duration,
) *JoinPublicLesson {
	return &JoinPublicLesson{
		repo:      repo,
		processor: processor,
		notifier:  notifier,
		seatHold:  seatHold,
	}
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *JoinPublicLesson) Execute(
	ctx context.Context,
	lessonID uint,
	userID uint,
) (*models.BookingParticipant, error) {

	now := time.Now().UTC()

	// --------------------------------------------------
	// 1. Check under lock: open, no duplicate, seat free
	// --------------------------------------------------
	var price int64
	var coachID uint

	err := uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		d, _, _, err := uc.checkJoinable(ctx, tx, lessonID, userID, now)
		if err != nil {
			return err
		}
		price = d.PricePerPersonCents

		b, err := tx.GetBookingByID(ctx, lessonID)
		if err != nil {
			return err
		}
		coachID = b.CoachID
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The hold rides to the coach's connected account.
	coach, err := uc.repo.GetUserByID(ctx, coachID)
	if err != nil {
		return nil, err
	}
	coachAccount := coach.PayoutAccountID

	// --------------------------------------------------
	// 2. Processor hold, outside any transaction
	// --------------------------------------------------
	holdRef, err := uc.processor.CreateHold(ctx, payments.HoldInput{
		AmountCents:        price,
		DestinationAccount: coachAccount,
		Metadata: map[string]string{
			"booking_id": fmt.Sprintf("%d", lessonID),
			"user_id":    fmt.Sprintf("%d", userID),
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		log.Printf("join lesson=%d user=%d: hold failed: %v", lessonID, userID, err)
		return nil, httperr.ErrBusiness("processor_unavailable")
	}

	// --------------------------------------------------
	// 3. Confirm under lock; compensate the hold if the
	//    seat vanished in between
	// --------------------------------------------------
	expiry := now.Add(uc.seatHold)
	participant := &models.BookingParticipant{
		BookingID:     lessonID,
		UserID:        userID,
		Status:        string(domain.ParticipantAwaitingPayment),
		PaymentStatus: string(domain.ParticipantPaymentCreated),
		AmountCents:   price,
		HoldRef:       holdRef,
		ExpiresAt:     &expiry,
	}

	err = uc.repo.Transaction(ctx, func(tx domain.Repository) error {
		d, count, cancelled, err := uc.checkJoinable(ctx, tx, lessonID, userID, now)
		if err != nil {
			return err
		}

		oldStatus := ""
		if cancelled != nil {
			// Revive the cancelled row in place: the (booking, user)
			// uniqueness constraint allows one row per user, ever.
			oldStatus = cancelled.Status
			cancelled.Status = participant.Status
			cancelled.PaymentStatus = participant.PaymentStatus
			cancelled.AmountCents = participant.AmountCents
			cancelled.HoldRef = participant.HoldRef
			cancelled.ChargeRef = ""
			cancelled.ExpiresAt = participant.ExpiresAt
			cancelled.CancelledAt = nil
			if err := tx.SaveParticipant(ctx, cancelled); err != nil {
				return err
			}
			participant = cancelled
		} else if err := tx.CreateParticipant(ctx, participant); err != nil {
			return err
		}

		d.CurrentParticipants = int(count) + 1
		d.AuthorizedParticipants++
		oldCapacity := d.CapacityStatus
		if d.CurrentParticipants >= d.MaxParticipants {
			d.CapacityStatus = string(domain.CapacityFull)
		}
		if err := tx.SavePublicGroupDetails(ctx, d); err != nil {
			return err
		}

		if err := transition(ctx, tx, lessonID, uintPtr(participant.ID),
			fieldParticipantStatus, oldStatus, string(domain.ParticipantAwaitingPayment),
			uintPtr(userID), "seat_reserved"); err != nil {
			return err
		}
		return transition(ctx, tx, lessonID, nil,
			fieldCapacity, oldCapacity, d.CapacityStatus,
			uintPtr(userID), "seat_reserved")
	})
	if err != nil {
		// The seat was lost between the hold and the confirm; release the
		// reservation at the processor.
		if cancelErr := uc.processor.CancelHold(ctx, holdRef); cancelErr != nil {
			log.Printf("join lesson=%d user=%d: compensating cancel of hold %s failed: %v",
				lessonID, userID, holdRef, cancelErr)
		}
		return nil, err
	}

	uc.notifier.Notify(userID, notify.KindSeatReserved, map[string]any{
		"booking_id": lessonID,
		"expires_at": expiry,
	})

	return participant, nil
}

// checkJoinable re-reads the lesson under a row lock and verifies the three
// join preconditions: capacity open, no existing live row for this user,
// and a captured-or-held seat count below the maximum. Expired unpaid
// holds do not count. A previously cancelled row for this user is returned
// so the caller can revive it instead of violating the unique index.
func (uc *JoinPublicLesson) checkJoinable(
	ctx context.Context,
	tx domain.Repository,
	lessonID uint,
	userID uint,
	now time.Time,
) (*models.PublicGroupLessonDetails, int64, *models.BookingParticipant, error) {

	b, err := tx.GetBookingForUpdate(ctx, lessonID)
	if err != nil {
		return nil, 0, nil, httperr.ErrBusiness("lesson_not_found")
	}
	if domain.Type(b.Type) != domain.TypePublicGroup || b.PublicGroup == nil {
		return nil, 0, nil, httperr.ErrBusiness("not_a_public_lesson")
	}

	d := b.PublicGroup
	switch domain.CapacityStatus(d.CapacityStatus) {
	case domain.CapacityOpen:
	case domain.CapacityFull:
		return nil, 0, nil, httperr.ErrBusiness("capacity_full")
	default:
		return nil, 0, nil, httperr.ErrBusiness("invalid_state")
	}

	existing, err := tx.GetParticipant(ctx, lessonID, userID)
	if err != nil {
		return nil, 0, nil, err
	}
	var cancelled *models.BookingParticipant
	if existing != nil {
		expired := existing.ExpiresAt != nil && existing.ExpiresAt.Before(now) &&
			existing.Status == string(domain.ParticipantAwaitingPayment)
		if existing.Status != string(domain.ParticipantCancelled) && !expired {
			return nil, 0, nil, httperr.ErrBusiness("duplicate_participant")
		}
		cancelled = existing
	}

	count, err := tx.CountActiveParticipants(ctx, lessonID, now)
	if err != nil {
		return nil, 0, nil, err
	}
	if count >= int64(d.MaxParticipants) {
		return nil, 0, nil, httperr.ErrBusiness("capacity_full")
	}

	return d, count, cancelled, nil
}
