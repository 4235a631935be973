package jobs

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/notify"
	"github.com/peakform-app/peakform-api/internal/payments"
	usecase "github.com/peakform-app/peakform-api/internal/usecase/booking"
)

// batchSize caps how many rows one sweep pass touches per concern.
const batchSize = 100

// ======================================================
// ENFORCER
// ======================================================

// Enforcer is the background sweep over time-based obligations: payment
// reminders and lapses, stale approval requests, expired seat holds,
// lessons that reach their start below minimum enrollment, and processor
// holds no local row adopted.
//
// Every write it performs is a conditional update keyed on the state it
// expects, so overlapping runs (two instances, or a manual trigger racing
// the ticker) each settle a given row at most once. There is no leader
// election and none is needed.
type Enforcer struct {
	repo      domain.Repository
	processor payments.Processor
	notifier  *notify.Dispatcher
	releaser  *usecase.ReleaseSeat
	cancel    *usecase.CancelBooking

	reminderMinLead time.Duration
	reminderMaxLead time.Duration
	holdGrace       time.Duration
	interval        time.Duration
}

func NewEnforcer(
	repo domain.Repository,
	processor payments.Processor,
	notifier *notify.Dispatcher,
	releaser *usecase.ReleaseSeat,
	cancel *usecase.CancelBooking,
	reminderMinLead time.Duration,
	reminderMaxLead time.Duration,
	holdGrace time.Duration,
	interval time.Duration,
) *Enforcer {
	return &Enforcer{
		repo:            repo,
		processor:       processor,
		notifier:        notifier,
		releaser:        releaser,
		cancel:          cancel,
		reminderMinLead: reminderMinLead,
		reminderMaxLead: reminderMaxLead,
		holdGrace:       holdGrace,
		interval:        interval,
	}
}

// Result reports what one pass actually did, for the job endpoint and logs.
type Result struct {
	RemindersSent    int      `json:"reminders_sent"`
	Cancelled        int      `json:"cancelled"`
	Expired          int      `json:"expired"`
	SeatsReleased    int      `json:"seats_released"`
	LessonsCancelled int      `json:"lessons_cancelled"`
	OrphanHolds      int      `json:"orphan_holds_cancelled"`
	Errors           []string `json:"errors,omitempty"`
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Run ticks until the context is cancelled.
func (e *Enforcer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	log.Printf("enforcer: started, interval=%s", e.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("enforcer: stopped")
			return
		case <-ticker.C:
			res := e.RunOnce(ctx)
			if res.RemindersSent+res.Cancelled+res.Expired+res.SeatsReleased+res.LessonsCancelled+res.OrphanHolds > 0 || len(res.Errors) > 0 {
				log.Printf("enforcer: reminders=%d cancelled=%d expired=%d seats_released=%d lessons_cancelled=%d orphan_holds=%d errors=%d",
					res.RemindersSent, res.Cancelled, res.Expired,
					res.SeatsReleased, res.LessonsCancelled, res.OrphanHolds, len(res.Errors))
			}
		}
	}
}

// RunOnce executes one full sweep. Each item is isolated: a failure is
// recorded and the pass moves on.
func (e *Enforcer) RunOnce(ctx context.Context) *Result {
	now := time.Now().UTC()
	res := &Result{}

	e.sendFinalReminders(ctx, now, res)
	e.cancelLapsedPayments(ctx, now, res)
	e.expireStaleRequests(ctx, now, res)
	e.releaseExpiredSeatHolds(ctx, now, res)
	e.cancelUnderMinimumLessons(ctx, now, res)
	e.reconcileOrphanHolds(ctx, now, res)

	return res
}

// --------------------------------------------------
// Final payment reminders
// --------------------------------------------------

func (e *Enforcer) sendFinalReminders(ctx context.Context, now time.Time, res *Result) {
	due, err := e.repo.ListReminderDue(ctx, now.Add(e.reminderMinLead), now.Add(e.reminderMaxLead), batchSize)
	if err != nil {
		res.errorf("list reminders: %v", err)
		return
	}

	for i := range due {
		b := &due[i]
		won, err := e.repo.MarkReminderSent(ctx, b, now)
		if err != nil {
			res.errorf("reminder booking=%d: %v", b.ID, err)
			continue
		}
		if !won {
			continue // another run already sent it
		}

		if payer := domain.PayerID(b); payer != 0 {
			payload := map[string]any{"booking_id": b.ID}
			if bd := domain.Breakdown(b); bd != nil {
				payload["amount_cents"] = bd.GrossAmountCents
				payload["payment_due_at"] = bd.PaymentDueAt
			}
			e.notifier.Notify(payer, notify.KindPaymentFinalReminder, payload)
		}
		res.RemindersSent++
	}
}

// --------------------------------------------------
// Lapsed payment windows
// --------------------------------------------------

func (e *Enforcer) cancelLapsedPayments(ctx context.Context, now time.Time, res *Result) {
	lapsed, err := e.repo.ListPaymentLapsed(ctx, now, batchSize)
	if err != nil {
		res.errorf("list lapsed: %v", err)
		return
	}

	for i := range lapsed {
		b := &lapsed[i]
		won, err := e.repo.CancelLapsedPayment(ctx, b, now)
		if err != nil {
			res.errorf("lapse booking=%d: %v", b.ID, err)
			continue
		}
		if !won {
			continue
		}

		// The audit rows committed inside CancelLapsedPayment's tx; only
		// the notifications remain.
		payload := map[string]any{"booking_id": b.ID}
		if payer := domain.PayerID(b); payer != 0 {
			e.notifier.Notify(payer, notify.KindPaymentLapsed, payload)
		}
		e.notifier.Notify(b.CoachID, notify.KindPaymentLapsed, payload)
		res.Cancelled++
	}
}

// --------------------------------------------------
// Stale approval requests
// --------------------------------------------------

// expireStaleRequests closes pending_review bookings whose start time has
// passed without a coach decision.
func (e *Enforcer) expireStaleRequests(ctx context.Context, now time.Time, res *Result) {
	stale, err := e.repo.ListStalePendingReview(ctx, now, batchSize)
	if err != nil {
		res.errorf("list stale: %v", err)
		return
	}

	for i := range stale {
		id := stale[i].ID
		err := e.repo.Transaction(ctx, func(tx domain.Repository) error {
			b, err := tx.GetBookingForUpdate(ctx, id)
			if err != nil {
				return err
			}

			old := b.ApprovalStatus
			if err := domain.Expire(b); err != nil {
				return nil // re-checked under lock: someone else moved it
			}
			if err := tx.UpdateBooking(ctx, b); err != nil {
				return err
			}
			res.Expired++
			return tx.RecordTransition(ctx, &models.StateTransition{
				BookingID: b.ID,
				Field:     "approval_status",
				OldValue:  old,
				NewValue:  b.ApprovalStatus,
				Reason:    "request_expired",
			})
		})
		if err != nil {
			res.errorf("expire booking=%d: %v", id, err)
		}
	}
}

// --------------------------------------------------
// Expired seat holds
// --------------------------------------------------

func (e *Enforcer) releaseExpiredSeatHolds(ctx context.Context, now time.Time, res *Result) {
	holds, err := e.repo.ListExpiredSeatHolds(ctx, now, batchSize)
	if err != nil {
		res.errorf("list expired holds: %v", err)
		return
	}

	for i := range holds {
		p := &holds[i]
		if err := e.releaser.Execute(ctx, p.BookingID, p.UserID, "seat_hold_expired"); err != nil {
			res.errorf("release lesson=%d user=%d: %v", p.BookingID, p.UserID, err)
			continue
		}
		e.notifier.Notify(p.UserID, notify.KindSeatReleased, map[string]any{
			"booking_id": p.BookingID,
		})
		res.SeatsReleased++
	}
}

// --------------------------------------------------
// Lessons below minimum at start
// --------------------------------------------------

func (e *Enforcer) cancelUnderMinimumLessons(ctx context.Context, now time.Time, res *Result) {
	lessons, err := e.repo.ListLessonsBelowMinimum(ctx, now, batchSize)
	if err != nil {
		res.errorf("list below minimum: %v", err)
		return
	}

	for i := range lessons {
		b := &lessons[i]
		// Cancelled on the coach's behalf; seat refunds ride the normal
		// cancellation path.
		if _, err := e.cancel.Execute(ctx, b.CoachID, b.ID, "below_minimum_enrollment"); err != nil {
			res.errorf("cancel lesson=%d: %v", b.ID, err)
			continue
		}
		res.LessonsCancelled++
	}
}

// --------------------------------------------------
// Orphan processor holds
// --------------------------------------------------

// reconcileOrphanHolds closes the hold-succeeds/local-write-fails window:
// a hold that has sat uncaptured at the processor past the grace period
// and that no local row still claims gets cancelled. Anything uncertain is
// left alone for the next pass.
func (e *Enforcer) reconcileOrphanHolds(ctx context.Context, now time.Time, res *Result) {
	holds, err := e.processor.ListStaleHolds(ctx, now.Add(-e.holdGrace), batchSize)
	if err != nil {
		res.errorf("list stale holds: %v", err)
		return
	}

	for _, h := range holds {
		bookingID := metaID(h.Metadata, "booking_id")
		if bookingID == 0 {
			continue // not created by this engine
		}

		adopted, err := e.holdAdopted(ctx, bookingID, h)
		if err != nil {
			res.errorf("orphan hold %s booking=%d: %v", h.HoldRef, bookingID, err)
			continue
		}
		if adopted {
			continue
		}

		if err := e.processor.CancelHold(ctx, h.HoldRef); err != nil {
			res.errorf("cancel orphan hold %s: %v", h.HoldRef, err)
			continue
		}
		log.Printf("enforcer: cancelled orphan hold %s booking=%d", h.HoldRef, bookingID)
		res.OrphanHolds++
	}
}

// holdAdopted reports whether any local row still claims the hold: a seat
// row for joins, the payment breakdown for booking-level charges.
func (e *Enforcer) holdAdopted(ctx context.Context, bookingID uint, h payments.StaleHold) (bool, error) {
	if userID := metaID(h.Metadata, "user_id"); userID != 0 {
		p, err := e.repo.GetParticipant(ctx, bookingID, userID)
		if err != nil {
			return false, err
		}
		return p != nil && p.HoldRef == h.HoldRef &&
			p.Status == string(domain.ParticipantAwaitingPayment), nil
	}

	b, err := e.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	bd := domain.Breakdown(b)
	return bd != nil && bd.HoldRef == h.HoldRef &&
		bd.PaymentStatus == string(domain.PaymentAwaitingClient), nil
}

func metaID(meta map[string]string, key string) uint {
	n, err := strconv.ParseUint(meta[key], 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

