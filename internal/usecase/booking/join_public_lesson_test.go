package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/payments"
)

func seedLesson(t *testing.T, repo *memRepo, proc *fakeProcessor, coach *models.User, min, max int) *models.Booking {
	t.Helper()

	create := NewCreatePublicGroupLesson(repo, proc)
	b, err := create.Execute(context.Background(), CreatePublicGroupLessonInput{
		CoachID:             coach.ID,
		Start:               time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour),
		DurationMin:         60,
		MinParticipants:     min,
		MaxParticipants:     max,
		PricePerPersonCents: 2500,
	})
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	return b
}

func TestJoinReservesSeatWithHold(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	user := seedClient(repo)
	lesson := seedLesson(t, repo, proc, coach, 2, 4)

	join := NewJoinPublicLesson(repo, proc, newTestNotifier(), 30*time.Minute)
	p, err := join.Execute(context.Background(), lesson.ID, user.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if p.Status != string(domain.ParticipantAwaitingPayment) {
		t.Fatalf("status = %s, want awaiting_payment", p.Status)
	}
	if p.HoldRef == "" || p.AmountCents != 2500 {
		t.Fatalf("hold=%q amount=%d", p.HoldRef, p.AmountCents)
	}
	if p.ExpiresAt == nil {
		t.Fatalf("seat hold has no expiry")
	}
	if lesson.PublicGroup.CurrentParticipants != 1 {
		t.Fatalf("current = %d, want 1", lesson.PublicGroup.CurrentParticipants)
	}
}

func TestJoinRejectsDuplicate(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	user := seedClient(repo)
	lesson := seedLesson(t, repo, proc, coach, 2, 4)

	join := NewJoinPublicLesson(repo, proc, newTestNotifier(), 30*time.Minute)
	if _, err := join.Execute(context.Background(), lesson.ID, user.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := join.Execute(context.Background(), lesson.ID, user.ID); !httperr.IsBusiness(err, "duplicate_participant") {
		t.Fatalf("want duplicate_participant, got %v", err)
	}
}

// Overbooking is the one invariant that must survive concurrency: many
// joiners racing for the last seats never push current past max.
func TestConcurrentJoinsNeverOverbook(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	lesson := seedLesson(t, repo, proc, coach, 2, 3)

	const joiners = 10
	users := make([]*models.User, joiners)
	for i := range users {
		users[i] = repo.addUser(&models.User{Name: fmt.Sprintf("u%d", i)})
	}

	join := NewJoinPublicLesson(repo, proc, newTestNotifier(), 30*time.Minute)

	var wg sync.WaitGroup
	errs := make([]error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = join.Execute(context.Background(), lesson.ID, users[i].ID)
		}(i)
	}
	wg.Wait()

	var won, full int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case httperr.IsBusiness(err, "capacity_full"):
			full++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}

	if won != 3 {
		t.Fatalf("winners = %d, want exactly 3", won)
	}
	if full != joiners-3 {
		t.Fatalf("capacity_full = %d, want %d", full, joiners-3)
	}

	d := lesson.PublicGroup
	if d.CurrentParticipants != 3 {
		t.Fatalf("current = %d, want 3", d.CurrentParticipants)
	}
	if d.CapacityStatus != string(domain.CapacityFull) {
		t.Fatalf("capacity = %s, want full", d.CapacityStatus)
	}

	// Losers whose holds were created before losing the seat must have had
	// them compensated; every surviving hold belongs to a winner.
	if proc.holds-len(proc.cancels) != won {
		t.Fatalf("live holds = %d, want %d", proc.holds-len(proc.cancels), won)
	}
}

func TestConfirmCapturesSeat(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	user := seedClient(repo)
	lesson := seedLesson(t, repo, proc, coach, 2, 4)

	join := NewJoinPublicLesson(repo, proc, newTestNotifier(), 30*time.Minute)
	if _, err := join.Execute(context.Background(), lesson.ID, user.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	confirm := NewConfirmLessonPayment(repo, proc, newTestNotifier())
	p, err := confirm.Execute(context.Background(), lesson.ID, user.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if p.Status != string(domain.ParticipantConfirmed) {
		t.Fatalf("status = %s, want confirmed", p.Status)
	}
	if p.PaymentStatus != string(domain.ParticipantPaymentCaptured) || p.ChargeRef == "" {
		t.Fatalf("payment=%s charge=%q", p.PaymentStatus, p.ChargeRef)
	}
	if lesson.PublicGroup.CapturedParticipants != 1 {
		t.Fatalf("captured = %d, want 1", lesson.PublicGroup.CapturedParticipants)
	}
}

func TestConfirmDeclineFreesTheSeat(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	user := seedClient(repo)
	other := seedClient(repo)
	lesson := seedLesson(t, repo, proc, coach, 2, 2)

	join := NewJoinPublicLesson(repo, proc, newTestNotifier(), 30*time.Minute)
	if _, err := join.Execute(context.Background(), lesson.ID, user.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	proc.captureErr = errors.New("card_declined")
	confirm := NewConfirmLessonPayment(repo, proc, newTestNotifier())
	if _, err := confirm.Execute(context.Background(), lesson.ID, user.ID); !httperr.IsBusiness(err, "payment_failed") {
		t.Fatalf("want payment_failed, got %v", err)
	}

	if lesson.PublicGroup.CurrentParticipants != 0 {
		t.Fatalf("seat not freed, current = %d", lesson.PublicGroup.CurrentParticipants)
	}
	if lesson.PublicGroup.CapacityStatus != string(domain.CapacityOpen) {
		t.Fatalf("capacity = %s, want open again", lesson.PublicGroup.CapacityStatus)
	}

	// The freed seat is takeable.
	proc.captureErr = nil
	if _, err := join.Execute(context.Background(), lesson.ID, other.ID); err != nil {
		t.Fatalf("join after decline: %v", err)
	}
}

// A capture rejection can mean a racing confirm already took the money.
// The loser must adopt the landed charge, never release a paid seat.
func TestConfirmAdoptsRacingCapture(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	user := seedClient(repo)
	lesson := seedLesson(t, repo, proc, coach, 2, 4)

	join := NewJoinPublicLesson(repo, proc, newTestNotifier(), 30*time.Minute)
	p, err := join.Execute(context.Background(), lesson.ID, user.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	// The racing winner captured this hold between our lock and our
	// capture call; our own capture now gets a definite rejection.
	proc.mu.Lock()
	it := proc.intents[p.HoldRef]
	it.state = payments.HoldCaptured
	it.charge = "ch_" + p.HoldRef
	proc.mu.Unlock()

	confirm := NewConfirmLessonPayment(repo, proc, newTestNotifier())
	got, err := confirm.Execute(context.Background(), lesson.ID, user.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if got.Status != string(domain.ParticipantConfirmed) {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
	if got.ChargeRef != "ch_"+p.HoldRef {
		t.Fatalf("charge = %q, want the landed ch_%s", got.ChargeRef, p.HoldRef)
	}
	if len(proc.cancels) != 0 {
		t.Fatalf("a captured hold was cancelled: %v", proc.cancels)
	}
	if lesson.PublicGroup.CurrentParticipants != 1 || lesson.PublicGroup.CapturedParticipants != 1 {
		t.Fatalf("current=%d captured=%d, want 1/1: the paid seat must stay",
			lesson.PublicGroup.CurrentParticipants, lesson.PublicGroup.CapturedParticipants)
	}
}

func TestRejoinAfterExpiredHold(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	user := seedClient(repo)
	lesson := seedLesson(t, repo, proc, coach, 2, 4)

	join := NewJoinPublicLesson(repo, proc, newTestNotifier(), 30*time.Minute)
	p, err := join.Execute(context.Background(), lesson.ID, user.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	// Age the hold out.
	past := time.Now().UTC().Add(-time.Minute)
	p.ExpiresAt = &past

	p2, err := join.Execute(context.Background(), lesson.ID, user.ID)
	if err != nil {
		t.Fatalf("rejoin after expiry: %v", err)
	}
	if p2.ID != p.ID {
		t.Fatalf("rejoin must revive the existing row, got new id %d", p2.ID)
	}
	if p2.Status != string(domain.ParticipantAwaitingPayment) || p2.ExpiresAt == nil || !p2.ExpiresAt.After(time.Now().UTC()) {
		t.Fatalf("revived row not reset: status=%s expires=%v", p2.Status, p2.ExpiresAt)
	}
}
