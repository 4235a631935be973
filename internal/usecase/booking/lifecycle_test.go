package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/pricing"
)

var testFees = pricing.FeeSchedule{
	PlatformPercent:     15,
	ProcessorPercent:    2.9,
	ProcessorFixedCents: 30,
}

func seedCoach(repo *memRepo) *models.User {
	return repo.addUser(&models.User{
		Name:            "Coach",
		Role:            "coach",
		PayoutAccountID: "acct_1",
		HourlyRateCents: 10000,
	})
}

func seedClient(repo *memRepo) *models.User {
	return repo.addUser(&models.User{Name: "Client", Role: "client"})
}

// ======================================================
// Creation
// ======================================================

func TestCreateIndividualFreezesBreakdown(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	client := seedClient(repo)

	uc := NewCreateIndividualBooking(repo, proc, newTestNotifier(), nil, testFees)

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	b, err := uc.Execute(context.Background(), CreateIndividualBookingInput{
		ClientID:    client.ID,
		CoachID:     coach.ID,
		Start:       start,
		DurationMin: 60,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if b.ApprovalStatus != string(domain.ApprovalPendingReview) {
		t.Fatalf("approval = %s, want pending_review", b.ApprovalStatus)
	}

	bd := domain.Breakdown(b)
	if bd == nil {
		t.Fatalf("no breakdown")
	}
	if bd.GrossAmountCents != 12147 {
		t.Fatalf("gross = %d, want 12147", bd.GrossAmountCents)
	}
	if bd.CoachPayoutCents != 10000 {
		t.Fatalf("payout = %d, want exactly 10000", bd.CoachPayoutCents)
	}
	if got := bd.ProcessorFeeCents + bd.PlatformFeeCents + bd.CoachPayoutCents; got != bd.GrossAmountCents {
		t.Fatalf("parts sum %d != gross %d", got, bd.GrossAmountCents)
	}

	trs := repo.transitionsFor(b.ID, "approval_status")
	if len(trs) != 1 || trs[0].NewValue != string(domain.ApprovalPendingReview) {
		t.Fatalf("want one creation audit row, got %d", len(trs))
	}
}

func TestCreateIndividualIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	client := seedClient(repo)

	uc := NewCreateIndividualBooking(repo, proc, newTestNotifier(), nil, testFees)

	in := CreateIndividualBookingInput{
		ClientID:    client.ID,
		CoachID:     coach.ID,
		Start:       time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour),
		DurationMin: 60,
	}

	first, err := uc.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := uc.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("duplicate submission created booking %d, want %d", second.ID, first.ID)
	}
}

func TestCreateRejectsUnverifiedCoachAccount(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	proc.disabledAccount = true
	coach := seedCoach(repo)
	client := seedClient(repo)

	uc := NewCreateIndividualBooking(repo, proc, newTestNotifier(), nil, testFees)

	_, err := uc.Execute(context.Background(), CreateIndividualBookingInput{
		ClientID:    client.ID,
		CoachID:     coach.ID,
		Start:       time.Now().UTC().Add(48 * time.Hour),
		DurationMin: 60,
	})
	if !httperr.IsBusiness(err, "coach_account_unverified") {
		t.Fatalf("want coach_account_unverified, got %v", err)
	}
}

func TestCreateRejectsScheduleConflict(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	a := seedClient(repo)
	b := seedClient(repo)

	uc := NewCreateIndividualBooking(repo, proc, newTestNotifier(), nil, testFees)

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	if _, err := uc.Execute(context.Background(), CreateIndividualBookingInput{
		ClientID: a.ID, CoachID: coach.ID, Start: start, DurationMin: 60,
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := uc.Execute(context.Background(), CreateIndividualBookingInput{
		ClientID: b.ID, CoachID: coach.ID, Start: start.Add(30 * time.Minute), DurationMin: 60,
	})
	if !httperr.IsBusiness(err, "time_conflict") {
		t.Fatalf("want time_conflict, got %v", err)
	}
}

// ======================================================
// Accept / decline / pay
// ======================================================

func createAccepted(t *testing.T, repo *memRepo, proc *fakeProcessor, coach, client *models.User) *models.Booking {
	t.Helper()

	create := NewCreateIndividualBooking(repo, proc, newTestNotifier(), nil, testFees)
	b, err := create.Execute(context.Background(), CreateIndividualBookingInput{
		ClientID:    client.ID,
		CoachID:     coach.ID,
		Start:       time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour),
		DurationMin: 60,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	accept := NewAcceptBooking(repo, newTestNotifier(), 24*time.Hour)
	b, err = accept.Execute(context.Background(), coach.ID, b.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return b
}

func TestAcceptStartsPaymentWindowOnce(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	client := seedClient(repo)

	b := createAccepted(t, repo, proc, coach, client)

	bd := domain.Breakdown(b)
	if bd.PaymentDueAt == nil {
		t.Fatalf("accept did not set the payment deadline")
	}
	due := *bd.PaymentDueAt
	if d := time.Until(due); d < 23*time.Hour || d > 25*time.Hour {
		t.Fatalf("deadline %s not ~24h out", due)
	}

	accept := NewAcceptBooking(repo, newTestNotifier(), 24*time.Hour)
	if _, err := accept.Execute(context.Background(), coach.ID, b.ID); !httperr.IsBusiness(err, "invalid_state") {
		t.Fatalf("second accept: want invalid_state, got %v", err)
	}
	if !bd.PaymentDueAt.Equal(due) {
		t.Fatalf("deadline moved from %s to %s", due, bd.PaymentDueAt)
	}
}

func TestAcceptRequiresTheBookedCoach(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	other := seedCoach(repo)
	client := seedClient(repo)

	create := NewCreateIndividualBooking(repo, proc, newTestNotifier(), nil, testFees)
	b, err := create.Execute(context.Background(), CreateIndividualBookingInput{
		ClientID: client.ID, CoachID: coach.ID,
		Start: time.Now().UTC().Add(48 * time.Hour), DurationMin: 60,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	accept := NewAcceptBooking(repo, newTestNotifier(), 24*time.Hour)
	if _, err := accept.Execute(context.Background(), other.ID, b.ID); !httperr.IsBusiness(err, "unauthorized_actor") {
		t.Fatalf("want unauthorized_actor, got %v", err)
	}
}

func TestPayCapturesInsideWindow(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	client := seedClient(repo)

	b := createAccepted(t, repo, proc, coach, client)

	pay := NewPayBooking(repo, proc, newTestNotifier())
	b, err := pay.Execute(context.Background(), client.ID, b.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}

	bd := domain.Breakdown(b)
	if bd.PaymentStatus != string(domain.PaymentCaptured) {
		t.Fatalf("payment = %s, want captured", bd.PaymentStatus)
	}
	if bd.ChargeRef == "" {
		t.Fatalf("charge reference not recorded")
	}
	if proc.holds != 1 || proc.captures != 1 {
		t.Fatalf("holds=%d captures=%d, want 1/1", proc.holds, proc.captures)
	}
}

func TestPayAfterDeadlineIsRejected(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	client := seedClient(repo)

	b := createAccepted(t, repo, proc, coach, client)
	past := time.Now().UTC().Add(-time.Minute)
	domain.Breakdown(b).PaymentDueAt = &past

	pay := NewPayBooking(repo, proc, newTestNotifier())
	if _, err := pay.Execute(context.Background(), client.ID, b.ID); !httperr.IsBusiness(err, "payment_window_expired") {
		t.Fatalf("want payment_window_expired, got %v", err)
	}
	if proc.holds != 0 {
		t.Fatalf("no hold should be created past the deadline, got %d", proc.holds)
	}
}

func TestPayDeclineLeavesPaymentRetryable(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	client := seedClient(repo)

	b := createAccepted(t, repo, proc, coach, client)

	proc.captureErr = errors.New("card_declined")
	pay := NewPayBooking(repo, proc, newTestNotifier())
	if _, err := pay.Execute(context.Background(), client.ID, b.ID); !httperr.IsBusiness(err, "payment_failed") {
		t.Fatalf("want payment_failed, got %v", err)
	}

	bd := domain.Breakdown(b)
	if bd.PaymentStatus != string(domain.PaymentAwaitingClient) {
		t.Fatalf("payment = %s, want awaiting for retry", bd.PaymentStatus)
	}
	if len(proc.cancels) != 1 {
		t.Fatalf("declined hold not released, cancels=%d", len(proc.cancels))
	}

	// Retry succeeds.
	proc.captureErr = nil
	if _, err := pay.Execute(context.Background(), client.ID, b.ID); err != nil {
		t.Fatalf("retry pay: %v", err)
	}
	if bd.PaymentStatus != string(domain.PaymentCaptured) {
		t.Fatalf("retry payment = %s, want captured", bd.PaymentStatus)
	}
}

func TestPayRetryAfterUnknownCaptureChargesOnce(t *testing.T) {
	repo := newMemRepo()
	proc := newFakeProcessor()
	coach := seedCoach(repo)
	client := seedClient(repo)

	b := createAccepted(t, repo, proc, coach, client)

	// The capture lands at the processor, but the response never reaches
	// us. The booking must stay awaiting with the hold reference on file.
	proc.captureLandsUnseen = true
	pay := NewPayBooking(repo, proc, newTestNotifier())
	if _, err := pay.Execute(context.Background(), client.ID, b.ID); !httperr.IsBusiness(err, "processor_unavailable") {
		t.Fatalf("want processor_unavailable, got %v", err)
	}

	bd := domain.Breakdown(b)
	if bd.PaymentStatus != string(domain.PaymentAwaitingClient) {
		t.Fatalf("payment = %s, want awaiting until the outcome is known", bd.PaymentStatus)
	}
	if bd.HoldRef == "" {
		t.Fatalf("hold reference not persisted for reconciliation")
	}

	// The retry must find the landed capture and adopt it, not run the
	// whole flow again with a fresh hold.
	if _, err := pay.Execute(context.Background(), client.ID, b.ID); err != nil {
		t.Fatalf("retry pay: %v", err)
	}
	if bd.PaymentStatus != string(domain.PaymentCaptured) {
		t.Fatalf("retry payment = %s, want captured", bd.PaymentStatus)
	}
	if bd.ChargeRef != "ch_pi_1" {
		t.Fatalf("charge ref = %s, want the first attempt's ch_pi_1", bd.ChargeRef)
	}
	if proc.holds != 1 || proc.captures != 1 {
		t.Fatalf("holds=%d captures=%d, want 1/1: the client must never be charged twice",
			proc.holds, proc.captures)
	}
}
