package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/notify"
	"github.com/peakform-app/peakform-api/internal/payments"
)

// ======================================================
// In-memory repository
// ======================================================

// memRepo keeps the whole store behind one mutex. Transaction holds the
// mutex for its duration, which models the row-lock serialization the
// real repository gets from FOR UPDATE.
type memRepo struct {
	mu sync.Mutex
	s  *memStore
}

// txRepo is the view handed to transaction callbacks: same store, no
// locking, because the enclosing Transaction already holds the mutex.
type txRepo struct {
	s *memStore
}

type memStore struct {
	users        map[uint]*models.User
	bookings     map[uint]*models.Booking
	participants []*models.BookingParticipant
	tiers        map[uint][]models.GroupPricingTier
	templates    map[uint]*models.RecurringLessonTemplate
	transitions  []*models.StateTransition
	nextID       uint
}

func newMemRepo() *memRepo {
	return &memRepo{s: &memStore{
		users:     map[uint]*models.User{},
		bookings:  map[uint]*models.Booking{},
		tiers:     map[uint][]models.GroupPricingTier{},
		templates: map[uint]*models.RecurringLessonTemplate{},
	}}
}

func (r *memRepo) addUser(u *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.s.id()
	}
	r.s.users[u.ID] = u
	return u
}

func (r *memRepo) transitionsFor(bookingID uint, field string) []*models.StateTransition {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.StateTransition
	for _, tr := range r.s.transitions {
		if tr.BookingID == bookingID && (field == "" || tr.Field == field) {
			out = append(out, tr)
		}
	}
	return out
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

// ---- locked facade ----

func (r *memRepo) Transaction(ctx context.Context, fn func(domain.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&txRepo{s: r.s})
}

func (r *memRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).GetUserByID(ctx, id)
}

func (r *memRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).CreateBooking(ctx, b)
}

func (r *memRepo) GetBookingByID(ctx context.Context, id uint) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).GetBookingByID(ctx, id)
}

func (r *memRepo) GetBookingForUpdate(ctx context.Context, id uint) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).GetBookingForUpdate(ctx, id)
}

func (r *memRepo) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return nil
}

func (r *memRepo) SaveIndividualDetails(ctx context.Context, d *models.IndividualBookingDetails) error {
	return nil
}

func (r *memRepo) SavePrivateGroupDetails(ctx context.Context, d *models.PrivateGroupBookingDetails) error {
	return nil
}

func (r *memRepo) SavePublicGroupDetails(ctx context.Context, d *models.PublicGroupLessonDetails) error {
	return nil
}

func (r *memRepo) FindBookingByIdempotencyKey(ctx context.Context, key string, since time.Time) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).FindBookingByIdempotencyKey(ctx, key, since)
}

func (r *memRepo) AssertNoScheduleConflict(ctx context.Context, coachID uint, start, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).AssertNoScheduleConflict(ctx, coachID, start, end)
}

func (r *memRepo) GetParticipant(ctx context.Context, bookingID, userID uint) (*models.BookingParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).GetParticipant(ctx, bookingID, userID)
}

func (r *memRepo) CountActiveParticipants(ctx context.Context, bookingID uint, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).CountActiveParticipants(ctx, bookingID, now)
}

func (r *memRepo) CreateParticipant(ctx context.Context, p *models.BookingParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).CreateParticipant(ctx, p)
}

func (r *memRepo) SaveParticipant(ctx context.Context, p *models.BookingParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).SaveParticipant(ctx, p)
}

func (r *memRepo) ListParticipants(ctx context.Context, bookingID uint) ([]models.BookingParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).ListParticipants(ctx, bookingID)
}

func (r *memRepo) ListExpiredSeatHolds(ctx context.Context, now time.Time, limit int) ([]models.BookingParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).ListExpiredSeatHolds(ctx, now, limit)
}

func (r *memRepo) ListTiers(ctx context.Context, coachID uint) ([]models.GroupPricingTier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).ListTiers(ctx, coachID)
}

func (r *memRepo) ReplaceTiers(ctx context.Context, coachID uint, tiers []models.GroupPricingTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).ReplaceTiers(ctx, coachID, tiers)
}

func (r *memRepo) CreateTemplate(ctx context.Context, t *models.RecurringLessonTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).CreateTemplate(ctx, t)
}

func (r *memRepo) GetTemplateByID(ctx context.Context, id uint) (*models.RecurringLessonTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).GetTemplateByID(ctx, id)
}

func (r *memRepo) SaveTemplate(ctx context.Context, t *models.RecurringLessonTemplate) error {
	return nil
}

func (r *memRepo) ListActiveTemplates(ctx context.Context) ([]models.RecurringLessonTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).ListActiveTemplates(ctx)
}

func (r *memRepo) FindInstance(ctx context.Context, templateID uint, start time.Time) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).FindInstance(ctx, templateID, start)
}

func (r *memRepo) DeleteEmptyFutureInstances(ctx context.Context, templateID uint, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).DeleteEmptyFutureInstances(ctx, templateID, now)
}

func (r *memRepo) ListPaymentLapsed(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).ListPaymentLapsed(ctx, now, limit)
}

func (r *memRepo) ListReminderDue(ctx context.Context, from, to time.Time, limit int) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).ListReminderDue(ctx, from, to, limit)
}

func (r *memRepo) MarkReminderSent(ctx context.Context, b *models.Booking, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).MarkReminderSent(ctx, b, now)
}

func (r *memRepo) CancelLapsedPayment(ctx context.Context, b *models.Booking, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).CancelLapsedPayment(ctx, b, now)
}

func (r *memRepo) ListStalePendingReview(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).ListStalePendingReview(ctx, now, limit)
}

func (r *memRepo) ListLessonsBelowMinimum(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).ListLessonsBelowMinimum(ctx, now, limit)
}

func (r *memRepo) RecordTransition(ctx context.Context, tr *models.StateTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&txRepo{r.s}).RecordTransition(ctx, tr)
}

var _ domain.Repository = (*memRepo)(nil)
var _ domain.Repository = (*txRepo)(nil)

// ---- unlocked store operations ----

func (r *txRepo) Transaction(ctx context.Context, fn func(domain.Repository) error) error {
	return fn(r) // already inside the lock
}

func (r *txRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (r *txRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	b.ID = r.s.id()
	b.CreatedAt = time.Now().UTC()
	switch {
	case b.Individual != nil:
		b.Individual.ID = r.s.id()
		b.Individual.BookingID = b.ID
	case b.PrivateGroup != nil:
		b.PrivateGroup.ID = r.s.id()
		b.PrivateGroup.BookingID = b.ID
	case b.PublicGroup != nil:
		b.PublicGroup.ID = r.s.id()
		b.PublicGroup.BookingID = b.ID
	}
	r.s.bookings[b.ID] = b
	return nil
}

func (r *txRepo) GetBookingByID(ctx context.Context, id uint) (*models.Booking, error) {
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, errors.New("booking not found")
	}
	return b, nil
}

func (r *txRepo) GetBookingForUpdate(ctx context.Context, id uint) (*models.Booking, error) {
	return r.GetBookingByID(ctx, id)
}

func (r *txRepo) UpdateBooking(ctx context.Context, b *models.Booking) error { return nil }

func (r *txRepo) SaveIndividualDetails(ctx context.Context, d *models.IndividualBookingDetails) error {
	return nil
}

func (r *txRepo) SavePrivateGroupDetails(ctx context.Context, d *models.PrivateGroupBookingDetails) error {
	return nil
}

func (r *txRepo) SavePublicGroupDetails(ctx context.Context, d *models.PublicGroupLessonDetails) error {
	return nil
}

func (r *txRepo) FindBookingByIdempotencyKey(ctx context.Context, key string, since time.Time) (*models.Booking, error) {
	for _, b := range r.s.bookings {
		if b.IdempotencyKey == key && b.CreatedAt.After(since) {
			return b, nil
		}
	}
	return nil, nil
}

func (r *txRepo) AssertNoScheduleConflict(ctx context.Context, coachID uint, start, end time.Time) error {
	for _, b := range r.s.bookings {
		if b.CoachID != coachID {
			continue
		}
		if b.ApprovalStatus != string(domain.ApprovalPendingReview) &&
			b.ApprovalStatus != string(domain.ApprovalAccepted) {
			continue
		}
		if b.StartTime.Before(end) && b.EndTime.After(start) {
			return httperr.ErrBusiness("time_conflict")
		}
	}
	return nil
}

func (r *txRepo) GetParticipant(ctx context.Context, bookingID, userID uint) (*models.BookingParticipant, error) {
	for _, p := range r.s.participants {
		if p.BookingID == bookingID && p.UserID == userID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *txRepo) CountActiveParticipants(ctx context.Context, bookingID uint, now time.Time) (int64, error) {
	var n int64
	for _, p := range r.s.participants {
		if p.BookingID != bookingID {
			continue
		}
		switch p.Status {
		case string(domain.ParticipantConfirmed):
			n++
		case string(domain.ParticipantAwaitingPayment):
			if p.ExpiresAt == nil || p.ExpiresAt.After(now) {
				n++
			}
		}
	}
	return n, nil
}

func (r *txRepo) CreateParticipant(ctx context.Context, p *models.BookingParticipant) error {
	for _, existing := range r.s.participants {
		if existing.BookingID == p.BookingID && existing.UserID == p.UserID {
			return errors.New("duplicate key idx_booking_user")
		}
	}
	p.ID = r.s.id()
	r.s.participants = append(r.s.participants, p)
	return nil
}

func (r *txRepo) SaveParticipant(ctx context.Context, p *models.BookingParticipant) error {
	for i, existing := range r.s.participants {
		if existing.ID == p.ID {
			r.s.participants[i] = p
			return nil
		}
	}
	return errors.New("participant not found")
}

func (r *txRepo) ListParticipants(ctx context.Context, bookingID uint) ([]models.BookingParticipant, error) {
	var out []models.BookingParticipant
	for _, p := range r.s.participants {
		if p.BookingID == bookingID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *txRepo) ListExpiredSeatHolds(ctx context.Context, now time.Time, limit int) ([]models.BookingParticipant, error) {
	var out []models.BookingParticipant
	for _, p := range r.s.participants {
		if p.Status == string(domain.ParticipantAwaitingPayment) &&
			p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			out = append(out, *p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *txRepo) ListTiers(ctx context.Context, coachID uint) ([]models.GroupPricingTier, error) {
	return r.s.tiers[coachID], nil
}

func (r *txRepo) ReplaceTiers(ctx context.Context, coachID uint, tiers []models.GroupPricingTier) error {
	for i := range tiers {
		tiers[i].ID = r.s.id()
		tiers[i].CoachID = coachID
	}
	r.s.tiers[coachID] = tiers
	return nil
}

func (r *txRepo) CreateTemplate(ctx context.Context, t *models.RecurringLessonTemplate) error {
	t.ID = r.s.id()
	r.s.templates[t.ID] = t
	return nil
}

func (r *txRepo) GetTemplateByID(ctx context.Context, id uint) (*models.RecurringLessonTemplate, error) {
	return r.s.templates[id], nil
}

func (r *txRepo) SaveTemplate(ctx context.Context, t *models.RecurringLessonTemplate) error {
	return nil
}

func (r *txRepo) ListActiveTemplates(ctx context.Context) ([]models.RecurringLessonTemplate, error) {
	var out []models.RecurringLessonTemplate
	for _, t := range r.s.templates {
		if t.Active {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *txRepo) FindInstance(ctx context.Context, templateID uint, start time.Time) (*models.Booking, error) {
	for _, b := range r.s.bookings {
		if b.PublicGroup != nil && b.PublicGroup.TemplateID != nil &&
			*b.PublicGroup.TemplateID == templateID && b.StartTime.Equal(start) {
			return b, nil
		}
	}
	return nil, nil
}

func (r *txRepo) DeleteEmptyFutureInstances(ctx context.Context, templateID uint, now time.Time) (int64, error) {
	var n int64
	for id, b := range r.s.bookings {
		if b.PublicGroup != nil && b.PublicGroup.TemplateID != nil &&
			*b.PublicGroup.TemplateID == templateID &&
			b.StartTime.After(now) && b.PublicGroup.CurrentParticipants == 0 {
			delete(r.s.bookings, id)
			n++
		}
	}
	return n, nil
}

func (r *txRepo) ListPaymentLapsed(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.s.bookings {
		bd := domain.Breakdown(b)
		if bd == nil {
			continue
		}
		if b.ApprovalStatus == string(domain.ApprovalAccepted) &&
			bd.PaymentStatus == string(domain.PaymentAwaitingClient) &&
			bd.PaymentDueAt != nil && bd.PaymentDueAt.Before(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *txRepo) ListReminderDue(ctx context.Context, from, to time.Time, limit int) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.s.bookings {
		bd := domain.Breakdown(b)
		if bd == nil {
			continue
		}
		if b.ApprovalStatus == string(domain.ApprovalAccepted) &&
			bd.PaymentStatus == string(domain.PaymentAwaitingClient) &&
			bd.PaymentFinalReminderSentAt == nil &&
			bd.PaymentDueAt != nil &&
			!bd.PaymentDueAt.Before(from) && !bd.PaymentDueAt.After(to) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *txRepo) MarkReminderSent(ctx context.Context, b *models.Booking, now time.Time) (bool, error) {
	stored, ok := r.s.bookings[b.ID]
	if !ok {
		return false, errors.New("booking not found")
	}
	bd := domain.Breakdown(stored)
	if bd == nil || bd.PaymentFinalReminderSentAt != nil {
		return false, nil
	}
	bd.PaymentFinalReminderSentAt = &now
	return true, nil
}

func (r *txRepo) CancelLapsedPayment(ctx context.Context, b *models.Booking, now time.Time) (bool, error) {
	stored, ok := r.s.bookings[b.ID]
	if !ok {
		return false, errors.New("booking not found")
	}
	bd := domain.Breakdown(stored)
	if bd == nil || bd.PaymentStatus != string(domain.PaymentAwaitingClient) {
		return false, nil
	}
	bd.PaymentStatus = string(domain.PaymentFailed)
	r.s.transitions = append(r.s.transitions, &models.StateTransition{
		BookingID: stored.ID,
		Field:     "payment_status",
		OldValue:  string(domain.PaymentAwaitingClient),
		NewValue:  string(domain.PaymentFailed),
		Reason:    "payment_window_lapsed",
	})
	if stored.ApprovalStatus == string(domain.ApprovalAccepted) {
		stored.ApprovalStatus = string(domain.ApprovalCancelled)
		stored.CancelledAt = &now
		r.s.transitions = append(r.s.transitions, &models.StateTransition{
			BookingID: stored.ID,
			Field:     "approval_status",
			OldValue:  string(domain.ApprovalAccepted),
			NewValue:  string(domain.ApprovalCancelled),
			Reason:    "payment_window_lapsed",
		})
	}
	return true, nil
}

func (r *txRepo) ListStalePendingReview(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.s.bookings {
		if b.ApprovalStatus == string(domain.ApprovalPendingReview) && b.StartTime.Before(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *txRepo) ListLessonsBelowMinimum(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.s.bookings {
		d := b.PublicGroup
		if d == nil {
			continue
		}
		if (d.CapacityStatus == string(domain.CapacityOpen) || d.CapacityStatus == string(domain.CapacityFull)) &&
			!b.StartTime.After(now) && d.CapturedParticipants < d.MinParticipants {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *txRepo) RecordTransition(ctx context.Context, tr *models.StateTransition) error {
	r.s.transitions = append(r.s.transitions, tr)
	return nil
}

// ======================================================
// Fake processor
// ======================================================

// fakeIntent is one processor-side hold with its lifecycle state, so the
// reconcile paths see the same truth a re-retrieved PaymentIntent would
// report.
type fakeIntent struct {
	state   payments.HoldState
	charge  string
	meta    map[string]string
	amount  int64
	created time.Time
}

type fakeProcessor struct {
	mu sync.Mutex

	holdErr     error
	captureErr  error
	refundErr   error
	accountErr  error
	retrieveErr error

	disabledAccount bool

	// captureLandsUnseen makes the next capture land processor-side while
	// reporting a timeout to the caller.
	captureLandsUnseen bool

	holds    int
	captures int
	cancels  []string
	refunds  map[string]int64 // idempotency key -> amount
	intents  map[string]*fakeIntent
	seq      int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		refunds: map[string]int64{},
		intents: map[string]*fakeIntent{},
	}
}

func (p *fakeProcessor) CreateHold(ctx context.Context, in payments.HoldInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.holdErr != nil {
		return "", p.holdErr
	}
	p.holds++
	p.seq++
	ref := "pi_" + itoa(p.seq)
	p.intents[ref] = &fakeIntent{
		state:   payments.HoldActive,
		meta:    in.Metadata,
		amount:  in.AmountCents,
		created: time.Now().UTC(),
	}
	return ref, nil
}

func (p *fakeProcessor) Capture(ctx context.Context, holdRef string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it := p.intents[holdRef]
	if it == nil {
		return "", errors.New("no such hold")
	}
	if it.state != payments.HoldActive {
		return "", errors.New("hold not capturable")
	}
	if p.captureLandsUnseen {
		p.captureLandsUnseen = false
		it.state = payments.HoldCaptured
		it.charge = "ch_" + holdRef
		p.captures++
		return "", context.DeadlineExceeded
	}
	if p.captureErr != nil {
		return "", p.captureErr
	}
	it.state = payments.HoldCaptured
	it.charge = "ch_" + holdRef
	p.captures++
	return it.charge, nil
}

func (p *fakeProcessor) CancelHold(ctx context.Context, holdRef string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if it := p.intents[holdRef]; it != nil && it.state == payments.HoldActive {
		it.state = payments.HoldCancelled
	}
	p.cancels = append(p.cancels, holdRef)
	return nil
}

func (p *fakeProcessor) RetrieveHold(ctx context.Context, holdRef string) (payments.Hold, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retrieveErr != nil {
		return payments.Hold{}, p.retrieveErr
	}
	it := p.intents[holdRef]
	if it == nil {
		return payments.Hold{}, errors.New("no such hold")
	}
	return payments.Hold{State: it.state, ChargeRef: it.charge}, nil
}

func (p *fakeProcessor) ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]payments.StaleHold, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []payments.StaleHold
	for ref, it := range p.intents {
		if it.state == payments.HoldActive && it.created.Before(cutoff) {
			out = append(out, payments.StaleHold{HoldRef: ref, Metadata: it.meta, Created: it.created})
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (p *fakeProcessor) Refund(ctx context.Context, chargeRef string, amountCents int64, idempotencyKey string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return "", p.refundErr
	}
	p.refunds[idempotencyKey] = amountCents
	return "re_" + idempotencyKey, nil
}

func (p *fakeProcessor) RetrieveAccount(ctx context.Context, accountID string) (payments.AccountStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accountErr != nil {
		return payments.AccountStatus{}, p.accountErr
	}
	if p.disabledAccount {
		return payments.AccountStatus{}, nil
	}
	return payments.AccountStatus{ChargesEnabled: true, PayoutsEnabled: true}, nil
}

var _ payments.Processor = (*fakeProcessor)(nil)

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// ======================================================
// Notifier
// ======================================================

// newTestNotifier returns a dispatcher whose sends go nowhere visible;
// delivery is asynchronous and not asserted on.
func newTestNotifier() *notify.Dispatcher {
	return notify.NewDispatcher(notify.LogSender{})
}
