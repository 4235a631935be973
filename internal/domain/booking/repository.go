package booking

import (
	"context"
	"time"

	"github.com/peakform-app/peakform-api/internal/models"
)

type Repository interface {
	// Transaction runs fn against a repository bound to one database
	// transaction. Locking reads inside fn hold their locks until fn
	// returns.
	Transaction(ctx context.Context, fn func(Repository) error) error

	// -------- Users --------
	GetUserByID(
		ctx context.Context,
		id uint,
	) (*models.User, error)

	// -------- Booking (create / read / write) --------
	CreateBooking(
		ctx context.Context,
		b *models.Booking,
	) error

	GetBookingByID(
		ctx context.Context,
		id uint,
	) (*models.Booking, error)

	// GetBookingForUpdate locks the booking row (and its detail row) for
	// the duration of the enclosing transaction.
	GetBookingForUpdate(
		ctx context.Context,
		id uint,
	) (*models.Booking, error)

	UpdateBooking(
		ctx context.Context,
		b *models.Booking,
	) error

	SaveIndividualDetails(
		ctx context.Context,
		d *models.IndividualBookingDetails,
	) error

	SavePrivateGroupDetails(
		ctx context.Context,
		d *models.PrivateGroupBookingDetails,
	) error

	SavePublicGroupDetails(
		ctx context.Context,
		d *models.PublicGroupLessonDetails,
	) error

	// -------- Idempotent creation / conflicts --------
	FindBookingByIdempotencyKey(
		ctx context.Context,
		key string,
		since time.Time,
	) (*models.Booking, error)

	AssertNoScheduleConflict(
		ctx context.Context,
		coachID uint,
		start time.Time,
		end time.Time,
	) error

	// -------- Participants --------
	GetParticipant(
		ctx context.Context,
		bookingID uint,
		userID uint,
	) (*models.BookingParticipant, error)

	// CountActiveParticipants counts seats that still hold capacity:
	// confirmed rows plus awaiting_payment rows whose hold has not expired.
	CountActiveParticipants(
		ctx context.Context,
		bookingID uint,
		now time.Time,
	) (int64, error)

	CreateParticipant(
		ctx context.Context,
		p *models.BookingParticipant,
	) error

	SaveParticipant(
		ctx context.Context,
		p *models.BookingParticipant,
	) error

	ListParticipants(
		ctx context.Context,
		bookingID uint,
	) ([]models.BookingParticipant, error)

	ListExpiredSeatHolds(
		ctx context.Context,
		now time.Time,
		limit int,
	) ([]models.BookingParticipant, error)

	// -------- Pricing tiers --------
	ListTiers(
		ctx context.Context,
		coachID uint,
	) ([]models.GroupPricingTier, error)

	// ReplaceTiers swaps the coach's whole tier set atomically.
	ReplaceTiers(
		ctx context.Context,
		coachID uint,
		tiers []models.GroupPricingTier,
	) error

	// -------- Recurring templates --------
	CreateTemplate(
		ctx context.Context,
		t *models.RecurringLessonTemplate,
	) error

	GetTemplateByID(
		ctx context.Context,
		id uint,
	) (*models.RecurringLessonTemplate, error)

	SaveTemplate(
		ctx context.Context,
		t *models.RecurringLessonTemplate,
	) error

	ListActiveTemplates(
		ctx context.Context,
	) ([]models.RecurringLessonTemplate, error)

	FindInstance(
		ctx context.Context,
		templateID uint,
		start time.Time,
	) (*models.Booking, error)

	DeleteEmptyFutureInstances(
		ctx context.Context,
		templateID uint,
		now time.Time,
	) (int64, error)

	// -------- Deadline enforcement --------
	ListPaymentLapsed(
		ctx context.Context,
		now time.Time,
		limit int,
	) ([]models.Booking, error)

	ListReminderDue(
		ctx context.Context,
		from time.Time,
		to time.Time,
		limit int,
	) ([]models.Booking, error)

	// MarkReminderSent is a conditional update that only succeeds while the
	// reminder timestamp is still null. false means another run won.
	MarkReminderSent(
		ctx context.Context,
		b *models.Booking,
		now time.Time,
	) (bool, error)

	// CancelLapsedPayment atomically flips approval accepted->cancelled and
	// payment awaiting->failed. false means the booking was already handled.
	CancelLapsedPayment(
		ctx context.Context,
		b *models.Booking,
		now time.Time,
	) (bool, error)

	ListStalePendingReview(
		ctx context.Context,
		now time.Time,
		limit int,
	) ([]models.Booking, error)

	ListLessonsBelowMinimum(
		ctx context.Context,
		now time.Time,
		limit int,
	) ([]models.Booking, error)

	// -------- Audit --------
	RecordTransition(
		ctx context.Context,
		tr *models.StateTransition,
	) error
}
