package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
)

type BookingGormRepository struct {
	db *gorm.DB
}

func NewBookingGormRepository(db *gorm.DB) *BookingGormRepository {
	return &BookingGormRepository{db: db}
}

// --------------------------------------------------
// Transaction
// --------------------------------------------------

func (r *BookingGormRepository) Transaction(
	ctx context.Context,
	fn func(domain.Repository) error,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&BookingGormRepository{db: tx})
	})
}

// --------------------------------------------------
// Users
// --------------------------------------------------

func (r *BookingGormRepository) GetUserByID(
	ctx context.Context,
	id uint,
) (*models.User, error) {

	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// --------------------------------------------------
// Booking
// --------------------------------------------------

func (r *BookingGormRepository) CreateBooking(
	ctx context.Context,
	b *models.Booking,
) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingGormRepository) GetBookingByID(
	ctx context.Context,
	id uint,
) (*models.Booking, error) {

	var b models.Booking
	if err := r.db.WithContext(ctx).
		Preload("Individual").
		Preload("PrivateGroup").
		Preload("PublicGroup").
		Preload("Participants").
		First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingForUpdate locks the booking row and its detail row; both locks
// live until the enclosing transaction ends.
func (r *BookingGormRepository) GetBookingForUpdate(
	ctx context.Context,
	id uint,
) (*models.Booking, error) {

	var b models.Booking
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, id).Error; err != nil {
		return nil, err
	}

	switch domain.Type(b.Type) {
	case domain.TypeIndividual:
		var d models.IndividualBookingDetails
		if err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_id = ?", b.ID).
			First(&d).Error; err != nil {
			return nil, err
		}
		b.Individual = &d
	case domain.TypePrivateGroup:
		var d models.PrivateGroupBookingDetails
		if err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_id = ?", b.ID).
			First(&d).Error; err != nil {
			return nil, err
		}
		b.PrivateGroup = &d
	case domain.TypePublicGroup:
		var d models.PublicGroupLessonDetails
		if err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_id = ?", b.ID).
			First(&d).Error; err != nil {
			return nil, err
		}
		b.PublicGroup = &d
	}

	return &b, nil
}

func (r *BookingGormRepository) UpdateBooking(
	ctx context.Context,
	b *models.Booking,
) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(b).Error
}

func (r *BookingGormRepository) SaveIndividualDetails(
	ctx context.Context,
	d *models.IndividualBookingDetails,
) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(d).Error
}

func (r *BookingGormRepository) SavePrivateGroupDetails(
	ctx context.Context,
	d *models.PrivateGroupBookingDetails,
) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(d).Error
}

func (r *BookingGormRepository) SavePublicGroupDetails(
	ctx context.Context,
	d *models.PublicGroupLessonDetails,
) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(d).Error
}

// --------------------------------------------------
// Idempotent creation / conflicts
// --------------------------------------------------

func (r *BookingGormRepository) FindBookingByIdempotencyKey(
	ctx context.Context,
	key string,
	since time.Time,
) (*models.Booking, error) {

	var b models.Booking
	err := r.db.WithContext(ctx).
		Preload("Individual").
		Preload("PrivateGroup").
		Preload("Participants").
		Where("idempotency_key = ? AND created_at >= ?", key, since).
		Order("created_at DESC").
		First(&b).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingGormRepository) AssertNoScheduleConflict(
	ctx context.Context,
	coachID uint,
	start time.Time,
	end time.Time,
) error {

	// Plain count, no lock: postgres rejects FOR UPDATE around an
	// aggregate, and the creation path is optimistic anyway. A conflict
	// that slips between two simultaneous creates surfaces at accept time.
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where(
			"coach_id = ? AND approval_status IN ? AND start_time < ? AND end_time > ?",
			coachID,
			[]string{string(domain.ApprovalPendingReview), string(domain.ApprovalAccepted)},
			end,
			start,
		).
		Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return httperr.ErrBusiness("time_conflict")
	}

	return nil
}

// --------------------------------------------------
// Participants
// --------------------------------------------------

func (r *BookingGormRepository) GetParticipant(
	ctx context.Context,
	bookingID uint,
	userID uint,
) (*models.BookingParticipant, error) {

	var p models.BookingParticipant
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND user_id = ?", bookingID, userID).
		First(&p).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *BookingGormRepository) CountActiveParticipants(
	ctx context.Context,
	bookingID uint,
	now time.Time,
) (int64, error) {

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BookingParticipant{}).
		Where(
			"booking_id = ? AND (status = ? OR (status = ? AND expires_at > ?))",
			bookingID,
			string(domain.ParticipantConfirmed),
			string(domain.ParticipantAwaitingPayment),
			now,
		).
		Count(&count).Error

	return count, err
}

func (r *BookingGormRepository) CreateParticipant(
	ctx context.Context,
	p *models.BookingParticipant,
) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *BookingGormRepository) SaveParticipant(
	ctx context.Context,
	p *models.BookingParticipant,
) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

func (r *BookingGormRepository) ListParticipants(
	ctx context.Context,
	bookingID uint,
) ([]models.BookingParticipant, error) {

	var ps []models.BookingParticipant
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

func (r *BookingGormRepository) ListExpiredSeatHolds(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]models.BookingParticipant, error) {

	var ps []models.BookingParticipant
	if err := r.db.WithContext(ctx).
		Where(
			"status = ? AND expires_at IS NOT NULL AND expires_at < ?",
			string(domain.ParticipantAwaitingPayment),
			now,
		).
		Order("expires_at ASC").
		Limit(limit).
		Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

// --------------------------------------------------
// Pricing tiers
// --------------------------------------------------

func (r *BookingGormRepository) ListTiers(
	ctx context.Context,
	coachID uint,
) ([]models.GroupPricingTier, error) {

	var tiers []models.GroupPricingTier
	if err := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		Order("min_participants ASC").
		Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// ReplaceTiers deletes the old set and inserts the new one in a single
// transaction: a stale overlapping tier is never visible.
func (r *BookingGormRepository) ReplaceTiers(
	ctx context.Context,
	coachID uint,
	tiers []models.GroupPricingTier,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("coach_id = ?", coachID).
			Delete(&models.GroupPricingTier{}).Error; err != nil {
			return err
		}
		if len(tiers) == 0 {
			return nil
		}
		for i := range tiers {
			tiers[i].ID = 0
			tiers[i].CoachID = coachID
		}
		return tx.Create(&tiers).Error
	})
}

// --------------------------------------------------
// Recurring templates
// --------------------------------------------------

func (r *BookingGormRepository) CreateTemplate(
	ctx context.Context,
	t *models.RecurringLessonTemplate,
) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *BookingGormRepository) GetTemplateByID(
	ctx context.Context,
	id uint,
) (*models.RecurringLessonTemplate, error) {

	var t models.RecurringLessonTemplate
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *BookingGormRepository) SaveTemplate(
	ctx context.Context,
	t *models.RecurringLessonTemplate,
) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *BookingGormRepository) ListActiveTemplates(
	ctx context.Context,
) ([]models.RecurringLessonTemplate, error) {

	var ts []models.RecurringLessonTemplate
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&ts).Error; err != nil {
		return nil, err
	}
	return ts, nil
}

func (r *BookingGormRepository) FindInstance(
	ctx context.Context,
	templateID uint,
	start time.Time,
) (*models.Booking, error) {

	var b models.Booking
	err := r.db.WithContext(ctx).
		Joins("JOIN public_group_lesson_details d ON d.booking_id = bookings.id").
		Where("d.template_id = ? AND bookings.start_time = ?", templateID, start).
		First(&b).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingGormRepository) DeleteEmptyFutureInstances(
	ctx context.Context,
	templateID uint,
	now time.Time,
) (int64, error) {

	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Joins("JOIN public_group_lesson_details d ON d.booking_id = bookings.id").
		Where(
			"d.template_id = ? AND bookings.start_time > ? AND d.current_participants = 0",
			templateID, now,
		).
		Pluck("bookings.id", &ids).Error; err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("booking_id IN ?", ids).
			Delete(&models.PublicGroupLessonDetails{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Booking{}, ids).Error
	})
	if err != nil {
		return 0, err
	}

	return int64(len(ids)), nil
}

// --------------------------------------------------
// Deadline enforcement
// --------------------------------------------------

func (r *BookingGormRepository) ListPaymentLapsed(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]models.Booking, error) {
	return r.listPayable(ctx, limit, func(q *gorm.DB, details string) *gorm.DB {
		return q.Where(
			"bookings.approval_status = ? AND "+details+".payment_status = ? AND "+details+".payment_due_at IS NOT NULL AND "+details+".payment_due_at < ?",
			string(domain.ApprovalAccepted),
			string(domain.PaymentAwaitingClient),
			now,
		)
	})
}

func (r *BookingGormRepository) ListReminderDue(
	ctx context.Context,
	from time.Time,
	to time.Time,
	limit int,
) ([]models.Booking, error) {
	return r.listPayable(ctx, limit, func(q *gorm.DB, details string) *gorm.DB {
		return q.Where(
			"bookings.approval_status = ? AND "+details+".payment_status = ? AND "+details+".payment_due_at BETWEEN ? AND ? AND "+details+".payment_final_reminder_sent_at IS NULL",
			string(domain.ApprovalAccepted),
			string(domain.PaymentAwaitingClient),
			from,
			to,
		)
	})
}

// listPayable runs the same filter over both paying detail tables and
// merges the results.
func (r *BookingGormRepository) listPayable(
	ctx context.Context,
	limit int,
	filter func(q *gorm.DB, details string) *gorm.DB,
) ([]models.Booking, error) {

	var out []models.Booking

	var individual []models.Booking
	q := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Joins("JOIN individual_booking_details ON individual_booking_details.booking_id = bookings.id").
		Preload("Individual")
	if err := filter(q, "individual_booking_details").
		Limit(limit).
		Find(&individual).Error; err != nil {
		return nil, err
	}
	out = append(out, individual...)

	var private []models.Booking
	q = r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Joins("JOIN private_group_booking_details ON private_group_booking_details.booking_id = bookings.id").
		Preload("PrivateGroup")
	if err := filter(q, "private_group_booking_details").
		Limit(limit).
		Find(&private).Error; err != nil {
		return nil, err
	}
	out = append(out, private...)

	return out, nil
}

// MarkReminderSent only wins while the reminder timestamp is still null, so
// overlapping enforcer runs cannot double-send.
func (r *BookingGormRepository) MarkReminderSent(
	ctx context.Context,
	b *models.Booking,
	now time.Time,
) (bool, error) {

	res := r.detailsModel(ctx, b).
		Where("booking_id = ? AND payment_final_reminder_sent_at IS NULL", b.ID).
		Update("payment_final_reminder_sent_at", now)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CancelLapsedPayment is the auto-cancellation write: both flips are
// conditional, so a second run over the same booking affects zero rows.
// The audit rows ride the same transaction as the flips; a crash can
// never separate a flip from its StateTransition.
func (r *BookingGormRepository) CancelLapsedPayment(
	ctx context.Context,
	b *models.Booking,
	now time.Time,
) (bool, error) {

	var won bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &BookingGormRepository{db: tx}

		res := inner.detailsModel(ctx, b).
			Where("booking_id = ? AND payment_status = ?", b.ID, string(domain.PaymentAwaitingClient)).
			Update("payment_status", string(domain.PaymentFailed))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Create(&models.StateTransition{
			BookingID: b.ID,
			Field:     "payment_status",
			OldValue:  string(domain.PaymentAwaitingClient),
			NewValue:  string(domain.PaymentFailed),
			Reason:    "payment_window_lapsed",
		}).Error; err != nil {
			return err
		}

		approval := tx.Model(&models.Booking{}).
			Where("id = ? AND approval_status = ?", b.ID, string(domain.ApprovalAccepted)).
			Updates(map[string]any{
				"approval_status": string(domain.ApprovalCancelled),
				"cancelled_at":    now,
			})
		if approval.Error != nil {
			return approval.Error
		}
		if approval.RowsAffected == 1 {
			if err := tx.Create(&models.StateTransition{
				BookingID: b.ID,
				Field:     "approval_status",
				OldValue:  string(domain.ApprovalAccepted),
				NewValue:  string(domain.ApprovalCancelled),
				Reason:    "payment_window_lapsed",
			}).Error; err != nil {
				return err
			}
		}

		won = true
		return nil
	})

	return won, err
}

func (r *BookingGormRepository) detailsModel(ctx context.Context, b *models.Booking) *gorm.DB {
	if domain.Type(b.Type) == domain.TypePrivateGroup {
		return r.db.WithContext(ctx).Model(&models.PrivateGroupBookingDetails{})
	}
	return r.db.WithContext(ctx).Model(&models.IndividualBookingDetails{})
}

func (r *BookingGormRepository) ListStalePendingReview(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]models.Booking, error) {

	var bs []models.Booking
	if err := r.db.WithContext(ctx).
		Where(
			"approval_status = ? AND start_time < ?",
			string(domain.ApprovalPendingReview),
			now,
		).
		Limit(limit).
		Find(&bs).Error; err != nil {
		return nil, err
	}
	return bs, nil
}

func (r *BookingGormRepository) ListLessonsBelowMinimum(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]models.Booking, error) {

	var bs []models.Booking
	if err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Joins("JOIN public_group_lesson_details d ON d.booking_id = bookings.id").
		Where(
			"d.capacity_status IN ? AND bookings.start_time <= ? AND d.captured_participants < d.min_participants",
			[]string{string(domain.CapacityOpen), string(domain.CapacityFull)},
			now,
		).
		Preload("PublicGroup").
		Limit(limit).
		Find(&bs).Error; err != nil {
		return nil, err
	}
	return bs, nil
}

// --------------------------------------------------
// Audit
// --------------------------------------------------

func (r *BookingGormRepository) RecordTransition(
	ctx context.Context,
	tr *models.StateTransition,
) error {
	return r.db.WithContext(ctx).Create(tr).Error
}

// Compile-time check
var _ domain.Repository = (*BookingGormRepository)(nil)
