package booking

import (
	"context"
	"time"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/httperr"
	"github.com/peakform-app/peakform-api/internal/models"
	"github.com/peakform-app/peakform-api/internal/payments"
)

// ======================================================
// INPUT
// ======================================================

type CreatePublicGroupLessonInput struct {
	CoachID uint

	Start       time.Time
	DurationMin int
	Location    string

	MinParticipants     int
	MaxParticipants     int
	PricePerPersonCents int64

	// Set when the generator expands a recurring template.
	TemplateID *uint
}

// ======================================================
// USE CASE
// ======================================================

type CreatePublicGroupLesson struct {
	repo      domain.Repository
	processor payments.Processor
}

func NewCreatePublicGroupLesson(
	repo domain.Repository,
	processor payments.Processor,
) *CreatePublicGroupLesson {
	return &CreatePublicGroupLesson{
		repo:      repo,
		processor: processor,
	}
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *CreatePublicGroupLesson) Execute(
	ctx context.Context,
	in CreatePublicGroupLessonInput,
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
	if in.MinParticipants < 2 || in.MaxParticipants < in.MinParticipants {
		return nil, httperr.ErrBusiness("invalid_capacity")
	}
	if in.PricePerPersonCents <= 0 {
		return nil, httperr.ErrBusiness("invalid_rate")
	}

	// --------------------------------------------------
	// 2. Coach + payout account capability
	// --------------------------------------------------
	coach, err := uc.repo.GetUserByID(ctx, in.CoachID)
	if err != nil {
		return nil, httperr.ErrBusiness("coach_not_found")
	}

	if err := verifyPayoutAccount(ctx, uc.processor, coach); err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// 3. Creation. Coach-created, so the lesson is born
	//    accepted and open for enrollment.
	// --------------------------------------------------
	end := in.Start.Add(time.Duration(in.DurationMin) * time.Minute)

	b := &models.Booking{
		Type:              string(domain.TypePublicGroup),
		CoachID:           in.CoachID,
		StartTime:         in.Start,
		EndTime:           end,
		DurationMin:       in.DurationMin,
		Location:          in.Location,
		ApprovalStatus:    string(domain.ApprovalAccepted),
		FulfillmentStatus: string(domain.FulfillmentScheduled),
		AcceptedAt:        &now,
		PublicGroup: &models.PublicGroupLessonDetails{
			MinParticipants:     in.MinParticipants,
			MaxParticipants:     in.MaxParticipants,
			PricePerPersonCents: in.PricePerPersonCents,
			CapacityStatus:      string(domain.CapacityOpen),
			TemplateID:          in.TemplateID,
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
			fieldCapacity, "", string(domain.CapacityOpen),
			uintPtr(in.CoachID), "lesson_created")
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}
