package booking

import (
	"context"

	domain "github.com/peakform-app/peakform-api/internal/domain/booking"
	"github.com/peakform-app/peakform-api/internal/models"
)

// Audited status fields.
const (
	fieldApproval          = "approval_status"
	fieldFulfillment       = "fulfillment_status"
	fieldCapacity          = "capacity_status"
	fieldPayment           = "payment_status"
	fieldParticipantStatus = "participant_status"
)

// transition appends one audit row for a status change. A no-op change
// writes nothing.
func transition(
	ctx context.Context,
	repo domain.Repository,
	bookingID uint,
	participantID *uint,
	field string,
	oldValue string,
	newValue string,
	actorID *uint,
	reason string,
) error {
	if oldValue == newValue {
		return nil
	}

	return repo.RecordTransition(ctx, &models.StateTransition{
		BookingID:     bookingID,
		ParticipantID: participantID,
		Field:         field,
		OldValue:      oldValue,
		NewValue:      newValue,
		ActorID:       actorID,
		Reason:        reason,
	})
}

func uintPtr(v uint) *uint {
	return &v
}
