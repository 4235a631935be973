package booking

import "github.com/peakform-app/peakform-api/internal/httperr"

// ===============================
// Booking Type
// ===============================

type Type string

const (
	TypeIndividual   Type = "individual"
	TypePrivateGroup Type = "private_group"
	TypePublicGroup  Type = "public_group"
)

// ===============================
// Approval Status
// ===============================

type ApprovalStatus string

const (
	ApprovalPendingReview ApprovalStatus = "pending_review"
	ApprovalAccepted      ApprovalStatus = "accepted"
	ApprovalDeclined      ApprovalStatus = "declined"
	ApprovalCancelled     ApprovalStatus = "cancelled"
	ApprovalExpired       ApprovalStatus = "expired"
)

// ===============================
// Fulfillment Status
// ===============================

type FulfillmentStatus string

const (
	FulfillmentScheduled FulfillmentStatus = "scheduled"
	FulfillmentCompleted FulfillmentStatus = "completed"
	FulfillmentDisputed  FulfillmentStatus = "disputed"
)

// ===============================
// Capacity Status (public groups)
// ===============================

type CapacityStatus string

const (
	CapacityOpen      CapacityStatus = "open"
	CapacityFull      CapacityStatus = "full"
	CapacityCancelled CapacityStatus = "cancelled"
)

// ===============================
// Payment Status (booking-level)
// ===============================

type PaymentStatus string

const (
	PaymentAwaitingClient PaymentStatus = "awaiting_client_payment"
	PaymentCaptured       PaymentStatus = "captured"
	PaymentFailed         PaymentStatus = "failed"
	PaymentRefunded       PaymentStatus = "refunded"
)

// ===============================
// Participant Status
// ===============================

type ParticipantStatus string

const (
	ParticipantAwaitingPayment ParticipantStatus = "awaiting_payment"
	ParticipantConfirmed       ParticipantStatus = "confirmed"
	ParticipantCancelled       ParticipantStatus = "cancelled"
)

type ParticipantPaymentStatus string

const (
	ParticipantPaymentRequiresMethod ParticipantPaymentStatus = "requires_payment_method"
	ParticipantPaymentCreated        ParticipantPaymentStatus = "created"
	ParticipantPaymentCaptured       ParticipantPaymentStatus = "captured"
	ParticipantPaymentFailed         ParticipantPaymentStatus = "failed"
	ParticipantPaymentRefunded       ParticipantPaymentStatus = "refunded"
)

// ===============================
// Validations
// ===============================

// CanAccept and CanDecline only leave pending_review.
func CanAccept(current ApprovalStatus) error {
	if current != ApprovalPendingReview {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

func CanDecline(current ApprovalStatus) error {
	if current != ApprovalPendingReview {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

// CanCancel permits cancellation only before fulfillment begins.
func CanCancel(approval ApprovalStatus, fulfillment FulfillmentStatus) error {
	if fulfillment != FulfillmentScheduled {
		return httperr.ErrBusiness("invalid_state")
	}
	if approval != ApprovalPendingReview && approval != ApprovalAccepted {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

func CanExpire(current ApprovalStatus) error {
	if current != ApprovalPendingReview {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

// CanDispute: disputed is reachable only from scheduled, on an accepted
// booking, and only after the session's scheduled end (checked by caller
// with the clock).
func CanDispute(approval ApprovalStatus, fulfillment FulfillmentStatus) error {
	if approval != ApprovalAccepted || fulfillment != FulfillmentScheduled {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

func CanResolve(current FulfillmentStatus) error {
	if current != FulfillmentDisputed {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

func CanComplete(current FulfillmentStatus) error {
	if current != FulfillmentScheduled && current != FulfillmentDisputed {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

// CanRefund guards against double refunds: only a captured payment may be
// refunded, and the status flips away from captured before the processor
// call so a retry cannot re-enter.
func CanRefund(current PaymentStatus) error {
	if current != PaymentCaptured {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

func CanCapture(current PaymentStatus) error {
	if current != PaymentAwaitingClient {
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}
