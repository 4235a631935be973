package notify

import "log"

// Template kinds understood by the external delivery service. Delivery
// itself (email/push rendering) lives outside this engine.
type Kind string

const (
	KindBookingRequested Kind = "booking_requested"
	KindBookingAccepted  Kind = "booking_accepted"
	KindBookingDeclined  Kind = "booking_declined"
	KindBookingCancelled Kind = "booking_cancelled"

	KindPaymentReceived      Kind = "payment_received"
	KindPaymentFinalReminder Kind = "payment_final_reminder"
	KindPaymentLapsed        Kind = "payment_deadline_lapsed"

	KindSeatReserved  Kind = "seat_reserved"
	KindSeatConfirmed Kind = "seat_confirmed"
	KindSeatReleased  Kind = "seat_released"

	KindLessonCancelled Kind = "lesson_cancelled"

	KindDisputeOpened   Kind = "dispute_opened"
	KindDisputeResolved Kind = "dispute_resolved"
	KindRefundIssued    Kind = "refund_issued"
)

// AdminQueue is the recipient id reserved for the administrative review
// queue (dispute intake).
const AdminQueue uint = 0

type Message struct {
	RecipientID uint
	Kind        Kind
	Context     map[string]any
}

type Sender interface {
	Send(m Message) error
}

// LogSender stands in for the external delivery collaborator.
type LogSender struct{}

func (LogSender) Send(m Message) error {
	log.Printf("notify: recipient=%d kind=%s context=%v", m.RecipientID, m.Kind, m.Context)
	return nil
}
