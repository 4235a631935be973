package models

import "time"

type Booking struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Type string `gorm:"size:20;not null;index" json:"type"`

	CoachID uint `gorm:"index" json:"coach_id"`
	Coach   User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"coach"`

	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	DurationMin int       `json:"duration_min"`
	Location    string    `gorm:"size:255" json:"location"`

	ApprovalStatus    string `gorm:"size:20;default:'pending_review'" json:"approval_status"`
	FulfillmentStatus string `gorm:"size:20;default:'scheduled'" json:"fulfillment_status"`

	// Fingerprint of the creation request, used to collapse duplicate
	// submissions inside a 24h window.
	IdempotencyKey string `gorm:"size:64;index" json:"-"`

	AcceptedAt  *time.Time `json:"accepted_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CompletedAt *time.Time `json:"completed_at"`
	DisputedAt  *time.Time `json:"disputed_at"`

	Individual   *IndividualBookingDetails   `gorm:"foreignKey:BookingID" json:"individual,omitempty"`
	PrivateGroup *PrivateGroupBookingDetails `gorm:"foreignKey:BookingID" json:"private_group,omitempty"`
	PublicGroup  *PublicGroupLessonDetails   `gorm:"foreignKey:BookingID" json:"public_group,omitempty"`

	Participants []BookingParticipant `gorm:"foreignKey:BookingID" json:"participants,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentBreakdown is the frozen money split charged to the paying party.
// Once persisted it is never recomputed; display always reads these cents.
type PaymentBreakdown struct {
	GrossAmountCents    int64 `json:"gross_amount_cents"`
	ProcessorFeeCents   int64 `json:"processor_fee_cents"`
	PlatformFeeCents    int64 `json:"platform_fee_cents"`
	CoachPayoutCents    int64 `json:"coach_payout_cents"`
	RefundedAmountCents int64 `json:"refunded_amount_cents"`

	PaymentStatus string `gorm:"size:30;default:'awaiting_client_payment'" json:"payment_status"`

	// Fixed once at acceptance time, never moved.
	PaymentDueAt               *time.Time `json:"payment_due_at"`
	PaymentFinalReminderSentAt *time.Time `json:"payment_final_reminder_sent_at"`

	HoldRef   string `gorm:"size:100" json:"hold_ref"`
	ChargeRef string `gorm:"size:100" json:"charge_ref"`
	RefundRef string `gorm:"size:100" json:"refund_ref"`
}

type IndividualBookingDetails struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	BookingID uint `gorm:"uniqueIndex" json:"booking_id"`

	ClientID uint `gorm:"index" json:"client_id"`
	Client   User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"client"`

	PaymentBreakdown

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PrivateGroupBookingDetails struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	BookingID uint `gorm:"uniqueIndex" json:"booking_id"`

	OrganizerID uint `gorm:"index" json:"organizer_id"`
	Organizer   User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"organizer"`

	Headcount int `json:"headcount"`

	PaymentBreakdown

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PublicGroupLessonDetails struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	BookingID uint `gorm:"uniqueIndex" json:"booking_id"`

	MinParticipants     int   `json:"min_participants"`
	MaxParticipants     int   `json:"max_participants"`
	PricePerPersonCents int64 `json:"price_per_person_cents"`

	CapacityStatus string `gorm:"size:20;default:'open'" json:"capacity_status"`

	// Invariant: captured <= authorized <= current <= max.
	CurrentParticipants    int `json:"current_participants"`
	AuthorizedParticipants int `json:"authorized_participants"`
	CapturedParticipants   int `json:"captured_participants"`

	TemplateID *uint `gorm:"index" json:"template_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
