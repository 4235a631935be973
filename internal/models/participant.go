package models

import "time"

type BookingParticipant struct {
	ID uint `gorm:"primaryKey" json:"id"`

	BookingID uint `gorm:"uniqueIndex:idx_booking_user;index" json:"booking_id"`
	UserID    uint `gorm:"uniqueIndex:idx_booking_user" json:"user_id"`
	User      User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"user"`

	Status        string `gorm:"size:20;default:'awaiting_payment'" json:"status"`
	PaymentStatus string `gorm:"size:30;default:'requires_payment_method'" json:"payment_status"`

	AmountCents int64 `json:"amount_cents"`

	HoldRef   string `gorm:"size:100" json:"hold_ref"`
	ChargeRef string `gorm:"size:100" json:"charge_ref"`
	RefundRef string `gorm:"size:100" json:"refund_ref"`

	// Seat-hold expiry; an expired, uncaptured hold does not count
	// toward lesson capacity.
	ExpiresAt *time.Time `json:"expires_at"`

	CancelledAt *time.Time `json:"cancelled_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
