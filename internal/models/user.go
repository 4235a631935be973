package models

import "time"

type User struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name  string `gorm:"size:100;not null" json:"name"`
	Email string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Role  string `gorm:"size:20;default:'client'" json:"role"`

	// Processor-side connected account that receives coach payouts.
	// Empty for clients.
	PayoutAccountID string `gorm:"size:100" json:"payout_account_id"`

	// Coach default used when a booking request carries no explicit rate.
	HourlyRateCents int64  `json:"hourly_rate_cents"`
	Timezone        string `gorm:"size:50;default:'UTC'" json:"timezone"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
