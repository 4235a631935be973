package models

import "time"

// GroupPricingTier maps a headcount range [MinParticipants, MaxParticipants]
// to a per-person price. MaxParticipants nil means unbounded; only the last
// tier of a coach's set may be unbounded and ranges never overlap.
type GroupPricingTier struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	CoachID uint `gorm:"index" json:"coach_id"`

	MinParticipants int  `json:"min_participants"`
	MaxParticipants *int `json:"max_participants"`

	PricePerPersonCents int64 `json:"price_per_person_cents"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
