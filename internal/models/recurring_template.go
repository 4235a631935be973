package models

import "time"

// RecurringLessonTemplate is a coach-owned weekly pattern expanded into
// concrete public-group lessons by the generator. Cancelling deactivates
// the template; already-generated lessons survive unless empty.
type RecurringLessonTemplate struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	CoachID uint `gorm:"index" json:"coach_id"`

	Weekday        int    `json:"weekday"`
	StartTimeLocal string `gorm:"size:5" json:"start_time_local"`
	DurationMin    int    `json:"duration_min"`

	MinParticipants     int   `json:"min_participants"`
	MaxParticipants     int   `json:"max_participants"`
	PricePerPersonCents int64 `json:"price_per_person_cents"`

	Location string `gorm:"size:255" json:"location"`
	Timezone string `gorm:"size:50;default:'UTC'" json:"timezone"`

	ActiveFrom  time.Time  `json:"active_from"`
	ActiveUntil *time.Time `json:"active_until"`
	Active      bool       `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
