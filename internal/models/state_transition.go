package models

import "time"

// StateTransition is the append-only audit trail of every status-field
// change. Rows are written in the same transaction as the change and are
// never mutated or deleted.
type StateTransition struct {
	ID uint `gorm:"primaryKey" json:"id"`

	BookingID     uint  `gorm:"index" json:"booking_id"`
	ParticipantID *uint `json:"participant_id"`

	Field    string `gorm:"size:50;not null" json:"field"`
	OldValue string `gorm:"size:50" json:"old_value"`
	NewValue string `gorm:"size:50" json:"new_value"`

	ActorID *uint  `json:"actor_id"`
	Reason  string `gorm:"size:255" json:"reason"`

	CreatedAt time.Time `json:"created_at"`
}
