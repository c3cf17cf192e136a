package model

import "time"

// Member is the identity of a requester. Members are matched softly by phone
// or email on each new submission rather than by a strict unique key.
type Member struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
