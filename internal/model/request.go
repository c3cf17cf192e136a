package model

import "time"

// Request is a member's submitted ask for one or more item quantities.
// Status moves one way: PENDING to APPROVED or REJECTED. Re-opening is a
// manual edit, not a workflow transition.
type Request struct {
	ID           int64      `json:"id"`
	MemberID     int64      `json:"member_id"`
	Status       string     `json:"status"`
	Note         string     `json:"note,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	DecidedBy    *string    `json:"decided_by,omitempty"`

	// Joined fields (not always populated).
	MemberName  string        `json:"member_name,omitempty"`
	MemberPhone string        `json:"member_phone,omitempty"`
	MemberEmail string        `json:"member_email,omitempty"`
	Lines       []RequestLine `json:"lines,omitempty"`
}

// RequestLine is one item+quantity pair within a request.
type RequestLine struct {
	ID           int64   `json:"id"`
	RequestID    int64   `json:"request_id"`
	ItemID       int64   `json:"item_id"`
	QtyRequested float64 `json:"qty_requested"`

	// Joined fields (not always populated).
	ItemName string `json:"item_name,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// Request statuses.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// ValidStatus reports whether s is a known request status.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}
