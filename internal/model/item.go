package model

import "time"

// Item is a requestable good tracked with a quantity on hand. The quantity
// always equals the signed sum of the item's stock movements; it is only
// mutated together with a movement insert in the same transaction.
type Item struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Unit         string     `json:"unit"`
	QtyAvailable float64    `json:"qty_available"`
	UnitCost     *float64   `json:"unit_cost,omitempty"`
	ExpiryDate   *string    `json:"expiry_date,omitempty"` // YYYY-MM-DD
	IsActive     bool       `json:"is_active"`
	ImagePath    string     `json:"image_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ExpiryTime parses the item's expiry date. Returns ok=false when the item
// has no expiry or the stored value is malformed.
func (i *Item) ExpiryTime() (time.Time, bool) {
	if i.ExpiryDate == nil || *i.ExpiryDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", *i.ExpiryDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// StatusLabel returns the export label for the item's active flag.
func (i *Item) StatusLabel() string {
	if i.IsActive {
		return "Active"
	}
	return "Inactive"
}
