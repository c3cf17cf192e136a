package model

import "time"

// StockFlags are derived item conditions, computed on read and never stored.
type StockFlags struct {
	Inactive     bool `json:"inactive"`
	LowStock     bool `json:"low_stock"`
	Expired      bool `json:"expired"`
	ExpiringSoon bool `json:"expiring_soon"`
}

// Labels returns the flag names in display order.
func (f StockFlags) Labels() []string {
	var labels []string
	if f.Inactive {
		labels = append(labels, "Inactive")
	}
	if f.LowStock {
		labels = append(labels, "Low stock")
	}
	if f.Expired {
		labels = append(labels, "Expired")
	}
	if f.ExpiringSoon {
		labels = append(labels, "Expiring soon")
	}
	return labels
}

// ComputeFlags derives the stock flags for an item. Low stock applies only to
// items with some stock left. Expired takes precedence over expiring soon; an
// item is never both.
func ComputeFlags(item *Item, lowThreshold float64, windowDays int, today time.Time) StockFlags {
	var f StockFlags

	f.Inactive = !item.IsActive
	f.LowStock = item.QtyAvailable > 0 && item.QtyAvailable <= lowThreshold

	if exp, ok := item.ExpiryTime(); ok {
		today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		switch {
		case exp.Before(today):
			f.Expired = true
		case !exp.After(today.AddDate(0, 0, windowDays)):
			f.ExpiringSoon = true
		}
	}

	return f
}
