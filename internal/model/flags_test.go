package model

import (
	"testing"
	"time"
)

func strptr(s string) *string { return &s }

func TestComputeFlagsLowStock(t *testing.T) {
	today := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	item := &Item{QtyAvailable: 3, IsActive: true}
	f := ComputeFlags(item, 5, 14, today)
	if !f.LowStock {
		t.Error("expected low stock at qty 3 with threshold 5")
	}

	item.QtyAvailable = 0
	f = ComputeFlags(item, 5, 14, today)
	if f.LowStock {
		t.Error("out-of-stock item should not be flagged low stock")
	}

	item.QtyAvailable = 6
	f = ComputeFlags(item, 5, 14, today)
	if f.LowStock {
		t.Error("qty above threshold should not be flagged")
	}
}

func TestComputeFlagsExpiry(t *testing.T) {
	today := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)

	expired := &Item{QtyAvailable: 10, IsActive: true, ExpiryDate: strptr("2025-05-31")}
	f := ComputeFlags(expired, 5, 14, today)
	if !f.Expired {
		t.Error("expected expired flag")
	}
	if f.ExpiringSoon {
		t.Error("expired item must not also be expiring soon")
	}

	// Expiring today counts as expiring soon, not expired.
	soon := &Item{QtyAvailable: 10, IsActive: true, ExpiryDate: strptr("2025-06-01")}
	f = ComputeFlags(soon, 5, 14, today)
	if f.Expired || !f.ExpiringSoon {
		t.Errorf("expected expiring soon, got %+v", f)
	}

	later := &Item{QtyAvailable: 10, IsActive: true, ExpiryDate: strptr("2025-07-15")}
	f = ComputeFlags(later, 5, 14, today)
	if f.Expired || f.ExpiringSoon {
		t.Errorf("expected no expiry flags, got %+v", f)
	}
}

func TestComputeFlagsMalformedExpiry(t *testing.T) {
	item := &Item{QtyAvailable: 10, IsActive: true, ExpiryDate: strptr("soon")}
	f := ComputeFlags(item, 5, 14, time.Now())
	if f.Expired || f.ExpiringSoon {
		t.Error("malformed expiry date should produce no expiry flags")
	}
}

func TestFlagLabels(t *testing.T) {
	f := StockFlags{Inactive: true, LowStock: true}
	labels := f.Labels()
	if len(labels) != 2 || labels[0] != "Inactive" || labels[1] != "Low stock" {
		t.Errorf("unexpected labels %v", labels)
	}
}
