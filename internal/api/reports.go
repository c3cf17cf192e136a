package api

import (
	"database/sql"
	"net/http"

	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

// ReportsHandler handles the dashboard report endpoints.
type ReportsHandler struct {
	DB *sql.DB

	LowStockThreshold float64
	ExpiryWindowDays  int
}

// Summary handles GET /api/reports/summary: the dashboard headline numbers.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := store.GetInventorySummary(r.Context(), h.DB)
	if err != nil {
		domainError(w, err)
		return
	}

	counts, err := store.RequestStatusCounts(r.Context(), h.DB)
	if err != nil {
		domainError(w, err)
		return
	}

	recent, err := store.CountRequestsSince(r.Context(), h.DB, timeNow().AddDate(0, 0, -7))
	if err != nil {
		domainError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"inventory":       summary,
		"request_counts":  counts,
		"requests_7_days": recent,
	})
}

// LowStock handles GET /api/reports/low-stock.
func (h *ReportsHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListLowStockItems(r.Context(), h.DB, h.LowStockThreshold)
	if err != nil {
		domainError(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Expiring handles GET /api/reports/expiring.
func (h *ReportsHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	cutoff := timeNow().AddDate(0, 0, h.ExpiryWindowDays)
	items, err := store.ListExpiringItems(r.Context(), h.DB, cutoff)
	if err != nil {
		domainError(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Gaps handles GET /api/reports/gaps: items whose pending demand exceeds
// stock on hand.
func (h *ReportsHandler) Gaps(w http.ResponseWriter, r *http.Request) {
	gaps, err := store.ListFulfillmentGaps(r.Context(), h.DB)
	if err != nil {
		domainError(w, err)
		return
	}
	if gaps == nil {
		gaps = []store.FulfillmentGap{}
	}
	jsonResponse(w, http.StatusOK, gaps)
}

// TopRequested handles GET /api/reports/top-requested.
func (h *ReportsHandler) TopRequested(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := parseID(l)
		if err != nil || parsed <= 0 || parsed > 100 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = int(parsed)
	}

	top, err := store.ListTopRequestedItems(r.Context(), h.DB, limit)
	if err != nil {
		domainError(w, err)
		return
	}
	if top == nil {
		top = []store.TopRequestedItem{}
	}
	jsonResponse(w, http.StatusOK, top)
}
