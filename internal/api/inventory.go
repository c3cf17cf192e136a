package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/amensah/pantry/internal/inventory"
	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

// InventoryHandler handles stock movement endpoints.
type InventoryHandler struct {
	DB *sql.DB
}

type intakeRequest struct {
	ItemID int64   `json:"item_id"`
	Qty    float64 `json:"qty"`
}

type adjustRequest struct {
	ItemID int64   `json:"item_id"`
	Delta  float64 `json:"delta"`
	Note   string  `json:"note"`
}

type setQtyRequest struct {
	ItemID int64   `json:"item_id"`
	Qty    float64 `json:"qty"`
}

// Intake handles POST /api/inventory/intake: a donation or purchase arriving.
func (h *InventoryHandler) Intake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := inventory.Intake(r.Context(), h.DB, req.ItemID, req.Qty, principal(r))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Adjust handles POST /api/inventory/adjust: a signed correction, e.g.
// spoilage (negative) or a found case (positive).
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := inventory.AdjustQuantity(r.Context(), h.DB, req.ItemID, req.Delta, req.Note, principal(r))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// SetQuantity handles PUT /api/inventory/quantity: a stock count landing on
// an absolute number. The ledger records the difference.
func (h *InventoryHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQtyRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := inventory.SetQuantity(r.Context(), h.DB, req.ItemID, req.Qty, principal(r))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Movements handles GET /api/inventory/movements?item_id=N.
func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	itemID, err := parseID(r.URL.Query().Get("item_id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	movements, err := store.ListMovements(r.Context(), h.DB, itemID)
	if err != nil {
		domainError(w, err)
		return
	}
	if movements == nil {
		movements = []model.StockMovement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}

// Totals handles GET /api/inventory/totals?days=N: aggregate in/out volume
// over a recent window.
func (h *InventoryHandler) Totals(w http.ResponseWriter, r *http.Request) {
	days := 30
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := parseID(d)
		if err != nil || parsed <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = int(parsed)
	}

	since := timeNow().AddDate(0, 0, -days)
	in, out, err := store.MovementTotals(r.Context(), h.DB, since)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"since":     since.Format(time.RFC3339),
		"total_in":  in,
		"total_out": out,
	})
}
