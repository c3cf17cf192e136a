package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/amensah/pantry/internal/imaging"
	"github.com/amensah/pantry/internal/inventory"
	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
	"github.com/amensah/pantry/internal/uploads"
)

// timeNow is swappable in tests.
var timeNow = time.Now

// ItemsHandler handles item catalog endpoints.
type ItemsHandler struct {
	DB      *sql.DB
	Uploads *uploads.Store

	// Thresholds for the flags computed on list responses.
	LowStockThreshold float64
	ExpiryWindowDays  int
}

type createItemRequest struct {
	Name       string   `json:"name"`
	Unit       string   `json:"unit"`
	InitialQty float64  `json:"initial_qty"`
	UnitCost   *float64 `json:"unit_cost"`
	ExpiryDate *string  `json:"expiry_date"`
}

type updateItemRequest struct {
	Name       string   `json:"name"`
	Unit       string   `json:"unit"`
	UnitCost   *float64 `json:"unit_cost"`
	ExpiryDate *string  `json:"expiry_date"`
	IsActive   *bool    `json:"is_active"`
}

type itemWithFlags struct {
	model.Item
	Flags []string `json:"flags"`
}

// List handles GET /api/items. Query parameters: q (search), sort, desc,
// active_only, in_stock_only.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.ItemFilter{
		ActiveOnly:  query.Get("active_only") == "1",
		InStockOnly: query.Get("in_stock_only") == "1",
	}
	opts := store.ListOptions{
		Search:     query.Get("q"),
		Sort:       store.SortKey(query.Get("sort")),
		Descending: query.Get("desc") == "1",
	}

	items, err := store.ListItems(r.Context(), h.DB, filter, opts)
	if err != nil {
		domainError(w, err)
		return
	}

	out := make([]itemWithFlags, 0, len(items))
	for _, item := range items {
		flags := model.ComputeFlags(&item, h.LowStockThreshold, h.ExpiryWindowDays, timeNow())
		out = append(out, itemWithFlags{Item: item, Flags: flags.Labels()})
	}
	jsonResponse(w, http.StatusOK, out)
}

// PublicList handles GET /api/public/items: the catalog members browse when
// submitting a request. Only active, in-stock items are shown, and costs are
// not exposed.
func (h *ItemsHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB,
		store.ItemFilter{ActiveOnly: true, InStockOnly: true},
		store.ListOptions{Search: r.URL.Query().Get("q")})
	if err != nil {
		domainError(w, err)
		return
	}

	type publicItem struct {
		ID           int64   `json:"id"`
		Name         string  `json:"name"`
		Unit         string  `json:"unit"`
		QtyAvailable float64 `json:"qty_available"`
		HasImage     bool    `json:"has_image"`
	}
	out := make([]publicItem, 0, len(items))
	for _, item := range items {
		out = append(out, publicItem{
			ID:           item.ID,
			Name:         item.Name,
			Unit:         item.Unit,
			QtyAvailable: item.QtyAvailable,
			HasImage:     item.ImagePath != "",
		})
	}
	jsonResponse(w, http.StatusOK, out)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := inventory.CreateItem(r.Context(), h.DB, inventory.CreateItemParams{
		Name:       req.Name,
		Unit:       req.Unit,
		InitialQty: req.InitialQty,
		UnitCost:   req.UnitCost,
		ExpiryDate: req.ExpiryDate,
	}, principal(r))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}, including the item's movement history.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		domainError(w, err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	movements, err := store.ListMovements(r.Context(), h.DB, id)
	if err != nil {
		domainError(w, err)
		return
	}
	if movements == nil {
		movements = []model.StockMovement{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"item":      item,
		"movements": movements,
	})
}

// Update handles PUT /api/items/{id}. Quantity is not editable here; stock
// changes go through the movement endpoints so the ledger stays complete.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if req.Unit == "" {
		req.Unit = "unit"
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	if err := store.UpdateItemMeta(r.Context(), h.DB, id, req.Name, req.Unit, req.UnitCost, req.ExpiryDate, active); err != nil {
		domainError(w, err)
		return
	}

	item, _ := store.GetItem(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}. Items with recorded movements
// cannot be deleted; they are deactivated instead so history stays intact.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	sum, err := store.MovementSum(r.Context(), h.DB, id)
	if err != nil {
		domainError(w, err)
		return
	}
	if sum != 0 {
		if err := store.SetItemActive(r.Context(), h.DB, id, false); err != nil {
			domainError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"message": "item has movement history, deactivated instead"})
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		domainError(w, err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	name, err := h.Uploads.Save(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Replace any previous image file.
	if item.ImagePath != "" {
		_ = h.Uploads.Remove(item.ImagePath)
	}
	if err := store.SetItemImagePath(r.Context(), h.DB, id, name); err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/items/{id}/image. It is public so the request
// form can show item photos.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		domainError(w, err)
		return
	}
	if item == nil || item.ImagePath == "" {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	f, err := h.Uploads.Open(item.ImagePath)
	if err != nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, item.ImagePath, item.CreatedAt, f)
}
