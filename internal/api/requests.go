package api

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/notify"
	"github.com/amensah/pantry/internal/store"
	"github.com/amensah/pantry/internal/workflow"
)

// RequestsHandler handles request submission and review endpoints.
type RequestsHandler struct {
	DB       *sql.DB
	Notifier notify.Notifier

	LowStockThreshold float64
	ExpiryWindowDays  int
}

type submitRequest struct {
	Name  string              `json:"name"`
	Phone string              `json:"phone"`
	Email string              `json:"email"`
	Note  string              `json:"note"`
	Lines []workflow.LineInput `json:"lines"`
}

type decideRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

type bulkDecideRequest struct {
	RequestIDs []int64 `json:"request_ids"`
	Decision   string  `json:"decision"`
	Reason     string  `json:"reason"`
}

type editRequest struct {
	Status string               `json:"status"`
	Lines  []workflow.LineInput `json:"lines"`
}

// Submit handles POST /api/public/requests: a member asking for items. No
// authentication; the form is open to the community.
func (h *RequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := workflow.Submit(r.Context(), h.DB, workflow.SubmitParams{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
		Note:  req.Note,
		Lines: req.Lines,
	})
	if err != nil {
		domainError(w, err)
		return
	}

	if h.Notifier != nil {
		if err := h.Notifier.RequestSubmitted(r.Context(), created.MemberEmail, created.MemberName, created.ID); err != nil {
			log.Error().Err(err).Int64("request_id", created.ID).Msg("submission receipt failed")
		}
	}
	jsonResponse(w, http.StatusCreated, created)
}

// List handles GET /api/requests. Query parameters: status, q, sort, desc.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := strings.ToUpper(query.Get("status"))
	if status != "" && !model.ValidStatus(status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	requests, err := store.ListRequests(r.Context(), h.DB, status, store.ListOptions{
		Search:     query.Get("q"),
		Sort:       store.SortKey(query.Get("sort")),
		Descending: query.Get("desc") != "0",
	})
	if err != nil {
		domainError(w, err)
		return
	}
	if requests == nil {
		requests = []model.Request{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// Get handles GET /api/requests/{id}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	request, err := store.GetRequest(r.Context(), h.DB, id)
	if err != nil {
		domainError(w, err)
		return
	}
	if request == nil {
		jsonError(w, http.StatusNotFound, "request not found")
		return
	}
	jsonResponse(w, http.StatusOK, request)
}

// Decide handles POST /api/requests/{id}/decision.
func (h *RequestsHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var req decideRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := workflow.Decide(r.Context(), h.DB, id, req.Decision, principal(r), req.Reason)
	if err != nil {
		domainError(w, err)
		return
	}

	if !result.AlreadyDecided {
		h.notifyDecision(r, result.Request)
	}
	jsonResponse(w, http.StatusOK, result)
}

// BulkDecide handles POST /api/requests/decisions.
func (h *RequestsHandler) BulkDecide(w http.ResponseWriter, r *http.Request) {
	var req bulkDecideRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.RequestIDs) == 0 {
		jsonError(w, http.StatusBadRequest, "request_ids required")
		return
	}

	result, err := workflow.BulkDecide(r.Context(), h.DB, req.RequestIDs, req.Decision, principal(r), req.Reason)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Edit handles PUT /api/requests/{id}: a manual correction of status or
// lines that deliberately bypasses stock accounting.
func (h *RequestsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request, err := workflow.Edit(r.Context(), h.DB, id, strings.ToUpper(req.Status), req.Lines, principal(r))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, request)
}

// Urgent handles GET /api/requests/urgent: pending requests whose items
// need attention before they can be fulfilled.
func (h *RequestsHandler) Urgent(w http.ResponseWriter, r *http.Request) {
	urgent, err := workflow.UrgentRequests(r.Context(), h.DB, h.LowStockThreshold, h.ExpiryWindowDays, timeNow())
	if err != nil {
		domainError(w, err)
		return
	}
	if urgent == nil {
		urgent = []workflow.UrgentRequest{}
	}
	jsonResponse(w, http.StatusOK, urgent)
}

// notifyDecision sends the member a notice about the decision. Notification
// failure never affects the decision, it is only logged.
func (h *RequestsHandler) notifyDecision(r *http.Request, request *model.Request) {
	if h.Notifier == nil || request == nil {
		return
	}

	var err error
	switch request.Status {
	case model.StatusApproved:
		err = h.Notifier.RequestApproved(r.Context(), request.MemberEmail, request.MemberName, request.ID)
	case model.StatusRejected:
		err = h.Notifier.RequestRejected(r.Context(), request.MemberEmail, request.MemberName, request.ID, request.RejectReason)
	}
	if err != nil {
		log.Error().Err(err).Int64("request_id", request.ID).Msg("decision notice failed")
	}
}
