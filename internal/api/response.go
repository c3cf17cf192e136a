package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/amensah/pantry/internal/backup"
	"github.com/amensah/pantry/internal/store"
	"github.com/amensah/pantry/internal/workflow"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("encoding response")
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// parseID parses a decimal id from a path value or query parameter.
func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// domainError maps the error types raised by the store, workflow and backup
// layers onto HTTP statuses. Anything unrecognized is a 500 and gets logged;
// the client only ever sees a generic message for those.
func domainError(w http.ResponseWriter, err error) {
	var (
		validation   *store.ValidationError
		insufficient *store.InsufficientStockError
		fulfillment  *workflow.FulfillmentError
		integrity    *backup.IntegrityError
		transport    *backup.TransportError
	)
	switch {
	case errors.As(err, &validation):
		jsonError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &insufficient):
		jsonError(w, http.StatusConflict, insufficient.Error())
	case errors.As(err, &fulfillment):
		lines := make([]string, 0, len(fulfillment.Lines))
		for _, l := range fulfillment.Lines {
			lines = append(lines, l.String())
		}
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":      fulfillment.Error(),
			"request_id": fulfillment.RequestID,
			"lines":      lines,
		})
	case errors.As(err, &integrity):
		jsonError(w, http.StatusBadRequest, integrity.Error())
	case errors.As(err, &transport):
		jsonError(w, http.StatusBadGateway, transport.Error())
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		jsonError(w, http.StatusConflict, "already exists")
	default:
		log.Error().Err(err).Msg("internal error")
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
