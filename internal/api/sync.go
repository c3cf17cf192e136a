package api

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amensah/pantry/internal/backup"
	"github.com/amensah/pantry/internal/store"
)

// SyncHandler handles exports, backup archives, and the transfer endpoints
// both sides of a sync talk to.
type SyncHandler struct {
	DB         *sql.DB
	UploadsDir string

	// Token for machine-to-machine transfers; checked by middleware.
	SyncToken string

	// Default remote for push/pull runs triggered from this instance.
	RemoteURL string

	// Host this instance serves on, used to refuse syncing with itself.
	LocalHost string
}

// exportCSV streams one section as a CSV download.
func (h *SyncHandler) exportCSV(w http.ResponseWriter, r *http.Request, section string,
	write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		domainError(w, err)
		return
	}

	filename := fmt.Sprintf("%s_%s.csv", section, time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(buf.Bytes())
}

// ExportItems handles GET /api/export/items (and the sync alias).
func (h *SyncHandler) ExportItems(w http.ResponseWriter, r *http.Request) {
	h.exportCSV(w, r, "items", func(out io.Writer) error {
		return backup.WriteItemsCSV(r.Context(), h.DB, out)
	})
}

// ExportRequests handles GET /api/export/requests.
func (h *SyncHandler) ExportRequests(w http.ResponseWriter, r *http.Request) {
	h.exportCSV(w, r, "requests", func(out io.Writer) error {
		return backup.WriteRequestsCSV(r.Context(), h.DB, out)
	})
}

// ExportMovements handles GET /api/export/movements.
func (h *SyncHandler) ExportMovements(w http.ResponseWriter, r *http.Request) {
	h.exportCSV(w, r, "movements", func(out io.Writer) error {
		return backup.WriteMovementsCSV(r.Context(), h.DB, out)
	})
}

// ExportManagers handles GET /api/export/managers.
func (h *SyncHandler) ExportManagers(w http.ResponseWriter, r *http.Request) {
	h.exportCSV(w, r, "managers", func(out io.Writer) error {
		return backup.WriteManagersCSV(r.Context(), h.DB, out)
	})
}

// ExportUploads handles GET /api/export/uploads: the image files as a zip.
func (h *SyncHandler) ExportUploads(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := backup.WriteUploadsArchive(&buf, h.UploadsDir); err != nil {
		domainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=uploads.zip")
	w.Write(buf.Bytes())
}

// ExportBackup handles GET /api/export/backup: everything in one archive.
func (h *SyncHandler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := backup.WriteFullBackup(r.Context(), h.DB, h.UploadsDir, &buf); err != nil {
		domainError(w, err)
		return
	}

	filename := fmt.Sprintf("pantry_backup_%s.zip", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(buf.Bytes())
}

// importFile reads the uploaded section payload from a multipart form.
func importFile(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<20)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "file required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "reading file")
		return nil, false
	}
	return data, true
}

// ImportItems handles POST /api/sync/import/items.
func (h *SyncHandler) ImportItems(w http.ResponseWriter, r *http.Request) {
	data, ok := importFile(w, r)
	if !ok {
		return
	}
	result, err := backup.ImportItems(r.Context(), h.DB, bytes.NewReader(data))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// ImportRequests handles POST /api/sync/import/requests.
func (h *SyncHandler) ImportRequests(w http.ResponseWriter, r *http.Request) {
	data, ok := importFile(w, r)
	if !ok {
		return
	}
	result, err := backup.ImportRequests(r.Context(), h.DB, bytes.NewReader(data))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// ImportMovements handles POST /api/sync/import/movements.
func (h *SyncHandler) ImportMovements(w http.ResponseWriter, r *http.Request) {
	data, ok := importFile(w, r)
	if !ok {
		return
	}
	result, err := backup.ImportMovements(r.Context(), h.DB, bytes.NewReader(data))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// ImportManagers handles POST /api/sync/import/managers.
func (h *SyncHandler) ImportManagers(w http.ResponseWriter, r *http.Request) {
	data, ok := importFile(w, r)
	if !ok {
		return
	}
	result, err := backup.ImportManagers(r.Context(), h.DB, bytes.NewReader(data))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// ImportUploads handles POST /api/sync/import/uploads.
func (h *SyncHandler) ImportUploads(w http.ResponseWriter, r *http.Request) {
	data, ok := importFile(w, r)
	if !ok {
		return
	}
	if len(data) > 0 {
		if err := backup.ExtractUploadsArchive(data, h.UploadsDir); err != nil {
			domainError(w, err)
			return
		}
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "uploads imported"})
}

// ImportBackup handles POST /api/backup/import: restore from a full backup
// archive. The mirror form field switches to replace-everything mode.
func (h *SyncHandler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	data, ok := importFile(w, r)
	if !ok {
		return
	}
	mirror := r.FormValue("mirror") == "1"

	results, err := backup.ImportFullBackup(r.Context(), h.DB, h.UploadsDir, data, mirror)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"sections": results, "mirror": mirror})
}

type syncRunRequest struct {
	RemoteURL string `json:"remote_url"`
	Token     string `json:"token"`
}

func (h *SyncHandler) client(req syncRunRequest, requestHost string) (*backup.Client, error) {
	url := req.RemoteURL
	if url == "" {
		url = h.RemoteURL
	}
	if url == "" {
		return nil, store.Validationf("no remote configured")
	}
	token := req.Token
	if token == "" {
		token = h.SyncToken
	}

	// The listen address alone is not enough: it usually has no host part,
	// so the Host header the caller reached us on is checked too.
	client := backup.NewClient(url, token)
	if err := client.CheckTarget(requestHost, h.LocalHost); err != nil {
		return nil, err
	}
	return client, nil
}

// Push handles POST /api/sync/push: send this instance's data to the remote.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req syncRunRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, err := h.client(req, r.Host)
	if err != nil {
		domainError(w, err)
		return
	}
	statuses := client.Push(r.Context(), h.DB, h.UploadsDir)
	jsonResponse(w, http.StatusOK, map[string]any{"sections": statuses})
}

// Pull handles POST /api/sync/pull: fetch the remote's data into this
// instance.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	var req syncRunRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, err := h.client(req, r.Host)
	if err != nil {
		domainError(w, err)
		return
	}
	statuses := client.Pull(r.Context(), h.DB, h.UploadsDir)
	jsonResponse(w, http.StatusOK, map[string]any{"sections": statuses})
}
