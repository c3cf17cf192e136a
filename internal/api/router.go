package api

import (
	"database/sql"
	"net/http"

	"github.com/amensah/pantry/internal/config"
	"github.com/amensah/pantry/internal/notify"
	"github.com/amensah/pantry/internal/uploads"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, cfg *config.Config, up *uploads.Store, notifier notify.Notifier) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	itemsHandler := &ItemsHandler{
		DB: db, Uploads: up,
		LowStockThreshold: cfg.LowStockThreshold,
		ExpiryWindowDays:  cfg.ExpiryWindowDays,
	}
	inventoryHandler := &InventoryHandler{DB: db}
	requestsHandler := &RequestsHandler{
		DB: db, Notifier: notifier,
		LowStockThreshold: cfg.LowStockThreshold,
		ExpiryWindowDays:  cfg.ExpiryWindowDays,
	}
	reportsHandler := &ReportsHandler{
		DB:                db,
		LowStockThreshold: cfg.LowStockThreshold,
		ExpiryWindowDays:  cfg.ExpiryWindowDays,
	}
	syncHandler := &SyncHandler{
		DB:         db,
		UploadsDir: cfg.UploadsDir,
		SyncToken:  cfg.SyncToken,
		RemoteURL:  cfg.SyncRemoteURL,
		LocalHost:  cfg.Addr,
	}

	authMW := AuthMiddleware(jwtSecret, db)
	syncMW := SyncTokenMiddleware(cfg.SyncToken)

	// Public: the community-facing request form and catalog.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/public/items", itemsHandler.PublicList)
	mux.HandleFunc("GET /api/items/{id}/image", itemsHandler.GetImage)
	mux.HandleFunc("POST /api/public/requests", requestsHandler.Submit)

	// Session management.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Item catalog.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))

	// Stock movements.
	mux.Handle("POST /api/inventory/intake", authMW(http.HandlerFunc(inventoryHandler.Intake)))
	mux.Handle("POST /api/inventory/adjust", authMW(http.HandlerFunc(inventoryHandler.Adjust)))
	mux.Handle("PUT /api/inventory/quantity", authMW(http.HandlerFunc(inventoryHandler.SetQuantity)))
	mux.Handle("GET /api/inventory/movements", authMW(http.HandlerFunc(inventoryHandler.Movements)))
	mux.Handle("GET /api/inventory/totals", authMW(http.HandlerFunc(inventoryHandler.Totals)))

	// Request review.
	mux.Handle("GET /api/requests", authMW(http.HandlerFunc(requestsHandler.List)))
	mux.Handle("GET /api/requests/urgent", authMW(http.HandlerFunc(requestsHandler.Urgent)))
	mux.Handle("GET /api/requests/{id}", authMW(http.HandlerFunc(requestsHandler.Get)))
	mux.Handle("POST /api/requests/{id}/decision", authMW(http.HandlerFunc(requestsHandler.Decide)))
	mux.Handle("POST /api/requests/decisions", authMW(http.HandlerFunc(requestsHandler.BulkDecide)))
	mux.Handle("PUT /api/requests/{id}", authMW(http.HandlerFunc(requestsHandler.Edit)))

	// Reports.
	mux.Handle("GET /api/reports/summary", authMW(http.HandlerFunc(reportsHandler.Summary)))
	mux.Handle("GET /api/reports/low-stock", authMW(http.HandlerFunc(reportsHandler.LowStock)))
	mux.Handle("GET /api/reports/expiring", authMW(http.HandlerFunc(reportsHandler.Expiring)))
	mux.Handle("GET /api/reports/gaps", authMW(http.HandlerFunc(reportsHandler.Gaps)))
	mux.Handle("GET /api/reports/top-requested", authMW(http.HandlerFunc(reportsHandler.TopRequested)))

	// Manager-initiated exports and backup.
	mux.Handle("GET /api/export/items", authMW(http.HandlerFunc(syncHandler.ExportItems)))
	mux.Handle("GET /api/export/requests", authMW(http.HandlerFunc(syncHandler.ExportRequests)))
	mux.Handle("GET /api/export/movements", authMW(http.HandlerFunc(syncHandler.ExportMovements)))
	mux.Handle("GET /api/export/managers", authMW(http.HandlerFunc(syncHandler.ExportManagers)))
	mux.Handle("GET /api/export/uploads", authMW(http.HandlerFunc(syncHandler.ExportUploads)))
	mux.Handle("GET /api/export/backup", authMW(http.HandlerFunc(syncHandler.ExportBackup)))
	mux.Handle("POST /api/backup/import", authMW(http.HandlerFunc(syncHandler.ImportBackup)))
	mux.Handle("POST /api/sync/push", authMW(http.HandlerFunc(syncHandler.Push)))
	mux.Handle("POST /api/sync/pull", authMW(http.HandlerFunc(syncHandler.Pull)))

	// Machine-to-machine transfer endpoints, gated on the sync token.
	mux.Handle("GET /api/sync/export/items", syncMW(http.HandlerFunc(syncHandler.ExportItems)))
	mux.Handle("GET /api/sync/export/requests", syncMW(http.HandlerFunc(syncHandler.ExportRequests)))
	mux.Handle("GET /api/sync/export/movements", syncMW(http.HandlerFunc(syncHandler.ExportMovements)))
	mux.Handle("GET /api/sync/export/managers", syncMW(http.HandlerFunc(syncHandler.ExportManagers)))
	mux.Handle("GET /api/sync/export/uploads", syncMW(http.HandlerFunc(syncHandler.ExportUploads)))
	mux.Handle("POST /api/sync/import/items", syncMW(http.HandlerFunc(syncHandler.ImportItems)))
	mux.Handle("POST /api/sync/import/requests", syncMW(http.HandlerFunc(syncHandler.ImportRequests)))
	mux.Handle("POST /api/sync/import/movements", syncMW(http.HandlerFunc(syncHandler.ImportMovements)))
	mux.Handle("POST /api/sync/import/managers", syncMW(http.HandlerFunc(syncHandler.ImportManagers)))
	mux.Handle("POST /api/sync/import/uploads", syncMW(http.HandlerFunc(syncHandler.ImportUploads)))

	return mux
}
