// Package api is the authenticated JSON HTTP surface over the inventory
// ledger, registries and jobs.
package api

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aeranixia/Inventory-Bot/internal/alert"
	"github.com/aeranixia/Inventory-Bot/internal/attach"
	"github.com/aeranixia/Inventory-Bot/internal/auth"
	"github.com/aeranixia/Inventory-Bot/internal/backup"
	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/imaging"
	"github.com/aeranixia/Inventory-Bot/internal/jobs"
	"github.com/aeranixia/Inventory-Bot/internal/ledger"
	"github.com/aeranixia/Inventory-Bot/internal/metrics"
	"github.com/aeranixia/Inventory-Bot/internal/model"
)

// Deps are the collaborators the handlers use. Gatherer may be nil to
// leave /metrics unregistered.
type Deps struct {
	DB       *sql.DB
	Clock    *clock.Clock
	Issuer   *auth.Issuer
	Ledger   *ledger.Ledger
	Alerts   *alert.Tracker
	Jobs     *jobs.Engine
	Backups  *backup.Manager
	Images   *imaging.Store
	Waiter   *attach.Waiter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, Issuer: d.Issuer, Clock: d.Clock}
	operatorsHandler := &OperatorsHandler{DB: d.DB, Clock: d.Clock}
	categoriesHandler := &CategoriesHandler{DB: d.DB, Clock: d.Clock, Ledger: d.Ledger}
	itemsHandler := &ItemsHandler{DB: d.DB, Clock: d.Clock, Ledger: d.Ledger, Alerts: d.Alerts, Images: d.Images, Waiter: d.Waiter}
	movementsHandler := &MovementsHandler{DB: d.DB, Clock: d.Clock, Ledger: d.Ledger, Alerts: d.Alerts}
	settingsHandler := &SettingsHandler{DB: d.DB, Clock: d.Clock, Ledger: d.Ledger}
	dashboardHandler := &DashboardHandler{DB: d.DB, Clock: d.Clock}
	adminHandler := &AdminHandler{Jobs: d.Jobs, Backups: d.Backups}

	authMW := AuthMiddleware(d.Issuer, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)

	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.Images != nil {
		mux.Handle("GET "+imaging.URLPrefix, d.Images.Handler())
	}

	// Own account.
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))

	// Operators (admin only).
	mux.Handle("GET /api/operators", admin(operatorsHandler.List))
	mux.Handle("POST /api/operators", admin(operatorsHandler.Create))
	mux.Handle("PUT /api/operators/{id}", admin(operatorsHandler.Update))
	mux.Handle("PUT /api/operators/{id}/password", admin(operatorsHandler.ResetPassword))
	mux.Handle("DELETE /api/operators/{id}", admin(operatorsHandler.Delete))

	// Categories: read (all), write (admin).
	mux.Handle("GET /api/categories", authed(categoriesHandler.List))
	mux.Handle("POST /api/categories", admin(categoriesHandler.Create))
	mux.Handle("DELETE /api/categories/{id}", admin(categoriesHandler.Deactivate))
	mux.Handle("GET /api/categories/{id}/items", authed(categoriesHandler.Items))

	// Items: read (all), write (admin), images (all).
	mux.Handle("GET /api/items/search", authed(itemsHandler.Search))
	mux.Handle("GET /api/items/low-stock", authed(itemsHandler.LowStock))
	mux.Handle("POST /api/items", admin(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", admin(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", admin(itemsHandler.Deactivate))
	mux.Handle("GET /api/items/{id}/history", authed(itemsHandler.History))
	mux.Handle("PUT /api/items/{id}/image", authed(itemsHandler.UploadImage))
	mux.Handle("POST /api/items/{id}/image/wait", authed(itemsHandler.BeginImageWait))
	mux.Handle("GET /api/image-waits/{token}", authed(itemsHandler.AwaitImage))
	mux.Handle("PUT /api/image-waits/{token}", authed(itemsHandler.CompleteImageWait))
	mux.Handle("DELETE /api/image-waits/{token}", authed(itemsHandler.CancelImageWait))

	// Stock movements (all roles).
	mux.Handle("POST /api/movements", authed(movementsHandler.Create))
	mux.Handle("GET /api/movements", authed(movementsHandler.List))
	mux.Handle("GET /api/movements/export", authed(movementsHandler.Export))

	// Settings, dashboard.
	mux.Handle("GET /api/settings", authed(settingsHandler.Get))
	mux.Handle("PATCH /api/settings", admin(settingsHandler.Update))
	mux.Handle("GET /api/dashboard", authed(dashboardHandler.Get))

	// Reports and backups (admin).
	mux.Handle("POST /api/reports/daily", admin(adminHandler.DailyReport))
	mux.Handle("POST /api/reports/monthly", admin(adminHandler.MonthlyReport))
	mux.Handle("POST /api/backups", admin(adminHandler.Backup))
	mux.Handle("GET /api/backups", admin(adminHandler.ListBackups))

	return LoggingMiddleware(d.Metrics)(mux)
}
