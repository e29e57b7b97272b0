package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/ledger"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// SettingsHandler reads and edits a guild's settings.
type SettingsHandler struct {
	DB     *sql.DB
	Clock  *clock.Clock
	Ledger *ledger.Ledger
}

// updateSettingsRequest mirrors model.SettingsPatch. A channel id of 0
// clears the channel.
type updateSettingsRequest struct {
	DashboardChannelID *int64 `json:"dashboard_channel_id" validate:"omitempty,min=0"`
	DashboardMessageID *int64 `json:"dashboard_message_id" validate:"omitempty,min=0"`
	AlertChannelID     *int64 `json:"alert_channel_id" validate:"omitempty,min=0"`
	ReportChannelID    *int64 `json:"report_channel_id" validate:"omitempty,min=0"`
	AdminRoleID        *int64 `json:"admin_role_id" validate:"omitempty,min=0"`
	ReportHour         *int   `json:"report_hour" validate:"omitempty,min=0,max=23"`
	ReportMinute       *int   `json:"report_minute" validate:"omitempty,oneof=0 30"`
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := store.GetSettings(r.Context(), h.DB, GetClaims(r.Context()).GuildID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s == nil {
		jsonError(w, http.StatusNotFound, "guild is not initialized")
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Update handles PATCH /api/settings and records an UPDATE_SETTINGS row
// listing the changed fields.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req updateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch := model.SettingsPatch(req)

	now := h.Clock.Now()
	var changes string
	err := db.WithTx(r.Context(), h.DB, func(ctx context.Context, tx db.DBTX) error {
		var err error
		changes, err = store.UpdateSettings(ctx, tx, claims.GuildID, patch, now)
		if err != nil {
			return err
		}
		_, err = h.Ledger.RecordEventTx(ctx, tx, ledger.EventRequest{
			GuildID: claims.GuildID,
			Action:  model.ActionUpdateSettings,
			Reason:  changes,
			Actor:   claims.Actor(),
			At:      &now,
		})
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s, err := store.GetSettings(r.Context(), h.DB, claims.GuildID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("settings updated", "operator", claims.Username, "guild", claims.GuildID, "changes", changes)
	jsonResponse(w, http.StatusOK, s)
}
