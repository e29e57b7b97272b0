package api

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/aeranixia/Inventory-Bot/internal/backup"
	"github.com/aeranixia/Inventory-Bot/internal/jobs"
)

// AdminHandler triggers reports and backups on demand.
type AdminHandler struct {
	Jobs    *jobs.Engine
	Backups *backup.Manager
}

type backupResponse struct {
	File    string   `json:"file"`
	Size    int64    `json:"size"`
	Zip     string   `json:"zip"`
	ZipSize int64    `json:"zip_size"`
	Removed []string `json:"removed"`
}

// markDone reads ?mark_done=true, which suppresses the scheduled run.
func markDone(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("mark_done"))
	return v
}

// DailyReport handles POST /api/reports/daily.
func (h *AdminHandler) DailyReport(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if err := h.Jobs.ForceDailyReport(r.Context(), claims.GuildID, markDone(r)); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("daily report forced", "operator", claims.Username, "guild", claims.GuildID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "daily report sent"})
}

// MonthlyReport handles POST /api/reports/monthly.
func (h *AdminHandler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if err := h.Jobs.ForceMonthlyReport(r.Context(), claims.GuildID, markDone(r)); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("monthly report forced", "operator", claims.Username, "guild", claims.GuildID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "monthly report sent"})
}

// Backup handles POST /api/backups.
func (h *AdminHandler) Backup(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	res, err := h.Jobs.ForceBackup(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	removed := make([]string, 0, len(res.Removed))
	for _, p := range res.Removed {
		removed = append(removed, filepath.Base(p))
	}
	slog.Info("backup forced", "operator", claims.Username, "file", filepath.Base(res.DBPath))
	jsonResponse(w, http.StatusCreated, backupResponse{
		File:    filepath.Base(res.DBPath),
		Size:    res.DBSize,
		Zip:     filepath.Base(res.ZipPath),
		ZipSize: res.ZipSize,
		Removed: removed,
	})
}

// ListBackups handles GET /api/backups?limit=N.
func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	files, err := h.Backups.List(limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if files == nil {
		files = []backup.FileInfo{}
	}
	jsonResponse(w, http.StatusOK, files)
}
