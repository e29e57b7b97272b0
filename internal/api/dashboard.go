package api

import (
	"database/sql"
	"net/http"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// DashboardHandler serves the guild overview.
type DashboardHandler struct {
	DB    *sql.DB
	Clock *clock.Clock
}

type categoryCount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Items int    `json:"items"`
}

type dashboard struct {
	GeneratedAt string          `json:"generated_at"`
	ActiveItems int             `json:"active_items"`
	LowStock    []model.Item    `json:"low_stock"`
	Categories  []categoryCount `json:"categories"`
}

// Get handles GET /api/dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guildID := GetClaims(ctx).GuildID

	active, err := store.CountActiveItems(ctx, h.DB, guildID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	low, err := store.ListLowStockItems(ctx, h.DB, guildID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := store.ListCategories(ctx, h.DB, guildID, false)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := dashboard{
		GeneratedAt: h.Clock.Now().Text,
		ActiveItems: active,
		LowStock:    low,
		Categories:  make([]categoryCount, 0, len(cats)),
	}
	if out.LowStock == nil {
		out.LowStock = []model.Item{}
	}
	for _, c := range cats {
		n, err := store.CountItemsByCategory(ctx, h.DB, guildID, c.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out.Categories = append(out.Categories, categoryCount{ID: c.ID, Name: c.Name, Items: n})
	}
	jsonResponse(w, http.StatusOK, out)
}
