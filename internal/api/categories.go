package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/ledger"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	DB     *sql.DB
	Clock  *clock.Clock
	Ledger *ledger.Ledger
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

type categoryPage struct {
	Category   *model.Category `json:"category"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	Total      int             `json:"total"`
	Items      []model.Item    `json:"items"`
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	cats, err := store.ListCategories(r.Context(), h.DB, GetClaims(r.Context()).GuildID, includeInactive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, cats)
}

// Create handles POST /api/categories. An inactive category with the same
// name is reactivated.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.Clock.Now()
	var res *model.CategoryUpsert
	err := db.WithTx(r.Context(), h.DB, func(ctx context.Context, tx db.DBTX) error {
		var err error
		res, err = store.CreateOrReactivateCategory(ctx, tx, claims.GuildID, req.Name, now)
		if err != nil {
			return err
		}
		if !res.Created && !res.Reactivated {
			return nil
		}
		reason := "created " + res.Name
		if res.Reactivated {
			reason = "reactivated " + res.Name
		}
		_, err = h.Ledger.RecordEventTx(ctx, tx, ledger.EventRequest{
			GuildID: claims.GuildID,
			Action:  model.ActionCategoryCreate,
			Reason:  reason,
			Actor:   claims.Actor(),
			At:      &now,
		})
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	slog.Info("category saved", "operator", claims.Username, "guild", claims.GuildID,
		"category", res.Name, "created", res.Created, "reactivated", res.Reactivated)
	jsonResponse(w, status, res)
}

// Deactivate handles DELETE /api/categories/{id}. Items move to the
// fallback category.
func (h *CategoriesHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := store.DeactivateCategory(r.Context(), h.DB, claims.GuildID, id, claims.Actor(), h.Clock.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("category deactivated", "operator", claims.Username, "guild", claims.GuildID,
		"category", res.Name, "moved", res.Moved, "already", res.Already)
	jsonResponse(w, http.StatusOK, res)
}

// Items handles GET /api/categories/{id}/items?page=N.
func (h *CategoriesHandler) Items(w http.ResponseWriter, r *http.Request) {
	guildID := GetClaims(r.Context()).GuildID
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if page, err = strconv.Atoi(p); err != nil || page < 1 {
			jsonError(w, http.StatusBadRequest, "invalid page")
			return
		}
	}

	cat, err := store.GetCategory(r.Context(), h.DB, guildID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cat == nil {
		jsonError(w, http.StatusNotFound, "category not found")
		return
	}

	total, err := store.CountItemsByCategory(r.Context(), h.DB, guildID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pages := store.TotalPages(total)
	if page > pages {
		page = pages
	}

	items, err := store.ListItemsByCategory(r.Context(), h.DB, guildID, id, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, categoryPage{Category: cat, Page: page, TotalPages: pages, Total: total, Items: items})
}
