package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aeranixia/Inventory-Bot/internal/alert"
	"github.com/aeranixia/Inventory-Bot/internal/attach"
	"github.com/aeranixia/Inventory-Bot/internal/auth"
	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/imaging"
	"github.com/aeranixia/Inventory-Bot/internal/ledger"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	DB     *sql.DB
	Clock  *clock.Clock
	Ledger *ledger.Ledger
	Alerts *alert.Tracker
	Images *imaging.Store
	Waiter *attach.Waiter
}

type createItemRequest struct {
	CategoryID      int64  `json:"category_id" validate:"required,gt=0"`
	Name            string `json:"name" validate:"required,max=100"`
	Code            string `json:"code" validate:"max=50"`
	WarnBelow       int    `json:"warn_below" validate:"min=0"`
	Note            string `json:"note" validate:"max=500"`
	StorageLocation string `json:"storage_location" validate:"max=100"`
	InitialQty      int    `json:"initial_qty" validate:"min=0"`
}

type updateItemRequest struct {
	CategoryID      *int64  `json:"category_id" validate:"omitempty,gt=0"`
	Name            *string `json:"name" validate:"omitempty,max=100"`
	Code            *string `json:"code" validate:"omitempty,max=50"`
	WarnBelow       *int    `json:"warn_below" validate:"omitempty,min=0"`
	Note            *string `json:"note" validate:"omitempty,max=500"`
	StorageLocation *string `json:"storage_location" validate:"omitempty,max=100"`
}

type deactivateItemRequest struct {
	Reason string `json:"reason" validate:"required,max=200"`
}

type imageWaitResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Search handles GET /api/items/search?q=...&limit=N.
func (h *ItemsHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := store.SearchItems(r.Context(), h.DB, GetClaims(r.Context()).GuildID, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// LowStock handles GET /api/items/low-stock.
func (h *ItemsHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListLowStockItems(r.Context(), h.DB, GetClaims(r.Context()).GuildID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items. Initial stock is booked as an IN movement
// in its own transaction after the item exists. If that booking fails the
// item is not rolled back: it stays at quantity 0 and the caller can retry
// with an IN through POST /api/movements.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.Clock.Now()
	var item *model.Item
	err := db.WithTx(r.Context(), h.DB, func(ctx context.Context, tx db.DBTX) error {
		var err error
		item, err = store.CreateItem(ctx, tx, claims.GuildID, model.NewItem{
			CategoryID:      req.CategoryID,
			Name:            req.Name,
			Code:            req.Code,
			WarnBelow:       req.WarnBelow,
			Note:            req.Note,
			StorageLocation: req.StorageLocation,
		}, now)
		if err != nil {
			return err
		}
		_, err = h.Ledger.RecordEventTx(ctx, tx, ledger.EventRequest{
			GuildID: claims.GuildID,
			ItemID:  &item.ID,
			Action:  model.ActionItemCreate,
			Reason:  "created",
			Actor:   claims.Actor(),
			At:      &now,
		})
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.InitialQty > 0 {
		qty := req.InitialQty
		res, err := h.Ledger.ApplyStockChange(r.Context(), ledger.ChangeRequest{
			GuildID: claims.GuildID,
			ItemID:  item.ID,
			Action:  model.ActionIn,
			Amount:  &qty,
			Reason:  "initial stock",
			Actor:   claims.Actor(),
		})
		if err != nil {
			slog.Warn("initial stock not booked", "guild", claims.GuildID, "item", item.ID, "error", err)
			writeError(w, r, err)
			return
		}
		h.Alerts.Evaluate(r.Context(), claims.GuildID, res)
		item.Quantity = res.After
	}

	slog.Info("item created", "operator", claims.Username, "guild", claims.GuildID, "item", item.ID, "name", item.Name)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, GetClaims(r.Context()).GuildID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.Clock.Now()
	var item *model.Item
	err = db.WithTx(r.Context(), h.DB, func(ctx context.Context, tx db.DBTX) error {
		var err error
		item, err = store.UpdateItem(ctx, tx, claims.GuildID, id, model.ItemUpdate{
			CategoryID:      req.CategoryID,
			Name:            req.Name,
			Code:            req.Code,
			WarnBelow:       req.WarnBelow,
			Note:            req.Note,
			StorageLocation: req.StorageLocation,
		}, now)
		if err != nil {
			return err
		}
		_, err = h.Ledger.RecordEventTx(ctx, tx, ledger.EventRequest{
			GuildID: claims.GuildID,
			ItemID:  &id,
			Action:  model.ActionItemUpdate,
			Reason:  "updated",
			Actor:   claims.Actor(),
			At:      &now,
		})
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("item updated", "operator", claims.Username, "guild", claims.GuildID, "item", id)
	jsonResponse(w, http.StatusOK, item)
}

// Deactivate handles DELETE /api/items/{id}. A reason is required.
func (h *ItemsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req deactivateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.Clock.Now()
	var item *model.Item
	err = db.WithTx(r.Context(), h.DB, func(ctx context.Context, tx db.DBTX) error {
		var err error
		item, err = store.DeactivateItem(ctx, tx, claims.GuildID, id, req.Reason, now)
		if err != nil {
			return err
		}
		_, err = h.Ledger.RecordEventTx(ctx, tx, ledger.EventRequest{
			GuildID: claims.GuildID,
			ItemID:  &id,
			Action:  model.ActionItemDeactivate,
			Reason:  req.Reason,
			Actor:   claims.Actor(),
			At:      &now,
		})
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("item deactivated", "operator", claims.Username, "guild", claims.GuildID, "item", id)
	jsonResponse(w, http.StatusOK, item)
}

// History handles GET /api/items/{id}/history?limit=N.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := store.ListItemMovements(r.Context(), h.DB, GetClaims(r.Context()).GuildID, id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, rows)
}

// UploadImage handles PUT /api/items/{id}/image with a multipart "image"
// field.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	url, err := h.saveImage(w, r, claims, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"image_url": url})
}

// BeginImageWait handles POST /api/items/{id}/image/wait. The returned
// token accepts one upload until it expires.
func (h *ItemsHandler) BeginImageWait(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, claims.GuildID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil || !item.Active {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	token, err := h.Waiter.Begin(attach.Key{OperatorID: claims.OperatorID, GuildID: claims.GuildID, ItemID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, imageWaitResponse{
		Token:     token,
		ExpiresAt: h.Clock.Now().Time.Add(h.Waiter.Timeout()),
	})
}

// AwaitImage handles GET /api/image-waits/{token} and blocks until the
// upload arrives, the wait is cancelled or it times out.
func (h *ItemsHandler) AwaitImage(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if _, err := h.ownedWait(r, token); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Waiter.Timeout()+5*time.Second)
	defer cancel()
	res, err := h.Waiter.Wait(ctx, token)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			jsonError(w, http.StatusGatewayTimeout, "wait interrupted")
			return
		}
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// CompleteImageWait handles PUT /api/image-waits/{token} with a multipart
// "image" field.
func (h *ItemsHandler) CompleteImageWait(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	token := r.PathValue("token")
	key, err := h.ownedWait(r, token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.Waiter.Open(token) {
		jsonError(w, http.StatusConflict, "image wait has already ended")
		return
	}

	url, err := h.saveImage(w, r, claims, key.ItemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Waiter.Complete(token, url); err != nil {
		slog.Info("image stored after wait ended", "item", key.ItemID, "error", err)
	}
	jsonResponse(w, http.StatusOK, map[string]string{"image_url": url})
}

// CancelImageWait handles DELETE /api/image-waits/{token}.
func (h *ItemsHandler) CancelImageWait(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if _, err := h.ownedWait(r, token); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Waiter.Cancel(token); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "cancelled"})
}

// ownedWait returns the wait's key if it belongs to the calling operator.
// Waits of other operators look like missing ones.
func (h *ItemsHandler) ownedWait(r *http.Request, token string) (attach.Key, error) {
	claims := GetClaims(r.Context())
	key, ok := h.Waiter.Lookup(token)
	if !ok || key.GuildID != claims.GuildID || key.OperatorID != claims.OperatorID {
		return attach.Key{}, attach.ErrNoWait
	}
	return key, nil
}

// saveImage stores the uploaded image, points the item at it and records
// an ITEM_IMAGE_SET row.
func (h *ItemsHandler) saveImage(w http.ResponseWriter, r *http.Request, claims *auth.Claims, itemID int64) (string, error) {
	item, err := store.GetItem(r.Context(), h.DB, claims.GuildID, itemID)
	if err != nil {
		return "", err
	}
	if item == nil || !item.Active {
		return "", store.ErrNotFound
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	file, _, err := r.FormFile("image")
	if err != nil {
		return "", imaging.ErrUnsupported
	}
	defer file.Close()

	url, err := h.Images.Save(claims.GuildID, itemID, file)
	if err != nil {
		return "", err
	}

	now := h.Clock.Now()
	err = db.WithTx(r.Context(), h.DB, func(ctx context.Context, tx db.DBTX) error {
		if err := store.SetItemImage(ctx, tx, claims.GuildID, itemID, url, now); err != nil {
			return err
		}
		_, err := h.Ledger.RecordEventTx(ctx, tx, ledger.EventRequest{
			GuildID: claims.GuildID,
			ItemID:  &itemID,
			Action:  model.ActionItemImageSet,
			Reason:  url,
			Actor:   claims.Actor(),
			At:      &now,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	slog.Info("item image set", "operator", claims.Username, "guild", claims.GuildID, "item", itemID)
	return url, nil
}
