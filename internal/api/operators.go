package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aeranixia/Inventory-Bot/internal/auth"
	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// OperatorsHandler manages a guild's API accounts (admin only).
type OperatorsHandler struct {
	DB    *sql.DB
	Clock *clock.Clock
}

type createOperatorRequest struct {
	Username    string `json:"username" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"max=64"`
	Password    string `json:"password" validate:"required,max=128"`
	Role        string `json:"role" validate:"required,oneof=admin staff"`
}

type updateOperatorRequest struct {
	Role string `json:"role" validate:"required,oneof=admin staff"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,max=128"`
}

// List handles GET /api/operators.
func (h *OperatorsHandler) List(w http.ResponseWriter, r *http.Request) {
	ops, err := store.ListOperators(r.Context(), h.DB, GetClaims(r.Context()).GuildID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ops == nil {
		ops = []model.Operator{}
	}
	jsonResponse(w, http.StatusOK, ops)
}

// Create handles POST /api/operators.
func (h *OperatorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createOperatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	op, err := store.CreateOperator(r.Context(), h.DB, claims.GuildID,
		strings.TrimSpace(req.Username), strings.TrimSpace(req.DisplayName), hash, req.Role, h.Clock.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("operator created", "operator", claims.Username, "new_operator", op.Username, "role", op.Role)
	jsonResponse(w, http.StatusCreated, op)
}

// Update handles PUT /api/operators/{id}.
func (h *OperatorsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateOperatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id == claims.OperatorID && req.Role != model.RoleAdmin {
		jsonError(w, http.StatusBadRequest, "cannot demote yourself")
		return
	}

	if err := store.UpdateOperatorRole(r.Context(), h.DB, claims.GuildID, id, req.Role); err != nil {
		writeError(w, r, err)
		return
	}

	op, err := store.GetOperator(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("operator role updated", "operator", claims.Username, "target", op.Username, "role", req.Role)
	jsonResponse(w, http.StatusOK, op)
}

// ResetPassword handles PUT /api/operators/{id}/password.
func (h *OperatorsHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := store.GetOperator(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if target == nil || target.GuildID != claims.GuildID || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "operator not found")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := store.UpdateOperatorPassword(r.Context(), h.DB, id, hash); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("operator password reset", "operator", claims.Username, "target", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/operators/{id}.
func (h *OperatorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id == claims.OperatorID {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := store.DeleteOperator(r.Context(), h.DB, claims.GuildID, id, h.Clock.Now()); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("operator deleted", "operator", claims.Username, "deleted", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "operator deleted"})
}
