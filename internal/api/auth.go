package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/aeranixia/Inventory-Bot/internal/auth"
	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB     *sql.DB
	Issuer *auth.Issuer
	Clock  *clock.Clock
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Operator  *model.Operator `json:"operator"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,max=128"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	op, err := store.GetOperatorByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if op == nil || !auth.CheckPassword(op.PasswordHash, req.Password) {
		slog.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, claims, err := h.Issuer.Generate(op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("operator logged in", "operator", op.Username, "guild", op.GuildID, "role", op.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, Operator: op})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	now := h.Clock.Now().Time
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time, now); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("operator logged out", "operator", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	op, err := store.GetOperator(r.Context(), h.DB, claims.OperatorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if op == nil || op.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "operator not found")
		return
	}
	jsonResponse(w, http.StatusOK, op)
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	op, err := store.GetOperator(r.Context(), h.DB, claims.OperatorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if op == nil || op.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "operator not found")
		return
	}

	if !auth.CheckPassword(op.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.UpdateOperatorPassword(r.Context(), h.DB, op.ID, hash); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("operator changed own password", "operator", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
