package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aeranixia/Inventory-Bot/internal/alert"
	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/ledger"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/report"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// maxRangeDays bounds movement listings.
const maxRangeDays = 93

// MovementsHandler records stock changes and lists the ledger.
type MovementsHandler struct {
	DB     *sql.DB
	Clock  *clock.Clock
	Ledger *ledger.Ledger
	Alerts *alert.Tracker
}

type createMovementRequest struct {
	ItemID      int64  `json:"item_id" validate:"required,gt=0"`
	Action      string `json:"action" validate:"required,oneof=IN OUT ADJUST"`
	Amount      *int   `json:"amount"`
	NewQuantity *int   `json:"new_quantity"`
	Reason      string `json:"reason" validate:"max=200"`
}

type movementResponse struct {
	*model.MovementResult
	Alerted bool `json:"alerted"`
}

type movementList struct {
	From    string           `json:"from"`
	To      string           `json:"to"`
	Summary string           `json:"summary"`
	Totals  report.Totals    `json:"totals"`
	Rows    []model.Movement `json:"rows"`
}

// Create handles POST /api/movements.
func (h *MovementsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createMovementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Ledger.ApplyStockChange(r.Context(), ledger.ChangeRequest{
		GuildID:     claims.GuildID,
		ItemID:      req.ItemID,
		Action:      model.Action(req.Action),
		Amount:      req.Amount,
		NewQuantity: req.NewQuantity,
		Reason:      req.Reason,
		Actor:       claims.Actor(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	alerted := h.Alerts.Evaluate(r.Context(), claims.GuildID, res)

	slog.Info("stock changed", "operator", claims.Username, "guild", claims.GuildID,
		"item", res.ItemID, "action", res.Action, "before", res.Before, "after", res.After)
	jsonResponse(w, http.StatusCreated, movementResponse{MovementResult: res, Alerted: alerted})
}

// List handles GET /api/movements?from=YYYY-MM-DD&to=YYYY-MM-DD. Both days
// are inclusive; to defaults to from, from defaults to today.
func (h *MovementsHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, rows, ok := h.load(w, r)
	if !ok {
		return
	}
	if rows == nil {
		rows = []model.Movement{}
	}
	totals := report.Summarize(rows)
	jsonResponse(w, http.StatusOK, movementList{
		From: from, To: to, Summary: totals.String(), Totals: totals, Rows: rows,
	})
}

// Export handles GET /api/movements/export with the same range parameters
// and returns the log as a workbook.
func (h *MovementsHandler) Export(w http.ResponseWriter, r *http.Request) {
	from, to, rows, ok := h.load(w, r)
	if !ok {
		return
	}
	data, err := report.DailyLogWorkbook(rows)
	if err != nil {
		writeError(w, r, err)
		return
	}

	name := report.DailyLogFileName(from)
	if to != from {
		name = fmt.Sprintf("log_%s_%s.xlsx", from, to)
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *MovementsHandler) load(w http.ResponseWriter, r *http.Request) (string, string, []model.Movement, bool) {
	loc := h.Clock.Location()
	today := h.Clock.Now().Date()

	from := r.URL.Query().Get("from")
	if from == "" {
		from = today
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		to = from
	}

	start, err := time.ParseInLocation("2006-01-02", from, loc)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return "", "", nil, false
	}
	last, err := time.ParseInLocation("2006-01-02", to, loc)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return "", "", nil, false
	}
	if last.Before(start) {
		jsonError(w, http.StatusBadRequest, "to is before from")
		return "", "", nil, false
	}
	if last.Sub(start) > maxRangeDays*24*time.Hour {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("range is longer than %d days", maxRangeDays))
		return "", "", nil, false
	}

	startEpoch, _ := clock.At(start).DayRange()
	_, endEpoch := clock.At(last).DayRange()
	rows, err := store.ListMovementsInRange(r.Context(), h.DB, GetClaims(r.Context()).GuildID, startEpoch, endEpoch)
	if err != nil {
		writeError(w, r, err)
		return "", "", nil, false
	}
	return from, to, rows, true
}
