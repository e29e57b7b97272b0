// Package ledger is the only writer of item quantities. Every stock change
// updates the item and appends one movement row in the same transaction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/metrics"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// Ledger applies stock changes and records system events.
type Ledger struct {
	db      *sql.DB
	clock   *clock.Clock
	metrics *metrics.Metrics
}

// New creates a Ledger. m may be nil.
func New(database *sql.DB, clk *clock.Clock, m *metrics.Metrics) *Ledger {
	return &Ledger{db: database, clock: clk, metrics: m}
}

// ChangeRequest describes one stock change. IN and OUT use Amount, ADJUST
// uses NewQuantity.
type ChangeRequest struct {
	GuildID     int64
	ItemID      int64
	Action      model.Action
	Amount      *int
	NewQuantity *int
	Reason      string
	Actor       model.Actor
}

// validate checks everything that does not need the current quantity.
func (r ChangeRequest) validate() error {
	switch r.Action {
	case model.ActionIn, model.ActionOut:
		if r.Amount == nil {
			return ErrAmountRequired
		}
		if *r.Amount <= 0 {
			return ErrNonPositiveAmount
		}
	case model.ActionAdjust:
		if strings.TrimSpace(r.Reason) == "" {
			return ErrReasonRequired
		}
		if r.NewQuantity == nil {
			return ErrAmountRequired
		}
		if *r.NewQuantity < 0 {
			return ErrNegativeQuantity
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
	}
	return nil
}

// ApplyStockChange validates req, then reads the item, writes the new
// quantity and appends one movement row atomically. Concurrent changes to
// one item are serialized by the write lock taken at the start of the
// transaction, so each row's before equals the previous row's after.
func (l *Ledger) ApplyStockChange(ctx context.Context, req ChangeRequest) (*model.MovementResult, error) {
	if err := req.validate(); err != nil {
		l.metrics.Rejection(string(req.Action), "validation")
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)

	var result *model.MovementResult
	err := db.WithTx(ctx, l.db, func(ctx context.Context, tx db.DBTX) error {
		// Acquire the write lock before reading so no other writer can
		// observe the same before quantity.
		lock, err := tx.ExecContext(ctx,
			`UPDATE items SET qty = qty WHERE guild_id = ? AND id = ? AND is_active = 1`,
			req.GuildID, req.ItemID,
		)
		if err != nil {
			return fmt.Errorf("acquiring lock: %w", err)
		}
		if n, _ := lock.RowsAffected(); n == 0 {
			return ErrItemNotFound
		}

		snap, err := store.GetItemSnapshot(ctx, tx, req.GuildID, req.ItemID)
		if err != nil {
			return err
		}
		if snap == nil || !snap.Active {
			return ErrItemNotFound
		}

		before := snap.Quantity
		var delta int
		switch req.Action {
		case model.ActionIn:
			delta = *req.Amount
		case model.ActionOut:
			delta = -*req.Amount
		case model.ActionAdjust:
			delta = *req.NewQuantity - before
		}
		after := before + delta
		if after < 0 {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientStock, before, -delta)
		}

		// One snapshot for both writes so the row's text and epoch agree.
		now := l.clock.Now()

		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET qty = ?, updated_at = ? WHERE guild_id = ? AND id = ?`,
			after, now.Text, req.GuildID, req.ItemID,
		); err != nil {
			return fmt.Errorf("updating quantity: %w", err)
		}

		itemID := snap.ItemID
		id, err := store.InsertMovement(ctx, tx, &model.Movement{
			GuildID:              req.GuildID,
			ItemID:               &itemID,
			ItemNameSnapshot:     snap.Name,
			ItemCodeSnapshot:     snap.Code,
			CategoryNameSnapshot: snap.CategoryName,
			ImageURL:             snap.ImageURL,
			Action:               req.Action,
			QtyChange:            delta,
			BeforeQty:            &before,
			AfterQty:             &after,
			Reason:               reason,
			Success:              true,
			ActorName:            req.Actor.Name,
			ActorID:              req.Actor.NullableID(),
			CreatedAtText:        now.Text,
			CreatedAtEpoch:       now.Epoch,
		})
		if err != nil {
			return err
		}

		result = &model.MovementResult{
			MovementID:     id,
			ItemID:         snap.ItemID,
			ItemName:       snap.Name,
			ItemCode:       snap.Code,
			CategoryName:   snap.CategoryName,
			Action:         req.Action,
			Before:         before,
			After:          after,
			Delta:          delta,
			WarnBelow:      snap.WarnBelow,
			CreatedAtText:  now.Text,
			CreatedAtEpoch: now.Epoch,
		}
		return nil
	})
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			l.metrics.Rejection(string(req.Action), reason)
		} else {
			slog.Error("stock change failed", "guild", req.GuildID, "item", req.ItemID, "action", req.Action, "error", err)
		}
		return nil, err
	}

	l.metrics.Movement(string(req.Action))
	return result, nil
}

// EventRequest describes a non-stock ledger row. ItemID and At are optional;
// a non-empty Error marks the row as a failure.
type EventRequest struct {
	GuildID int64
	ItemID  *int64
	Action  model.Action
	Reason  string
	Actor   model.Actor
	At      *clock.Snapshot
	Error   string
}

// RecordEvent appends a zero-delta row. When an item is given its current
// name, code, category and image are copied into the row.
func (l *Ledger) RecordEvent(ctx context.Context, req EventRequest) (int64, error) {
	return l.recordEvent(ctx, l.db, req)
}

// RecordEventTx is RecordEvent inside a caller's transaction.
func (l *Ledger) RecordEventTx(ctx context.Context, tx db.DBTX, req EventRequest) (int64, error) {
	return l.recordEvent(ctx, tx, req)
}

func (l *Ledger) recordEvent(ctx context.Context, q db.DBTX, req EventRequest) (int64, error) {
	if req.Action.IsStock() {
		return 0, fmt.Errorf("%w: %s changes quantity", ErrUnknownAction, req.Action)
	}
	if req.Action == "" {
		return 0, fmt.Errorf("%w: empty action", ErrUnknownAction)
	}

	now := l.clock.Now()
	if req.At != nil {
		now = *req.At
	}

	m := &model.Movement{
		GuildID:        req.GuildID,
		Action:         req.Action,
		Reason:         strings.TrimSpace(req.Reason),
		Success:        req.Error == "",
		ErrorMessage:   req.Error,
		ActorName:      req.Actor.Name,
		ActorID:        req.Actor.NullableID(),
		CreatedAtText:  now.Text,
		CreatedAtEpoch: now.Epoch,
	}

	if req.ItemID != nil {
		snap, err := store.GetItemSnapshot(ctx, q, req.GuildID, *req.ItemID)
		if err != nil {
			return 0, err
		}
		if snap == nil {
			return 0, ErrItemNotFound
		}
		itemID := snap.ItemID
		m.ItemID = &itemID
		m.ItemNameSnapshot = snap.Name
		m.ItemCodeSnapshot = snap.Code
		m.CategoryNameSnapshot = snap.CategoryName
		m.ImageURL = snap.ImageURL
	}

	id, err := store.InsertMovement(ctx, q, m)
	if err != nil {
		return 0, fmt.Errorf("recording %s event: %w", req.Action, err)
	}
	l.metrics.Movement(string(req.Action))
	return id, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrItemNotFound):
		return "not_found"
	}
	return ""
}
