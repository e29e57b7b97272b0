package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/model"
)

const movementColumns = `id, guild_id, item_id, item_name_snapshot, item_code_snapshot, category_name_snapshot,
	image_url, action, qty_change, before_qty, after_qty, reason, success, error_message,
	actor_name, actor_id, created_at_text, created_at_epoch`

// InsertMovement appends one ledger row and returns its id. Callers that
// also mutate items must pass the same transaction.
func InsertMovement(ctx context.Context, q db.DBTX, m *model.Movement) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO movements (
		     guild_id, item_id, item_name_snapshot, item_code_snapshot, category_name_snapshot,
		     image_url, action, qty_change, before_qty, after_qty, reason, success, error_message,
		     actor_name, actor_id, created_at_text, created_at_epoch)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.GuildID, m.ItemID, m.ItemNameSnapshot, m.ItemCodeSnapshot, m.CategoryNameSnapshot,
		m.ImageURL, string(m.Action), m.QtyChange, m.BeforeQty, m.AfterQty, m.Reason, m.Success, m.ErrorMessage,
		m.ActorName, m.ActorID, m.CreatedAtText, m.CreatedAtEpoch,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting movement: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting movement id: %w", err)
	}
	return id, nil
}

// ListMovementsInRange returns a guild's rows with start <= epoch < end,
// ascending by epoch and then insertion order.
func ListMovementsInRange(ctx context.Context, q db.DBTX, guildID, startEpoch, endEpoch int64) ([]model.Movement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+movementColumns+`
		 FROM movements
		 WHERE guild_id = ? AND created_at_epoch >= ? AND created_at_epoch < ?
		 ORDER BY created_at_epoch ASC, id ASC`,
		guildID, startEpoch, endEpoch,
	)
	if err != nil {
		return nil, fmt.Errorf("listing movements in range: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// ListItemMovements returns an item's most recent rows, newest first.
func ListItemMovements(ctx context.Context, q db.DBTX, guildID, itemID int64, limit int) ([]model.Movement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.QueryContext(ctx,
		`SELECT `+movementColumns+`
		 FROM movements
		 WHERE guild_id = ? AND item_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		guildID, itemID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item movements: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// DeleteMovementsBefore removes a guild's rows strictly older than cutoff
// and returns how many were deleted. It is the only delete on the ledger.
func DeleteMovementsBefore(ctx context.Context, q db.DBTX, guildID, cutoffEpoch int64) (int64, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM movements WHERE guild_id = ? AND created_at_epoch < ?`,
		guildID, cutoffEpoch,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting movements: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted movements: %w", err)
	}
	return n, nil
}

func scanMovements(rows *sql.Rows) ([]model.Movement, error) {
	var out []model.Movement
	for rows.Next() {
		var m model.Movement
		var action string
		if err := rows.Scan(&m.ID, &m.GuildID, &m.ItemID, &m.ItemNameSnapshot, &m.ItemCodeSnapshot,
			&m.CategoryNameSnapshot, &m.ImageURL, &action, &m.QtyChange, &m.BeforeQty, &m.AfterQty,
			&m.Reason, &m.Success, &m.ErrorMessage, &m.ActorName, &m.ActorID,
			&m.CreatedAtText, &m.CreatedAtEpoch); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		m.Action = model.Action(action)
		out = append(out, m)
	}
	return out, rows.Err()
}
