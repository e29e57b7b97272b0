package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
)

// GetAlertState returns whether an item is currently alerting. A missing row
// reads as not alerting.
func GetAlertState(ctx context.Context, q db.DBTX, guildID, itemID int64) (bool, error) {
	var alerting bool
	err := q.QueryRowContext(ctx,
		`SELECT is_alerting FROM alert_state WHERE guild_id = ? AND item_id = ?`,
		guildID, itemID,
	).Scan(&alerting)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting alert state: %w", err)
	}
	return alerting, nil
}

// PutAlertState upserts an item's alerting flag.
func PutAlertState(ctx context.Context, q db.DBTX, guildID, itemID int64, alerting bool, now clock.Snapshot) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO alert_state (guild_id, item_id, is_alerting, updated_at_text, updated_at_epoch)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (guild_id, item_id) DO UPDATE SET
		     is_alerting = excluded.is_alerting,
		     updated_at_text = excluded.updated_at_text,
		     updated_at_epoch = excluded.updated_at_epoch`,
		guildID, itemID, alerting, now.Text, now.Epoch,
	)
	if err != nil {
		return fmt.Errorf("saving alert state: %w", err)
	}
	return nil
}
