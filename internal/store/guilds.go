package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/model"
)

// EnsureGuild creates the settings row and the default categories for a
// guild if they are missing, forces the fallback category active and returns
// its id. Safe to call on every request.
func EnsureGuild(ctx context.Context, database *sql.DB, guildID int64, now clock.Snapshot) (int64, error) {
	var fallbackID int64
	err := db.WithTx(ctx, database, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings (guild_id, updated_at) VALUES (?, ?)`,
			guildID, now.Text,
		); err != nil {
			return fmt.Errorf("ensuring settings row: %w", err)
		}

		for _, c := range model.DefaultCategories {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO categories (guild_id, name, is_active, sort_order, created_at, updated_at)
				 VALUES (?, ?, 1, ?, ?, ?)`,
				guildID, c.Name, c.SortOrder, now.Text, now.Text,
			); err != nil {
				return fmt.Errorf("seeding category %q: %w", c.Name, err)
			}
		}

		id, err := ensureFallbackCategory(ctx, tx, guildID, now)
		if err != nil {
			return err
		}
		fallbackID = id
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("initializing guild %d: %w", guildID, err)
	}
	return fallbackID, nil
}

// ensureFallbackCategory makes sure the fallback category exists and is
// active, returning its id.
func ensureFallbackCategory(ctx context.Context, q db.DBTX, guildID int64, now clock.Snapshot) (int64, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (guild_id, name, is_active, sort_order, created_at, updated_at)
		 VALUES (?, ?, 1, ?, ?, ?)`,
		guildID, model.FallbackCategoryName, model.FallbackSortOrder, now.Text, now.Text,
	); err != nil {
		return 0, fmt.Errorf("creating fallback category: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE categories SET is_active = 1, deactivated_at = NULL, updated_at = ?
		 WHERE guild_id = ? AND name = ? AND is_active = 0`,
		now.Text, guildID, model.FallbackCategoryName,
	); err != nil {
		return 0, fmt.Errorf("reactivating fallback category: %w", err)
	}

	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM categories WHERE guild_id = ? AND name = ?`,
		guildID, model.FallbackCategoryName,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reading fallback category: %w", err)
	}
	return id, nil
}

// ListGuilds returns every initialized guild.
func ListGuilds(ctx context.Context, q db.DBTX) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT guild_id FROM settings ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("listing guilds: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning guild: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
