package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/model"
)

// MaxCategoryNameLength bounds category names.
const MaxCategoryNameLength = 50

// NewCategorySortOrder places admin-created categories after the seeded ones
// and before the fallback.
const NewCategorySortOrder = 500

const categoryColumns = `id, guild_id, name, is_active, sort_order, created_at, updated_at, deactivated_at`

func scanCategory(row interface{ Scan(...any) error }) (*model.Category, error) {
	c := &model.Category{}
	err := row.Scan(&c.ID, &c.GuildID, &c.Name, &c.Active, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt, &c.DeactivatedAt)
	return c, err
}

// ListCategories returns a guild's categories ordered by sort order, then name.
func ListCategories(ctx context.Context, q db.DBTX, guildID int64, includeInactive bool) ([]model.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE guild_id = ?`
	if !includeInactive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY sort_order ASC, name ASC`

	rows, err := q.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCategory returns a category by id, or nil if it does not exist.
func GetCategory(ctx context.Context, q db.DBTX, guildID, id int64) (*model.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE guild_id = ? AND id = ?`, guildID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// GetCategoryName returns the category's name, or the fallback name when the
// reference is unset or dangling.
func GetCategoryName(ctx context.Context, q db.DBTX, guildID int64, categoryID *int64) (string, error) {
	if categoryID == nil {
		return model.FallbackCategoryName, nil
	}
	c, err := GetCategory(ctx, q, guildID, *categoryID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return model.FallbackCategoryName, nil
	}
	return c.Name, nil
}

// CreateOrReactivateCategory creates a category, or reactivates an inactive
// one with the same name. An already active category is returned unchanged.
func CreateOrReactivateCategory(ctx context.Context, q db.DBTX, guildID int64, name string, now clock.Snapshot) (*model.CategoryUpsert, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return nil, fmt.Errorf("%w: category name is longer than %d characters", ErrInvalidInput, MaxCategoryNameLength)
	}

	var id int64
	var active bool
	err := q.QueryRowContext(ctx,
		`SELECT id, is_active FROM categories WHERE guild_id = ? AND name = ?`, guildID, name,
	).Scan(&id, &active)
	switch {
	case err == sql.ErrNoRows:
		result, err := q.ExecContext(ctx,
			`INSERT INTO categories (guild_id, name, is_active, sort_order, created_at, updated_at)
			 VALUES (?, ?, 1, ?, ?, ?)`,
			guildID, name, NewCategorySortOrder, now.Text, now.Text,
		)
		if err != nil {
			return nil, fmt.Errorf("creating category: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting category id: %w", err)
		}
		return &model.CategoryUpsert{ID: id, Name: name, Created: true}, nil
	case err != nil:
		return nil, fmt.Errorf("looking up category: %w", err)
	}

	if active {
		return &model.CategoryUpsert{ID: id, Name: name}, nil
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE categories SET is_active = 1, deactivated_at = NULL, updated_at = ? WHERE id = ?`,
		now.Text, id,
	); err != nil {
		return nil, fmt.Errorf("reactivating category: %w", err)
	}
	return &model.CategoryUpsert{ID: id, Name: name, Reactivated: true}, nil
}

// DeactivateCategory marks a category inactive and moves every item that
// references it to the fallback category, writing one CATEGORY_REASSIGN row
// per moved item and one CATEGORY_DEACTIVATE row, all in one transaction.
// The fallback category is never deactivated.
func DeactivateCategory(ctx context.Context, database *sql.DB, guildID, categoryID int64, actor model.Actor, now clock.Snapshot) (*model.CategoryDeactivation, error) {
	var out *model.CategoryDeactivation
	err := db.WithTx(ctx, database, func(ctx context.Context, tx db.DBTX) error {
		c, err := GetCategory(ctx, tx, guildID, categoryID)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrNotFound
		}
		if c.IsFallback() {
			return ErrProtectedCategory
		}
		if !c.Active {
			out = &model.CategoryDeactivation{CategoryID: c.ID, Name: c.Name, Already: true}
			return nil
		}

		fallbackID, err := ensureFallbackCategory(ctx, tx, guildID, now)
		if err != nil {
			return err
		}

		moved, err := itemsInCategory(ctx, tx, guildID, categoryID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET category_id = ?, updated_at = ? WHERE guild_id = ? AND category_id = ?`,
			fallbackID, now.Text, guildID, categoryID,
		); err != nil {
			return fmt.Errorf("moving items to fallback category: %w", err)
		}

		reason := fmt.Sprintf("category %q deactivated, moved to %q", c.Name, model.FallbackCategoryName)
		for _, it := range moved {
			itemID := it.ItemID
			if _, err := InsertMovement(ctx, tx, &model.Movement{
				GuildID:              guildID,
				ItemID:               &itemID,
				ItemNameSnapshot:     it.Name,
				ItemCodeSnapshot:     it.Code,
				CategoryNameSnapshot: model.FallbackCategoryName,
				ImageURL:             it.ImageURL,
				Action:               model.ActionCategoryReassign,
				Reason:               reason,
				Success:              true,
				ActorName:            actor.Name,
				ActorID:              actor.NullableID(),
				CreatedAtText:        now.Text,
				CreatedAtEpoch:       now.Epoch,
			}); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE categories SET is_active = 0, deactivated_at = ?, updated_at = ? WHERE guild_id = ? AND id = ?`,
			now.Text, now.Text, guildID, categoryID,
		); err != nil {
			return fmt.Errorf("deactivating category: %w", err)
		}

		if _, err := InsertMovement(ctx, tx, &model.Movement{
			GuildID:              guildID,
			CategoryNameSnapshot: c.Name,
			Action:               model.ActionCategoryDeactivate,
			Reason:               fmt.Sprintf("category %q deactivated, %d item(s) moved", c.Name, len(moved)),
			Success:              true,
			ActorName:            actor.Name,
			ActorID:              actor.NullableID(),
			CreatedAtText:        now.Text,
			CreatedAtEpoch:       now.Epoch,
		}); err != nil {
			return err
		}

		out = &model.CategoryDeactivation{CategoryID: c.ID, Name: c.Name, Moved: len(moved)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func itemsInCategory(ctx context.Context, q db.DBTX, guildID, categoryID int64) ([]model.ItemSnapshot, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, code, image_url, qty, warn_below, is_active
		 FROM items WHERE guild_id = ? AND category_id = ? ORDER BY id`,
		guildID, categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items in category: %w", err)
	}
	defer rows.Close()

	var out []model.ItemSnapshot
	for rows.Next() {
		var s model.ItemSnapshot
		if err := rows.Scan(&s.ItemID, &s.Name, &s.Code, &s.ImageURL, &s.Quantity, &s.WarnBelow, &s.Active); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
