package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/model"
)

// MaxSearchLimit caps search results.
const MaxSearchLimit = 50

const itemSelect = `SELECT i.id, i.guild_id, i.category_id, COALESCE(c.name, '` + model.FallbackCategoryName + `') AS category_name,
	       i.name, i.code, i.qty, i.warn_below, i.note, i.storage_location, i.image_url, i.is_active,
	       i.created_at, i.updated_at, i.deactivated_at, i.deactivated_reason
	FROM items i
	LEFT JOIN categories c ON c.id = i.category_id AND c.guild_id = i.guild_id`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	it := &model.Item{}
	err := row.Scan(&it.ID, &it.GuildID, &it.CategoryID, &it.CategoryName,
		&it.Name, &it.Code, &it.Quantity, &it.WarnBelow, &it.Note, &it.StorageLocation, &it.ImageURL, &it.Active,
		&it.CreatedAt, &it.UpdatedAt, &it.DeactivatedAt, &it.DeactivatedReason)
	return it, err
}

func queryItems(ctx context.Context, q db.DBTX, query string, args ...any) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// resolveCategory returns an active category id, substituting the fallback
// category when id is zero.
func resolveCategory(ctx context.Context, q db.DBTX, guildID, id int64, now clock.Snapshot) (int64, error) {
	if id == 0 {
		return ensureFallbackCategory(ctx, q, guildID, now)
	}
	c, err := GetCategory(ctx, q, guildID, id)
	if err != nil {
		return 0, err
	}
	if c == nil || !c.Active {
		return 0, fmt.Errorf("%w: category %d is not an active category", ErrInvalidInput, id)
	}
	return c.ID, nil
}

// CreateItem creates an item with zero stock. Initial stock must be booked
// through the ledger so the first movement row carries it.
func CreateItem(ctx context.Context, q db.DBTX, guildID int64, in model.NewItem, now clock.Snapshot) (*model.Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrInvalidInput)
	}
	if in.WarnBelow < 0 {
		return nil, fmt.Errorf("%w: warn threshold must not be negative", ErrInvalidInput)
	}

	categoryID, err := resolveCategory(ctx, q, guildID, in.CategoryID, now)
	if err != nil {
		return nil, err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO items (guild_id, category_id, name, code, qty, warn_below, note, storage_location,
		                    is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?, 1, ?, ?)`,
		guildID, categoryID, name, strings.TrimSpace(in.Code), in.WarnBelow,
		strings.TrimSpace(in.Note), strings.TrimSpace(in.StorageLocation), now.Text, now.Text,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, q, guildID, id)
}

// GetItem returns an item by id (active or not), or nil if it does not exist.
func GetItem(ctx context.Context, q db.DBTX, guildID, id int64) (*model.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, itemSelect+` WHERE i.guild_id = ? AND i.id = ?`, guildID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return it, nil
}

// GetItemSnapshot returns the fields copied into ledger rows, or nil if the
// item does not exist. Callers decide what to do with inactive items.
func GetItemSnapshot(ctx context.Context, q db.DBTX, guildID, id int64) (*model.ItemSnapshot, error) {
	s := &model.ItemSnapshot{}
	err := q.QueryRowContext(ctx,
		`SELECT i.id, i.name, i.code, COALESCE(c.name, '`+model.FallbackCategoryName+`'), i.image_url,
		        i.qty, i.warn_below, i.is_active
		 FROM items i
		 LEFT JOIN categories c ON c.id = i.category_id AND c.guild_id = i.guild_id
		 WHERE i.guild_id = ? AND i.id = ?`, guildID, id,
	).Scan(&s.ItemID, &s.Name, &s.Code, &s.CategoryName, &s.ImageURL, &s.Quantity, &s.WarnBelow, &s.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item snapshot: %w", err)
	}
	return s, nil
}

// UpdateItem edits an active item's descriptive fields. Quantity is not
// editable here.
func UpdateItem(ctx context.Context, q db.DBTX, guildID, id int64, u model.ItemUpdate, now clock.Snapshot) (*model.Item, error) {
	it, err := GetItem(ctx, q, guildID, id)
	if err != nil {
		return nil, err
	}
	if it == nil || !it.Active {
		return nil, ErrNotFound
	}

	var sets []string
	var args []any
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: item name is required", ErrInvalidInput)
		}
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if u.Code != nil {
		sets = append(sets, "code = ?")
		args = append(args, strings.TrimSpace(*u.Code))
	}
	if u.WarnBelow != nil {
		if *u.WarnBelow < 0 {
			return nil, fmt.Errorf("%w: warn threshold must not be negative", ErrInvalidInput)
		}
		sets = append(sets, "warn_below = ?")
		args = append(args, *u.WarnBelow)
	}
	if u.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, strings.TrimSpace(*u.Note))
	}
	if u.StorageLocation != nil {
		sets = append(sets, "storage_location = ?")
		args = append(args, strings.TrimSpace(*u.StorageLocation))
	}
	if u.CategoryID != nil {
		categoryID, err := resolveCategory(ctx, q, guildID, *u.CategoryID, now)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "category_id = ?")
		args = append(args, categoryID)
	}
	if len(sets) == 0 {
		return it, nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, now.Text, guildID, id)
	if _, err := q.ExecContext(ctx,
		`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE guild_id = ? AND id = ?`, args...,
	); err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	return GetItem(ctx, q, guildID, id)
}

// DeactivateItem soft-deletes an item. A reason is required; the item's
// ledger history is kept.
func DeactivateItem(ctx context.Context, q db.DBTX, guildID, id int64, reason string, now clock.Snapshot) (*model.Item, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required", ErrInvalidInput)
	}

	it, err := GetItem(ctx, q, guildID, id)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, ErrNotFound
	}
	if !it.Active {
		return nil, ErrAlreadyInactive
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE items SET is_active = 0, deactivated_at = ?, deactivated_reason = ?, updated_at = ?
		 WHERE guild_id = ? AND id = ?`,
		now.Text, reason, now.Text, guildID, id,
	); err != nil {
		return nil, fmt.Errorf("deactivating item: %w", err)
	}

	it.Active = false
	it.DeactivatedAt = &now.Text
	it.DeactivatedReason = reason
	it.UpdatedAt = now.Text
	return it, nil
}

// SetItemImage stores the image reference of an active item.
func SetItemImage(ctx context.Context, q db.DBTX, guildID, id int64, imageURL string, now clock.Snapshot) error {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET image_url = ?, updated_at = ? WHERE guild_id = ? AND id = ? AND is_active = 1`,
		imageURL, now.Text, guildID, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchItems matches active items by name or code. Names starting with the
// query rank first.
func SearchItems(ctx context.Context, q db.DBTX, guildID int64, query string, limit int) ([]model.Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = model.SearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	escaped := escapeLike(query)
	contains := "%" + escaped + "%"
	prefix := escaped + "%"

	items, err := queryItems(ctx, q,
		itemSelect+`
		 WHERE i.guild_id = ? AND i.is_active = 1
		   AND (i.name LIKE ? ESCAPE '\' OR i.code LIKE ? ESCAPE '\')
		 ORDER BY CASE WHEN i.name LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, i.name ASC
		 LIMIT ?`,
		guildID, contains, contains, prefix, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}
	return items, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListItemsByCategory returns one page of a category's active items.
// Pages start at 1.
func ListItemsByCategory(ctx context.Context, q db.DBTX, guildID, categoryID int64, page int) ([]model.Item, error) {
	if page < 1 {
		page = 1
	}
	items, err := queryItems(ctx, q,
		itemSelect+`
		 WHERE i.guild_id = ? AND i.category_id = ? AND i.is_active = 1
		 ORDER BY i.name ASC, i.id ASC
		 LIMIT ? OFFSET ?`,
		guildID, categoryID, model.ItemsPageSize, (page-1)*model.ItemsPageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items by category: %w", err)
	}
	return items, nil
}

// CountItemsByCategory counts a category's active items.
func CountItemsByCategory(ctx context.Context, q db.DBTX, guildID, categoryID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE guild_id = ? AND category_id = ? AND is_active = 1`,
		guildID, categoryID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting items by category: %w", err)
	}
	return n, nil
}

// CountActiveItems counts a guild's active items.
func CountActiveItems(ctx context.Context, q db.DBTX, guildID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE guild_id = ? AND is_active = 1`, guildID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active items: %w", err)
	}
	return n, nil
}

// TotalPages returns the number of pages for n items, never less than one.
func TotalPages(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + model.ItemsPageSize - 1) / model.ItemsPageSize
}

// ListItemsForReport returns every item of a guild, active first, then by
// category and name.
func ListItemsForReport(ctx context.Context, q db.DBTX, guildID int64) ([]model.Item, error) {
	items, err := queryItems(ctx, q,
		itemSelect+`
		 WHERE i.guild_id = ?
		 ORDER BY i.is_active DESC, category_name ASC, i.name ASC`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items for report: %w", err)
	}
	return items, nil
}

// ListLowStockItems returns active items at or under their threshold.
func ListLowStockItems(ctx context.Context, q db.DBTX, guildID int64) ([]model.Item, error) {
	items, err := queryItems(ctx, q,
		itemSelect+`
		 WHERE i.guild_id = ? AND i.is_active = 1 AND i.qty <= i.warn_below
		 ORDER BY i.qty ASC, i.name ASC`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing low stock items: %w", err)
	}
	return items, nil
}
