package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/model"
)

const operatorColumns = `id, guild_id, username, display_name, password_hash, role, created_at, deleted_at`

func scanOperator(row interface{ Scan(...any) error }) (*model.Operator, error) {
	o := &model.Operator{}
	err := row.Scan(&o.ID, &o.GuildID, &o.Username, &o.DisplayName, &o.PasswordHash, &o.Role, &o.CreatedAt, &o.DeletedAt)
	return o, err
}

// CreateOperator creates a new API account for a guild.
func CreateOperator(ctx context.Context, q db.DBTX, guildID int64, username, displayName, passwordHash, role string, now clock.Snapshot) (*model.Operator, error) {
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	existing, err := GetOperatorByUsername(ctx, q, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: username %q", ErrDuplicate, username)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO operators (guild_id, username, display_name, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		guildID, username, displayName, passwordHash, role, now.Text,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operator: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting operator id: %w", err)
	}

	return GetOperator(ctx, q, id)
}

// GetOperator returns an operator by ID.
func GetOperator(ctx context.Context, q db.DBTX, id int64) (*model.Operator, error) {
	o, err := scanOperator(q.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting operator: %w", err)
	}
	return o, nil
}

// GetOperatorByUsername returns the active operator with the given username.
func GetOperatorByUsername(ctx context.Context, q db.DBTX, username string) (*model.Operator, error) {
	o, err := scanOperator(q.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE username = ? AND deleted_at IS NULL`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting operator by username: %w", err)
	}
	return o, nil
}

// ListOperators returns a guild's active operators.
func ListOperators(ctx context.Context, q db.DBTX, guildID int64) ([]model.Operator, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE guild_id = ? AND deleted_at IS NULL ORDER BY id`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operators: %w", err)
	}
	defer rows.Close()

	var out []model.Operator
	for rows.Next() {
		o, err := scanOperator(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning operator: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateOperatorRole changes an operator's role.
func UpdateOperatorRole(ctx context.Context, q db.DBTX, guildID, id int64, role string) error {
	if !model.ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	result, err := q.ExecContext(ctx,
		`UPDATE operators SET role = ? WHERE guild_id = ? AND id = ? AND deleted_at IS NULL`,
		role, guildID, id,
	)
	if err != nil {
		return fmt.Errorf("updating operator: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateOperatorPassword updates an operator's password hash.
func UpdateOperatorPassword(ctx context.Context, q db.DBTX, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE operators SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating operator password: %w", err)
	}
	return nil
}

// DeleteOperator soft-deletes an operator.
func DeleteOperator(ctx context.Context, q db.DBTX, guildID, id int64, now clock.Snapshot) error {
	result, err := q.ExecContext(ctx,
		`UPDATE operators SET deleted_at = ? WHERE guild_id = ? AND id = ? AND deleted_at IS NULL`,
		now.Text, guildID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting operator: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
