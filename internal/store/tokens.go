package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aeranixia/Inventory-Bot/internal/db"
)

// RevokeToken puts a token id on the deny list until the token would have
// expired anyway, and drops entries that are past that point.
func RevokeToken(ctx context.Context, q db.DBTX, jti string, expiresAt, now time.Time) error {
	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt.Unix(),
	); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	_, err := PurgeRevokedTokens(ctx, q, now)
	return err
}

// PurgeRevokedTokens deletes deny-list entries whose token expired before now.
func PurgeRevokedTokens(ctx context.Context, q db.DBTX, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("purging revoked tokens: %w", err)
	}
	return res.RowsAffected()
}

// IsTokenRevoked reports whether jti is on the deny list.
func IsTokenRevoked(ctx context.Context, q db.DBTX, jti string) (bool, error) {
	var revoked bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti,
	).Scan(&revoked); err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return revoked, nil
}
