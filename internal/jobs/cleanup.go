package jobs

import (
	"context"
	"fmt"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/notify"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// quarterlyCleanup deletes ledger rows older than the current quarter
// during the first week of the quarter, once per quarter.
func (e *Engine) quarterlyCleanup(ctx context.Context, guildID int64, now clock.Snapshot) (string, error) {
	if now.Time.Day() > CleanupWindowDays || !now.IsFirstMonthOfQuarter() {
		return outcomeSkipped, nil
	}

	s, channel, err := e.destination(ctx, guildID, reportChannel)
	if err != nil {
		return "", err
	}
	key := now.QuarterKey()
	if s == nil || s.LastQuarterCleanup == key {
		return outcomeSkipped, nil
	}

	cutoff := now.StartOfQuarter()
	var deleted int64
	err = db.WithTx(ctx, e.db, func(ctx context.Context, tx db.DBTX) error {
		n, err := store.DeleteMovementsBefore(ctx, tx, guildID, cutoff.Unix())
		if err != nil {
			return err
		}
		deleted = n
		return store.SetQuarterCleanupMarker(ctx, tx, guildID, key)
	})
	if err != nil {
		return "", fmt.Errorf("cleaning up %s: %w", key, err)
	}

	if channel != 0 {
		e.announce(ctx, notify.Message{
			GuildID:   guildID,
			ChannelID: channel,
			Text: fmt.Sprintf("Quarterly log cleanup: %d row(s) deleted (before %s)",
				deleted, cutoff.Format(clock.TextLayout)),
		})
	}
	return outcomeDone, nil
}
