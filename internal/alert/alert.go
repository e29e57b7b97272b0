// Package alert decides when a low-stock notification is due. The stored
// flag flips to alerting once per low-stock episode and resets only when
// stock recovers.
package alert

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/metrics"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/notify"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// Tracker gates low-stock notifications.
type Tracker struct {
	db       *sql.DB
	clock    *clock.Clock
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

// NewTracker creates a Tracker. notifier and m may be nil.
func NewTracker(database *sql.DB, clk *clock.Clock, notifier notify.Notifier, m *metrics.Metrics) *Tracker {
	return &Tracker{db: database, clock: clk, notifier: notifier, metrics: m}
}

// IsBelow reports whether a quantity counts as low stock.
func IsBelow(after, warnBelow int) bool {
	return after <= warnBelow
}

// ShouldAlert stores nowBelow as the item's state and reports whether this
// call is a fresh crossing into low stock.
func (t *Tracker) ShouldAlert(ctx context.Context, guildID, itemID int64, nowBelow bool) (bool, error) {
	var prev bool
	err := db.WithTx(ctx, t.db, func(ctx context.Context, tx db.DBTX) error {
		var err error
		prev, err = store.GetAlertState(ctx, tx, guildID, itemID)
		if err != nil {
			return err
		}
		return store.PutAlertState(ctx, tx, guildID, itemID, nowBelow, t.clock.Now())
	})
	if err != nil {
		return false, fmt.Errorf("updating alert state: %w", err)
	}
	return nowBelow && !prev, nil
}

// Evaluate runs the gate for a committed stock change and, on a fresh
// crossing, sends a low-stock message to the guild's alert channel. It
// never fails the change it follows: errors are logged.
func (t *Tracker) Evaluate(ctx context.Context, guildID int64, res *model.MovementResult) bool {
	fire, err := t.ShouldAlert(ctx, guildID, res.ItemID, IsBelow(res.After, res.WarnBelow))
	if err != nil {
		slog.Error("evaluating low stock", "guild", guildID, "item", res.ItemID, "error", err)
		return false
	}
	if !fire {
		return false
	}
	t.metrics.Alert()

	settings, err := store.GetSettings(ctx, t.db, guildID)
	if err != nil {
		slog.Warn("loading settings for alert", "guild", guildID, "error", err)
		return true
	}
	var channel int64
	if settings != nil {
		if dest := settings.AlertDestination(); dest != nil {
			channel = *dest
		}
	}
	if channel == 0 {
		slog.Info("low stock, no alert channel configured", "guild", guildID, "item", res.ItemID)
		return true
	}

	notify.Best(ctx, t.notifier, notify.Message{
		GuildID:   guildID,
		ChannelID: channel,
		Text:      Message(res),
	})
	return true
}

// Message renders the low-stock notification text.
func Message(res *model.MovementResult) string {
	name := res.ItemName
	if res.ItemCode != "" {
		name = fmt.Sprintf("%s (%s)", res.ItemName, res.ItemCode)
	}
	return fmt.Sprintf("Low stock: %s [%s] is at %d, warning threshold %d. Last change %s.",
		name, res.CategoryName, res.After, res.WarnBelow, res.CreatedAtText)
}
