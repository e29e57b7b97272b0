package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
)

const testGuild int64 = 1001

func testNow() clock.Snapshot {
	return clock.At(time.Date(2026, 5, 12, 10, 0, 0, 0, clock.Zone(clock.DefaultOffsetHours)))
}

// newGuildDB returns a migrated database with one initialized guild.
func newGuildDB(t *testing.T) (*sql.DB, int64) {
	t.Helper()
	database := db.NewTestDB(t)
	fallbackID, err := EnsureGuild(context.Background(), database, testGuild, testNow())
	if err != nil {
		t.Fatalf("EnsureGuild: %v", err)
	}
	return database, fallbackID
}

func categoryID(t *testing.T, database *sql.DB, name string) int64 {
	t.Helper()
	var id int64
	err := database.QueryRow(`SELECT id FROM categories WHERE guild_id = ? AND name = ?`, testGuild, name).Scan(&id)
	if err != nil {
		t.Fatalf("looking up category %q: %v", name, err)
	}
	return id
}
