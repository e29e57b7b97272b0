package store

import (
	"context"
	"testing"

	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/model"
)

func TestEnsureGuildSeedsDefaults(t *testing.T) {
	database, fallbackID := newGuildDB(t)
	ctx := context.Background()

	cats, err := ListCategories(ctx, database, testGuild, false)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != len(model.DefaultCategories) {
		t.Fatalf("expected %d categories, got %d", len(model.DefaultCategories), len(cats))
	}
	last := cats[len(cats)-1]
	if last.Name != model.FallbackCategoryName || last.ID != fallbackID {
		t.Errorf("expected fallback category last, got %q (%d)", last.Name, last.ID)
	}

	s, err := GetSettings(ctx, database, testGuild)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if s == nil {
		t.Fatal("expected settings row")
	}
	if s.ReportHour != model.DefaultReportHour || s.ReportMinute != model.DefaultReportMinute {
		t.Errorf("unexpected report time %02d:%02d", s.ReportHour, s.ReportMinute)
	}
}

func TestEnsureGuildIsIdempotentAndRevivesFallback(t *testing.T) {
	database, fallbackID := newGuildDB(t)
	ctx := context.Background()

	if _, err := database.Exec(`UPDATE categories SET is_active = 0 WHERE id = ?`, fallbackID); err != nil {
		t.Fatalf("deactivating fallback by hand: %v", err)
	}

	again, err := EnsureGuild(ctx, database, testGuild, testNow())
	if err != nil {
		t.Fatalf("EnsureGuild: %v", err)
	}
	if again != fallbackID {
		t.Errorf("expected same fallback id %d, got %d", fallbackID, again)
	}

	c, _ := GetCategory(ctx, database, testGuild, fallbackID)
	if !c.Active {
		t.Error("expected fallback category to be active again")
	}

	cats, _ := ListCategories(ctx, database, testGuild, true)
	if len(cats) != len(model.DefaultCategories) {
		t.Errorf("expected no duplicate categories, got %d", len(cats))
	}
}

func TestListGuilds(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for _, g := range []int64{3, 1, 2} {
		if _, err := EnsureGuild(ctx, database, g, testNow()); err != nil {
			t.Fatalf("EnsureGuild(%d): %v", g, err)
		}
	}

	ids, err := ListGuilds(ctx, database)
	if err != nil {
		t.Fatalf("ListGuilds: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Errorf("unexpected guilds %v", ids)
	}
}
