package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/aeranixia/Inventory-Bot/internal/model"
)

func insertEventAt(t *testing.T, database *sql.DB, guildID, epoch int64) int64 {
	t.Helper()
	id, err := InsertMovement(context.Background(), database, &model.Movement{
		GuildID:        guildID,
		Action:         model.ActionItemUpdate,
		Success:        true,
		ActorName:      "test",
		CreatedAtText:  "x",
		CreatedAtEpoch: epoch,
	})
	if err != nil {
		t.Fatalf("InsertMovement: %v", err)
	}
	return id
}

func TestListMovementsInRangeIsHalfOpenAndOrdered(t *testing.T) {
	database, _ := newGuildDB(t)
	ctx := context.Background()

	second := insertEventAt(t, database, testGuild, 200)
	first := insertEventAt(t, database, testGuild, 100)
	tie := insertEventAt(t, database, testGuild, 200)
	insertEventAt(t, database, testGuild, 300)
	insertEventAt(t, database, testGuild+1, 150)

	rows, err := ListMovementsInRange(ctx, database, testGuild, 100, 300)
	if err != nil {
		t.Fatalf("ListMovementsInRange: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	want := []int64{first, second, tie}
	for i, id := range want {
		if rows[i].ID != id {
			t.Errorf("row %d: expected id %d, got %d", i, id, rows[i].ID)
		}
	}
}

func TestDeleteMovementsBefore(t *testing.T) {
	database, _ := newGuildDB(t)
	ctx := context.Background()

	insertEventAt(t, database, testGuild, 99)
	insertEventAt(t, database, testGuild, 100)
	insertEventAt(t, database, testGuild+1, 50)

	n, err := DeleteMovementsBefore(ctx, database, testGuild, 100)
	if err != nil {
		t.Fatalf("DeleteMovementsBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}

	rows, _ := ListMovementsInRange(ctx, database, testGuild+1, 0, 1000)
	if len(rows) != 1 {
		t.Error("other guild's rows must be untouched")
	}
}

func TestListItemMovementsNewestFirst(t *testing.T) {
	database, _ := newGuildDB(t)
	ctx := context.Background()

	it, _ := CreateItem(ctx, database, testGuild, model.NewItem{Name: "Gauze"}, testNow())
	for i := 0; i < 3; i++ {
		itemID := it.ID
		before, after := i, i+1
		if _, err := InsertMovement(ctx, database, &model.Movement{
			GuildID: testGuild, ItemID: &itemID, Action: model.ActionIn,
			QtyChange: 1, BeforeQty: &before, AfterQty: &after, Success: true,
			CreatedAtText: testNow().Text, CreatedAtEpoch: testNow().Epoch,
		}); err != nil {
			t.Fatalf("InsertMovement: %v", err)
		}
	}

	rows, err := ListItemMovements(ctx, database, testGuild, it.ID, 2)
	if err != nil {
		t.Fatalf("ListItemMovements: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if *rows[0].AfterQty != 3 || *rows[1].AfterQty != 2 {
		t.Errorf("expected newest first, got %d then %d", *rows[0].AfterQty, *rows[1].AfterQty)
	}
}
