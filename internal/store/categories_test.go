package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aeranixia/Inventory-Bot/internal/model"
)

func TestCreateOrReactivateCategory(t *testing.T) {
	database, _ := newGuildDB(t)
	ctx := context.Background()

	up, err := CreateOrReactivateCategory(ctx, database, testGuild, "  Bandages ", testNow())
	if err != nil {
		t.Fatalf("CreateOrReactivateCategory: %v", err)
	}
	if !up.Created || up.Name != "Bandages" {
		t.Errorf("expected created Bandages, got %+v", up)
	}

	again, err := CreateOrReactivateCategory(ctx, database, testGuild, "Bandages", testNow())
	if err != nil {
		t.Fatalf("CreateOrReactivateCategory: %v", err)
	}
	if again.Created || again.Reactivated || again.ID != up.ID {
		t.Errorf("expected existing category returned unchanged, got %+v", again)
	}

	if _, err := DeactivateCategory(ctx, database, testGuild, up.ID, model.SystemActor, testNow()); err != nil {
		t.Fatalf("DeactivateCategory: %v", err)
	}

	revived, err := CreateOrReactivateCategory(ctx, database, testGuild, "Bandages", testNow())
	if err != nil {
		t.Fatalf("CreateOrReactivateCategory: %v", err)
	}
	if !revived.Reactivated || revived.ID != up.ID {
		t.Errorf("expected reactivation of %d, got %+v", up.ID, revived)
	}
}

func TestCreateCategoryValidation(t *testing.T) {
	database, _ := newGuildDB(t)
	ctx := context.Background()

	if _, err := CreateOrReactivateCategory(ctx, database, testGuild, "   ", testNow()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank name, got %v", err)
	}
	long := strings.Repeat("x", MaxCategoryNameLength+1)
	if _, err := CreateOrReactivateCategory(ctx, database, testGuild, long, testNow()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for long name, got %v", err)
	}
}

func TestDeactivateCategoryMovesItems(t *testing.T) {
	database, fallbackID := newGuildDB(t)
	ctx := context.Background()
	powders := categoryID(t, database, "Powders")

	var ids []int64
	for _, name := range []string{"Ginseng", "Licorice", "Angelica"} {
		it, err := CreateItem(ctx, database, testGuild, model.NewItem{CategoryID: powders, Name: name}, testNow())
		if err != nil {
			t.Fatalf("CreateItem(%s): %v", name, err)
		}
		ids = append(ids, it.ID)
	}

	actor := model.Actor{Name: "alice", ID: 7}
	res, err := DeactivateCategory(ctx, database, testGuild, powders, actor, testNow())
	if err != nil {
		t.Fatalf("DeactivateCategory: %v", err)
	}
	if res.Moved != 3 || res.Already {
		t.Errorf("expected 3 moved, got %+v", res)
	}

	for _, id := range ids {
		it, _ := GetItem(ctx, database, testGuild, id)
		if it.CategoryID == nil || *it.CategoryID != fallbackID {
			t.Errorf("item %d not moved to fallback: %v", id, it.CategoryID)
		}
		if it.CategoryName != model.FallbackCategoryName {
			t.Errorf("item %d category name %q", id, it.CategoryName)
		}
	}

	rows, err := ListMovementsInRange(ctx, database, testGuild, 0, testNow().Epoch+1)
	if err != nil {
		t.Fatalf("ListMovementsInRange: %v", err)
	}
	var reassigned, deactivated int
	for _, m := range rows {
		switch m.Action {
		case model.ActionCategoryReassign:
			reassigned++
			if m.ActorName != "alice" || m.ActorID == nil || *m.ActorID != 7 {
				t.Errorf("unexpected actor on reassign row: %q %v", m.ActorName, m.ActorID)
			}
			if m.CategoryNameSnapshot != model.FallbackCategoryName {
				t.Errorf("unexpected snapshot category %q", m.CategoryNameSnapshot)
			}
		case model.ActionCategoryDeactivate:
			deactivated++
		}
	}
	if reassigned != 3 || deactivated != 1 {
		t.Errorf("expected 3 reassign and 1 deactivate rows, got %d and %d", reassigned, deactivated)
	}

	again, err := DeactivateCategory(ctx, database, testGuild, powders, actor, testNow())
	if err != nil {
		t.Fatalf("DeactivateCategory again: %v", err)
	}
	if !again.Already {
		t.Error("expected Already on second deactivation")
	}
}

func TestDeactivateFallbackCategoryRefused(t *testing.T) {
	database, fallbackID := newGuildDB(t)
	ctx := context.Background()

	_, err := DeactivateCategory(ctx, database, testGuild, fallbackID, model.SystemActor, testNow())
	if !errors.Is(err, ErrProtectedCategory) {
		t.Fatalf("expected ErrProtectedCategory, got %v", err)
	}

	c, _ := GetCategory(ctx, database, testGuild, fallbackID)
	if !c.Active {
		t.Error("fallback category must stay active")
	}

	if _, err := DeactivateCategory(ctx, database, testGuild, 9999, model.SystemActor, testNow()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetCategoryNameFallsBack(t *testing.T) {
	database, _ := newGuildDB(t)
	ctx := context.Background()

	name, err := GetCategoryName(ctx, database, testGuild, nil)
	if err != nil || name != model.FallbackCategoryName {
		t.Errorf("nil reference: got %q, %v", name, err)
	}
	missing := int64(4242)
	name, err = GetCategoryName(ctx, database, testGuild, &missing)
	if err != nil || name != model.FallbackCategoryName {
		t.Errorf("dangling reference: got %q, %v", name, err)
	}
}
