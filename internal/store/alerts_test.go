package store

import (
	"context"
	"testing"

	"github.com/aeranixia/Inventory-Bot/internal/db"
)

func TestAlertState(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alerting, err := GetAlertState(ctx, database, testGuild, 1)
	if err != nil {
		t.Fatalf("GetAlertState: %v", err)
	}
	if alerting {
		t.Error("missing state must read as not alerting")
	}

	if err := PutAlertState(ctx, database, testGuild, 1, true, testNow()); err != nil {
		t.Fatalf("PutAlertState: %v", err)
	}
	alerting, _ = GetAlertState(ctx, database, testGuild, 1)
	if !alerting {
		t.Error("expected alerting")
	}

	if err := PutAlertState(ctx, database, testGuild, 1, false, testNow()); err != nil {
		t.Fatalf("PutAlertState: %v", err)
	}
	alerting, _ = GetAlertState(ctx, database, testGuild, 1)
	if alerting {
		t.Error("expected cleared")
	}

	other, _ := GetAlertState(ctx, database, testGuild+1, 1)
	if other {
		t.Error("alert state must be per guild")
	}
}
