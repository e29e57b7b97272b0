package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aeranixia/Inventory-Bot/internal/alert"
	"github.com/aeranixia/Inventory-Bot/internal/attach"
	"github.com/aeranixia/Inventory-Bot/internal/auth"
	"github.com/aeranixia/Inventory-Bot/internal/backup"
	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/imaging"
	"github.com/aeranixia/Inventory-Bot/internal/jobs"
	"github.com/aeranixia/Inventory-Bot/internal/ledger"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/notify"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testGuild     = int64(4242)
	testPassword  = "password123"
)

type testEnv struct {
	server     *httptest.Server
	db         *sql.DB
	clock      *clock.Clock
	token      string
	fallbackID int64
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	clk := clock.New(clockwork.NewRealClock(), clock.Zone(clock.DefaultOffsetHours))
	led := ledger.New(database, clk, nil)
	backups := backup.New(database, filepath.Join(t.TempDir(), "backups"), 60)
	engine, err := jobs.New(jobs.Config{
		DB:       database,
		Clock:    clk,
		Ledger:   led,
		Notifier: notify.LogNotifier{},
		Backups:  backups,
	})
	if err != nil {
		t.Fatalf("jobs.New: %v", err)
	}

	router := NewRouter(Deps{
		DB:      database,
		Clock:   clk,
		Issuer:  auth.NewIssuer(testJWTSecret, time.Hour, clk.Source()),
		Ledger:  led,
		Alerts:  alert.NewTracker(database, clk, notify.LogNotifier{}, nil),
		Jobs:    engine,
		Backups: backups,
		Images:  imaging.NewStore(filepath.Join(t.TempDir(), "images")),
		Waiter:  attach.New(clockwork.NewRealClock(), 5*time.Second, 4),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	fallbackID, err := store.EnsureGuild(ctx, database, testGuild, clk.Now())
	if err != nil {
		t.Fatalf("EnsureGuild: %v", err)
	}

	env := &testEnv{server: server, db: database, clock: clk, fallbackID: fallbackID}
	env.createOperator(t, "admin", model.RoleAdmin)
	env.token = env.login(t, "admin")
	return env
}

func (e *testEnv) createOperator(t *testing.T, username, role string) {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if _, err := store.CreateOperator(context.Background(), e.db, testGuild, username, "", hash, role, e.clock.Now()); err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": testPassword})
	resp, err := http.Post(e.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" {
		t.Fatal("empty token from login")
	}
	return loginResp.Token
}

// do sends an authenticated JSON request and decodes the response into out
// when out is non-nil. It returns the status code.
func (e *testEnv) do(t *testing.T, token, method, path string, body, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) createItem(t *testing.T, name string, warnBelow, qty int) model.Item {
	t.Helper()
	var cat model.CategoryUpsert
	if code := e.do(t, e.token, "POST", "/api/categories", map[string]string{"name": "Tinctures"}, &cat); code != http.StatusCreated && code != http.StatusOK {
		t.Fatalf("create category: %d", code)
	}

	var item model.Item
	code := e.do(t, e.token, "POST", "/api/items", map[string]any{
		"category_id": cat.ID,
		"name":        name,
		"warn_below":  warnBelow,
		"initial_qty": qty,
	}, &item)
	if code != http.StatusCreated {
		t.Fatalf("create item: %d", code)
	}
	return item
}

func pngBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong-password"})
	resp, err := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	var me model.Operator
	if code := env.do(t, env.token, "GET", "/api/auth/me", nil, &me); code != http.StatusOK {
		t.Fatalf("me: %d", code)
	}
	if me.Username != "admin" || me.GuildID != testGuild {
		t.Errorf("me = %+v", me)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Get(env.server.URL + "/api/items/search?q=x")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from healthz, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	if code := env.do(t, env.token, "POST", "/api/auth/logout", nil, nil); code != http.StatusOK {
		t.Fatalf("logout: %d", code)
	}
	if code := env.do(t, env.token, "GET", "/api/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", code)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)
	env.createOperator(t, "clerk", model.RoleStaff)
	staff := env.login(t, "clerk")

	cases := []struct {
		method, path string
		body         any
	}{
		{"POST", "/api/items", map[string]any{"category_id": env.fallbackID, "name": "Test"}},
		{"GET", "/api/operators", nil},
		{"PATCH", "/api/settings", map[string]any{"report_hour": 9}},
		{"POST", "/api/backups", nil},
	}
	for _, tc := range cases {
		if code := env.do(t, staff, tc.method, tc.path, tc.body, nil); code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403 for staff, got %d", tc.method, tc.path, code)
		}
	}

	// Staff can still move stock.
	item := env.createItem(t, "Ginseng Tonic", 1, 5)
	amount := 1
	code := env.do(t, staff, "POST", "/api/movements", map[string]any{
		"item_id": item.ID, "action": "OUT", "amount": amount,
	}, nil)
	if code != http.StatusCreated {
		t.Errorf("staff OUT: expected 201, got %d", code)
	}
}

func TestMovementFlow(t *testing.T) {
	env := setupTestServer(t)
	item := env.createItem(t, "Ginger Powder", 2, 10)
	if item.Quantity != 10 {
		t.Fatalf("initial qty = %d, want 10", item.Quantity)
	}

	var res movementResponse
	code := env.do(t, env.token, "POST", "/api/movements", map[string]any{
		"item_id": item.ID, "action": "IN", "amount": 5, "reason": "delivery",
	}, &res)
	if code != http.StatusCreated {
		t.Fatalf("IN: %d", code)
	}
	if res.Before != 10 || res.After != 15 || res.Delta != 5 || res.Alerted {
		t.Errorf("IN result = %+v", res)
	}

	code = env.do(t, env.token, "POST", "/api/movements", map[string]any{
		"item_id": item.ID, "action": "OUT", "amount": 16,
	}, nil)
	if code != http.StatusConflict {
		t.Errorf("OUT over stock: expected 409, got %d", code)
	}

	code = env.do(t, env.token, "POST", "/api/movements", map[string]any{
		"item_id": item.ID, "action": "ADJUST", "new_quantity": 3,
	}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("ADJUST without reason: expected 400, got %d", code)
	}

	code = env.do(t, env.token, "POST", "/api/movements", map[string]any{
		"item_id": item.ID, "action": "OUT", "amount": 0,
	}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("OUT zero: expected 400, got %d", code)
	}

	code = env.do(t, env.token, "POST", "/api/movements", map[string]any{
		"item_id": item.ID, "action": "ADJUST", "new_quantity": 2, "reason": "stocktake",
	}, &res)
	if code != http.StatusCreated {
		t.Fatalf("ADJUST: %d", code)
	}
	if res.After != 2 || res.Delta != -13 || !res.Alerted {
		t.Errorf("ADJUST result = %+v", res)
	}

	// Staying low does not alert again.
	code = env.do(t, env.token, "POST", "/api/movements", map[string]any{
		"item_id": item.ID, "action": "OUT", "amount": 1,
	}, &res)
	if code != http.StatusCreated {
		t.Fatalf("OUT: %d", code)
	}
	if res.Alerted {
		t.Error("expected no repeat alert while below threshold")
	}

	var low []model.Item
	if code := env.do(t, env.token, "GET", "/api/items/low-stock", nil, &low); code != http.StatusOK {
		t.Fatalf("low-stock: %d", code)
	}
	if len(low) != 1 || low[0].ID != item.ID {
		t.Errorf("low stock = %+v", low)
	}

	var history []model.Movement
	if code := env.do(t, env.token, "GET", fmt.Sprintf("/api/items/%d/history", item.ID), nil, &history); code != http.StatusOK {
		t.Fatalf("history: %d", code)
	}
	// ITEM_CREATE, initial IN, IN, ADJUST, OUT. Rejected changes leave no row.
	if len(history) != 5 {
		t.Fatalf("expected 5 history rows, got %d", len(history))
	}
	for i := 0; i+1 < len(history); i++ {
		newer, older := history[i], history[i+1]
		if newer.BeforeQty != nil && older.AfterQty != nil && *newer.BeforeQty != *older.AfterQty {
			t.Errorf("row %d before %d does not chain to after %d", newer.ID, *newer.BeforeQty, *older.AfterQty)
		}
	}

	var list movementList
	today := env.clock.Now().Date()
	if code := env.do(t, env.token, "GET", "/api/movements?from="+today, nil, &list); code != http.StatusOK {
		t.Fatalf("list: %d", code)
	}
	if list.Totals.In != 15 || list.Totals.Out != 1 || list.Totals.AdjustMinus != 13 {
		t.Errorf("totals = %+v", list.Totals)
	}
}

func TestUnknownItemMovement(t *testing.T) {
	env := setupTestServer(t)
	code := env.do(t, env.token, "POST", "/api/movements", map[string]any{
		"item_id": 999, "action": "IN", "amount": 1,
	}, nil)
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestFallbackCategoryIsProtected(t *testing.T) {
	env := setupTestServer(t)

	code := env.do(t, env.token, "DELETE", fmt.Sprintf("/api/categories/%d", env.fallbackID), nil, nil)
	if code != http.StatusConflict {
		t.Errorf("expected 409 deactivating fallback, got %d", code)
	}

	item := env.createItem(t, "Cough Syrup", 0, 1)
	var res model.CategoryDeactivation
	code = env.do(t, env.token, "DELETE", fmt.Sprintf("/api/categories/%d", *item.CategoryID), nil, &res)
	if code != http.StatusOK {
		t.Fatalf("deactivate: %d", code)
	}
	if res.Moved != 1 {
		t.Errorf("moved = %d, want 1", res.Moved)
	}

	var got model.Item
	if code := env.do(t, env.token, "GET", fmt.Sprintf("/api/items/%d", item.ID), nil, &got); code != http.StatusOK {
		t.Fatalf("get item: %d", code)
	}
	if got.CategoryName != model.FallbackCategoryName {
		t.Errorf("category = %q, want %q", got.CategoryName, model.FallbackCategoryName)
	}
}

func TestSettingsPatchRecordsEvent(t *testing.T) {
	env := setupTestServer(t)

	var s model.Settings
	code := env.do(t, env.token, "PATCH", "/api/settings", map[string]any{
		"report_channel_id": 77, "report_hour": 20, "report_minute": 30,
	}, &s)
	if code != http.StatusOK {
		t.Fatalf("patch: %d", code)
	}
	if s.ReportChannelID == nil || *s.ReportChannelID != 77 || s.ReportHour != 20 || s.ReportMinute != 30 {
		t.Errorf("settings = %+v", s)
	}

	code = env.do(t, env.token, "PATCH", "/api/settings", map[string]any{"report_minute": 15}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("minute 15: expected 400, got %d", code)
	}

	var n int
	err := env.db.QueryRow(`SELECT COUNT(*) FROM movements WHERE guild_id = ? AND action = ?`,
		testGuild, string(model.ActionUpdateSettings)).Scan(&n)
	if err != nil {
		t.Fatalf("counting events: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 settings event, got %d", n)
	}
}

func TestImageWaitFlow(t *testing.T) {
	env := setupTestServer(t)
	item := env.createItem(t, "Honey Sticks", 0, 3)

	var wait imageWaitResponse
	code := env.do(t, env.token, "POST", fmt.Sprintf("/api/items/%d/image/wait", item.ID), nil, &wait)
	if code != http.StatusCreated {
		t.Fatalf("begin wait: %d", code)
	}

	body, contentType := pngBody(t)
	req, _ := http.NewRequest("PUT", env.server.URL+"/api/image-waits/"+wait.Token, body)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", contentType)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", resp.StatusCode)
	}

	var res attach.Result
	if code := env.do(t, env.token, "GET", "/api/image-waits/"+wait.Token, nil, &res); code != http.StatusOK {
		t.Fatalf("await: %d", code)
	}
	if res.Outcome != attach.Attached || res.URL == "" {
		t.Errorf("result = %+v", res)
	}

	var got model.Item
	env.do(t, env.token, "GET", fmt.Sprintf("/api/items/%d", item.ID), nil, &got)
	if got.ImageURL != res.URL {
		t.Errorf("image url = %q, want %q", got.ImageURL, res.URL)
	}

	img, err := http.Get(env.server.URL + res.URL)
	if err != nil {
		t.Fatalf("fetching image: %v", err)
	}
	img.Body.Close()
	if img.StatusCode != http.StatusOK {
		t.Errorf("serving image: expected 200, got %d", img.StatusCode)
	}

	// The token is spent.
	if code := env.do(t, env.token, "DELETE", "/api/image-waits/"+wait.Token, nil, nil); code != http.StatusNotFound {
		t.Errorf("cancel spent wait: expected 404, got %d", code)
	}
}

func TestForceBackupAndList(t *testing.T) {
	env := setupTestServer(t)

	var b backupResponse
	if code := env.do(t, env.token, "POST", "/api/backups", nil, &b); code != http.StatusCreated && code != http.StatusOK {
		t.Fatalf("backup: %d", code)
	}

	var files []backup.FileInfo
	if code := env.do(t, env.token, "GET", "/api/backups", nil, &files); code != http.StatusOK {
		t.Fatalf("list backups: %d", code)
	}
	// The snapshot and its zipped copy.
	if len(files) != 2 {
		t.Errorf("expected 2 backup files, got %d", len(files))
	}
}

func TestForceReportWithoutChannel(t *testing.T) {
	env := setupTestServer(t)
	if code := env.do(t, env.token, "POST", "/api/reports/daily", nil, nil); code != http.StatusConflict {
		t.Errorf("expected 409 without a channel, got %d", code)
	}
}
