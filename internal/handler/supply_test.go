package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/supplylist/internal/backup"
	"github.com/dukerupert/supplylist/internal/database"
	"github.com/dukerupert/supplylist/internal/model"
	"github.com/dukerupert/supplylist/internal/store"
	"github.com/dukerupert/supplylist/internal/supply"
)

// flakySlots fails writes while broken is set.
type flakySlots struct {
	*store.SlotStore
	broken bool
}

func (f *flakySlots) Put(key, value string) error {
	if f.broken {
		return errors.New("disk full")
	}
	return f.SlotStore.Put(key, value)
}

type testEnv struct {
	mux   *http.ServeMux
	slots *flakySlots
	ctrl  *supply.Controller
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	slots := &flakySlots{SlotStore: store.NewSlotStore(db)}
	n := 0
	ctrl := supply.NewController(supply.NewRepository(slots, logger), logger, supply.WithIDFunc(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))

	h := NewSupplyHandler(ctrl, nil, logger)
	h.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/shopping-list", h.ShoppingList)
	mux.HandleFunc("GET /api/items", h.ListItems)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("GET /api/summary", h.Summary)
	mux.HandleFunc("GET /api/suggest-category", h.SuggestCategory)
	mux.HandleFunc("POST /api/items", h.CreateItem)
	mux.HandleFunc("PUT /api/items/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", h.DeleteItem)
	mux.HandleFunc("POST /api/items/{id}/toggle-list", h.ToggleOnList)
	mux.HandleFunc("POST /api/items/{id}/toggle-checked", h.ToggleChecked)
	mux.HandleFunc("POST /api/items/{id}/remove-from-list", h.RemoveFromList)
	mux.HandleFunc("POST /api/shopping-list/clear", h.ClearList)
	mux.HandleFunc("POST /api/categories", h.CreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", h.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", h.DeleteCategory)
	mux.HandleFunc("GET /api/export", h.Export)
	mux.HandleFunc("POST /api/import", h.Import)
	mux.HandleFunc("POST /api/reset", h.Reset)
	mux.HandleFunc("GET /api/backup/status", h.BackupStatus)
	mux.HandleFunc("GET /api/backup/history", h.BackupHistory)
	mux.HandleFunc("POST /api/backup", h.Backup)

	return &testEnv{mux: mux, slots: slots, ctrl: ctrl}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type itemResult struct {
	Item      model.Item `json:"item"`
	Persisted bool       `json:"persisted"`
	Warning   string     `json:"warning"`
}

type categoryResult struct {
	Category  model.Category `json:"category"`
	Persisted bool           `json:"persisted"`
}

func TestCreateAndShop(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, "POST", "/api/categories", `{"name":"Dairy","color":"#3b82f6","sortOrder":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category status = %d, body %s", rec.Code, rec.Body)
	}
	cat := decode[categoryResult](t, rec)
	if cat.Category.ID != "id-1" || !cat.Persisted {
		t.Errorf("category = %+v", cat)
	}

	rec = env.do(t, "POST", "/api/items", `{"categoryId":"id-1","name":"  Milk ","notes":"2%"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item status = %d, body %s", rec.Code, rec.Body)
	}
	item := decode[itemResult](t, rec)
	if item.Item.Name != "Milk" || item.Item.IsOnShoppingList {
		t.Errorf("item = %+v", item.Item)
	}

	rec = env.do(t, "POST", "/api/items/id-2/toggle-list", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle-list status = %d", rec.Code)
	}

	rec = env.do(t, "GET", "/api/shopping-list", "")
	groups := decode[[]model.CategoryGroup](t, rec)
	if len(groups) != 1 || len(groups[0].Items) != 1 || groups[0].Items[0].Name != "Milk" {
		t.Fatalf("shopping list = %+v", groups)
	}

	rec = env.do(t, "POST", "/api/items/id-2/toggle-checked", "")
	if got := decode[itemResult](t, rec); !got.Item.Checked {
		t.Errorf("item should be checked: %+v", got.Item)
	}

	rec = env.do(t, "POST", "/api/shopping-list/clear", "")
	if got := decode[map[string]any](t, rec); got["cleared"] != float64(1) {
		t.Errorf("clear = %v", got)
	}

	summary := decode[model.Summary](t, env.do(t, "GET", "/api/summary", ""))
	if summary.CategoryCount != 1 || summary.TotalItemCount != 1 || summary.ShoppingListItemCount != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestErrorMapping(t *testing.T) {
	env := setupTestEnv(t)
	env.do(t, "POST", "/api/categories", `{"name":"Pantry"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"blank item name", "POST", "/api/items", `{"categoryId":"id-1","name":"   "}`, http.StatusBadRequest},
		{"unknown category", "POST", "/api/items", `{"categoryId":"nope","name":"Rice"}`, http.StatusNotFound},
		{"bad json", "POST", "/api/items", `{`, http.StatusBadRequest},
		{"toggle missing", "POST", "/api/items/nope/toggle-list", "", http.StatusNotFound},
		{"update missing", "PUT", "/api/items/nope", `{"name":"Rice"}`, http.StatusNotFound},
		{"blank category", "POST", "/api/categories", `{"name":""}`, http.StatusBadRequest},
		{"delete missing item", "DELETE", "/api/items/nope", "", http.StatusOK},
		{"delete missing category", "DELETE", "/api/categories/nope", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestSortOrderField(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`3`, 3},
		{`"7"`, 7},
		{`"12abc"`, 12},
		{`2.9`, 2},
		{`"abc"`, 1},
		{`0`, 1},
		{`null`, 1},
		{``, 1},
		{`-4`, -4},
	}
	for _, tt := range tests {
		if got := sortOrderField(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("sortOrderField(%s) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestStorageFailureStillApplies(t *testing.T) {
	env := setupTestEnv(t)
	env.do(t, "POST", "/api/categories", `{"name":"Dairy"}`)

	env.slots.broken = true
	rec := env.do(t, "POST", "/api/items", `{"categoryId":"id-1","name":"Eggs"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	got := decode[itemResult](t, rec)
	if got.Persisted {
		t.Error("persisted should be false when the save fails")
	}
	if got.Warning == "" {
		t.Error("expected a warning")
	}

	items := decode[[]model.CategoryGroup](t, env.do(t, "GET", "/api/items?q=egg", ""))
	if len(items) != 1 || len(items[0].Items) != 1 {
		t.Errorf("item should be visible in memory: %+v", items)
	}
}

func TestExportImport(t *testing.T) {
	env := setupTestEnv(t)
	env.do(t, "POST", "/api/categories", `{"name":"Frozen","sortOrder":"2"}`)
	env.do(t, "POST", "/api/items", `{"categoryId":"id-1","name":"Peas"}`)

	rec := env.do(t, "GET", "/api/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	want := `attachment; filename="supply-list-backup-2026-10-19.json"`
	if got := rec.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
	exported := rec.Body.String()

	rec = env.do(t, "POST", "/api/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if s := env.ctrl.Summary(); s.CategoryCount != 0 {
		t.Fatalf("reset left %d categories", s.CategoryCount)
	}

	rec = env.do(t, "POST", "/api/import", `{"version":"2.0","categories":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid import status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = env.do(t, "POST", "/api/import", exported)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body)
	}
	cats := decode[[]model.CategorySummary](t, env.do(t, "GET", "/api/categories", ""))
	if len(cats) != 1 || cats[0].Name != "Frozen" || cats[0].SortOrder != 2 || cats[0].ItemCount != 1 {
		t.Errorf("categories after import = %+v", cats)
	}
}

func TestSuggestCategory(t *testing.T) {
	env := setupTestEnv(t)
	env.do(t, "POST", "/api/categories", `{"name":"Produce"}`)

	got := decode[map[string]any](t, env.do(t, "GET", "/api/suggest-category?name=Bananas", ""))
	if got["found"] != true {
		t.Fatalf("expected a suggestion, got %v", got)
	}
	if cat := got["category"].(map[string]any); cat["name"] != "Produce" {
		t.Errorf("category = %v", cat)
	}

	got = decode[map[string]any](t, env.do(t, "GET", "/api/suggest-category?name=Widget", ""))
	if got["found"] != false {
		t.Errorf("expected no suggestion, got %v", got)
	}
}

func TestBackupDisabled(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, "POST", "/api/backup", `{"passphrase":"pantry"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	got := decode[map[string]any](t, env.do(t, "GET", "/api/backup/status", ""))
	if got["state"] != "disabled" {
		t.Errorf("state = %v, want disabled", got["state"])
	}

	rec = env.do(t, "GET", "/api/backup/history", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("history = %s, want []", rec.Body)
	}
}

func TestRestoreRejectsForeignKey(t *testing.T) {
	env := setupTestEnv(t)
	logger := slog.New(slog.DiscardHandler)
	// The bucket is never contacted: the key is rejected first.
	uploader := backup.NewUploader(backup.S3Config{
		Endpoint:  "http://127.0.0.1:9",
		Bucket:    "pantry",
		AccessKey: "AKIA",
		SecretKey: "secret",
	}, nil, nil, logger)
	h := NewSupplyHandler(env.ctrl, uploader, logger)

	req := httptest.NewRequest("POST", "/api/backup/restore", strings.NewReader(`{"key":"other/list.enc","passphrase":"pantry"}`))
	rec := httptest.NewRecorder()
	h.RestoreBackup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	got := decode[map[string]string](t, rec)
	if !strings.Contains(got["error"], "supply-list/") {
		t.Errorf("error = %q, want it to name the backup prefix", got["error"])
	}
}
