package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/supplylist/internal/config"
	"github.com/dukerupert/supplylist/internal/database"
	"github.com/dukerupert/supplylist/internal/store"
	"github.com/dukerupert/supplylist/internal/websocket"
)

func setupServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{BackupRateLimit: 2}
	srv := New(db, cfg, slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	_, ts := setupServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestMutationNotifiesAndCounts(t *testing.T) {
	srv, ts := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp := post(t, ts.URL+"/api/categories", `{"name":"Pantry"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create category status = %d", resp.StatusCode)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg websocket.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != websocket.TypeStoreChanged || msg.Op != "add_category" {
		t.Errorf("message = %+v", msg)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `supplylist_mutations_total{op="add_category",result="applied"}`) {
		t.Error("metrics missing add_category counter")
	}
	if !strings.Contains(string(body), `supplylist_saves_total{result="ok"}`) {
		t.Error("metrics missing saves counter")
	}
}

func TestBackupRateLimited(t *testing.T) {
	_, ts := setupServer(t)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp := post(t, ts.URL+"/api/backup", `{"passphrase":"pantry"}`)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusServiceUnavailable || codes[1] != http.StatusServiceUnavailable {
		t.Errorf("first requests = %v, want 503 while backup is unconfigured", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want %d", codes[2], http.StatusTooManyRequests)
	}
}

func TestBackupStatusSurvivesRestart(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	const key = "supply-list/supply-list-backup-2026-10-18-210000.enc"
	backups := store.NewBackupStore(db)
	rec, err := backups.Create(key)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if err := backups.MarkCompleted(rec.ID, 2048); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	cfg := &config.Config{
		BackupRateLimit: 5,
		Backup: config.S3Config{
			Endpoint:  "http://127.0.0.1:9",
			Bucket:    "pantry",
			AccessKey: "AKIA",
			SecretKey: "secret",
		},
	}
	ts := httptest.NewServer(New(db, cfg, slog.New(slog.DiscardHandler)).Router())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/backup/status")
	if err != nil {
		t.Fatalf("GET /api/backup/status: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
	if body["last_key"] != key {
		t.Errorf("last_key = %v, want %q", body["last_key"], key)
	}
	if body["last_backup"] == nil {
		t.Error("last_backup missing after restart")
	}
}

func TestUnknownRoute(t *testing.T) {
	_, ts := setupServer(t)

	resp, err := http.Get(ts.URL + "/api/nothing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
