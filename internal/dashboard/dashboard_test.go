package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/mschirtzinger/inkpot/internal/admin"
	"github.com/mschirtzinger/inkpot/internal/content"
	"github.com/mschirtzinger/inkpot/internal/db"
	"github.com/mschirtzinger/inkpot/internal/migrate"
	inksync "github.com/mschirtzinger/inkpot/internal/sync"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "[test] ", log.LstdFlags)
}

func startServer(t *testing.T, svc *admin.Service) *Server {
	t.Helper()
	server := NewServer(&Config{Host: "127.0.0.1", Port: 0, Logger: testLogger()})
	if svc != nil {
		server.SetAdmin(svc)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: testLogger()})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	if addr := server.GetAddr(); addr == "" || strings.HasSuffix(addr, ":0") {
		t.Fatalf("unexpected server address %q", addr)
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketWelcome(t *testing.T) {
	server := startServer(t, nil)
	h := NewHandler(server, testLogger())
	h.mu.Lock()
	h.stats.Created = 1
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStats {
		t.Fatalf("Expected welcome message type %s, got %s", MessageTypeStats, msg.Type)
	}
	var stats StatsData
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Created != 1 {
		t.Errorf("welcome stats Created = %d, want 1", stats.Created)
	}

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}
}

func TestHandlerBroadcasts(t *testing.T) {
	server := startServer(t, nil)
	h := NewHandler(server, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn) // welcome

	h.ArticleChanged("hello", inksync.ChangeUpdated)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeArticleUpdate {
		t.Fatalf("Expected %s, got %s", MessageTypeArticleUpdate, msg.Type)
	}
	var upd ArticleUpdateData
	if err := json.Unmarshal(msg.Data, &upd); err != nil {
		t.Fatalf("Failed to unmarshal update: %v", err)
	}
	if upd.Slug != "hello" || upd.Action != "updated" {
		t.Errorf("unexpected update: %+v", upd)
	}
	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeStats {
		t.Errorf("Expected stats after update, got %s", msg.Type)
	}

	h.SyncCompleted(&inksync.Result{Created: 2, Errors: []string{"x: broken"}})
	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypeSyncComplete {
		t.Fatalf("Expected %s, got %s", MessageTypeSyncComplete, msg.Type)
	}
	readMessage(t, ctx, conn) // stats

	h.MigrationApplied(migrate.Result{Success: true, Message: "schema migrated to version 3", Version: 3})
	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypeMigration {
		t.Fatalf("Expected %s, got %s", MessageTypeMigration, msg.Type)
	}

	stats := h.Stats()
	if stats.Updated != 1 || stats.Syncs != 1 || stats.SyncErrors != 1 || stats.SchemaVersion != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startServer(t, nil)
	h := NewHandler(server, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clients := make([]*websocket.Conn, 3)
	for i := range clients {
		clients[i] = dial(t, ctx, server)
		readMessage(t, ctx, clients[i])
	}

	h.ArticleChanged("gone", inksync.ChangeRemoved)

	for i, conn := range clients {
		if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeArticleUpdate {
			t.Errorf("client %d: expected %s, got %s", i, MessageTypeArticleUpdate, msg.Type)
		}
	}
}

func TestHealth(t *testing.T) {
	server := startServer(t, nil)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestRootEscapesHost(t *testing.T) {
	server := NewServer(&Config{Logger: testLogger()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "<script>alert(1)</script>"
	rec := httptest.NewRecorder()
	server.handleRoot(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Fatalf("host rendered unescaped:\n%s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("expected escaped host in page:\n%s", body)
	}
}

func TestAPIDisabledWithoutAdmin(t *testing.T) {
	server := startServer(t, nil)

	resp, err := http.Get("http://" + server.GetAddr() + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status code = %d, want 404", resp.StatusCode)
	}
}

func newAdmin(t *testing.T, root string) *admin.Service {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "dash.db"), db.Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	reader := content.NewDirReader(root)
	engine := inksync.New(database, reader, &inksync.Config{Taxonomy: reader, Logger: testLogger()})
	cfg := migrate.DefaultConfig()
	cfg.Logger = testLogger()
	runner := migrate.New(database, cfg)
	runner.SetImporter(engine)
	return admin.New(engine, runner, database, testLogger())
}

func post(t *testing.T, url, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.StatusCode
}

func TestAPI(t *testing.T) {
	root := t.TempDir()
	entry := filepath.Join(root, content.ArticlesDir, "first", "index.md")
	if err := os.MkdirAll(filepath.Dir(entry), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(entry, []byte("---\ntitle: First\ndescription: d\npublishedTime: 2024-01-01\n---\nhi\n"), 0644); err != nil {
		t.Fatal(err)
	}

	server := startServer(t, newAdmin(t, root))
	base := "http://" + server.GetAddr()

	var status admin.StatusResponse
	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	resp.Body.Close()
	if !status.Empty {
		t.Errorf("expected empty datastore, got %+v", status)
	}

	var mig migrate.Result
	if code := post(t, base+"/api/migrate", `{"skip_import": true}`, &mig); code != http.StatusOK || !mig.Success {
		t.Fatalf("migrate failed: %d %+v", code, mig)
	}

	var syncResp admin.SyncResponse
	if code := post(t, base+"/api/sync", "", &syncResp); code != http.StatusOK {
		t.Fatalf("sync failed: %d %+v", code, syncResp)
	}
	if syncResp.Created != 1 {
		t.Errorf("Created = %d, want 1", syncResp.Created)
	}

	if code := post(t, base+"/api/sync", `{"slug": "missing"}`, &syncResp); code != http.StatusInternalServerError || syncResp.Success {
		t.Errorf("targeted sync of missing entry should fail: %d %+v", code, syncResp)
	}

	var bad map[string]any
	if code := post(t, base+"/api/migrate", `{not json`, &bad); code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", code)
	}
}
