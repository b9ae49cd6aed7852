package daemon

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	inksync "github.com/mschirtzinger/inkpot/internal/sync"
)

type call struct {
	method string
	slug   string
}

// fakeTarget records dispatches.
type fakeTarget struct {
	mu       sync.Mutex
	calls    []call
	ch       chan call
	result   bool
	panicOn  string
	fullSync int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{ch: make(chan call, 100), result: true}
}

func (f *fakeTarget) record(c call) bool {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	panicOn := f.panicOn
	result := f.result
	f.mu.Unlock()
	f.ch <- c
	if c.slug == panicOn {
		panic("boom")
	}
	return result
}

func (f *fakeTarget) SyncOne(ctx context.Context, slug string) bool {
	return f.record(call{"sync", slug})
}

func (f *fakeTarget) RemoveBySlug(ctx context.Context, slug string) bool {
	return f.record(call{"remove", slug})
}

func (f *fakeTarget) SyncAll(ctx context.Context) (*inksync.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullSync++
	return &inksync.Result{Errors: []string{"x: category \"y\" not found"}}, nil
}

func testConfig() *Config {
	return &Config{
		DebounceInterval: 30 * time.Millisecond,
		InitialSync:      true,
		Logger:           log.New(io.Discard, "", 0),
	}
}

func waitForCall(t *testing.T, f *fakeTarget, want call) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-f.ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %+v", want)
		}
	}
}

// startDaemon runs d.Start in the background and waits until the
// watcher is up.
func startDaemon(t *testing.T, d *Daemon) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(context.Background()) }()

	deadline := time.Now().Add(3 * time.Second)
	for !d.watcher.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("daemon did not start watching")
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Cleanup(func() { d.Stop() })
	return errCh
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "articles")

	tests := []struct {
		name    string
		target  Target
		dir     string
		wantErr bool
	}{
		{"valid configuration", newFakeTarget(), dir, false},
		{"nil target", nil, dir, true},
		{"empty dir", newFakeTarget(), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.target, tt.dir, testConfig())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if d != nil {
				d.Stop()
			}
		})
	}

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("New() should create the articles directory: %v", err)
	}
}

func TestDaemon_DispatchesChanges(t *testing.T) {
	dir := t.TempDir()
	target := newFakeTarget()
	d, err := New(target, dir, testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)

	if target.fullSync != 1 {
		t.Errorf("initial full sync ran %d times, want 1", target.fullSync)
	}

	entryDir := filepath.Join(dir, "hello")
	if err := os.MkdirAll(entryDir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(entryDir, "index.md"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	waitForCall(t, target, call{"sync", "hello"})

	if err := os.RemoveAll(entryDir); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	waitForCall(t, target, call{"remove", "hello"})
}

func TestDaemon_BurstDispatchesOnce(t *testing.T) {
	dir := t.TempDir()
	entryDir := filepath.Join(dir, "burst")
	if err := os.MkdirAll(entryDir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	target := newFakeTarget()
	cfg := testConfig()
	cfg.DebounceInterval = 100 * time.Millisecond
	cfg.InitialSync = false
	d, err := New(target, dir, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)

	index := filepath.Join(entryDir, "index.md")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(index, []byte{byte('a' + i)}, 0644); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
	}
	waitForCall(t, target, call{"sync", "burst"})
	time.Sleep(250 * time.Millisecond)

	target.mu.Lock()
	defer target.mu.Unlock()
	if len(target.calls) != 1 {
		t.Errorf("calls = %+v, want exactly one dispatch", target.calls)
	}
	if target.fullSync != 0 {
		t.Error("initial sync should be skipped when disabled")
	}
}

func TestDaemon_SurvivesFailuresAndPanics(t *testing.T) {
	dir := t.TempDir()
	for _, slug := range []string{"bad", "good"} {
		if err := os.MkdirAll(filepath.Join(dir, slug), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
	}

	target := newFakeTarget()
	target.panicOn = "bad"
	cfg := testConfig()
	cfg.InitialSync = false
	d, err := New(target, dir, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)

	os.WriteFile(filepath.Join(dir, "bad", "index.md"), []byte("x"), 0644)
	waitForCall(t, target, call{"sync", "bad"})

	os.WriteFile(filepath.Join(dir, "good", "index.md"), []byte("x"), 0644)
	waitForCall(t, target, call{"sync", "good"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		dispatched, failed := d.Stats()
		if dispatched >= 2 {
			if failed != 1 {
				t.Errorf("failed = %d, want 1", failed)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dispatched = %d, want 2", dispatched)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemon_StopEndsStart(t *testing.T) {
	target := newFakeTarget()
	cfg := testConfig()
	cfg.InitialSync = false
	d, err := New(target, t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	errCh := startDaemon(t, d)

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() returned %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestDaemon_ContextCancelStops(t *testing.T) {
	target := newFakeTarget()
	cfg := testConfig()
	cfg.InitialSync = false
	d, err := New(target, t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() returned %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
