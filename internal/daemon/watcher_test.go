package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitForEvent waits for an event matching path and op, skipping others.
func waitForEvent(t *testing.T, fw *FileWatcher, path string, op EventOp) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-fw.Events():
			if ev.Path == path && ev.Op == op {
				return
			}
		case err := <-fw.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timeout waiting for %s %s", op, path)
		}
	}
}

func TestNewFileWatcher(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
}

func TestFileWatcher_StartStop(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(root); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if err := fw.Start(root); err == nil {
		t.Error("Start() on a running watcher should fail")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
	if err := fw.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
}

func TestFileWatcher_MissingRoot(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Start() on a missing directory should fail")
	}
}

func TestFileWatcher_EntryLifecycle(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing")
	if err := os.MkdirAll(existing, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	if err := fw.Start(root); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer fw.Stop()

	// Existing subdirectories are watched from the start.
	index := filepath.Join(existing, "index.md")
	if err := os.WriteFile(index, []byte("---\n---\n"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	waitForEvent(t, fw, index, OpAdded)

	if err := os.WriteFile(index, []byte("---\ntitle: x\n---\n"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	waitForEvent(t, fw, index, OpChanged)

	if err := os.Remove(index); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	waitForEvent(t, fw, index, OpRemoved)
}

func TestFileWatcher_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	if err := fw.Start(root); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer fw.Stop()

	dir := filepath.Join(root, "fresh")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	// Give the watcher time to add the new directory before writing.
	time.Sleep(100 * time.Millisecond)

	index := filepath.Join(dir, "index.md")
	if err := os.WriteFile(index, []byte("---\n---\n"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	waitForEvent(t, fw, index, OpAdded)

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("failed to remove dir: %v", err)
	}
	waitForEvent(t, fw, dir, OpRemoved)
}

func TestFileWatcher_MovedInDirectoryIsScanned(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(t.TempDir(), "moved")
	if err := os.MkdirAll(staging, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(staging, "index.md"), []byte("---\n---\n"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	if err := fw.Start(root); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer fw.Stop()

	target := filepath.Join(root, "moved")
	if err := os.Rename(staging, target); err != nil {
		t.Skipf("cannot rename across temp dirs: %v", err)
	}
	waitForEvent(t, fw, filepath.Join(target, "index.md"), OpAdded)
}
