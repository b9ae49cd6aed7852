package daemon

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mschirtzinger/inkpot/internal/content"
)

// EventOp represents the kind of change to a content entry.
type EventOp int

const (
	// OpAdded indicates a new entry file or directory appeared.
	OpAdded EventOp = iota
	// OpChanged indicates an existing entry file was written.
	OpChanged
	// OpRemoved indicates an entry file or directory was deleted or
	// renamed away.
	OpRemoved
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpAdded:
		return "added"
	case OpChanged:
		return "changed"
	case OpRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// FileEvent represents a file system event under the articles directory.
type FileEvent struct {
	// Path is the path of the file or directory that changed.
	Path string
	// Op is the operation that occurred.
	Op EventOp
}

// FileWatcher recursively watches the articles directory for changes.
// It uses fsnotify for cross-platform file system event monitoring.
// Subdirectories created while running are watched and scanned for entry
// files that may have been written before the watch was in place.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stopped bool
	root    string
}

// NewFileWatcher creates a new FileWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan FileEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching root and every directory below it.
func (fw *FileWatcher) Start(root string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}
	if fw.stopped {
		return fmt.Errorf("watcher already stopped")
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("failed to watch %s: not a directory", root)
	}

	fw.root = root
	if _, err := fw.addTree(root); err != nil {
		return err
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	wasRunning := fw.running
	fw.running = false
	fw.stopped = true
	fw.mu.Unlock()

	// Signal shutdown
	close(fw.done)

	// Close the underlying watcher (this will unblock the event loop)
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	if wasRunning {
		fw.wg.Wait()
	}

	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel that emits FileEvent notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

// addTree watches dir and all directories below it, returning the entry
// index files found along the way.
func (fw *FileWatcher) addTree(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Vanished between the event and the walk.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if err := fw.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch directory %s: %w", path, err)
			}
			return nil
		}
		if content.IsIndexFile(d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// processEvents is the main event loop that processes fsnotify events
// and converts them to FileEvent notifications.
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			for _, fe := range fw.convertEvent(event) {
				select {
				case fw.events <- fe:
				case <-fw.done:
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.emitError(err)
		}
	}
}

func (fw *FileWatcher) emitError(err error) {
	select {
	case fw.errors <- err:
	case <-fw.done:
	}
}

// convertEvent converts an fsnotify event to zero or more FileEvents.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) []FileEvent {
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			found, err := fw.addTree(event.Name)
			if err != nil {
				fw.emitError(err)
			}
			events := make([]FileEvent, 0, len(found))
			for _, path := range found {
				events = append(events, FileEvent{Path: path, Op: OpAdded})
			}
			return events
		}
		return []FileEvent{{Path: event.Name, Op: OpAdded}}
	case event.Has(fsnotify.Write):
		return []FileEvent{{Path: event.Name, Op: OpChanged}}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename is a removal of the old name; the new name arrives as
		// a create.
		return []FileEvent{{Path: event.Name, Op: OpRemoved}}
	default:
		// Ignore chmod and other events
		return nil
	}
}
