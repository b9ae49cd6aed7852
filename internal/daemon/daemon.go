// Package daemon keeps the database in step with the articles directory
// while the process runs.
//
// The daemon:
// 1. Optionally performs a full sync on start
// 2. Watches the articles directory (recursively) for changes
// 3. Maps each changed path to an entry slug and debounces per slug
// 4. Dispatches added/changed entries to SyncOne and removed ones to
// RemoveBySlug
// 5. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	inksync "github.com/mschirtzinger/inkpot/internal/sync"
)

// Target receives the dispatched changes. *sync.Engine implements it.
type Target interface {
	SyncOne(ctx context.Context, slug string) bool
	RemoveBySlug(ctx context.Context, slug string) bool
}

// FullSyncer is implemented by targets that support an initial full sync.
type FullSyncer interface {
	SyncAll(ctx context.Context) (*inksync.Result, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long a slug must be quiet before its
	// latest event is dispatched. Editors that write-then-rewrite produce
	// one dispatch.
	DebounceInterval time.Duration

	// InitialSync runs a full sync before watching, if the target
	// supports it.
	InitialSync bool

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 150 * time.Millisecond,
		InitialSync:      true,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates file watching and targeted syncs. It is an owned
// service: construct it with New, run it with Start and shut it down with
// Stop or by cancelling the Start context.
type Daemon struct {
	target      Target
	articlesDir string
	config      *Config

	watcher   *FileWatcher
	debouncer *Debouncer

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	statsMu    sync.Mutex
	dispatched int
	failed     int
}

// New creates a new Daemon watching articlesDir. The directory is
// created if it does not exist.
//
// Use Start() to begin watching and syncing.
func New(target Target, articlesDir string, config *Config) (*Daemon, error) {
	if target == nil {
		return nil, fmt.Errorf("target cannot be nil")
	}
	if articlesDir == "" {
		return nil, fmt.Errorf("articlesDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	if err := os.MkdirAll(articlesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create articles directory: %w", err)
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		target:      target,
		articlesDir: articlesDir,
		config:      config,
		watcher:     watcher,
		ctx:         ctx,
		cancel:      cancel,
	}
	d.debouncer = NewDebouncer(config.DebounceInterval, d.dispatch)
	return d, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Perform a full sync if configured
// 2. Start watching for file changes
// 3. Dispatch debounced changes to the target
//
// This blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if d.config.InitialSync {
		if fs, ok := d.target.(FullSyncer); ok {
			res, err := fs.SyncAll(ctx)
			if err != nil {
				return fmt.Errorf("initial sync failed: %w", err)
			}
			for _, msg := range res.Errors {
				d.config.Logger.Printf("Warning: %s", msg)
			}
		}
	}

	if err := d.watcher.Start(d.articlesDir); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.articlesDir)

	d.wg.Add(1)
	go d.watchFileEvents()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. Pending debounced events are
// dropped and in-flight dispatches are awaited. It is safe to call more
// than once.
func (d *Daemon) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.config.Logger.Println("Stopping daemon")

		// Signal shutdown
		d.cancel()

		if stopErr := d.watcher.Stop(); stopErr != nil {
			d.config.Logger.Printf("Error closing watcher: %v", stopErr)
			err = stopErr
		}

		d.wg.Wait()
		d.debouncer.Stop()

		d.config.Logger.Println("Daemon stopped")
	})
	return err
}

// Stats returns how many dispatches ran and how many of them failed.
func (d *Daemon) Stats() (dispatched, failed int) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.dispatched, d.failed
}

// watchFileEvents feeds watcher events into the debouncer.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case ev, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			slug, ok := SlugFromPath(d.articlesDir, ev.Path, ev.Op)
			if !ok {
				continue
			}
			d.debouncer.Trigger(slug, ev.Op)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// dispatch runs one debounced change. Failures and panics are logged and
// never stop the watch loop.
func (d *Daemon) dispatch(slug string, op EventOp) {
	ok := false
	defer func() {
		if r := recover(); r != nil {
			d.config.Logger.Printf("Error: panic while handling %s (%s): %v", slug, op, r)
			ok = false
		}
		d.statsMu.Lock()
		d.dispatched++
		if !ok {
			d.failed++
		}
		d.statsMu.Unlock()
	}()

	if d.ctx.Err() != nil {
		return
	}

	switch op {
	case OpRemoved:
		ok = d.target.RemoveBySlug(d.ctx, slug)
	default:
		ok = d.target.SyncOne(d.ctx, slug)
	}

	if ok {
		d.config.Logger.Printf("Handled %s: %s", op, slug)
	} else {
		d.config.Logger.Printf("Warning: %s %s had no effect or failed", op, slug)
	}
}
