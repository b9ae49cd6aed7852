// Package logging builds the component loggers. Every component logs
// through a prefixed *log.Logger; when a log file is configured the same
// lines are also written to a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mschirtzinger/inkpot/internal/config"
)

// Factory hands out loggers that share one output.
type Factory struct {
	out  io.Writer
	file *lumberjack.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a factory writing to stderr, plus the rotated file in cfg
// when cfg.File is set.
func New(cfg config.LogConfig) (*Factory, error) {
	return newFactory(os.Stderr, cfg)
}

func newFactory(console io.Writer, cfg config.LogConfig) (*Factory, error) {
	f := &Factory{out: console}
	if cfg.File == "" {
		return f, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, err
	}
	f.file = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	f.out = io.MultiWriter(console, f.file)
	return f, nil
}

// Logger returns a logger for component, prefixed "[component] ".
func (f *Factory) Logger(component string) *log.Logger {
	return log.New(f.out, "["+component+"] ", log.LstdFlags)
}

// Writer returns the shared output.
func (f *Factory) Writer() io.Writer {
	return f.out
}

// Close flushes and closes the log file, if any.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil || f.closed {
		return nil
	}
	f.closed = true
	return f.file.Close()
}
