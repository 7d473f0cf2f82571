// Package admin switches the served content file at runtime.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/postvault/internal/storage"
	"github.com/dshills/postvault/pkg/types"
)

// CacheInvalidator drops results computed against a previous file
type CacheInvalidator interface {
	InvalidateCache()
}

// Options configures a Switcher
type Options struct {
	// DataDir is the directory switch targets are resolved in
	DataDir string

	// Persist records the new path so a restart serves the same file. Optional.
	Persist func(path string) error

	// Caches are purged after every successful switch
	Caches []CacheInvalidator

	PoolSize int
	Logger   *slog.Logger
}

// Result describes a completed switch
type Result struct {
	Path         string `json:"path"`
	PreviousPath string `json:"previous_path"`
	Persisted    bool   `json:"persisted"`
}

// Switcher validates a replacement content file and hands it to the Handle
type Switcher struct {
	handle *storage.Handle
	opts   Options
	logger *slog.Logger

	// one switch at a time keeps persisted state in order
	mu sync.Mutex
}

// NewSwitcher creates a Switcher for h
func NewSwitcher(h *storage.Handle, opts Options) *Switcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Switcher{handle: h, opts: opts, logger: opts.Logger}
}

// Switch makes DataDir/filename the served file.
//
// It returns types.ErrValidation for a malformed filename,
// types.ErrNotFound when the file does not exist and
// types.ErrIncompatibleSchema when the file cannot be opened as a content
// database. Nothing changes on error. A failure to persist the new path is
// logged and reported through Result.Persisted.
func (s *Switcher) Switch(ctx context.Context, filename string) (Result, error) {
	if err := types.ValidateFilename(filename); err != nil {
		return Result{}, err
	}

	path, err := filepath.Abs(filepath.Join(s.opts.DataDir, filename))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep a retirement of an older pool on the same path from deleting the file
	// while it is being opened
	unreserve := s.handle.Reserve(path)
	defer unreserve()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("database file %s: %w", filename, types.ErrNotFound)
		}
		return Result{}, fmt.Errorf("%w: failed to stat %s: %w", types.ErrQueryFailed, filename, err)
	}

	pool, err := storage.OpenPool(ctx, path, s.opts.PoolSize)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", types.ErrIncompatibleSchema, err)
	}

	if err := storage.CheckSchema(ctx, pool); err != nil {
		_ = pool.Close()
		return Result{}, err
	}

	previous, err := s.handle.Switch(pool)
	if err != nil {
		_ = pool.Close()
		return Result{}, fmt.Errorf("%w: %w", types.ErrQueryFailed, err)
	}

	for _, c := range s.opts.Caches {
		c.InvalidateCache()
	}

	result := Result{Path: path, PreviousPath: previous}
	if s.opts.Persist != nil {
		if err := s.opts.Persist(path); err != nil {
			s.logger.Error("failed to persist database path", "path", path, "err", err)
		} else {
			result.Persisted = true
		}
	}

	s.logger.Info("database switch complete",
		"path", path, "previous", previous, "pool_id", pool.ID(), "persisted", result.Persisted)

	return result, nil
}
