package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultDrainInterval is the delay between drain checks of a retired pool
	DefaultDrainInterval = 10 * time.Second
	// DefaultDrainAttempts is the number of drain checks made on a retired pool
	DefaultDrainAttempts = 60
)

// ErrHandleClosed is returned when work is requested after Close
var ErrHandleClosed = errors.New("storage handle closed")

// HandleOptions configures retirement of swapped-out pools.
//
// DrainAttempts counts checks, not sleeps: the first check runs right after
// the switch and DrainInterval separates consecutive checks, so a pool that
// never drains is given up on after (DrainAttempts-1) * DrainInterval.
type HandleOptions struct {
	DrainInterval time.Duration
	DrainAttempts int
	Logger        *slog.Logger
}

// Handle owns the active pool and every pool retired by a switch.
//
// The primary pool is read without locking. Draining pools, reserved paths and
// the primary path sit behind mu, which is only taken by Switch, retirement
// and status reads.
type Handle struct {
	primary atomic.Pointer[Pool]

	mu          sync.RWMutex
	draining    map[*Pool]struct{}
	reserved    map[string]int
	primaryPath string
	closed      bool

	drainInterval time.Duration
	drainAttempts int
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHandle creates a handle serving primary
func NewHandle(primary *Pool, opts HandleOptions) *Handle {
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = DefaultDrainInterval
	}
	if opts.DrainAttempts <= 0 {
		opts.DrainAttempts = DefaultDrainAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		draining:      make(map[*Pool]struct{}),
		reserved:      make(map[string]int),
		primaryPath:   primary.Path(),
		drainInterval: opts.DrainInterval,
		drainAttempts: opts.DrainAttempts,
		logger:        opts.Logger,
		ctx:           ctx,
		cancel:        cancel,
	}
	h.primary.Store(primary)
	return h
}

// Current returns the active pool. It never blocks.
func (h *Handle) Current() *Pool {
	return h.primary.Load()
}

// Acquire returns the active pool with a borrower registered on it. The pool
// will not be retired until Release is called.
func (h *Handle) Acquire() (*Pool, error) {
	for {
		p := h.primary.Load()
		if p.acquire() {
			return p, nil
		}
		// Lost a race with a retirement; the primary has moved on unless we are closed
		if h.primary.Load() == p {
			return nil, ErrHandleClosed
		}
	}
}

// Release returns a pool obtained from Acquire
func (h *Handle) Release(p *Pool) {
	p.release()
}

// PrimaryPath returns the path of the active database file
func (h *Handle) PrimaryPath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.primaryPath
}

// Draining returns the paths of pools still waiting to be retired
func (h *Handle) Draining() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	paths := make([]string, 0, len(h.draining))
	for p := range h.draining {
		paths = append(paths, p.Path())
	}
	sort.Strings(paths)
	return paths
}

// Reserve protects path from deletion by a retirement until the returned
// func is called. Use it around opening a pool that will be switched in.
func (h *Handle) Reserve(path string) (release func()) {
	h.mu.Lock()
	h.reserved[path]++
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if h.reserved[path]--; h.reserved[path] <= 0 {
				delete(h.reserved, path)
			}
			h.mu.Unlock()
		})
	}
}

// Switch makes next the active pool and returns the previous primary path.
// The old pool is retired in the background: once it has no connection in
// use it is closed and its file removed. Switch never waits for that.
func (h *Handle) Switch(next *Pool) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return "", ErrHandleClosed
	}

	old := h.primary.Swap(next)
	previous := h.primaryPath
	h.primaryPath = next.Path()

	h.logger.Info("switched database",
		"from", previous, "to", next.Path(), "pool_id", next.ID())

	if old != nil && old != next {
		h.draining[old] = struct{}{}
		h.wg.Add(1)
		go h.retire(old)
	}

	return previous, nil
}

// Wait blocks until every retirement started so far has finished
func (h *Handle) Wait() {
	h.wg.Wait()
}

// Close stops pending retirements without deleting their files and closes
// every pool the handle still owns.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()

	h.mu.Lock()
	pools := make([]*Pool, 0, len(h.draining)+1)
	for p := range h.draining {
		pools = append(pools, p)
	}
	clear(h.draining)
	h.mu.Unlock()

	pools = append(pools, h.primary.Load())

	var errs []error
	for _, p := range pools {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close pool %s: %w", p.Path(), err))
		}
	}
	return errors.Join(errs...)
}

// retire waits for old to drain, then closes it and deletes its file
func (h *Handle) retire(old *Pool) {
	defer h.wg.Done()

	log := h.logger.With("path", old.Path(), "pool_id", old.ID())

	for attempt := 1; ; attempt++ {
		if old.tryRetire() {
			h.finishRetirement(old, log)
			return
		}

		if attempt >= h.drainAttempts {
			h.mu.Lock()
			delete(h.draining, old)
			h.mu.Unlock()

			log.Warn("timeout draining old pool, file not deleted", "attempts", attempt)
			// Connections still in use are closed as their queries return
			if err := old.db.Close(); err != nil {
				log.Warn("failed to close old pool", "err", err)
			}
			return
		}

		stats := old.Stats()
		log.Debug("old pool still in use",
			"attempt", attempt, "in_use", stats.InUse, "borrowers", stats.Borrowers)

		timer := time.NewTimer(h.drainInterval)
		select {
		case <-h.ctx.Done():
			timer.Stop()
			log.Info("stopped draining old pool, file not deleted")
			return
		case <-timer.C:
		}
	}
}

// finishRetirement closes a drained pool and deletes its file unless the path
// is in use again. mu covers the in-use check and the renames that move the
// file off its path, so a concurrent Reserve or Switch either sees the file
// kept or finds it gone. Closing and unlinking run without mu.
func (h *Handle) finishRetirement(old *Pool, log *slog.Logger) {
	h.mu.Lock()
	delete(h.draining, old)
	h.mu.Unlock()

	if err := old.db.Close(); err != nil {
		log.Warn("failed to close old pool", "err", err)
	}

	h.mu.Lock()
	if h.pathInUseLocked(old.Path()) {
		h.mu.Unlock()
		log.Info("old pool released, file kept because it is in use again")
		return
	}
	detached, err := detachDatabaseFiles(old.Path(), old.ID())
	h.mu.Unlock()
	if err != nil {
		log.Error("failed to detach old database file", "err", err)
	}
	if len(detached) == 0 {
		return
	}

	if retireHook != nil {
		retireHook(old.Path())
	}

	if err := removeFiles(detached); err != nil {
		log.Error("failed to delete old database file", "err", err)
		return
	}
	log.Info("deleted old database file")
}

// retireHook runs after a retired file has been detached and before it is
// unlinked. Tests use it to observe the handle between the two steps.
var retireHook func(path string)

// pathInUseLocked reports whether path backs the primary pool, another
// draining pool, or a reserved switch target. Caller holds mu.
func (h *Handle) pathInUseLocked(path string) bool {
	if path == h.primaryPath || h.reserved[path] > 0 {
		return true
	}
	for p := range h.draining {
		if p.Path() == path {
			return true
		}
	}
	return false
}

var databaseSuffixes = []string{"", "-wal", "-shm", "-journal"}

// detachDatabaseFiles renames a database file and its journal siblings to
// names nothing will open, returning the new names.
func detachDatabaseFiles(path, poolID string) ([]string, error) {
	var detached []string
	for _, suffix := range databaseSuffixes {
		from := path + suffix
		to := from + ".retired-" + poolID
		if err := os.Rename(from, to); err != nil {
			if suffix != "" && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return detached, err
		}
		detached = append(detached, to)
	}
	return detached, nil
}

func removeFiles(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
