package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPoolSize is the maximum number of open connections per pool
	DefaultPoolSize = 16

	// retiredMark is stored in Pool.borrowers once the pool may no longer be borrowed
	retiredMark = -1
)

// Pool is a bounded set of read-only connections to one database file.
// Pools are created on startup and on every switch, and are closed by the
// Handle that owns them.
type Pool struct {
	id   string
	path string
	db   *sql.DB

	// borrowers counts operations holding the pool; negative once retired
	borrowers atomic.Int64
}

// PoolStats is a snapshot of a pool's connection accounting
type PoolStats struct {
	MaxOpen   int   `json:"max_open"`
	Open      int   `json:"open"`
	Idle      int   `json:"idle"`
	InUse     int   `json:"in_use"`
	Borrowers int64 `json:"borrowers"`
}

// OpenPool opens a read-only pool on an existing database file.
// maxConns <= 0 selects DefaultPoolSize.
func OpenPool(ctx context.Context, path string, maxConns int) (*Pool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat database file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("database path %s is a directory", abs)
	}

	if maxConns <= 0 {
		maxConns = DefaultPoolSize
	}

	db, err := sql.Open(DriverName, poolDSN(abs))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Pool{
		id:   uuid.NewString(),
		path: abs,
		db:   db,
	}, nil
}

// ID uniquely identifies this pool instance
func (p *Pool) ID() string { return p.id }

// Path returns the absolute path of the backing file
func (p *Pool) Path() string { return p.path }

// Stats returns the current connection accounting
func (p *Pool) Stats() PoolStats {
	s := p.db.Stats()
	return PoolStats{
		MaxOpen:   s.MaxOpenConnections,
		Open:      s.OpenConnections,
		Idle:      s.Idle,
		InUse:     s.InUse,
		Borrowers: max(p.borrowers.Load(), 0),
	}
}

// Close closes idle connections and prevents new ones. Connections in use
// are closed as their queries return.
func (p *Pool) Close() error {
	p.borrowers.Store(retiredMark)
	return p.db.Close()
}

// acquire registers a borrower. It fails once the pool has been retired.
func (p *Pool) acquire() bool {
	for {
		n := p.borrowers.Load()
		if n < 0 {
			return false
		}
		if p.borrowers.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (p *Pool) release() {
	p.borrowers.Add(-1)
}

// tryRetire marks the pool retired when no connection is in use and no
// borrower is registered. A retired pool can no longer be acquired.
func (p *Pool) tryRetire() bool {
	s := p.db.Stats()
	if s.OpenConnections != s.Idle {
		return false
	}
	return p.borrowers.CompareAndSwap(0, retiredMark)
}

// fileURI builds a SQLite URI filename for an absolute path
func fileURI(absPath, query string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(absPath), RawQuery: query}
	return u.String()
}
