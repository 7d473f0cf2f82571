package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/postvault/pkg/types"
)

// DefaultAcquireTimeout bounds how long Run waits for a worker slot and a connection
const DefaultAcquireTimeout = 30 * time.Second

// Op is a unit of blocking database work run against one connection
type Op func(ctx context.Context, conn *sql.Conn) error

// Runner executes Ops. Executor is the production implementation.
type Runner interface {
	Run(ctx context.Context, op Op) error
}

// ExecutorOptions configures an Executor
type ExecutorOptions struct {
	// Workers bounds concurrently running operations (default DefaultPoolSize)
	Workers        int
	AcquireTimeout time.Duration
	Logger         *slog.Logger
}

// Executor runs blocking database operations against the handle's current pool.
//
// Every operation runs entirely on one connection from one pool instance, so a
// switch that happens mid-operation is never observed by it.
type Executor struct {
	handle         *Handle
	sem            *semaphore.Weighted
	acquireTimeout time.Duration
	logger         *slog.Logger
	runs           atomic.Uint64
}

// NewExecutor creates an executor over h
func NewExecutor(h *Handle, opts ExecutorOptions) *Executor {
	if opts.Workers <= 0 {
		opts.Workers = DefaultPoolSize
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = DefaultAcquireTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Executor{
		handle:         h,
		sem:            semaphore.NewWeighted(int64(opts.Workers)),
		acquireTimeout: opts.AcquireTimeout,
		logger:         opts.Logger,
	}
}

// Run executes op on a connection from the current pool.
//
// It returns types.ErrPoolExhausted when no worker slot or connection became
// available within the acquire timeout. Errors from op are returned as-is when
// they already belong to the types taxonomy and wrapped in
// types.ErrQueryFailed otherwise.
func (e *Executor) Run(ctx context.Context, op Op) error {
	e.runs.Add(1)

	acqCtx, cancel := context.WithTimeout(ctx, e.acquireTimeout)
	defer cancel()

	if err := e.sem.Acquire(acqCtx, 1); err != nil {
		return e.acquireError(ctx, nil, err)
	}
	defer e.sem.Release(1)

	pool, err := e.handle.Acquire()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrQueryFailed, err)
	}
	defer e.handle.Release(pool)

	conn, err := pool.db.Conn(acqCtx)
	if err != nil {
		return e.acquireError(ctx, pool, err)
	}
	defer func() { _ = conn.Close() }()

	if err := op(ctx, conn); err != nil {
		return classify(err)
	}
	return nil
}

// Runs returns the number of operations submitted so far
func (e *Executor) Runs() uint64 {
	return e.runs.Load()
}

// PoolID identifies the pool new operations will run against
func (e *Executor) PoolID() string {
	return e.handle.Current().ID()
}

func (e *Executor) acquireError(ctx context.Context, pool *Pool, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", types.ErrQueryFailed, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		attrs := []any{"timeout", e.acquireTimeout}
		if pool != nil {
			stats := pool.Stats()
			attrs = append(attrs, "path", pool.Path(), "open", stats.Open, "in_use", stats.InUse)
		}
		e.logger.Warn("connection pool exhausted", attrs...)
		return fmt.Errorf("%w after %s", types.ErrPoolExhausted, e.acquireTimeout)
	}
	return fmt.Errorf("%w: failed to acquire connection: %w", types.ErrQueryFailed, err)
}

func classify(err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrQueryFailed),
		errors.Is(err, types.ErrValidation):
		return err
	default:
		return fmt.Errorf("%w: %w", types.ErrQueryFailed, err)
	}
}

// Query runs fn through r and returns its result
func Query[T any](ctx context.Context, r Runner, fn func(ctx context.Context, conn *sql.Conn) (T, error)) (T, error) {
	var result T
	err := r.Run(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		result, err = fn(ctx, conn)
		return err
	})
	return result, err
}
