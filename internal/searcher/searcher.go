package searcher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/postvault/internal/content"
	"github.com/dshills/postvault/internal/storage"
	"github.com/dshills/postvault/pkg/types"
)

const (
	// DefaultPerPage is the page size used when none is requested
	DefaultPerPage = 10
	// MaxPerPage caps the requested page size
	MaxPerPage = 100

	DefaultCacheSize = 1000
	DefaultCacheTTL  = 5 * time.Minute
)

// Result is one page of search hits
type Result = types.Page[types.Summary]

// Executor runs queries and identifies the pool they run against
type Executor interface {
	storage.Runner
	PoolID() string
}

// Options configures a Searcher
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// cacheEntry is a cached page with its expiration time
type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// Searcher runs compiled search plans and caches the pages it returns
type Searcher struct {
	exec   Executor
	logger *slog.Logger

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
	ttl     time.Duration
}

// New creates a Searcher over exec
func New(exec Executor, opts Options) *Searcher {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cache, err := lru.New[[32]byte, *cacheEntry](opts.CacheSize)
	if err != nil {
		// Only reachable with a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		exec:   exec,
		logger: opts.Logger,
		cache:  cache,
		ttl:    opts.CacheTTL,
	}
}

// SearchString parses raw, compiles it and runs the search
func (s *Searcher) SearchString(ctx context.Context, raw string, page, perPage int) (Result, error) {
	return s.Search(ctx, Compile(Parse(raw)), page, perPage)
}

// Search returns one page of plan's matches along with the total match count.
// Both statements run on the same connection. Pages are 1-based.
func (s *Searcher) Search(ctx context.Context, plan Plan, page, perPage int) (Result, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	key := cacheKey(s.exec.PoolID(), plan, page, perPage)
	if cached, ok := s.checkCache(key); ok {
		s.logger.Debug("search cache hit", "page", page)
		return cached, nil
	}

	result := Result{CurrentPage: page}
	countSQL, pageSQL := plan.CountSQL(), plan.PageSQL()

	err := s.exec.Run(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx, countSQL, plan.Args()...).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count search results: %w", err)
		}

		rows, err := conn.QueryContext(ctx, pageSQL, plan.PageArgs(perPage, (page-1)*perPage)...)
		if err != nil {
			return fmt.Errorf("failed to query search results: %w", err)
		}
		defer func() { _ = rows.Close() }()

		result.Items = []types.Summary{}
		for rows.Next() {
			summary, err := content.ScanSummary(rows)
			if err != nil {
				return fmt.Errorf("failed to scan search result: %w", err)
			}
			result.Items = append(result.Items, summary)
		}
		return rows.Err()
	})
	if err != nil {
		return Result{}, err
	}

	result.TotalPages = types.TotalPages(result.Total, perPage)
	s.storeInCache(key, result)
	return result, nil
}

// InvalidateCache drops every cached page
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// checkCache looks up a cached page, evicting it when expired
func (s *Searcher) checkCache(key [32]byte) (Result, bool) {
	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	if !found {
		s.cacheMu.RUnlock()
		return Result{}, false
	}

	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(key)
		s.cacheMu.Unlock()
		return Result{}, false
	}

	result := copyResult(entry.result)
	s.cacheMu.RUnlock()
	return result, true
}

func (s *Searcher) storeInCache(key [32]byte, result Result) {
	entry := &cacheEntry{
		result:    copyResult(result),
		expiresAt: time.Now().Add(s.ttl),
	}

	s.cacheMu.Lock()
	s.cache.Add(key, entry)
	s.cacheMu.Unlock()
}

// copyResult copies the item slice so callers cannot modify cached pages.
// Summary holds only strings, so copying the slice is enough.
func copyResult(src Result) Result {
	dst := src
	dst.Items = append([]types.Summary(nil), src.Items...)
	if dst.Items == nil {
		dst.Items = []types.Summary{}
	}
	return dst
}

// cacheKey hashes everything that determines a page: the pool the query
// runs against, the statement and its arguments, and the page window
func cacheKey(poolID string, plan Plan, page, perPage int) [32]byte {
	var data strings.Builder
	data.WriteString(poolID)
	data.WriteString("|")
	data.WriteString(plan.PageSQL())
	for _, arg := range plan.Args() {
		fmt.Fprintf(&data, "|%T:%v", arg, arg)
	}
	fmt.Fprintf(&data, "|%d|%d", page, perPage)

	return sha256.Sum256([]byte(data.String()))
}
