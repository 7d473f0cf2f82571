// Package storagetest builds content database files for tests.
package storagetest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dshills/postvault/internal/storage"
	"github.com/dshills/postvault/pkg/types"
)

// Data is the content written into a fixture database
type Data struct {
	Posts      []types.Post
	Commits    []types.Commit
	Embeddings map[string][]float32
	Images     map[string][]byte
}

// Logger returns a logger that discards output
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateDatabase writes data into a new content file at path and closes it.
// It returns the absolute path.
func CreateDatabase(t testing.TB, path string, data Data) string {
	t.Helper()

	ctx := context.Background()
	db, err := storage.Create(ctx, path)
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	for _, p := range data.Posts {
		_, err := db.ExecContext(ctx, `
			INSERT INTO posts (id, content_type, title, link, via, quote_author, date, content, commits, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, string(p.ContentType), nullable(p.Title), nullable(p.Link), nullable(p.Via),
			nullable(p.QuoteAuthor), p.Date, p.Content, jsonList(t, p.CommitIDs), jsonList(t, p.Tags))
		require.NoError(t, err, "insert post %s", p.ID)
	}

	for _, c := range data.Commits {
		_, err := db.ExecContext(ctx, "INSERT INTO commits (id, date, subject, body) VALUES (?, ?, ?, ?)",
			c.ID, c.Date, c.Subject, nullable(c.Body))
		require.NoError(t, err, "insert commit %s", c.ID)
	}

	for id, vec := range data.Embeddings {
		_, err := db.ExecContext(ctx, "INSERT INTO post_embeddings (id, embedding) VALUES (?, ?)",
			id, storage.SerializeVector(Vector(vec...)))
		require.NoError(t, err, "insert embedding %s", id)
	}

	for name, blob := range data.Images {
		_, err := db.ExecContext(ctx, "INSERT INTO images (filename, data) VALUES (?, ?)", name, blob)
		require.NoError(t, err, "insert image %s", name)
	}

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

// Vector pads vals with zeros to the width the vec0 table expects. Padding
// does not change L2 distances between fixture vectors.
func Vector(vals ...float32) []float32 {
	if !storage.VectorExtensionAvailable || len(vals) >= storage.EmbeddingDimensions {
		return vals
	}
	out := make([]float32, storage.EmbeddingDimensions)
	copy(out, vals)
	return out
}

// Options tunes the handle returned by Open
type Options struct {
	DrainInterval  time.Duration
	DrainAttempts  int
	PoolSize       int
	AcquireTimeout time.Duration
}

// Open opens a pool on path and wraps it in a handle and executor that are
// closed when the test ends.
func Open(t testing.TB, path string, opts Options) (*storage.Handle, *storage.Executor) {
	t.Helper()

	if opts.DrainInterval == 0 {
		opts.DrainInterval = 10 * time.Millisecond
	}
	if opts.DrainAttempts == 0 {
		opts.DrainAttempts = 500
	}

	pool, err := storage.OpenPool(context.Background(), path, opts.PoolSize)
	require.NoError(t, err)

	h := storage.NewHandle(pool, storage.HandleOptions{
		DrainInterval: opts.DrainInterval,
		DrainAttempts: opts.DrainAttempts,
		Logger:        Logger(),
	})
	t.Cleanup(func() { _ = h.Close() })

	exec := storage.NewExecutor(h, storage.ExecutorOptions{
		Workers:        opts.PoolSize,
		AcquireTimeout: opts.AcquireTimeout,
		Logger:         Logger(),
	})
	return h, exec
}

// Sample is a small site: three articles, a link, a quote, two special pages,
// change-log entries, embeddings and one image.
func Sample() Data {
	return Data{
		Posts: []types.Post{
			{
				ID: "sqlite-swaps", ContentType: types.ContentArticle, Title: "Hot swapping SQLite files",
				Date: "2024-03-10T09:00:00Z", Content: "Swapping the database file under a running server.",
				Tags: []string{"sqlite", "go"}, CommitIDs: []string{"c3", "c1"},
			},
			{
				ID: "vector-search", ContentType: types.ContentArticle, Title: "Vector search with sqlite-vec",
				Date: "2024-02-20T09:00:00Z", Content: "Nearest neighbours inside SQLite.",
				Tags: []string{"sqlite", "search"}, CommitIDs: []string{"c2", "missing"},
			},
			{
				ID: "rust-notes", ContentType: types.ContentArticle, Title: "Notes on ownership",
				Date: "2024-01-15T12:30:00Z", Content: "Borrowing rules explained with examples.",
				Tags: []string{"rust"},
			},
			{
				ID: "good-link", ContentType: types.ContentLink, Title: "A good read on databases",
				Link: "https://example.com/databases", Via: "someone",
				Date: "2024-01-31T18:00:00Z", Content: "Worth reading about sqlite internals.",
				Tags: []string{"sqlite"},
			},
			{
				ID: "wise-quote", ContentType: types.ContentQuote, QuoteAuthor: "Anonymous",
				Date: "2023-12-24T08:00:00Z", Content: "Simple things should be simple.",
			},
			{
				ID: "about", ContentType: types.ContentSpecial, Title: "About",
				Date: "2020-01-01", Content: "About this sqlite powered site.", Tags: []string{"sqlite"},
			},
			{
				ID: "contact", ContentType: types.ContentSpecial, Title: "Contact",
				Date: "2020-01-01", Content: "How to get in touch.", CommitIDs: []string{"c1"},
			},
		},
		Commits: []types.Commit{
			{ID: "c1", Date: "2024-03-10", Subject: "Initial version"},
			{ID: "c2", Date: "2024-02-21", Subject: "Fix typo", Body: "Spelling in the intro."},
			{ID: "c3", Date: "2024-03-12", Subject: "Add benchmarks"},
		},
		Embeddings: map[string][]float32{
			"sqlite-swaps":  {1, 0, 0, 0},
			"vector-search": {0.9, 0.1, 0, 0},
			"good-link":     {0.7, 0.3, 0, 0},
			"rust-notes":    {0, 0, 1, 0},
			"wise-quote":    {0, 0, 0, 1},
			"about":         {1, 0, 0, 0},
		},
		Images: map[string][]byte{
			"pixel.png": {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
		},
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonList(t testing.TB, vals []string) any {
	if vals == nil {
		return nil
	}
	b, err := json.Marshal(vals)
	require.NoError(t, err)
	return string(b)
}
