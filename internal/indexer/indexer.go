package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/postvault/internal/embedder"
	"github.com/dshills/postvault/internal/storage"
)

// ErrIndexingInProgress is returned when a backfill is already running on
// this Indexer
var ErrIndexingInProgress = errors.New("embedding backfill already in progress")

// Indexer coordinates the embedding pipeline: select -> embed -> store
type Indexer struct {
	embedder embedder.Embedder
	logger   *slog.Logger
	lock     IndexLock
}

// Config contains configuration for a backfill
type Config struct {
	Workers   int  // Concurrent embedding calls (default: runtime.NumCPU())
	BatchSize int  // Posts per embedding call and per transaction (default: embedder.DefaultBatchSize)
	Force     bool // Re-embed posts that already have a vector
}

// Statistics contains statistics about a backfill
type Statistics struct {
	PostsEmbedded int
	PostsSkipped  int
	PostsFailed   int
	Duration      time.Duration
	ErrorMessages []string
}

type document struct {
	id   string
	text string
}

// New creates an Indexer. The embedder must produce vectors as wide as the
// post_embeddings table.
func New(emb embedder.Embedder, logger *slog.Logger) (*Indexer, error) {
	if emb.Dimension() != storage.EmbeddingDimensions {
		return nil, fmt.Errorf("%w: %s produces %d, post_embeddings holds %d",
			embedder.ErrDimensionMismatch, emb.Provider(), emb.Dimension(), storage.EmbeddingDimensions)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{embedder: emb, logger: logger}, nil
}

// IndexEmbeddings writes a vector for every listed post in db that lacks one,
// or for every listed post when config.Force is set. Special pages are never
// embedded. db must be writable; see storage.Create.
//
// A batch the embedder rejects is counted as failed and the run continues.
// A failed write aborts the run.
func (idx *Indexer) IndexEmbeddings(ctx context.Context, db *sql.DB, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 || batchSize > embedder.MaxBatchSize {
		batchSize = embedder.DefaultBatchSize
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	docs, skipped, err := selectDocuments(ctx, db, config.Force)
	if err != nil {
		return nil, err
	}
	stats.PostsSkipped = skipped

	idx.logger.Info("embedding posts",
		"candidates", len(docs),
		"skipped", stats.PostsSkipped,
		"provider", idx.embedder.Provider(),
		"model", idx.embedder.Model())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex      // Protects stats
	var writeMu sync.Mutex // Single writer

	for i := 0; i < len(docs); i += batchSize {
		batch := docs[i:min(i+batchSize, len(docs))]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, d := range batch {
				texts[j] = d.text
			}

			vectors, err := idx.embedder.Embed(gctx, texts)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				idx.logger.Warn("failed to embed batch", "first", batch[0].id, "size", len(batch), "err", err)
				mu.Lock()
				stats.PostsFailed += len(batch)
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s..%s: %v", batch[0].id, batch[len(batch)-1].id, err))
				mu.Unlock()
				return nil
			}

			writeMu.Lock()
			err = writeBatch(gctx, db, batch, vectors)
			writeMu.Unlock()
			if err != nil {
				return err
			}

			mu.Lock()
			stats.PostsEmbedded += len(batch)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("embedding complete",
		"embedded", stats.PostsEmbedded,
		"failed", stats.PostsFailed,
		"duration", stats.Duration)
	return stats, nil
}

// selectDocuments returns the posts to embed, ordered by id, and how many
// posts were passed over because they already have a vector. Posts without
// any text are ignored.
func selectDocuments(ctx context.Context, db *sql.DB, force bool) (docs []document, skipped int, err error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, quote_author, content, id IN (SELECT id FROM post_embeddings)
		FROM posts
		WHERE content_type != 'special'
		ORDER BY id`)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id                 string
			title, quoteAuthor sql.NullString
			content            string
			embedded           bool
		)
		if err := rows.Scan(&id, &title, &quoteAuthor, &content, &embedded); err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}

		text := documentText(title.String, quoteAuthor.String, content)
		switch {
		case text == "":
		case embedded && !force:
			skipped++
		default:
			docs = append(docs, document{id: id, text: text})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to select posts: %w", err)
	}
	return docs, skipped, nil
}

// documentText is the text a post is embedded from
func documentText(title, quoteAuthor, content string) string {
	var parts []string
	for _, s := range []string{title, quoteAuthor, content} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// writeBatch replaces the vectors of one batch in a single transaction.
// vec0 tables do not support upserts, so rows are deleted and re-inserted.
func writeBatch(ctx context.Context, db *sql.DB, batch []document, vectors [][]float32) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, d := range batch {
		if len(vectors[i]) != storage.EmbeddingDimensions {
			return fmt.Errorf("%w: %s has %d entries", embedder.ErrDimensionMismatch, d.id, len(vectors[i]))
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM post_embeddings WHERE id = ?", d.id); err != nil {
			return fmt.Errorf("failed to delete embedding %s: %w", d.id, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO post_embeddings (id, embedding) VALUES (?, ?)",
			d.id, storage.SerializeVector(vectors[i])); err != nil {
			return fmt.Errorf("failed to insert embedding %s: %w", d.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
