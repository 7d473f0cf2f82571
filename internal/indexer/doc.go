// Package indexer backfills post embeddings in a content file.
//
// Content files are built offline and served read-only, so the related-posts
// lookup depends on post_embeddings being filled in before the file is
// switched in. The Indexer finds listed posts without a vector, embeds their
// title, quote author and body in batches, and writes the vectors back one
// transaction per batch.
//
// # Usage
//
//	db, err := storage.Create(ctx, "content.db")
//	emb, err := embedder.NewFromEnv(storage.EmbeddingDimensions)
//	idx, err := indexer.New(emb, logger)
//	stats, err := idx.IndexEmbeddings(ctx, db, &indexer.Config{Workers: 4})
//
// # Concurrency
//
// Embedding calls run concurrently under an errgroup limited to
// Config.Workers. Writes are serialized because SQLite has a single writer.
// An Indexer runs one backfill at a time; a second concurrent call returns
// ErrIndexingInProgress.
//
// # Incremental Runs
//
// Posts that already have a vector are skipped unless Config.Force is set.
// Force is the way to rebuild after switching embedding providers.
package indexer
