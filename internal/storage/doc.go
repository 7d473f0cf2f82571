// Package storage provides read-only access to a hot-swappable SQLite content file.
//
// The storage layer manages:
//   - Pools of read-only connections to one database file
//   - The Handle that owns the active pool and retires old ones after a switch
//   - The Executor that runs blocking queries against the active pool
//   - Schema creation and compatibility checks for content files
//   - Nearest-neighbour lookups over stored embeddings
//
// # Database Schema
//
// Tables:
//   - posts: all content, including special pages (content_type = 'special')
//   - posts_fts: FTS5 index over posts.title and posts.content
//   - commits: change-log entries referenced by posts.commits
//   - post_embeddings: one vector per post (vec0 table when sqlite-vec is available)
//   - images: binary assets keyed by filename
//   - schema_version: applied migrations
//
// # Switching Files
//
// A Handle serves one primary pool. Switch swaps in a new pool without
// blocking readers; the previous pool is retired in the background once it
// has no connection in use, and only then is its file deleted:
//
//	pool, err := storage.OpenPool(ctx, "/srv/content-2024-06.db", 0)
//	if err != nil {
//	    return err
//	}
//	previous, err := handle.Switch(pool)
//
// A retirement that does not drain within the attempt bound gives up and
// leaves the file on disk.
//
// # Running Queries
//
// All reads go through an Executor, which borrows the current pool for the
// duration of one operation:
//
//	n, err := storage.Query(ctx, exec, func(ctx context.Context, conn *sql.Conn) (int, error) {
//	    var n int
//	    err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n)
//	    return n, err
//	})
//
// # Build Modes
//
// The default build uses modernc.org/sqlite and computes vector distances in
// Go. Building with -tags sqlite_vec uses mattn/go-sqlite3 with the sqlite-vec
// extension; -tags ncruces uses the WebAssembly driver with sqlite-vec.
package storage
