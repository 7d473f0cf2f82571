package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/postvault/pkg/types"
)

const (
	// CurrentSchemaVersion tracks the content database schema version
	CurrentSchemaVersion = "1.0.0"

	// EmbeddingDimensions is the vector width of post_embeddings in the vec0 builds
	EmbeddingDimensions = 768
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
	},
}

// requiredTables must exist in any file the server is switched to
var requiredTables = []string{"posts", "commits"}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Posts, including special pages
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    content_type TEXT NOT NULL DEFAULT 'post',
    title TEXT,
    link TEXT,
    via TEXT,
    quote_author TEXT,
    date TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    commits TEXT,
    tags TEXT
);

CREATE INDEX IF NOT EXISTS idx_posts_date ON posts(date);
CREATE INDEX IF NOT EXISTS idx_posts_type_date ON posts(content_type, date);

-- Full-text search on posts
CREATE VIRTUAL TABLE IF NOT EXISTS posts_fts USING fts5(
    title, content,
    content='posts',
    content_rowid='rowid'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS posts_ai AFTER INSERT ON posts BEGIN
    INSERT INTO posts_fts(rowid, title, content)
    VALUES (new.rowid, new.title, new.content);
END;

CREATE TRIGGER IF NOT EXISTS posts_ad AFTER DELETE ON posts BEGIN
    INSERT INTO posts_fts(posts_fts, rowid, title, content)
    VALUES ('delete', old.rowid, old.title, old.content);
END;

CREATE TRIGGER IF NOT EXISTS posts_au AFTER UPDATE ON posts BEGIN
    INSERT INTO posts_fts(posts_fts, rowid, title, content)
    VALUES ('delete', old.rowid, old.title, old.content);
    INSERT INTO posts_fts(rowid, title, content)
    VALUES (new.rowid, new.title, new.content);
END;

-- Change-log entries referenced by posts.commits
CREATE TABLE IF NOT EXISTS commits (
    id TEXT PRIMARY KEY,
    date TEXT NOT NULL,
    subject TEXT NOT NULL,
    body TEXT
);

-- Binary assets served by filename
CREATE TABLE IF NOT EXISTS images (
    filename TEXT PRIMARY KEY,
    data BLOB NOT NULL
);
` + embeddingTableDDL

// Create creates (or upgrades) a writable content database at path.
// The caller owns the returned handle. Content files are built offline and
// then served read-only through a Pool.
func Create(ctx context.Context, path string) (*sql.DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	db, err := sql.Open(DriverName, abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return db, nil
}

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, _, err := readSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if currentVersion == nil {
		currentVersion = semver.MustParse("0.0.0")
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// CheckSchema reports whether the pool's file can be served by this build.
// Files without a schema_version table predate versioning and are accepted
// as long as the required tables exist.
func CheckSchema(ctx context.Context, p *Pool) error {
	for _, table := range requiredTables {
		var name string
		err := p.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?", table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: missing table %s", types.ErrIncompatibleSchema, table)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrIncompatibleSchema, err)
		}
	}

	version, tracked, err := readSchemaVersion(ctx, p.db)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrIncompatibleSchema, err)
	}
	if !tracked || version == nil {
		return nil
	}

	current := semver.MustParse(CurrentSchemaVersion)
	if version.Major() != current.Major() {
		return fmt.Errorf("%w: schema %s, server supports %d.x", types.ErrIncompatibleSchema, version, current.Major())
	}

	return nil
}

// readSchemaVersion returns the most recently applied version. tracked is false
// when the schema_version table does not exist.
func readSchemaVersion(ctx context.Context, db *sql.DB) (version *semver.Version, tracked bool, err error) {
	var tableName string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	var versionStr string
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC, rowid DESC LIMIT 1").Scan(&versionStr)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && versionStr == "") {
		return nil, true, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("failed to read schema_version: %w", err)
	}

	version, err = semver.NewVersion(versionStr)
	if err != nil {
		return nil, true, fmt.Errorf("invalid schema version %s: %w", versionStr, err)
	}
	return version, true, nil
}
