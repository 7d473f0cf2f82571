package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/postvault/internal/storage"
	"github.com/dshills/postvault/internal/storage/storagetest"
	"github.com/dshills/postvault/pkg/types"
)

func TestCreate_AppliesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.db")
	ctx := context.Background()

	db, err := storage.Create(ctx, path)
	require.NoError(t, err)

	for _, table := range []string{"schema_version", "posts", "posts_fts", "commits", "images", "post_embeddings"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	var version string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version))
	assert.Equal(t, storage.CurrentSchemaVersion, version)

	// Applying again is a no-op
	require.NoError(t, storage.ApplyMigrations(ctx, db))
	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, db.Close())
}

func TestFTSTriggersTrackPosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.db")
	ctx := context.Background()

	db, err := storage.Create(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "INSERT INTO posts (id, title, date, content) VALUES ('p', 'Gardening', '2024-01-01', 'tomatoes')")
	require.NoError(t, err)

	count := func(term string) int {
		var n int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts_fts WHERE posts_fts MATCH ?", term).Scan(&n))
		return n
	}
	assert.Equal(t, 1, count("tomatoes"))

	_, err = db.ExecContext(ctx, "UPDATE posts SET content = 'cucumbers' WHERE id = 'p'")
	require.NoError(t, err)
	assert.Equal(t, 0, count("tomatoes"))
	assert.Equal(t, 1, count("cucumbers"))

	_, err = db.ExecContext(ctx, "DELETE FROM posts WHERE id = 'p'")
	require.NoError(t, err)
	assert.Equal(t, 0, count("cucumbers"))
}

func TestCheckSchema(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	check := func(t *testing.T, path string) error {
		t.Helper()
		pool, err := storage.OpenPool(ctx, path, 1)
		if err != nil {
			return err
		}
		defer pool.Close()
		return storage.CheckSchema(ctx, pool)
	}

	t.Run("current schema", func(t *testing.T) {
		path := storagetest.CreateDatabase(t, filepath.Join(dir, "current.db"), storagetest.Sample())
		assert.NoError(t, check(t, path))
	})

	t.Run("legacy file without version table", func(t *testing.T) {
		path := filepath.Join(dir, "legacy.db")
		db, err := storage.Create(ctx, path)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, "DROP TABLE schema_version")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		assert.NoError(t, check(t, path))
	})

	t.Run("newer major version", func(t *testing.T) {
		path := filepath.Join(dir, "future.db")
		db, err := storage.Create(ctx, path)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version, applied_at) VALUES ('2.0.0', '2999-01-01 00:00:00')")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		assert.ErrorIs(t, check(t, path), types.ErrIncompatibleSchema)
	})

	t.Run("missing tables", func(t *testing.T) {
		path := filepath.Join(dir, "empty.db")
		db, err := storage.Create(ctx, path)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, "DROP TABLE commits")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		err = check(t, path)
		assert.ErrorIs(t, err, types.ErrIncompatibleSchema)
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("not a database", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.db")
		require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite file, just some bytes padding it out"), 0o644))
		assert.Error(t, check(t, path))
	})
}
