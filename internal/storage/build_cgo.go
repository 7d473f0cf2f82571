//go:build sqlite_vec && !ncruces

package storage

// This file is compiled when building with CGO and the sqlite_vec tag.
// It registers the sqlite-vec extension with every new connection.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec sqlite_fts5" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

const embeddingTableDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS post_embeddings USING vec0(
    id TEXT PRIMARY KEY,
    embedding FLOAT[768]
);
`

func init() {
	sqlite_vec.Auto()
}

func poolDSN(absPath string) string {
	return fileURI(absPath, "mode=ro&_busy_timeout=5000")
}
