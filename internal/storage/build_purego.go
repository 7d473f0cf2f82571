//go:build !sqlite_vec && !ncruces

package storage

// This file is compiled by default. It uses a pure Go SQLite implementation
// without the sqlite-vec extension; related content falls back to exact
// distance computation in Go.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite (FTS5 and JSON1 built in)

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

// embeddingTableDDL stores raw little-endian float32 blobs in a plain table
const embeddingTableDDL = `
CREATE TABLE IF NOT EXISTS post_embeddings (
    id TEXT PRIMARY KEY,
    embedding BLOB NOT NULL
);
`

func poolDSN(absPath string) string {
	return fileURI(absPath, "mode=ro&_pragma=busy_timeout(5000)")
}
