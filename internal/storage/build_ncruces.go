//go:build ncruces

package storage

// This file is compiled with the ncruces tag. SQLite runs as WebAssembly
// through wazero, so no C toolchain is needed, and the embedded binary
// ships with sqlite-vec.
//
// Build command:
//   CGO_ENABLED=0 go build -tags ncruces ./...
//
// Driver used: github.com/ncruces/go-sqlite3

import (
	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "wasm"
)

const embeddingTableDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS post_embeddings USING vec0(
    id TEXT PRIMARY KEY,
    embedding FLOAT[768]
);
`

func poolDSN(absPath string) string {
	return fileURI(absPath, "mode=ro&_pragma=busy_timeout(5000)")
}
