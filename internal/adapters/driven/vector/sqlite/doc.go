// Package sqlite provides a SQLite-backed implementation of driven.VectorIndex.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// The index dimension is written to index_meta on first open and checked on
// every later open.
//
// # Search
//
// Vectors are stored as little-endian float32 blobs. Queries load the
// namespace and score each record by cosine similarity, which is adequate
// for the per-document namespaces this service writes.
//
// # Data Location
//
// By default, the database is stored at ./data/vectors.db
package sqlite
