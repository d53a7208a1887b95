// Package domain defines the core business entities for docqa.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawDocument: Downloaded bytes with a classified Format
//   - Document: Extracted plain text for one request
//   - Chunk: An overlapping slice of a Document's text
//   - IndexRecord: The durable unit stored in a vector index
//   - RunRequest/RunResult: One question-answering request
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
