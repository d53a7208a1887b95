package domain

// EmbeddingTask tells an embedding provider what the text is for.
// Asymmetric models such as nomic-embed-text embed documents and
// queries with different prefixes.
type EmbeddingTask string

// Embedding tasks.
const (
	TaskDocument EmbeddingTask = "document"
	TaskQuery    EmbeddingTask = "query"
)
