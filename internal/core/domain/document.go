package domain

import "time"

// Document represents the extracted text of one fetched document.
// It is owned by a single request and never persisted.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the URL the document was fetched from.
	URI string

	// Title is the human-readable title, when the format carries one.
	Title string

	// Content is the full text content after extraction.
	// This is the complete document text before chunking.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was extracted.
	CreatedAt time.Time
}

// Chunk represents a contiguous slice of a Document's text.
// Consecutive chunks share a fixed number of overlapping characters.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for similarity search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// Metadata keys written alongside every indexed chunk.
const (
	MetadataText       = "text"
	MetadataSourceURL  = "source_url"
	MetadataPosition   = "position"
	MetadataDocumentID = "document_id"
)

// IndexRecord is the durable unit stored in a vector index.
type IndexRecord struct {
	// ID is unique within a namespace. Empty IDs are assigned by the index.
	ID string

	// Vector is the embedding of Text.
	Vector []float32

	// Text is the chunk content, returned on retrieval.
	Text string

	// Metadata holds scalar key-value pairs stored with the vector.
	Metadata map[string]any
}

// ScoredRecord is a vector index match.
type ScoredRecord struct {
	Record IndexRecord

	// Score is the cosine similarity to the query vector.
	Score float64
}

// ScoredChunk is a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// ChunkFromRecord converts a retrieved index record back into a chunk.
func ChunkFromRecord(rec IndexRecord) Chunk {
	c := Chunk{
		ID:       rec.ID,
		Content:  rec.Text,
		Metadata: rec.Metadata,
	}
	if c.Content == "" {
		if s, ok := rec.Metadata[MetadataText].(string); ok {
			c.Content = s
		}
	}
	if id, ok := rec.Metadata[MetadataDocumentID].(string); ok {
		c.DocumentID = id
	}
	switch p := rec.Metadata[MetadataPosition].(type) {
	case int:
		c.Position = p
	case int64:
		c.Position = int(p)
	case float64:
		c.Position = int(p)
	}
	return c
}
