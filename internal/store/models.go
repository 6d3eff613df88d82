package store

// Chunk is a bounded-length segment of source text with provenance. The ID is
// derived from the source and a positional index; Source is a human-meaningful
// origin label (URL or filename) used for citation display, not a primary key.
type Chunk struct {
	ID     string
	Text   string
	Source string
}

// PointPayload is stored alongside each vector so search hits can be mapped
// back to their originating chunk.
type PointPayload struct {
	Text       string
	Source     string
	OriginalID string
}

// IndexedPoint is a single vector-store entry. PointID is a fresh UUID
// because Qdrant only accepts numeric or UUID point identifiers; the chunk
// identity is preserved in the payload for traceability.
type IndexedPoint struct {
	PointID string
	Vector  []float32
	Payload PointPayload
}

// RetrievedPassage is one similarity-search hit. Score is the store's cosine
// similarity; higher means more relevant. Passages are constructed per query
// and never persisted.
type RetrievedPassage struct {
	Text   string
	Source string
	Score  float32
}
