package core

import "fmt"

// EmbeddingError reports a failed or malformed response from the embedding
// endpoint. It is never retried; the caller aborts the batch or the query.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding failed: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// IngestError reports a failure turning a document source (URL or PDF) into
// chunks, carrying the source label for diagnosis.
type IngestError struct {
	Source string
	Err    error
}

func (e *IngestError) Error() string { return fmt.Sprintf("ingest failed for %s: %v", e.Source, e.Err) }
func (e *IngestError) Unwrap() error { return e.Err }
