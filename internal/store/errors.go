package store

import "fmt"

// ValidationError reports a batch rejected before any point reached the
// remote store. It is a client-class failure and is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// IndexError reports a failure from the vector store, carrying a truncated
// remote error detail so the failure is debuggable.
type IndexError struct {
	Op     string
	Detail string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("qdrant %s failed: %s", e.Op, e.Detail)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
