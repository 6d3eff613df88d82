package store

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

const (
	// CollectionName is the single collection backing the support corpus.
	CollectionName = "support_chunks"
	// VectorSize is the dimensionality of text-embedding-004 vectors.
	VectorSize = 768

	maxInvalidIDsShown = 10
	maxMismatchesShown = 5
	maxErrDetail       = 200
)

const (
	payloadText       = "text"
	payloadSource     = "source"
	payloadOriginalID = "original_id"
)

// QdrantStore wraps the Qdrant gRPC client: collection lifecycle, point
// upsert and similarity search.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore connects to Qdrant at addr ("host:port"; the port defaults
// to 6334 when absent). The API key may be empty for local unauthenticated
// deployments.
func NewQdrantStore(addr, apiKey string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	cfg := &qdrant.Config{Host: host, Port: port}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantStore{client: client, collection: CollectionName}, nil
}

// EnsureCollection creates the collection if it does not exist yet, with
// VectorSize-dimensional vectors and cosine distance. Two callers may both
// observe "absent" and race the creation; a create failure is treated as a
// no-op when the collection turns out to exist afterwards.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return &IndexError{Op: "collection check", Detail: truncate(err.Error(), maxErrDetail)}
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// Lost the create race: the duplicate creation is ignorable.
		if exists, checkErr := s.client.CollectionExists(ctx, s.collection); checkErr == nil && exists {
			return nil
		}
		return &IndexError{Op: "collection create", Detail: truncate(err.Error(), maxErrDetail)}
	}
	return nil
}

// Upsert validates the whole batch and writes it to the store. A validation
// failure rejects the batch before any point is sent, so the remote store is
// never partially mutated.
func (s *QdrantStore) Upsert(ctx context.Context, points []IndexedPoint) error {
	if err := ValidatePoints(points); err != nil {
		return err
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.PointID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: map[string]*qdrant.Value{
				payloadText:       qdrant.NewValueString(p.Payload.Text),
				payloadSource:     qdrant.NewValueString(p.Payload.Source),
				payloadOriginalID: qdrant.NewValueString(p.Payload.OriginalID),
			},
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return &IndexError{Op: "upsert", Detail: truncate(err.Error(), maxErrDetail)}
	}
	return nil
}

// Search returns up to k hits ordered by descending cosine similarity,
// mapped back into typed passages.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]RetrievedPassage, error) {
	limit := uint64(k)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &IndexError{Op: "search", Detail: truncate(err.Error(), maxErrDetail)}
	}

	passages := make([]RetrievedPassage, 0, len(hits))
	for _, hit := range hits {
		p := RetrievedPassage{Score: hit.Score}
		if v, ok := hit.Payload[payloadText]; ok {
			p.Text = v.GetStringValue()
		}
		if v, ok := hit.Payload[payloadSource]; ok {
			p.Source = v.GetStringValue()
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// ValidatePoints rejects a batch containing any empty or non-finite vector,
// or any vector whose length differs from VectorSize. The whole batch fails
// so a bad embedding never reaches the store.
func ValidatePoints(points []IndexedPoint) error {
	var invalid []string
	for _, p := range points {
		if !vectorFinite(p.Vector) {
			invalid = append(invalid, p.PointID)
		}
	}
	if len(invalid) > 0 {
		suffix := ""
		if len(invalid) > maxInvalidIDsShown {
			invalid = invalid[:maxInvalidIDsShown]
			suffix = " (and more)"
		}
		return &ValidationError{Reason: fmt.Sprintf(
			"invalid or empty embeddings for points: %s%s", strings.Join(invalid, ", "), suffix)}
	}

	var mismatches []string
	for _, p := range points {
		if len(p.Vector) != VectorSize {
			mismatches = append(mismatches, fmt.Sprintf("(%s, %d)", p.PointID, len(p.Vector)))
		}
	}
	if len(mismatches) > 0 {
		if len(mismatches) > maxMismatchesShown {
			mismatches = mismatches[:maxMismatchesShown]
		}
		return &ValidationError{Reason: fmt.Sprintf(
			"vector size mismatch, expected %d: %s", VectorSize, strings.Join(mismatches, ", "))}
	}
	return nil
}

func vectorFinite(vec []float32) bool {
	if len(vec) == 0 {
		return false
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
