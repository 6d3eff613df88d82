package core

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CMU-DEMP01/Support-Assistant/internal/store"
	"github.com/CMU-DEMP01/Support-Assistant/internal/utils"
)

// DefaultTopK is the number of passages returned when the caller does not ask
// for a specific amount.
const DefaultTopK = 5

// Embedder turns text into a fixed-length vector via an external model.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the similarity-search contract the pipeline writes to and
// reads from.
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []store.IndexedPoint) error
	Search(ctx context.Context, vector []float32, k int) ([]store.RetrievedPassage, error)
}

// RAGService orchestrates ingestion (fetch/extract, chunk, embed, upsert) and
// retrieval over the vector index.
type RAGService struct {
	embedder   Embedder
	index      VectorIndex
	httpClient *http.Client
}

func NewRAGService(embedder Embedder, index VectorIndex) *RAGService {
	return &RAGService{
		embedder:   embedder,
		index:      index,
		httpClient: http.DefaultClient,
	}
}

// IngestFromURLs fetches every URL, chunks the bodies and indexes all chunks
// across all URLs as a single batch. A fetch failure for any one URL aborts
// the whole call; there is no partial-success bookkeeping.
func (s *RAGService) IngestFromURLs(ctx context.Context, urls []string) (int, error) {
	var chunks []store.Chunk
	for _, u := range urls {
		text, err := s.fetch(ctx, u)
		if err != nil {
			return 0, &IngestError{Source: u, Err: err}
		}
		for i, part := range utils.ChunkText(text, utils.DefaultChunkSize) {
			chunks = append(chunks, store.Chunk{
				ID:     fmt.Sprintf("%s-%d", u, i),
				Text:   part,
				Source: u,
			})
		}
	}
	return s.addChunks(ctx, chunks)
}

// IngestPDF extracts plain text from the uploaded PDF bytes, chunks it and
// indexes the chunks as a single batch.
func (s *RAGService) IngestPDF(ctx context.Context, data []byte, filename string) (int, error) {
	if filename == "" {
		filename = "uploaded.pdf"
	}

	text, err := extractPDFText(data)
	if err != nil {
		return 0, &IngestError{Source: filename, Err: err}
	}

	var chunks []store.Chunk
	for i, part := range utils.ChunkText(text, utils.DefaultChunkSize) {
		chunks = append(chunks, store.Chunk{
			ID:     utils.IDFromSource(filename, i),
			Text:   part,
			Source: filename,
		})
	}
	return s.addChunks(ctx, chunks)
}

// Retrieve embeds the query and returns the top k passages by cosine
// similarity. No score threshold is applied; filtering relevance is left to
// the prompt.
func (s *RAGService) Retrieve(ctx context.Context, query string, k int) ([]store.RetrievedPassage, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if err := s.index.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	vector, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.index.Search(ctx, vector, k)
}

// addChunks embeds every chunk concurrently and upserts the whole batch. Any
// single embedding failure aborts the batch before the store is touched.
func (s *RAGService) addChunks(ctx context.Context, chunks []store.Chunk) (int, error) {
	if err := s.index.EnsureCollection(ctx); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	points := make([]store.IndexedPoint, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		g.Go(func() error {
			vector, err := s.embedder.GetEmbedding(gctx, c.Text)
			if err != nil {
				return err
			}
			points[i] = store.IndexedPoint{
				PointID: uuid.NewString(),
				Vector:  vector,
				Payload: store.PointPayload{
					Text:       c.Text,
					Source:     c.Source,
					OriginalID: c.ID,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := s.index.Upsert(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

func (s *RAGService) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch returned status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
