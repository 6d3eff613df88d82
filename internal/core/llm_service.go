package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/CMU-DEMP01/Support-Assistant/internal/config"
)

const (
	defaultChatModelName      = "gemini-1.5-flash"
	defaultEmbeddingModelName = "text-embedding-004"
)

// LLMService wraps the Gemini client for embeddings and streamed generation.
type LLMService struct {
	client *genai.Client
}

func NewLLMService() *LLMService {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	return &LLMService{
		client: client,
	}
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

// GetEmbedding returns the embedding vector for text. A missing or empty
// vector in the response surfaces as an EmbeddingError; there are no retries.
func (s *LLMService) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(defaultEmbeddingModelName)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, &EmbeddingError{Err: fmt.Errorf("no embedding data received from gemini")}
	}
	return res.Embedding.Values, nil
}

// StreamAnswer sends the combined prompt to the generation model and invokes
// onDelta for each incremental text part until the stream is exhausted. An
// error from onDelta stops the stream and is returned as-is.
func (s *LLMService) StreamAnswer(ctx context.Context, prompt string, onDelta func(text string) error) error {
	model := s.client.GenerativeModel(defaultChatModelName)

	it := model.GenerateContentStream(ctx, genai.Text(prompt))
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gemini stream failed: %w", err)
		}

		text := responseText(resp)
		if text == "" {
			continue
		}
		if err := onDelta(text); err != nil {
			return err
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
