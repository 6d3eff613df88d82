package core

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/CMU-DEMP01/Support-Assistant/internal/rules"
	"github.com/CMU-DEMP01/Support-Assistant/internal/store"
)

// Citation ties generated answer text back to a retrieved passage. N is the
// 1-based position of the passage and matches the [[n]] marker embedded in
// the prompt context block; it is not stable across queries.
type Citation struct {
	N      int     `json:"n"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Generator streams incremental model output for a combined prompt.
type Generator interface {
	StreamAnswer(ctx context.Context, prompt string, onDelta func(text string) error) error
}

// AnswerService builds the generation prompt from retrieved passages and
// streams the model's answer back to the caller.
type AnswerService struct {
	kb  rules.KnowledgeBase
	llm Generator
}

func NewAnswerService(kb rules.KnowledgeBase, llm Generator) *AnswerService {
	return &AnswerService{kb: kb, llm: llm}
}

// Citations numbers the passages in retrieval order. Scores are rounded to
// three decimals for display.
func (s *AnswerService) Citations(passages []store.RetrievedPassage) []Citation {
	citations := make([]Citation, 0, len(passages))
	for i, p := range passages {
		citations = append(citations, Citation{
			N:      i + 1,
			Source: p.Source,
			Score:  math.Round(float64(p.Score)*1000) / 1000,
		})
	}
	return citations
}

// StreamAnswer builds the combined prompt for the query and its passages and
// forwards the model's text deltas to onDelta.
func (s *AnswerService) StreamAnswer(ctx context.Context, query string, passages []store.RetrievedPassage, onDelta func(text string) error) error {
	return s.llm.StreamAnswer(ctx, s.buildPrompt(query, passages), onDelta)
}

// buildContext numbers each passage so the model can cite it. The numbering
// must agree with the citation list sent to the client.
func buildContext(passages []store.RetrievedPassage) string {
	if len(passages) == 0 {
		return "(no context available)"
	}
	entries := make([]string, len(passages))
	for i, p := range passages {
		entries[i] = fmt.Sprintf("[[%d]] (%s) %s", i+1, p.Source, p.Text)
	}
	return strings.Join(entries, "\n\n")
}

// buildPrompt combines the system instruction and the user question into a
// single prompt string for the generation model.
func (s *AnswerService) buildPrompt(query string, passages []store.RetrievedPassage) string {
	system := fmt.Sprintf(`You are a helpful, precise customer-support assistant.
- Answer ONLY from the provided context when relevant.
- If context is insufficient, say you don't know and offer escalation.
- Always include numbered citations like [1], [2] that map to sources below.
- If user asks for contact, hours, pricing, or help links, use this canonical info:
  - Phone: %s
  - Email: %s
  - Hours: %s
  - Help Center: %s
  - Status: %s
  - Pricing: %s
Keep answers concise and actionable.`,
		s.kb.SupportNumber, s.kb.SupportEmail, s.kb.Hours,
		s.kb.HelpCenterURL, s.kb.StatusURL, s.kb.PricingURL)

	user := fmt.Sprintf("User question:\n%s\n\nContext passages:\n%s",
		query, buildContext(passages))

	return system + "\n\n" + user
}
