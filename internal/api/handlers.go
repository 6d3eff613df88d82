package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/CMU-DEMP01/Support-Assistant/internal/core"
	"github.com/CMU-DEMP01/Support-Assistant/internal/store"
)

// retrieveTopK is how many passages back each generated answer.
const retrieveTopK = 6

const maxUploadBytes = 32 << 20

// Matcher is the deterministic rule short-circuit tried before any network
// call.
type Matcher interface {
	Match(query string) (string, bool)
}

// Retriever turns a query into ranked passages with provenance.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]store.RetrievedPassage, error)
}

// Ingestor turns a document source into stored, searchable chunks.
type Ingestor interface {
	IngestFromURLs(ctx context.Context, urls []string) (int, error)
	IngestPDF(ctx context.Context, data []byte, filename string) (int, error)
}

// Answerer assembles the generation prompt and streams the model's answer.
type Answerer interface {
	Citations(passages []store.RetrievedPassage) []core.Citation
	StreamAnswer(ctx context.Context, query string, passages []store.RetrievedPassage, onDelta func(text string) error) error
}

type APIHandler struct {
	matcher   Matcher
	retriever Retriever
	ingestor  Ingestor
	answers   Answerer
}

func NewAPIHandler(matcher Matcher, retriever Retriever, ingestor Ingestor, answers Answerer) *APIHandler {
	return &APIHandler{
		matcher:   matcher,
		retriever: retriever,
		ingestor:  ingestor,
		answers:   answers,
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

type ruleResponse struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Citations []core.Citation `json:"citations"`
}

type metaEvent struct {
	Type    string          `json:"type"`
	Sources []core.Citation `json:"sources"`
}

type deltaEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ChatHandler answers a support question: rule short-circuit first, then the
// retrieval-augmented path with a newline-delimited JSON stream.
func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	q := strings.TrimSpace(req.Message)
	if q == "" {
		http.Error(w, "No message", http.StatusBadRequest)
		return
	}

	if answer, ok := h.matcher.Match(q); ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(ruleResponse{Type: "rule", Text: answer, Citations: []core.Citation{}})
		return
	}

	passages, err := h.retriever.Retrieve(r.Context(), q, retrieveTopK)
	if err != nil {
		log.Printf("Error retrieving passages: %v", err)
		http.Error(w, "Failed to retrieve context", http.StatusInternalServerError)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	// The meta line goes out before any delta so the client can render
	// citations immediately and append text incrementally.
	enc := json.NewEncoder(w)
	if err := enc.Encode(metaEvent{Type: "meta", Sources: h.answers.Citations(passages)}); err != nil {
		log.Printf("Error writing meta event: %v", err)
		return
	}
	flusher.Flush()

	err = h.answers.StreamAnswer(r.Context(), q, passages, func(text string) error {
		if err := enc.Encode(deltaEvent{Type: "delta", Text: text}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// The status line is already out; the client is left with a
		// truncated but still parseable stream.
		log.Printf("Error streaming answer: %v", err)
	}
}

type ingestURLsRequest struct {
	URLs []string `json:"urls"`
}

type ingestOKResponse struct {
	OK    bool `json:"ok"`
	Added int  `json:"added"`
}

type ingestErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// IngestHandler accepts either a JSON URL-list payload or a multipart upload
// treated as PDF bytes.
func (h *APIHandler) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.ingestPDF(w, r)
		return
	}
	h.ingestURLs(w, r)
}

func (h *APIHandler) ingestPDF(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeIngestError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeIngestError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("Error reading uploaded file %s: %v", header.Filename, err)
		writeIngestError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	added, err := h.ingestor.IngestPDF(r.Context(), data, header.Filename)
	if err != nil {
		log.Printf("Error ingesting PDF %s: %v", header.Filename, err)
		writeIngestError(w, statusForError(err), err.Error())
		return
	}
	writeIngestOK(w, added)
}

func (h *APIHandler) ingestURLs(w http.ResponseWriter, r *http.Request) {
	var req ingestURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIngestError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.URLs) == 0 {
		writeIngestError(w, http.StatusBadRequest, "Provide urls[] or upload a PDF")
		return
	}
	for _, raw := range req.URLs {
		u, err := url.ParseRequestURI(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			writeIngestError(w, http.StatusBadRequest, "Invalid URL: "+raw)
			return
		}
	}

	added, err := h.ingestor.IngestFromURLs(r.Context(), req.URLs)
	if err != nil {
		log.Printf("Error ingesting URLs: %v", err)
		writeIngestError(w, statusForError(err), err.Error())
		return
	}
	writeIngestOK(w, added)
}

// statusForError maps the error taxonomy onto HTTP classes: malformed caller
// input is a client error, collaborator failures are server errors.
func statusForError(err error) int {
	var ve *store.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeIngestOK(w http.ResponseWriter, added int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(ingestOKResponse{OK: true, Added: added})
}

func writeIngestError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ingestErrorResponse{OK: false, Error: msg})
}
