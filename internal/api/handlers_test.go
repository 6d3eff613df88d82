package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CMU-DEMP01/Support-Assistant/internal/core"
	"github.com/CMU-DEMP01/Support-Assistant/internal/rules"
	"github.com/CMU-DEMP01/Support-Assistant/internal/store"
)

type fakeRetriever struct {
	called   bool
	passages []store.RetrievedPassage
	err      error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int) ([]store.RetrievedPassage, error) {
	f.called = true
	return f.passages, f.err
}

type fakeIngestor struct {
	urls     []string
	filename string
	data     []byte
	added    int
	err      error
}

func (f *fakeIngestor) IngestFromURLs(ctx context.Context, urls []string) (int, error) {
	f.urls = urls
	return f.added, f.err
}

func (f *fakeIngestor) IngestPDF(ctx context.Context, data []byte, filename string) (int, error) {
	f.data = data
	f.filename = filename
	return f.added, f.err
}

type fakeGenerator struct {
	deltas []string
}

func (f *fakeGenerator) StreamAnswer(ctx context.Context, prompt string, onDelta func(text string) error) error {
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return nil
}

func newTestHandler(retriever *fakeRetriever, ingestor *fakeIngestor, gen *fakeGenerator) *APIHandler {
	kb := rules.DefaultKnowledgeBase()
	if gen == nil {
		gen = &fakeGenerator{}
	}
	return NewAPIHandler(rules.NewMatcher(kb), retriever, ingestor, core.NewAnswerService(kb, gen))
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestChatHandler_EmptyMessage(t *testing.T) {
	h := newTestHandler(&fakeRetriever{}, &fakeIngestor{}, nil)

	rec := postJSON(t, h.ChatHandler, `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No message")
}

func TestChatHandler_RuleShortCircuit(t *testing.T) {
	retriever := &fakeRetriever{}
	h := newTestHandler(retriever, &fakeIngestor{}, nil)

	rec := postJSON(t, h.ChatHandler, `{"message":"What's your phone number?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Type      string          `json:"type"`
		Text      string          `json:"text"`
		Citations []core.Citation `json:"citations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rule", resp.Type)
	assert.Contains(t, resp.Text, "+1-800-555-1212")
	assert.NotNil(t, resp.Citations)
	assert.Empty(t, resp.Citations)

	// The rule path must never touch the retrieval collaborators.
	assert.False(t, retriever.called)
	assert.Contains(t, rec.Body.String(), `"citations":[]`)
}

func TestChatHandler_StreamsMetaThenDeltas(t *testing.T) {
	retriever := &fakeRetriever{passages: []store.RetrievedPassage{
		{Text: "Refunds take 5 days.", Source: "https://example.com/refunds", Score: 0.91234},
		{Text: "Shipping is free.", Source: "shipping.pdf", Score: 0.5},
	}}
	gen := &fakeGenerator{deltas: []string{"Refunds ", "take 5 days [1]."}}
	h := newTestHandler(retriever, &fakeIngestor{}, gen)

	rec := postJSON(t, h.ChatHandler, `{"message":"how long do refunds take"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	scanner := bufio.NewScanner(rec.Body)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 3)

	var meta struct {
		Type    string          `json:"type"`
		Sources []core.Citation `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &meta))
	assert.Equal(t, "meta", meta.Type)
	require.Len(t, meta.Sources, 2)
	assert.Equal(t, 1, meta.Sources[0].N)
	assert.Equal(t, "https://example.com/refunds", meta.Sources[0].Source)
	assert.Equal(t, 0.912, meta.Sources[0].Score)

	for i, want := range []string{"Refunds ", "take 5 days [1]."} {
		var delta struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		require.NoError(t, json.Unmarshal([]byte(lines[i+1]), &delta))
		assert.Equal(t, "delta", delta.Type)
		assert.Equal(t, want, delta.Text)
	}
}

func TestChatHandler_RetrieveFailure(t *testing.T) {
	retriever := &fakeRetriever{err: &store.IndexError{Op: "search", Detail: "unavailable"}}
	h := newTestHandler(retriever, &fakeIngestor{}, nil)

	rec := postJSON(t, h.ChatHandler, `{"message":"how long do refunds take"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIngestHandler_EmptyURLs(t *testing.T) {
	h := newTestHandler(&fakeRetriever{}, &fakeIngestor{}, nil)

	rec := postJSON(t, h.IngestHandler, `{"urls":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)
}

func TestIngestHandler_InvalidURL(t *testing.T) {
	ingestor := &fakeIngestor{}
	h := newTestHandler(&fakeRetriever{}, ingestor, nil)

	rec := postJSON(t, h.IngestHandler, `{"urls":["not a url"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid URL")
	assert.Nil(t, ingestor.urls)
}

func TestIngestHandler_URLsOK(t *testing.T) {
	ingestor := &fakeIngestor{added: 7}
	h := newTestHandler(&fakeRetriever{}, ingestor, nil)

	rec := postJSON(t, h.IngestHandler, `{"urls":["https://example.com/doc.txt"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OK    bool `json:"ok"`
		Added int  `json:"added"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 7, resp.Added)
	assert.Equal(t, []string{"https://example.com/doc.txt"}, ingestor.urls)
}

func TestIngestHandler_ValidationErrorIsClientError(t *testing.T) {
	ingestor := &fakeIngestor{err: &store.ValidationError{Reason: "vector size mismatch"}}
	h := newTestHandler(&fakeRetriever{}, ingestor, nil)

	rec := postJSON(t, h.IngestHandler, `{"urls":["https://example.com/doc.txt"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "vector size mismatch")
}

func TestIngestHandler_CollaboratorFailureIsServerError(t *testing.T) {
	ingestor := &fakeIngestor{err: errors.New("fetch returned status 500 Internal Server Error")}
	h := newTestHandler(&fakeRetriever{}, ingestor, nil)

	rec := postJSON(t, h.IngestHandler, `{"urls":["https://example.com/doc.txt"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":false`)
}

func TestIngestHandler_PDFUpload(t *testing.T) {
	ingestor := &fakeIngestor{added: 3}
	h := newTestHandler(&fakeRetriever{}, ingestor, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "guide.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 fake body"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.IngestHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "guide.pdf", ingestor.filename)
	assert.Equal(t, []byte("%PDF-1.4 fake body"), ingestor.data)
	assert.Contains(t, rec.Body.String(), `"added":3`)
}

func TestIngestHandler_MissingFile(t *testing.T) {
	h := newTestHandler(&fakeRetriever{}, &fakeIngestor{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.IngestHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No file uploaded")
}

func TestRouter_Health(t *testing.T) {
	h := newTestHandler(&fakeRetriever{}, &fakeIngestor{}, nil)
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
