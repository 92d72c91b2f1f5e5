package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/micic-mihajlo/semantic-cache/config"
	"github.com/micic-mihajlo/semantic-cache/internal/backend"
	"github.com/micic-mihajlo/semantic-cache/internal/breaker"
	"github.com/micic-mihajlo/semantic-cache/internal/embedding"
	"github.com/micic-mihajlo/semantic-cache/internal/httpapi"
	"github.com/micic-mihajlo/semantic-cache/internal/metrics"
	"github.com/micic-mihajlo/semantic-cache/internal/pipeline"
	"github.com/micic-mihajlo/semantic-cache/internal/store"
)

func newTestRouter() http.Handler {
	cfg := &config.Config{MaxBodyBytes: 64 * 1024, BackendTimeout: 5 * time.Second}
	reg := metrics.New()
	storeBr := breaker.New("store", breaker.Config{})
	backendBr := breaker.New("backend", breaker.Config{})

	pl := &pipeline.Pipeline{
		Embedder: embedding.NewHashEmbedder(384),
		Store:    store.NewMemStore(0),
		Backend:  backend.NewBreakerGenerator(backend.EchoGenerator{}, backendBr),
		Metrics:  reg,
	}
	return httpapi.NewRouter(cfg, discardLogger(), pl, reg, storeBr, backendBr)
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestQueryEndpointHappyPath(t *testing.T) {
	r := newTestRouter()
	payload, _ := json.Marshal(map[string]string{"query": "what is the capital of France"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result pipeline.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Metadata.Source != "backend" {
		t.Fatalf("expected first query to miss cache, got %q", result.Metadata.Source)
	}
}

func TestQueryEndpointWhitespaceQueryReturns422(t *testing.T) {
	r := newTestRouter()
	payload, _ := json.Marshal(map[string]string{"query": "   "})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestQueryEndpointMalformedBodyReturns422(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for malformed JSON, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	r := newTestRouter()
	payload, _ := json.Marshal(map[string]string{"query": "a test query"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(payload))
	r.ServeHTTP(httptest.NewRecorder(), req)

	statsReq := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, statsReq)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode stats body: %v", err)
	}
	if _, ok := body["metrics"]; !ok {
		t.Fatalf("expected a metrics section in /stats response")
	}
	if _, ok := body["breakers"]; !ok {
		t.Fatalf("expected a breakers section in /stats response")
	}
}
