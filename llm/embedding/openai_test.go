package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEmbedServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req openAIEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := openAIEmbedResponse{Model: req.Model}
		for i := range req.Input {
			vec := make([]float64, dims)
			vec[i%dims] = 1
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float64 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbedQuery(t *testing.T) {
	srv := newEmbedServer(t, 4)
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, APIKey: "test", Dimensions: 4})

	vec, err := p.EmbedQuery(context.Background(), "what is the green light")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("len(vec) = %d, want 4", len(vec))
	}
}

func TestEmbedDocumentsBatching(t *testing.T) {
	srv := newEmbedServer(t, 4)
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, APIKey: "test", Dimensions: 4})
	p.BaseProvider = NewBaseProvider(BaseConfig{
		Name:       "openai-embedding",
		BaseURL:    srv.URL,
		APIKey:     "test",
		Dimensions: 4,
		MaxBatch:   2, // force multiple batches
	})

	docs := []string{"a", "b", "c", "d", "e"}
	vecs, err := p.EmbedDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}
	if len(vecs) != len(docs) {
		t.Errorf("len(vecs) = %d, want %d", len(vecs), len(docs))
	}
}

func TestEmbedUpstreamErrorMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, APIKey: "test"})
	_, err := p.EmbedQuery(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error")
	}
}
