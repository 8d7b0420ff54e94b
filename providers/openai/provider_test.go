package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/readr/llm"
	"go.uber.org/zap"
)

func TestCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var body wireRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", body.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "The green light symbolizes hope."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`)
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, APIKey: "sk-test", DefaultModel: "gpt-4o-mini"}, zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "What does the green light mean?"}},
	})
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if got := llm.FirstContent(resp); got != "The green light symbolizes hope." {
		t.Errorf("content = %q", got)
	}
	if resp.Usage.TotalTokens != 19 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
}

func TestCompletionErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		code   llm.ErrorCode
	}{
		{http.StatusUnauthorized, llm.ErrUnauthorized},
		{http.StatusTooManyRequests, llm.ErrRateLimited},
		{http.StatusBadRequest, llm.ErrInvalidRequest},
		{http.StatusInternalServerError, llm.ErrUpstreamError},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			fmt.Fprintf(w, `{"error":{"message":"nope"}}`)
		}))
		p := New(Config{BaseURL: srv.URL, APIKey: "k"}, nil)
		_, err := p.Completion(context.Background(), &llm.ChatRequest{})
		srv.Close()

		llmErr, ok := err.(*llm.Error)
		if !ok {
			t.Fatalf("status %d: expected *llm.Error, got %T", tc.status, err)
		}
		if llmErr.Code != tc.code {
			t.Errorf("status %d: code = %s, want %s", tc.status, llmErr.Code, tc.code)
		}
		if llmErr.Message != "nope" {
			t.Errorf("status %d: message = %q", tc.status, llmErr.Message)
		}
	}
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"c1","model":"m","choices":[{"index":0,"delta":{"content":"Daisy "}}]}`,
			`{"id":"c1","model":"m","choices":[{"index":0,"delta":{"content":"Buchanan"},"finish_reason":"stop"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, APIKey: "k", DefaultModel: "m"}, zap.NewNop())

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "who?"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("chunk error: %v", chunk.Err)
		}
		sb.WriteString(chunk.Delta.Content)
	}
	if sb.String() != "Daisy Buchanan" {
		t.Errorf("assembled = %q", sb.String())
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			fmt.Fprint(w, `{"data":[]}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, APIKey: "k"}, zap.NewNop())
	hs, err := p.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if !hs.Healthy {
		t.Error("expected healthy")
	}
}
