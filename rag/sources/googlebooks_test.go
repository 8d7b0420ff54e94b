package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func booksServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/volumes" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestGoogleBooksLookup(t *testing.T) {
	srv := booksServer(t, `{
		"totalItems": 1,
		"items": [{
			"volumeInfo": {
				"title": "The Great Gatsby",
				"authors": ["F. Scott Fitzgerald"],
				"publishedDate": "1925",
				"description": "A portrait of the Jazz Age.",
				"categories": ["Fiction"],
				"infoLink": "https://books.example/gatsby"
			}
		}]
	}`)
	defer srv.Close()

	g := NewGoogleBooksSource(GoogleBooksConfig{BaseURL: srv.URL, RateLimit: 100}, zap.NewNop())
	rec, err := g.Lookup(context.Background(), "The Great Gatsby")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.Kind != KindBook {
		t.Errorf("Kind = %s", rec.Kind)
	}
	if rec.Summary != "A portrait of the Jazz Age." {
		t.Errorf("Summary = %q", rec.Summary)
	}
	if !strings.Contains(rec.Text, "F. Scott Fitzgerald") {
		t.Errorf("Text should carry author metadata, got %q", rec.Text)
	}
	if !strings.Contains(rec.Text, "Published: 1925") {
		t.Errorf("Text should carry publication date, got %q", rec.Text)
	}
}

func TestGoogleBooksNotFound(t *testing.T) {
	srv := booksServer(t, `{"totalItems": 0}`)
	defer srv.Close()

	g := NewGoogleBooksSource(GoogleBooksConfig{BaseURL: srv.URL, RateLimit: 100}, zap.NewNop())
	_, err := g.Lookup(context.Background(), "Xyzzy")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGoogleBooksSkipsItemsWithoutDescription(t *testing.T) {
	srv := booksServer(t, `{
		"totalItems": 2,
		"items": [
			{"volumeInfo": {"title": "Bare Entry"}},
			{"volumeInfo": {"title": "Full Entry", "description": "Has a description."}}
		]
	}`)
	defer srv.Close()

	g := NewGoogleBooksSource(GoogleBooksConfig{BaseURL: srv.URL, RateLimit: 100}, zap.NewNop())
	records, err := g.Search(context.Background(), "entry", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Full Entry" {
		t.Errorf("records = %+v", records)
	}
}
