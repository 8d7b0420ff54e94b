package knowledge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/readr/llm/embedding"
	"github.com/BaSui01/readr/rag"
	"github.com/BaSui01/readr/rag/sources"
	"github.com/BaSui01/readr/types"
)

// countingBackend 记录调用次数的内存后端.
type countingBackend struct {
	name    string
	text    string
	fail    bool
	lookups atomic.Int64
}

func (b *countingBackend) Name() string { return b.name }

func (b *countingBackend) Lookup(ctx context.Context, title string) (*sources.ExternalRecord, error) {
	b.lookups.Add(1)
	if b.fail {
		return nil, sources.ErrNotFound
	}
	return &sources.ExternalRecord{Source: b.name, Title: title, Text: b.text}, nil
}

func (b *countingBackend) Search(ctx context.Context, query string, limit int) ([]sources.ExternalRecord, error) {
	b.lookups.Add(1)
	if b.fail {
		return nil, sources.ErrNotFound
	}
	return []sources.ExternalRecord{{Source: b.name, Title: query, Text: b.text}}, nil
}

// keywordEmbedder 按关键词命中生成 one-hot 向量.
type keywordEmbedder struct {
	keywords []string
}

func (e keywordEmbedder) embed(text string) []float64 {
	v := make([]float64, len(e.keywords)+1)
	lower := strings.ToLower(text)
	for i, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			v[i] = 1
		}
	}
	v[len(e.keywords)] = 0.1
	return v
}

func (e keywordEmbedder) Embed(ctx context.Context, req *embedding.Request) (*embedding.Response, error) {
	resp := &embedding.Response{Provider: "keyword", Model: "keyword"}
	for i, input := range req.Input {
		resp.Embeddings = append(resp.Embeddings, embedding.Data{Index: i, Embedding: e.embed(input)})
	}
	return resp, nil
}

func (e keywordEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return e.embed(query), nil
}

func (e keywordEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, len(documents))
	for i, doc := range documents {
		out[i] = e.embed(doc)
	}
	return out, nil
}

func (keywordEmbedder) Name() string      { return "keyword" }
func (e keywordEmbedder) Dimensions() int { return len(e.keywords) + 1 }
func (keywordEmbedder) MaxBatchSize() int { return 64 }

func newTestRetriever(b *countingBackend) *Retriever {
	resolver := rag.NewSourceRetriever([]sources.Backend{b}, time.Second, zap.NewNop())
	emb := keywordEmbedder{keywords: []string{"gatsby", "jazz"}}
	return NewRetriever(resolver, []sources.Backend{b}, NewMemoryCache(), nil, emb, nil, zap.NewNop())
}

func TestCacheKeyNormalization(t *testing.T) {
	a := CacheKey(OpEncyclopedia, "The Great  Gatsby")
	b := CacheKey(OpEncyclopedia, "the great gatsby")
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if a != "wiki:the great gatsby" {
		t.Errorf("key = %q", a)
	}
	if CacheKey(OpLiteraryAnalysis, "x") == CacheKey(OpHistoricalContext, "x") {
		t.Error("different ops must produce different keys")
	}
}

func TestEncyclopediaMemoized(t *testing.T) {
	b := &countingBackend{name: "wikipedia", text: "Entry text."}
	r := newTestRetriever(b)

	for i := 0; i < 3; i++ {
		got, err := r.Encyclopedia(context.Background(), "The Great Gatsby")
		if err != nil {
			t.Fatalf("Encyclopedia: %v", err)
		}
		if len(got) != 1 || got[0].Text != "Entry text." {
			t.Errorf("got %+v", got)
		}
	}
	// 首次解析后命中缓存，后端只被查过一次
	if n := b.lookups.Load(); n != 1 {
		t.Errorf("backend lookups = %d, want 1", n)
	}
}

func TestFailuresNotCached(t *testing.T) {
	b := &countingBackend{name: "wikipedia", fail: true}
	r := newTestRetriever(b)

	_, err := r.LiteraryAnalysis(context.Background(), "Unknown Work")
	if types.GetErrorCode(err) != types.ErrSourceNotFound {
		t.Fatalf("err = %v", err)
	}
	first := b.lookups.Load()

	// 后端恢复后应重新获取，而不是返回缓存的失败
	b.fail = false
	b.text = "Recovered analysis."
	got, err := r.LiteraryAnalysis(context.Background(), "Unknown Work")
	if err != nil {
		t.Fatalf("LiteraryAnalysis after recovery: %v", err)
	}
	if len(got) == 0 || got[0].Text != "Recovered analysis." {
		t.Errorf("got %+v", got)
	}
	if b.lookups.Load() <= first {
		t.Error("expected a fresh backend call after failure")
	}
}

func TestConcurrentFetchDeduplicated(t *testing.T) {
	b := &countingBackend{name: "wikipedia", text: "Slow entry."}
	r := newTestRetriever(b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.HistoricalContext(context.Background(), "Beloved"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// singleflight 合并并发请求；缓存尚未写入时允许少量穿透
	if n := b.lookups.Load(); n > 3 {
		t.Errorf("backend lookups = %d, want <= 3", n)
	}
}

func TestBuildIndexRanksRelevantChunks(t *testing.T) {
	r := newTestRetriever(&countingBackend{name: "wikipedia"})

	records := []sources.ExternalRecord{
		{Source: "wikipedia", Title: "The Great Gatsby", Summary: "A novel about Gatsby.",
			Text: "Gatsby throws lavish parties at his mansion."},
		{Source: "wikipedia", Title: "Jazz Age",
			Text: "The Jazz Age was a period in the 1920s."},
		{Source: "wikipedia", Title: "Whaling",
			Text: "Whaling voyages lasted for years at sea."},
	}

	index, err := r.BuildIndex(context.Background(), records)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if index == nil || index.Len() == 0 {
		t.Fatal("expected a populated index")
	}

	scored, err := index.Query(context.Background(), "Who is Gatsby?", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(scored) == 0 || len(scored) > 3 {
		t.Fatalf("got %d chunks, want 1..3", len(scored))
	}
	if !strings.Contains(strings.ToLower(scored[0].Chunk.Text), "gatsby") {
		t.Errorf("top chunk = %q, want Gatsby content first", scored[0].Chunk.Text)
	}
}

func TestBuildIndexEmptyInputs(t *testing.T) {
	r := newTestRetriever(&countingBackend{name: "wikipedia"})

	index, err := r.BuildIndex(context.Background(), nil)
	if err != nil || index != nil {
		t.Errorf("BuildIndex(nil) = %v, %v, want nil index", index, err)
	}

	// 未配置嵌入时退化为空索引
	noEmb := NewRetriever(nil, nil, NewMemoryCache(), nil, nil, nil, zap.NewNop())
	index, err = noEmb.BuildIndex(context.Background(), []sources.ExternalRecord{{Title: "x", Text: "y"}})
	if err != nil || index != nil {
		t.Errorf("BuildIndex without embedder = %v, %v, want nil index", index, err)
	}
}

func TestMemoryCacheBasics(t *testing.T) {
	c := NewMemoryCache()
	if _, err := c.Get("k"); !IsCacheMiss(err) {
		t.Error("expected cache miss")
	}
	if err := c.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get("k")
	if err != nil || got != "v" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestRetrieverToleratesCacheFailure(t *testing.T) {
	b := &countingBackend{name: "wikipedia", text: "Entry."}
	resolver := rag.NewSourceRetriever([]sources.Backend{b}, time.Second, zap.NewNop())
	r := NewRetriever(resolver, []sources.Backend{b}, brokenCache{}, nil, nil, nil, zap.NewNop())

	got, err := r.Encyclopedia(context.Background(), "Beloved")
	if err != nil {
		t.Fatalf("Encyclopedia: %v", err)
	}
	if len(got) != 1 || got[0].Text != "Entry." {
		t.Errorf("got %+v", got)
	}
}

type brokenCache struct{}

func (brokenCache) Get(string) (string, error) { return "", errors.New("cache down") }
func (brokenCache) Set(string, string) error   { return errors.New("cache down") }
func (brokenCache) Close() error               { return nil }
