package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/readr/config"
	"github.com/BaSui01/readr/llm"
	"github.com/BaSui01/readr/llm/embedding"
	"github.com/BaSui01/readr/rag/sources"
	"github.com/BaSui01/readr/types"
)

// stubProvider 按系统提示词路由的脚本化聊天 Provider.
type stubProvider struct {
	responses map[string]string
}

func newStubProvider() *stubProvider {
	return &stubProvider{responses: map[string]string{
		"Reader Agent":    "The text mentions the green light repeatedly.",
		"Context Agent":   "Set against the backdrop of the Roaring Twenties.",
		"Analysis Agent":  "The light works as a symbol of longing.",
		"Synthesis Agent": "Taken together, the green light embodies Gatsby's hope.",
	}}
}

func (s *stubProvider) route(req *llm.ChatRequest) string {
	system := req.Messages[0].Content
	for key, resp := range s.responses {
		if strings.Contains(system, key) {
			return resp
		}
	}
	return `{"themes": {}}`
}

func (s *stubProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{
		Model:   "stub",
		Choices: []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant, Content: s.route(req)}}},
	}, nil
}

func (s *stubProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	content := s.route(req)
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Delta: llm.Message{Role: llm.RoleAssistant, Content: content}}
	close(ch)
	return ch, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Name() string { return "stub" }

// stubEmbedder 固定维度的确定性嵌入.
type stubEmbedder struct{}

func (stubEmbedder) embed(text string) []float64 {
	v := make([]float64, 4)
	for i, r := range text {
		v[i%4] += float64(r)
	}
	return v
}

func (e stubEmbedder) Embed(ctx context.Context, req *embedding.Request) (*embedding.Response, error) {
	resp := &embedding.Response{Provider: "stub", Model: "stub"}
	for i, input := range req.Input {
		resp.Embeddings = append(resp.Embeddings, embedding.Data{Index: i, Embedding: e.embed(input)})
	}
	return resp, nil
}

func (e stubEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return e.embed(query), nil
}

func (e stubEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, len(documents))
	for i, doc := range documents {
		out[i] = e.embed(doc)
	}
	return out, nil
}

func (stubEmbedder) Name() string      { return "stub" }
func (stubEmbedder) Dimensions() int   { return 4 }
func (stubEmbedder) MaxBatchSize() int { return 16 }

// stubBackend 固定条目的知识源后端.
type stubBackend struct {
	hits map[string]string
}

func (b *stubBackend) Name() string { return "stub_source" }

func (b *stubBackend) Lookup(ctx context.Context, title string) (*sources.ExternalRecord, error) {
	text, ok := b.hits[strings.ToLower(title)]
	if !ok {
		return nil, sources.ErrNotFound
	}
	return &sources.ExternalRecord{Source: b.Name(), Title: title, Text: text}, nil
}

func (b *stubBackend) Search(ctx context.Context, query string, limit int) ([]sources.ExternalRecord, error) {
	for title, text := range b.hits {
		if strings.Contains(query, title) {
			return []sources.ExternalRecord{{Source: b.Name(), Title: title, Text: text}}, nil
		}
	}
	return nil, sources.ErrNotFound
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "test-key"
	return cfg
}

func newTestSession(t *testing.T, backends []sources.Backend) *Session {
	t.Helper()
	if backends == nil {
		// 空后端集合，避免构造真实网络后端
		backends = []sources.Backend{}
	}
	s, err := New(testConfig(), zap.NewNop(),
		WithProvider(newStubProvider()),
		WithEmbedder(stubEmbedder{}),
		WithBackends(backends),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProcessUploadAndAsk(t *testing.T) {
	s := newTestSession(t, nil)

	n, err := s.ProcessUpload(context.Background(), "gatsby.txt",
		[]byte("In my younger and more vulnerable years my father gave me some advice."), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "gatsby.txt", s.DocumentTitle())

	var streamed strings.Builder
	resp, err := s.Ask(context.Background(), "What does the green light mean?", types.ModeSymbolism,
		func(delta string) { streamed.WriteString(delta) })
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "hope")
	assert.Equal(t, resp.Answer, streamed.String())

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, types.RoleAssistant, history[1].Role)
}

func TestProcessQueryIndexesExternalSource(t *testing.T) {
	backend := &stubBackend{hits: map[string]string{
		"the great gatsby": "The Great Gatsby is a 1925 novel by F. Scott Fitzgerald.",
	}}
	s := newTestSession(t, []sources.Backend{backend})

	n, err := s.ProcessQuery(context.Background(), "The Great Gatsby")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.NotEmpty(t, s.DocumentTitle())
}

func TestProcessQueryNotFoundIsSoft(t *testing.T) {
	s := newTestSession(t, []sources.Backend{&stubBackend{}})

	_, err := s.ProcessQuery(context.Background(), "Xyzzyxnonexistentbook12345")
	require.Error(t, err)
	assert.Equal(t, types.ErrSourceNotFound, types.GetErrorCode(err))

	// 未命中后会话仍可问答
	resp, askErr := s.Ask(context.Background(), "What themes appear in modernist fiction?", types.ModeGeneral, nil)
	require.NoError(t, askErr)
	assert.NotEmpty(t, resp.Answer)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	s := newTestSession(t, nil)

	_, err := s.Ask(context.Background(), "   ", types.ModeGeneral, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Empty(t, s.History())
}

func TestInsightOperationsRequireDocument(t *testing.T) {
	s := newTestSession(t, nil)

	_, err := s.Visualize(context.Background(), types.ModeTheme)
	require.Error(t, err)
	assert.Equal(t, types.ErrEmptyDocument, types.GetErrorCode(err))

	_, err = s.StudyGuide(context.Background())
	assert.Equal(t, types.ErrEmptyDocument, types.GetErrorCode(err))
}

func TestVisualizeAfterUpload(t *testing.T) {
	s := newTestSession(t, nil)

	_, err := s.ProcessUpload(context.Background(), "moby.txt",
		[]byte("Call me Ishmael. Some years ago I thought I would sail about a little."), "text/plain")
	require.NoError(t, err)

	data, err := s.Visualize(context.Background(), types.ModeTheme)
	require.NoError(t, err)
	assert.Contains(t, data, "themes")
}

func TestUploadReplacesDocument(t *testing.T) {
	s := newTestSession(t, nil)

	_, err := s.ProcessUpload(context.Background(), "first.txt", []byte("First document text."), "text/plain")
	require.NoError(t, err)
	_, err = s.ProcessUpload(context.Background(), "second.txt", []byte("Second document text."), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, "second.txt", s.DocumentTitle())
}
