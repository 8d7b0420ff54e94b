// Package session 组装完整的文学分析会话：
// 文档摄取与索引、外部知识检索、多智能体问答与结构化洞察，
// 并维护只追加的对话历史.
package session

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/readr/agent"
	"github.com/BaSui01/readr/config"
	"github.com/BaSui01/readr/ingest"
	"github.com/BaSui01/readr/insight"
	"github.com/BaSui01/readr/internal/metrics"
	"github.com/BaSui01/readr/knowledge"
	"github.com/BaSui01/readr/llm"
	"github.com/BaSui01/readr/llm/embedding"
	"github.com/BaSui01/readr/llm/retry"
	"github.com/BaSui01/readr/providers/openai"
	"github.com/BaSui01/readr/rag"
	"github.com/BaSui01/readr/rag/sources"
	"github.com/BaSui01/readr/types"
)

// Session 一次文学分析会话.
// 并发安全；历史只追加，当前文档可整体替换.
type Session struct {
	cfg       *config.Config
	provider  llm.Provider
	splitter  *rag.Splitter
	index     *rag.DocumentIndex
	knowledge *knowledge.Retriever
	orch      *agent.Orchestrator
	generator *insight.Generator
	cache     knowledge.Cache
	collector *metrics.Collector
	logger    *zap.Logger

	mu       sync.RWMutex
	history  []types.Message
	docText  string
	docTitle string
}

// Option 覆盖装配时的默认部件，主要用于测试与自定义后端.
type Option func(*overrides)

type overrides struct {
	provider llm.Provider
	embedder embedding.Provider
	backends []sources.Backend
	cache    knowledge.Cache
}

// WithProvider 使用外部构建的聊天 Provider.
func WithProvider(p llm.Provider) Option {
	return func(o *overrides) { o.provider = p }
}

// WithEmbedder 使用外部构建的嵌入 Provider.
func WithEmbedder(e embedding.Provider) Option {
	return func(o *overrides) { o.embedder = e }
}

// WithBackends 使用自定义知识源后端集合.
func WithBackends(backends []sources.Backend) Option {
	return func(o *overrides) { o.backends = backends }
}

// WithCache 使用自定义缓存实现.
func WithCache(cache knowledge.Cache) Option {
	return func(o *overrides) { o.cache = cache }
}

// New 按配置装配会话.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var ov overrides
	for _, opt := range opts {
		opt(&ov)
	}

	provider := ov.provider
	if provider == nil {
		policy := retry.DefaultPolicy()
		policy.MaxRetries = cfg.LLM.MaxRetries
		provider = llm.WithRetry(openai.New(openai.Config{
			ProviderName: cfg.LLM.Provider,
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.LLM.Model,
			Timeout:      cfg.LLM.Timeout,
		}, logger), policy, logger)
	}

	embedder := ov.embedder
	if embedder == nil {
		embedKey := cfg.Embedding.APIKey
		if embedKey == "" {
			embedKey = cfg.LLM.APIKey
		}
		embedder = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKey:     embedKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
	}

	splitter, err := buildSplitter(cfg, logger)
	if err != nil {
		return nil, err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector("readr", logger)
	}

	cache := ov.cache
	if cache == nil {
		cache, err = buildCache(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	backends := ov.backends
	if backends == nil {
		backends = buildBackends(cfg, logger)
	}
	resolver := rag.NewSourceRetriever(backends, cfg.Sources.Timeout, logger)
	kb := knowledge.NewRetriever(resolver, backends, cache, splitter, embedder, collector, logger)

	index := rag.NewDocumentIndex(embedder, logger)

	orch := agent.NewOrchestrator(provider, index, kb, agent.Config{
		Model:        cfg.LLM.Model,
		Temperature:  float32(cfg.LLM.Temperature),
		MaxTokens:    cfg.LLM.MaxTokens,
		TopK:         cfg.Retrieval.TopK,
		StageTimeout: cfg.Orchestrator.StageTimeout,
		Stream:       cfg.Orchestrator.StreamEnabled,
	}, collector, logger)

	return &Session{
		cfg:       cfg,
		provider:  provider,
		splitter:  splitter,
		index:     index,
		knowledge: kb,
		orch:      orch,
		generator: insight.NewGenerator(provider, cfg.LLM.Model, logger),
		cache:     cache,
		collector: collector,
		logger:    logger.With(zap.String("component", "session")),
	}, nil
}

func buildSplitter(cfg *config.Config, logger *zap.Logger) (*rag.Splitter, error) {
	var lengthFn rag.LengthFunc
	if cfg.Splitter.LengthUnit == "tokens" {
		fn, err := rag.NewTiktokenLength(cfg.Splitter.Encoding)
		if err != nil {
			return nil, err
		}
		lengthFn = fn
	}
	return rag.NewSplitter(rag.SplitterConfig{
		ChunkSize:    cfg.Splitter.ChunkSize,
		ChunkOverlap: cfg.Splitter.ChunkOverlap,
	}, lengthFn, logger), nil
}

func buildCache(cfg *config.Config, logger *zap.Logger) (knowledge.Cache, error) {
	if cfg.Cache.Backend == "redis" {
		return knowledge.NewRedisCache(knowledge.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      cfg.Cache.TTL,
			PoolSize: cfg.Cache.Redis.PoolSize,
		}, logger)
	}
	return knowledge.NewMemoryCache(), nil
}

func buildBackends(cfg *config.Config, logger *zap.Logger) []sources.Backend {
	var backends []sources.Backend
	if cfg.Sources.Wikipedia.Enabled {
		wikiCfg := sources.DefaultWikipediaConfig()
		if cfg.Sources.Wikipedia.BaseURL != "" {
			wikiCfg.BaseURL = cfg.Sources.Wikipedia.BaseURL
		}
		if cfg.Sources.Wikipedia.RateLimit > 0 {
			wikiCfg.RateLimit = cfg.Sources.Wikipedia.RateLimit
		}
		wikiCfg.Timeout = cfg.Sources.Timeout
		backends = append(backends, sources.NewWikipediaSource(wikiCfg, logger))
	}
	if cfg.Sources.GoogleBooks.Enabled {
		booksCfg := sources.DefaultGoogleBooksConfig()
		if cfg.Sources.GoogleBooks.BaseURL != "" {
			booksCfg.BaseURL = cfg.Sources.GoogleBooks.BaseURL
		}
		if cfg.Sources.GoogleBooks.RateLimit > 0 {
			booksCfg.RateLimit = cfg.Sources.GoogleBooks.RateLimit
		}
		booksCfg.APIKey = cfg.Sources.GoogleBooks.APIKey
		booksCfg.Timeout = cfg.Sources.Timeout
		backends = append(backends, sources.NewGoogleBooksSource(booksCfg, logger))
	}
	return backends
}

// ProcessUpload 摄取上传文件：抽取文本、切分并重建文档索引，返回块数.
func (s *Session) ProcessUpload(ctx context.Context, name string, data []byte, contentType string) (int, error) {
	text, err := ingest.ExtractText(data, contentType)
	if err != nil {
		return 0, err
	}

	chunks := s.splitter.SplitChunks(text, name)
	if len(chunks) == 0 {
		return 0, types.NewError(types.ErrEmptyDocument, "document produced no chunks: "+name)
	}

	s.index.Clear()
	if err := s.index.Add(ctx, chunks); err != nil {
		return 0, err
	}
	if s.collector != nil {
		s.collector.RecordChunksIndexed(len(chunks))
	}

	s.mu.Lock()
	s.docText = text
	s.docTitle = name
	s.mu.Unlock()

	s.logger.Info("document indexed",
		zap.String("name", name),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// ProcessQuery 按标题检索外部来源并建立文档索引.
// 来源未命中时索引保持为空并返回软错误，会话仍可继续问答.
func (s *Session) ProcessQuery(ctx context.Context, title string) (int, error) {
	result, err := s.knowledge.ResolveSource(ctx, title)
	if err != nil {
		if types.GetErrorCode(err) == types.ErrSourceNotFound {
			s.logger.Warn("source not found, continuing without document",
				zap.String("title", title),
			)
		}
		return 0, err
	}

	s.index.Clear()
	n, err := knowledge.IndexResult(ctx, result, s.splitter, s.index)
	if err != nil {
		return 0, err
	}
	if s.collector != nil {
		s.collector.RecordChunksIndexed(n)
	}

	s.mu.Lock()
	s.docText = result.Text
	s.docTitle = result.Title
	s.mu.Unlock()

	s.logger.Info("external source indexed",
		zap.String("title", result.Title),
		zap.Int("chunks", n),
	)
	return n, nil
}

// Ask 执行一轮多智能体问答，成功后将问答追加进历史.
func (s *Session) Ask(ctx context.Context, question string, mode types.AnalysisMode, sink agent.Sink) (*agent.Response, error) {
	if strings.TrimSpace(question) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "empty question")
	}

	s.mu.RLock()
	history := make([]types.Message, len(s.history))
	copy(history, s.history)
	s.mu.RUnlock()

	resp, err := s.orch.Run(ctx, &agent.Request{
		Question: question,
		Mode:     mode,
		History:  history,
	}, sink)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.history = append(s.history,
		types.NewUserMessage(question),
		types.NewAssistantMessage(resp.Answer),
	)
	s.mu.Unlock()
	return resp, nil
}

// Visualize 为当前文档生成指定模式的可视化数据.
func (s *Session) Visualize(ctx context.Context, mode types.AnalysisMode) (map[string]any, error) {
	text, err := s.currentText()
	if err != nil {
		return nil, err
	}
	return s.generator.Visualization(ctx, text, mode)
}

// StudyGuide 为当前文档生成学习指南.
func (s *Session) StudyGuide(ctx context.Context) (map[string]any, error) {
	text, err := s.currentText()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	title := s.docTitle
	s.mu.RUnlock()
	return s.generator.StudyGuide(ctx, text, title, "")
}

// Compare 将当前文档与另一文本做对比分析.
func (s *Session) Compare(ctx context.Context, otherText string) (map[string]any, error) {
	text, err := s.currentText()
	if err != nil {
		return nil, err
	}
	return s.generator.CompareWorks(ctx, text, otherText)
}

// Progress 计算当前文档的阅读进度与情境洞察.
func (s *Session) Progress(ctx context.Context, position int) (*insight.Progress, error) {
	text, err := s.currentText()
	if err != nil {
		return nil, err
	}
	return s.generator.TrackProgress(ctx, text, position)
}

// History 返回对话历史的副本.
func (s *Session) History() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Message, len(s.history))
	copy(out, s.history)
	return out
}

// DocumentTitle 返回当前文档标题，未加载文档时为空.
func (s *Session) DocumentTitle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docTitle
}

// Metrics 返回指标收集器，未启用指标时为 nil.
func (s *Session) Metrics() *metrics.Collector {
	return s.collector
}

// Close 释放会话持有的资源.
func (s *Session) Close() error {
	return s.cache.Close()
}

func (s *Session) currentText() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if strings.TrimSpace(s.docText) == "" {
		return "", types.NewError(types.ErrEmptyDocument, "no document loaded")
	}
	return s.docText, nil
}
