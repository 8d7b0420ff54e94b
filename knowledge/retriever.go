package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/readr/internal/metrics"
	"github.com/BaSui01/readr/llm/embedding"
	"github.com/BaSui01/readr/rag"
	"github.com/BaSui01/readr/rag/sources"
	"github.com/BaSui01/readr/types"
)

// OpKind 外部知识操作类型，同时作为缓存键前缀.
type OpKind string

const (
	OpEncyclopedia      OpKind = "wiki" // 百科条目
	OpLiteraryAnalysis  OpKind = "lit"  // 文学批评与主题分析
	OpHistoricalContext OpKind = "hist" // 历史与时代背景
)

// Retriever 外部知识检索器.
// 在来源解析之上叠加记忆化缓存与并发去重：
// 同一 (操作, 查询) 的并发请求只触发一次上游调用，失败结果不缓存.
// 缓存中保存原始记录（JSON），供 BuildIndex 按块重新索引.
type Retriever struct {
	resolver *rag.SourceRetriever
	backends []sources.Backend
	cache    Cache
	splitter *rag.Splitter
	embedder embedding.Provider
	group    singleflight.Group
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewRetriever 创建知识检索器.
// resolver 负责标题解析；backends 负责自由文本搜索；
// splitter 为 nil 时使用默认切分配置；embedder 为 nil 时 BuildIndex 退化为空索引；
// collector 可为 nil.
func NewRetriever(resolver *rag.SourceRetriever, backends []sources.Backend, cache Cache, splitter *rag.Splitter, embedder embedding.Provider, collector *metrics.Collector, logger *zap.Logger) *Retriever {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if splitter == nil {
		splitter = rag.NewSplitter(rag.DefaultSplitterConfig(), nil, logger)
	}
	return &Retriever{
		resolver: resolver,
		backends: backends,
		cache:    cache,
		splitter: splitter,
		embedder: embedder,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "knowledge")),
	}
}

// Encyclopedia 获取作品的百科记录.
func (r *Retriever) Encyclopedia(ctx context.Context, title string) ([]sources.ExternalRecord, error) {
	return r.fetchOrBuild(ctx, OpEncyclopedia, title, func(ctx context.Context) ([]sources.ExternalRecord, error) {
		result, err := r.resolver.Resolve(ctx, title)
		if err != nil {
			return nil, err
		}
		return result.Records, nil
	})
}

// LiteraryAnalysis 获取围绕作品的文学批评与主题讨论记录.
func (r *Retriever) LiteraryAnalysis(ctx context.Context, title string) ([]sources.ExternalRecord, error) {
	return r.fetchOrBuild(ctx, OpLiteraryAnalysis, title, func(ctx context.Context) ([]sources.ExternalRecord, error) {
		return r.searchBackends(ctx, rag.CleanTitle(title)+" literary analysis themes criticism")
	})
}

// HistoricalContext 获取作品的历史与时代背景记录.
func (r *Retriever) HistoricalContext(ctx context.Context, title string) ([]sources.ExternalRecord, error) {
	return r.fetchOrBuild(ctx, OpHistoricalContext, title, func(ctx context.Context) ([]sources.ExternalRecord, error) {
		return r.searchBackends(ctx, rag.CleanTitle(title)+" historical context time period")
	})
}

// Search 对自由文本问题做百科搜索（通用分析模式），结果同样记忆化.
func (r *Retriever) Search(ctx context.Context, query string) ([]sources.ExternalRecord, error) {
	return r.fetchOrBuild(ctx, OpEncyclopedia, query, func(ctx context.Context) ([]sources.ExternalRecord, error) {
		return r.searchBackends(ctx, query)
	})
}

// ResolveSource 解析作品来源（Resolve 包装），返回完整结果.
func (r *Retriever) ResolveSource(ctx context.Context, title string) (*rag.SourceResult, error) {
	return r.resolver.Resolve(ctx, title)
}

// BuildIndex 将外部记录切分并建立临时文档索引.
// 每条记录的标题、摘要与正文拼接后参与切分；
// 记录为空或未配置嵌入时返回 nil 索引，调用方按无外部上下文处理.
func (r *Retriever) BuildIndex(ctx context.Context, records []sources.ExternalRecord) (*rag.DocumentIndex, error) {
	if len(records) == 0 || r.embedder == nil {
		return nil, nil
	}

	var chunks []rag.Chunk
	for _, rec := range records {
		chunks = append(chunks, r.splitter.SplitChunks(recordText(rec), rec.Source)...)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	index := rag.NewDocumentIndex(r.embedder, r.logger)
	if err := index.Add(ctx, chunks); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.RecordChunksIndexed(len(chunks))
	}
	return index, nil
}

// recordText 拼接记录中可用的文本字段.
func recordText(rec sources.ExternalRecord) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{rec.Title, rec.Summary, rec.Text} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// fetchOrBuild 缓存优先的获取路径：命中直接返回，
// 未命中经 singleflight 去重后调用 fn，仅成功结果入缓存.
func (r *Retriever) fetchOrBuild(ctx context.Context, op OpKind, query string, fn func(context.Context) ([]sources.ExternalRecord, error)) ([]sources.ExternalRecord, error) {
	key := CacheKey(op, query)

	if cached, err := r.cache.Get(key); err == nil {
		var records []sources.ExternalRecord
		if jsonErr := json.Unmarshal([]byte(cached), &records); jsonErr == nil {
			if r.metrics != nil {
				r.metrics.RecordCacheHit(string(op))
			}
			r.logger.Debug("knowledge cache hit", zap.String("key", key))
			return records, nil
		}
		// 损坏的缓存条目按未命中处理
		r.logger.Warn("discarding corrupt cache entry", zap.String("key", key))
	} else if !IsCacheMiss(err) {
		// 缓存层故障时退化为直接获取
		r.logger.Warn("knowledge cache unavailable", zap.String("key", key), zap.Error(err))
	}
	if r.metrics != nil {
		r.metrics.RecordCacheMiss(string(op))
	}

	value, err, _ := r.group.Do(key, func() (any, error) {
		records, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, types.NewError(types.ErrSourceNotFound, "no content for query: "+query)
		}
		if encoded, jsonErr := json.Marshal(records); jsonErr == nil {
			if setErr := r.cache.Set(key, string(encoded)); setErr != nil {
				r.logger.Warn("knowledge cache write failed", zap.String("key", key), zap.Error(setErr))
			}
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]sources.ExternalRecord), nil
}

// searchBackends 在所有后端上搜索并汇总记录，全部落空时返回软错误.
func (r *Retriever) searchBackends(ctx context.Context, query string) ([]sources.ExternalRecord, error) {
	var records []sources.ExternalRecord
	for _, backend := range r.backends {
		recs, err := backend.Search(ctx, query, 2)
		if err != nil {
			if !errors.Is(err, sources.ErrNotFound) {
				r.logger.Warn("backend search failed",
					zap.String("backend", backend.Name()),
					zap.String("query", query),
					zap.Error(err),
				)
			}
			if r.metrics != nil {
				r.metrics.RecordSourceLookup(backend.Name(), "miss")
			}
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordSourceLookup(backend.Name(), "hit")
		}
		records = append(records, recs...)
	}
	if len(records) == 0 {
		return nil, types.NewError(types.ErrSourceNotFound, "no backend matched query: "+query)
	}
	return records, nil
}

// IndexResult 将来源解析结果切分并写入文档索引，返回写入块数.
func IndexResult(ctx context.Context, result *rag.SourceResult, splitter *rag.Splitter, index *rag.DocumentIndex) (int, error) {
	if result == nil || strings.TrimSpace(result.Text) == "" {
		return 0, nil
	}
	var chunks []rag.Chunk
	for _, rec := range result.Records {
		chunks = append(chunks, splitter.SplitChunks(rec.Text, rec.Source)...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := index.Add(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
