package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/readr/rag/sources"
	"github.com/BaSui01/readr/types"
)

// SourceResult 外部来源解析结果.
type SourceResult struct {
	Title      string                   `json:"title"`      // 用户输入的原始标题
	Text       string                   `json:"text"`       // 各后端正文拼接（--- 分节）
	Records    []sources.ExternalRecord `json:"records"`    // 命中的原始记录
	Provenance []string                 `json:"provenance"` // 命中后端名，按固定顺序
}

// SourceRetriever 外部来源解析器.
// 对用户输入的作品标题生成检索变体，逐后端并行解析，容忍单后端失败.
type SourceRetriever struct {
	backends []sources.Backend
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSourceRetriever 创建来源解析器，backends 的顺序决定合并结果的顺序.
func NewSourceRetriever(backends []sources.Backend, timeout time.Duration, logger *zap.Logger) *SourceRetriever {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SourceRetriever{
		backends: backends,
		timeout:  timeout,
		logger:   logger.With(zap.String("component", "source_retriever")),
	}
}

// CleanTitle 规范化作品标题：去掉冠词前缀与标点，转小写，压缩空白.
func CleanTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")

	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(cleaned, article) {
			cleaned = cleaned[len(article):]
			break
		}
	}
	return strings.TrimSpace(cleaned)
}

// TitleVariations 生成标题检索变体，按尝试顺序排列、去重:
// 规范化标题、规范化标题 + " novel"、规范化标题 + " book"、原始输入.
func TitleVariations(title string) []string {
	clean := CleanTitle(title)
	candidates := []string{clean, clean + " novel", clean + " book", strings.TrimSpace(title)}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Resolve 解析作品标题.
// 所有后端都未命中时返回空结果与 SOURCE_NOT_FOUND 软错误，调用方可降级继续.
func (r *SourceRetriever) Resolve(ctx context.Context, title string) (*SourceResult, error) {
	variations := TitleVariations(title)
	result := &SourceResult{Title: title}
	if len(variations) == 0 {
		return result, types.NewError(types.ErrSourceNotFound, "empty title")
	}

	records := make([]*sources.ExternalRecord, len(r.backends))
	var wg sync.WaitGroup

	for i, backend := range r.backends {
		wg.Add(1)
		go func(i int, backend sources.Backend) {
			defer wg.Done()
			records[i] = r.resolveBackend(ctx, backend, variations)
		}(i, backend)
	}
	wg.Wait()

	var sections []string
	for _, rec := range records {
		if rec == nil {
			continue
		}
		result.Records = append(result.Records, *rec)
		result.Provenance = append(result.Provenance, rec.Source)
		sections = append(sections, rec.Text)
	}

	if len(sections) == 0 {
		r.logger.Info("no source matched", zap.String("title", title), zap.Strings("variations", variations))
		return result, types.NewError(types.ErrSourceNotFound, "no external source matched title: "+title)
	}

	result.Text = strings.Join(sections, "\n\n---\n\n")
	r.logger.Info("source resolved",
		zap.String("title", title),
		zap.Strings("provenance", result.Provenance),
		zap.Int("text_len", len(result.Text)),
	)
	return result, nil
}

// resolveBackend 在单个后端上依次尝试标题变体，首个命中即返回.
// 精确查找全部落空后回退到模糊搜索，取排名第一的候选条目.
func (r *SourceRetriever) resolveBackend(ctx context.Context, backend sources.Backend, variations []string) *sources.ExternalRecord {
	for _, v := range variations {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		rec, err := backend.Lookup(lookupCtx, v)
		cancel()

		if err == nil && rec != nil && strings.TrimSpace(rec.Text) != "" {
			return rec
		}
		if err != nil && !errors.Is(err, sources.ErrNotFound) {
			r.logger.Warn("backend lookup failed",
				zap.String("backend", backend.Name()),
				zap.String("variation", v),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			return nil
		}
	}

	for _, v := range variations {
		searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
		recs, err := backend.Search(searchCtx, v, 1)
		cancel()

		if err == nil && len(recs) > 0 && strings.TrimSpace(recs[0].Text) != "" {
			r.logger.Debug("fuzzy search resolved title",
				zap.String("backend", backend.Name()),
				zap.String("variation", v),
				zap.String("matched", recs[0].Title),
			)
			return &recs[0]
		}
		if err != nil && !errors.Is(err, sources.ErrNotFound) {
			r.logger.Warn("backend search failed",
				zap.String("backend", backend.Name()),
				zap.String("variation", v),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}
