package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/readr/internal/tlsutil"
)

// WikipediaConfig 配置 Wikipedia 后端.
type WikipediaConfig struct {
	BaseURL   string        `json:"base_url"`   // MediaWiki API 端点
	Timeout   time.Duration `json:"timeout"`    // 单请求超时
	RateLimit float64       `json:"rate_limit"` // 每秒请求数上限
	UserAgent string        `json:"user_agent"` // MediaWiki 要求自报 UA
}

// DefaultWikipediaConfig 返回 Wikipedia 后端默认配置.
func DefaultWikipediaConfig() WikipediaConfig {
	return WikipediaConfig{
		BaseURL:   "https://en.wikipedia.org/w/api.php",
		Timeout:   15 * time.Second,
		RateLimit: 5,
		UserAgent: "readr/1.0 (literary analysis assistant)",
	}
}

// WikipediaSource MediaWiki API 后端.
// 命中消歧页时自动跟进第一个候选条目.
type WikipediaSource struct {
	config  WikipediaConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewWikipediaSource 创建 Wikipedia 后端.
func NewWikipediaSource(config WikipediaConfig, logger *zap.Logger) *WikipediaSource {
	if config.BaseURL == "" {
		config.BaseURL = DefaultWikipediaConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultWikipediaConfig().UserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WikipediaSource{
		config:  config,
		client:  tlsutil.SecureHTTPClient(config.Timeout),
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger.With(zap.String("component", "source"), zap.String("source", "wikipedia")),
	}
}

// Name 返回后端名称.
func (w *WikipediaSource) Name() string { return "wikipedia" }

// wikiQueryResponse MediaWiki action=query 响应的子集.
type wikiQueryResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
		Pages map[string]struct {
			PageID    int    `json:"pageid"`
			Title     string `json:"title"`
			Extract   string `json:"extract"`
			Missing   *bool  `json:"missing,omitempty"`
			PageProps struct {
				Disambiguation *string `json:"disambiguation"`
			} `json:"pageprops"`
			Links []struct {
				Title string `json:"title"`
			} `json:"links"`
		} `json:"pages"`
	} `json:"query"`
}

// Lookup 按标题解析条目.
// 未命中返回 ErrNotFound；消歧页自动选择第一个链接条目.
func (w *WikipediaSource) Lookup(ctx context.Context, title string) (*ExternalRecord, error) {
	return w.lookup(ctx, title, true)
}

func (w *WikipediaSource) lookup(ctx context.Context, title string, followDisambig bool) (*ExternalRecord, error) {
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"redirects":   {"1"},
		"titles":      {title},
		"prop":        {"extracts|pageprops|links"},
		"explaintext": {"1"},
		"exintro":     {"0"},
		"ppprop":      {"disambiguation"},
		"plnamespace": {"0"},
		"pllimit":     {"5"},
	}

	var resp wikiQueryResponse
	if err := w.doQuery(ctx, params, &resp); err != nil {
		return nil, err
	}

	for id, page := range resp.Query.Pages {
		if id == "-1" || page.Missing != nil || page.Title == "" {
			continue
		}

		if page.PageProps.Disambiguation != nil || looksLikeDisambiguation(page.Extract) {
			if followDisambig && len(page.Links) > 0 {
				// 消歧页：取第一个候选条目
				first := page.Links[0].Title
				w.logger.Debug("disambiguation page, following first option",
					zap.String("title", title),
					zap.String("option", first),
				)
				return w.lookup(ctx, first, false)
			}
			return nil, ErrNotFound
		}

		if strings.TrimSpace(page.Extract) == "" {
			continue
		}

		return &ExternalRecord{
			Source:  w.Name(),
			Kind:    KindEncyclopedia,
			Title:   page.Title,
			Summary: firstParagraph(page.Extract),
			Text:    page.Extract,
			URL:     "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(page.Title, " ", "_")),
		}, nil
	}

	return nil, ErrNotFound
}

// Search 全文搜索并解析前 limit 条命中条目.
func (w *WikipediaSource) Search(ctx context.Context, query string, limit int) ([]ExternalRecord, error) {
	if limit <= 0 {
		limit = 3
	}

	params := url.Values{
		"action":   {"query"},
		"format":   {"json"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprintf("%d", limit)},
	}

	var resp wikiQueryResponse
	if err := w.doQuery(ctx, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Query.Search) == 0 {
		return nil, ErrNotFound
	}

	records := make([]ExternalRecord, 0, limit)
	for _, hit := range resp.Query.Search {
		rec, err := w.lookup(ctx, hit.Title, false)
		if err != nil {
			continue
		}
		records = append(records, *rec)
		if len(records) >= limit {
			break
		}
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// doQuery 执行 API 请求（限流 + JSON 解码）.
func (w *WikipediaSource) doQuery(ctx context.Context, params url.Values, out *wikiQueryResponse) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	requestURL := w.config.BaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", w.config.UserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("wikipedia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("wikipedia returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode wikipedia response: %w", err)
	}
	return nil
}

// looksLikeDisambiguation 基于正文特征识别消歧页，补充 pageprops 缺失的情况.
func looksLikeDisambiguation(extract string) bool {
	head := extract
	if len(head) > 400 {
		head = head[:400]
	}
	return strings.Contains(head, "may refer to:") || strings.Contains(head, "may also refer to:")
}

// firstParagraph 取正文首段作为摘要.
func firstParagraph(text string) string {
	if i := strings.Index(text, "\n\n"); i > 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}
