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

// GoogleBooksConfig 配置 Google Books 后端.
type GoogleBooksConfig struct {
	BaseURL   string        `json:"base_url"`   // API 端点
	APIKey    string        `json:"api_key"`    // 可选 API Key
	Timeout   time.Duration `json:"timeout"`    // 单请求超时
	RateLimit float64       `json:"rate_limit"` // 每秒请求数上限
}

// DefaultGoogleBooksConfig 返回 Google Books 后端默认配置.
func DefaultGoogleBooksConfig() GoogleBooksConfig {
	return GoogleBooksConfig{
		BaseURL:   "https://www.googleapis.com/books/v1",
		Timeout:   15 * time.Second,
		RateLimit: 2,
	}
}

// GoogleBooksSource Google Books Volumes API 后端，提供书目元信息与出版社简介.
type GoogleBooksSource struct {
	config  GoogleBooksConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGoogleBooksSource 创建 Google Books 后端.
func NewGoogleBooksSource(config GoogleBooksConfig, logger *zap.Logger) *GoogleBooksSource {
	if config.BaseURL == "" {
		config.BaseURL = DefaultGoogleBooksConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleBooksSource{
		config:  config,
		client:  tlsutil.SecureHTTPClient(config.Timeout),
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger.With(zap.String("component", "source"), zap.String("source", "google_books")),
	}
}

// Name 返回后端名称.
func (g *GoogleBooksSource) Name() string { return "google_books" }

// booksResponse Volumes API 响应的子集.
type booksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title         string   `json:"title"`
			Subtitle      string   `json:"subtitle"`
			Authors       []string `json:"authors"`
			PublishedDate string   `json:"publishedDate"`
			Description   string   `json:"description"`
			Categories    []string `json:"categories"`
			InfoLink      string   `json:"infoLink"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Lookup 按书名解析第一条匹配卷.
func (g *GoogleBooksSource) Lookup(ctx context.Context, title string) (*ExternalRecord, error) {
	records, err := g.search(ctx, "intitle:"+title, 1)
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// Search 按关键词搜索卷信息.
func (g *GoogleBooksSource) Search(ctx context.Context, query string, limit int) ([]ExternalRecord, error) {
	if limit <= 0 {
		limit = 3
	}
	return g.search(ctx, query, limit)
}

func (g *GoogleBooksSource) search(ctx context.Context, query string, limit int) ([]ExternalRecord, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"q":          {query},
		"maxResults": {fmt.Sprintf("%d", limit)},
	}
	if g.config.APIKey != "" {
		params.Set("key", g.config.APIKey)
	}

	requestURL := strings.TrimRight(g.config.BaseURL, "/") + "/volumes?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google books request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("google books returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed booksResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode google books response: %w", err)
	}
	if parsed.TotalItems == 0 || len(parsed.Items) == 0 {
		return nil, ErrNotFound
	}

	records := make([]ExternalRecord, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		info := item.VolumeInfo
		if info.Title == "" || strings.TrimSpace(info.Description) == "" {
			continue
		}

		summary := info.Description
		var meta []string
		if len(info.Authors) > 0 {
			meta = append(meta, "Author(s): "+strings.Join(info.Authors, ", "))
		}
		if info.PublishedDate != "" {
			meta = append(meta, "Published: "+info.PublishedDate)
		}
		if len(info.Categories) > 0 {
			meta = append(meta, "Categories: "+strings.Join(info.Categories, ", "))
		}

		text := summary
		if len(meta) > 0 {
			text = strings.Join(meta, "\n") + "\n\n" + summary
		}

		title := info.Title
		if info.Subtitle != "" {
			title += ": " + info.Subtitle
		}

		records = append(records, ExternalRecord{
			Source:  g.Name(),
			Kind:    KindBook,
			Title:   title,
			Summary: summary,
			Text:    text,
			URL:     info.InfoLink,
		})
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}
