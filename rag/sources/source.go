// Package sources 提供外部知识源后端适配器（Wikipedia、Google Books），
// 为文学作品解析提供百科摘要与书目信息.
package sources

import (
	"context"
	"errors"
)

// Kind 外部记录类型.
type Kind string

const (
	KindEncyclopedia Kind = "encyclopedia" // 百科条目
	KindBook         Kind = "book"         // 书目信息
)

// ErrNotFound 后端未命中任何条目.
// 调用方按软失败处理：跳过该后端，不中断整体解析.
var ErrNotFound = errors.New("sources: not found")

// ExternalRecord 外部知识源返回的单条记录.
type ExternalRecord struct {
	Source  string `json:"source"`  // 后端名: wikipedia / google_books
	Kind    Kind   `json:"kind"`    // 记录类型
	Title   string `json:"title"`   // 条目标题
	Summary string `json:"summary"` // 摘要
	Text    string `json:"text"`    // 可得的正文全文（可为空）
	URL     string `json:"url"`     // 条目链接
}

// Backend 外部知识源后端接口.
type Backend interface {
	// Name 返回后端名称.
	Name() string

	// Lookup 按标题精确解析单条记录，未命中返回 ErrNotFound.
	Lookup(ctx context.Context, title string) (*ExternalRecord, error)

	// Search 按关键词搜索，返回至多 limit 条记录.
	Search(ctx context.Context, query string, limit int) ([]ExternalRecord, error)
}
