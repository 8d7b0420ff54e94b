// Package embedding 提供统一的文本嵌入接口，为文档索引与语义检索服务.
package embedding

import (
	"context"
	"time"
)

// Request 表示一次嵌入请求.
type Request struct {
	Input      []string  `json:"input"`                // 待嵌入文本
	Model      string    `json:"model,omitempty"`      // 指定模型（为空时用默认）
	Dimensions int       `json:"dimensions,omitempty"` // 输出维度（支持的模型生效）
	InputType  InputType `json:"input_type,omitempty"` // query / document
}

// InputType 区分查询与文档两类输入，部分模型针对性优化.
type InputType string

const (
	InputTypeQuery    InputType = "query"
	InputTypeDocument InputType = "document"
)

// Response 表示嵌入请求的响应.
type Response struct {
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Embeddings []Data    `json:"embeddings"`
	Usage      Usage     `json:"usage"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Data 表示单条嵌入结果.
type Data struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// Usage 表示嵌入请求的 Token 用量.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Provider 定义统一的嵌入提供者接口.
type Provider interface {
	// Embed 为给定输入生成嵌入.
	Embed(ctx context.Context, req *Request) (*Response, error)

	// EmbedQuery 嵌入单个查询字符串.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments 嵌入多个文档，超过批量上限时自动分批.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	// Name 返回提供者名称.
	Name() string

	// Dimensions 返回默认嵌入维度.
	Dimensions() int

	// MaxBatchSize 返回单次请求支持的最大输入条数.
	MaxBatchSize() int
}
