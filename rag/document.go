// Package rag 提供文档切分、向量索引与外部来源解析能力，
// 是 readr 检索增强分析的基础层。
package rag

import "github.com/google/uuid"

// Chunk 文档块，切分与索引的基本单位.
type Chunk struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	SourceTag string            `json:"source_tag,omitempty"` // 来源标记: upload / wikipedia / google_books
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewChunk 创建带唯一 ID 的文档块.
func NewChunk(text, sourceTag string) Chunk {
	return Chunk{
		ID:        uuid.NewString(),
		Text:      text,
		SourceTag: sourceTag,
	}
}

// ScoredChunk 检索结果：块及其与查询的余弦相似度.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
