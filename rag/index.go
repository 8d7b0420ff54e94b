package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/readr/llm/embedding"
)

// DocumentIndex 内存向量索引：块嵌入 + 余弦相似度暴力检索.
// 文档规模为单部作品量级，线性扫描即可.
type DocumentIndex struct {
	embedder embedding.Provider
	logger   *zap.Logger

	mu      sync.RWMutex
	chunks  []Chunk
	vectors [][]float64
}

// NewDocumentIndex 创建文档索引.
func NewDocumentIndex(embedder embedding.Provider, logger *zap.Logger) *DocumentIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentIndex{
		embedder: embedder,
		logger:   logger.With(zap.String("component", "doc_index")),
	}
}

// Add 嵌入并追加一批块.
func (idx *DocumentIndex) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := idx.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	idx.mu.Lock()
	idx.chunks = append(idx.chunks, chunks...)
	idx.vectors = append(idx.vectors, vectors...)
	idx.mu.Unlock()

	idx.logger.Info("chunks indexed",
		zap.Int("added", len(chunks)),
		zap.Int("total", idx.Len()),
	)
	return nil
}

// Query 返回与查询最相似的 topK 个块，按相似度降序.
// 同分块按插入顺序保持稳定；空索引直接返回空结果，不触发嵌入调用.
func (idx *DocumentIndex) Query(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	if idx.Len() == 0 || topK <= 0 {
		return nil, nil
	}

	qv, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scored := make([]ScoredChunk, len(idx.chunks))
	for i := range idx.chunks {
		scored[i] = ScoredChunk{
			Chunk: idx.chunks[i],
			Score: cosineSimilarity(qv, idx.vectors[i]),
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	out := make([]ScoredChunk, topK)
	copy(out, scored[:topK])
	return out, nil
}

// Len 返回已索引块数.
func (idx *DocumentIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Clear 清空索引.
func (idx *DocumentIndex) Clear() {
	idx.mu.Lock()
	idx.chunks = nil
	idx.vectors = nil
	idx.mu.Unlock()
}

// cosineSimilarity 余弦相似度，维度不符或零向量返回 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
