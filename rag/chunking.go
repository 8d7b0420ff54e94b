package rag

import (
	"strings"

	"go.uber.org/zap"
)

// LengthFunc 度量一段文本的长度（字符数或 token 数）.
type LengthFunc func(string) int

// RuneLength 按 Unicode 码点计数，默认长度度量.
func RuneLength(s string) int { return len([]rune(s)) }

// SplitterConfig 递归切分配置.
type SplitterConfig struct {
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`       // 单块目标长度上限
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"` // 相邻块重叠长度
}

// DefaultSplitterConfig 默认切分配置.
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// 分隔符优先级：段落 > 行 > 句子 > 逗号 > 空格 > 逐字符.
var defaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", " ", ""}

// Splitter 递归文档切分器.
// 优先在段落与句子边界切分；块之间保留 ChunkOverlap 长度的重叠，
// 每个块都是原文的连续子串.
type Splitter struct {
	cfg        SplitterConfig
	separators []string
	lengthFn   LengthFunc
	logger     *zap.Logger
}

// NewSplitter 创建切分器，lengthFn 为 nil 时按码点计数.
func NewSplitter(cfg SplitterConfig, lengthFn LengthFunc, logger *zap.Logger) *Splitter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if lengthFn == nil {
		lengthFn = RuneLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Splitter{
		cfg:        cfg,
		separators: defaultSeparators,
		lengthFn:   lengthFn,
		logger:     logger.With(zap.String("component", "splitter")),
	}
}

// Split 将文本切分为有重叠的块序列.
// 空或纯空白输入返回 nil.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunks := s.splitText(text, s.separators)

	s.logger.Debug("document split",
		zap.Int("input_len", s.lengthFn(text)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", s.cfg.ChunkSize),
		zap.Int("overlap", s.cfg.ChunkOverlap),
	)
	return chunks
}

// SplitChunks 切分并包装为带来源标记的 Chunk.
func (s *Splitter) SplitChunks(text, sourceTag string) []Chunk {
	parts := s.Split(text)
	chunks := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, NewChunk(p, sourceTag))
	}
	return chunks
}

// splitText 递归切分：选择当前文本中出现的最高优先级分隔符，
// 超长片段落入下一级分隔符继续切.
func (s *Splitter) splitText(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var next []string
	for i, sp := range separators {
		if sp == "" {
			sep = ""
			next = nil
			break
		}
		if strings.Contains(text, sp) {
			sep = sp
			next = separators[i+1:]
			break
		}
	}

	splits := splitKeepingSeparator(text, sep)

	var final []string
	var pending []string

	for _, piece := range splits {
		if s.lengthFn(piece) <= s.cfg.ChunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			final = append(final, s.mergeSplits(pending)...)
			pending = nil
		}
		if len(next) == 0 {
			// 无更细的分隔符可用，整段保留
			final = append(final, piece)
		} else {
			final = append(final, s.splitText(piece, next)...)
		}
	}
	if len(pending) > 0 {
		final = append(final, s.mergeSplits(pending)...)
	}

	return final
}

// mergeSplits 将小片段合并为接近 ChunkSize 的块，并在块间保留重叠.
func (s *Splitter) mergeSplits(splits []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, sp := range splits {
		l := s.lengthFn(sp)
		if total+l > s.cfg.ChunkSize && total > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			// 从头部弹出片段直至满足重叠预算
			for total > s.cfg.ChunkOverlap || (total+l > s.cfg.ChunkSize && total > 0) {
				total -= s.lengthFn(current[0])
				current = current[1:]
			}
		}
		current = append(current, sp)
		total += l
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}

	return chunks
}

// splitKeepingSeparator 按分隔符切分，分隔符保留在前一片段末尾，
// 保证所有片段拼接后与原文完全一致.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		runes := []rune(text)
		parts := make([]string, len(runes))
		for i, r := range runes {
			parts[i] = string(r)
		}
		return parts
	}

	raw := strings.Split(text, sep)
	parts := make([]string, 0, len(raw))
	for i, p := range raw {
		if i < len(raw)-1 {
			p += sep
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
