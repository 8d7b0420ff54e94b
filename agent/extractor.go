package agent

import (
	"strings"
	"unicode"
)

// TermExtractor 从问题文本中提取候选实体词（人名、作品名、地名等），
// 用于定向外部知识查询.
type TermExtractor interface {
	Extract(question string) []string
}

// HeuristicExtractor 启发式实体提取：长度超过 3 且首字母大写的词.
// 不依赖 NER 模型，对文学问答中的专名召回已经足够.
type HeuristicExtractor struct{}

// NewHeuristicExtractor 创建启发式提取器.
func NewHeuristicExtractor() *HeuristicExtractor { return &HeuristicExtractor{} }

// Extract 提取候选词，保持出现顺序、去重.
func (e *HeuristicExtractor) Extract(question string) []string {
	seen := make(map[string]bool)
	var terms []string

	for _, word := range strings.Fields(question) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		runes := []rune(word)
		if len(runes) <= 3 || !unicode.IsUpper(runes[0]) {
			continue
		}
		if seen[word] {
			continue
		}
		seen[word] = true
		terms = append(terms, word)
	}
	return terms
}
