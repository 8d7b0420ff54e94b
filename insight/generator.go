package insight

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/readr/llm"
	"github.com/BaSui01/readr/types"
)

// 提示词中引用的文本截断长度（码点数）.
const (
	visualizationExcerpt = 2000
	comparisonExcerpt    = 1000
	progressWindow       = 500
)

// Generator 结构化洞察生成器.
// 所有操作向模型请求纯 JSON，输出经宽容提取后返回；
// 无法解析时返回空结果与 MALFORMED_OUTPUT 软错误，不中断上层流程.
type Generator struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewGenerator 创建洞察生成器.
func NewGenerator(provider llm.Provider, model string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "insight")),
	}
}

// Progress 阅读进度数据.
type Progress struct {
	ProgressPercentage float64        `json:"progress_percentage"`
	CurrentPosition    int            `json:"current_position"`
	TotalLength        int            `json:"total_length"`
	Insights           map[string]any `json:"insights"`
}

// Visualization 按分析模式生成可视化数据.
// 模型漏掉包装键时自动补全（如直接输出人物字典时包一层 "characters"）.
func (g *Generator) Visualization(ctx context.Context, text string, mode types.AnalysisMode) (map[string]any, error) {
	prompt := visualizationPrompt(truncate(text, visualizationExcerpt), mode)

	data, err := g.invoke(ctx, prompt)
	if err != nil {
		return map[string]any{}, err
	}

	// 包装键归一化
	if wrapKey := modeWrapKey(mode); wrapKey != "" {
		if _, ok := data[wrapKey]; !ok {
			data = map[string]any{wrapKey: data}
		}
	}
	return data, nil
}

// StudyGuide 生成学习指南（概要、人物、主题、符号、讨论题等八节）.
func (g *Generator) StudyGuide(ctx context.Context, text, title, author string) (map[string]any, error) {
	var header string
	if title != "" && author != "" {
		header = fmt.Sprintf("Title: %s\nAuthor: %s\n", title, author)
	}
	prompt := studyGuidePrompt(header, truncate(text, visualizationExcerpt))

	data, err := g.invoke(ctx, prompt)
	if err != nil {
		return map[string]any{}, err
	}
	return data, nil
}

// CompareWorks 对比两部作品的主题、风格、人物、背景与基调.
func (g *Generator) CompareWorks(ctx context.Context, text1, text2 string) (map[string]any, error) {
	prompt := comparisonPrompt(truncate(text1, comparisonExcerpt), truncate(text2, comparisonExcerpt))

	data, err := g.invoke(ctx, prompt)
	if err != nil {
		return map[string]any{}, err
	}
	return data, nil
}

// TrackProgress 计算阅读进度并围绕当前位置 ±500 码点的窗口生成情境洞察.
// 洞察解析失败时进度数据照常返回，错误为软错误.
func (g *Generator) TrackProgress(ctx context.Context, text string, position int) (*Progress, error) {
	runes := []rune(text)
	total := len(runes)

	if position < 0 {
		position = 0
	}
	if position > total {
		position = total
	}

	progress := &Progress{
		CurrentPosition: position,
		TotalLength:     total,
		Insights:        map[string]any{},
	}
	if total > 0 {
		progress.ProgressPercentage = float64(position) / float64(total) * 100
	}

	start := position - progressWindow
	if start < 0 {
		start = 0
	}
	end := position + progressWindow
	if end > total {
		end = total
	}
	window := string(runes[start:end])

	insights, err := g.invoke(ctx, progressPrompt(window))
	if err != nil {
		g.logger.Warn("progress insights unavailable", zap.Error(err))
		return progress, err
	}
	progress.Insights = insights
	return progress, nil
}

// invoke 执行单轮请求并提取 JSON 对象.
func (g *Generator) invoke(ctx context.Context, prompt string) (map[string]any, error) {
	resp, err := g.provider.Completion(ctx, &llm.ChatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	data, err := ExtractJSON(llm.FirstContent(resp))
	if err != nil {
		g.logger.Warn("model produced malformed JSON",
			zap.Int("output_len", len(llm.FirstContent(resp))),
		)
		return nil, err
	}
	return data, nil
}

// modeWrapKey 返回各模式的包装键，通用模式不归一化.
func modeWrapKey(mode types.AnalysisMode) string {
	switch mode {
	case types.ModeCharacter:
		return "characters"
	case types.ModeTheme:
		return "themes"
	case types.ModeSymbolism:
		return "symbols"
	default:
		return ""
	}
}

// truncate 按码点截断文本，超长时附加省略号.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
