// Package insight 生成结构化洞察：可视化数据、学习指南、
// 作品对比与阅读进度分析，全部经由仅输出 JSON 的提示词获得.
package insight

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/readr/types"
)

// ExtractJSON 从模型输出中宽容地提取 JSON 对象.
// 依次尝试：markdown 代码围栏内容、首个 '{' 到末个 '}' 的子串、原文本身.
// 全部失败返回 MALFORMED_OUTPUT.
func ExtractJSON(raw string) (map[string]any, error) {
	candidates := []string{}

	if fenced := stripCodeFence(raw); fenced != "" {
		candidates = append(candidates, fenced)
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}
	candidates = append(candidates, strings.TrimSpace(raw))

	for _, c := range candidates {
		var out map[string]any
		if err := json.Unmarshal([]byte(c), &out); err == nil {
			return out, nil
		}
	}
	return nil, types.NewError(types.ErrMalformedOutput, "no valid JSON object in model output")
}

// stripCodeFence 提取 ```json ... ``` 或 ``` ... ``` 围栏内的内容.
func stripCodeFence(raw string) string {
	start := strings.Index(raw, "```")
	if start < 0 {
		return ""
	}
	rest := raw[start+3:]
	// 跳过语言标记行（如 "json"）
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		first := strings.TrimSpace(rest[:nl])
		if first == "json" || first == "JSON" || first == "" {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
