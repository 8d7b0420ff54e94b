// Package types provides core types used across the readr library.
// This package has ZERO dependencies on other readr packages to avoid
// circular imports. All other packages should import types from here.
package types

import "time"

// Role represents the role of a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversation turn. Histories are append-only
// ordered slices of Message; the orchestrator never mutates a turn it was
// handed.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// AnalysisMode 用户选择的分析焦点，决定外部检索策略与提示词框架。
type AnalysisMode string

const (
	ModeGeneral    AnalysisMode = "general"
	ModeHistorical AnalysisMode = "historical"
	ModeCharacter  AnalysisMode = "character"
	ModeSymbolism  AnalysisMode = "symbolism"
	ModeTheme      AnalysisMode = "theme"
	ModeTechnique  AnalysisMode = "technique"
)

// ParseAnalysisMode 将任意用户输入归一化为已知的分析模式，未知值回退 general。
func ParseAnalysisMode(s string) AnalysisMode {
	switch AnalysisMode(s) {
	case ModeHistorical, ModeCharacter, ModeSymbolism, ModeTheme, ModeTechnique:
		return AnalysisMode(s)
	default:
		return ModeGeneral
	}
}
