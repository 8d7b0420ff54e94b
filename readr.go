// Package readr provides a top-level convenience entry point for creating
// literary analysis sessions with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/readr"
//
//	s, err := readr.New(readr.DefaultConfig(), logger)
//	n, err := s.ProcessQuery(ctx, "The Great Gatsby")
//	resp, err := s.Ask(ctx, "What does the green light mean?", types.ModeSymbolism, nil)
//
// This is a thin wrapper around [session.New]; both produce identical results.
// Use this package when you prefer the shorter import path.
package readr

import (
	"go.uber.org/zap"

	"github.com/BaSui01/readr/config"
	"github.com/BaSui01/readr/session"
)

// Session 一次文学分析会话.
type Session = session.Session

// Option 会话装配选项.
type Option = session.Option

// New 按配置装配会话.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Session, error) {
	return session.New(cfg, logger, opts...)
}

// DefaultConfig 返回默认配置，API Key 仍需通过配置或环境变量提供.
var DefaultConfig = config.DefaultConfig

// Re-export assembly options so callers never need to import session/.

// WithProvider 使用外部构建的聊天 Provider.
var WithProvider = session.WithProvider

// WithEmbedder 使用外部构建的嵌入 Provider.
var WithEmbedder = session.WithEmbedder

// WithBackends 使用自定义知识源后端集合.
var WithBackends = session.WithBackends

// WithCache 使用自定义缓存实现.
var WithCache = session.WithCache
