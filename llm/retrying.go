package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/BaSui01/readr/llm/retry"
)

// RetryingProvider 为 Completion 与 HealthCheck 叠加指数退避重试.
// Stream 不重试（部分输出可能已推送给调用方）.
type RetryingProvider struct {
	inner   Provider
	retryer retry.Retryer
}

// WithRetry 用给定策略包装 Provider，policy 为 nil 时采用默认策略.
func WithRetry(inner Provider, policy *retry.Policy, logger *zap.Logger) *RetryingProvider {
	return &RetryingProvider{
		inner:   inner,
		retryer: retry.NewBackoffRetryer(policy, logger),
	}
}

func (p *RetryingProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var resp *ChatResponse
	err := p.retryer.Do(ctx, func() error {
		var callErr error
		resp, callErr = p.inner.Completion(ctx, req)
		return markPermanent(callErr)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *RetryingProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	return p.inner.Stream(ctx, req)
}

func (p *RetryingProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	var status *HealthStatus
	err := p.retryer.Do(ctx, func() error {
		var callErr error
		status, callErr = p.inner.HealthCheck(ctx)
		return markPermanent(callErr)
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (p *RetryingProvider) Name() string { return p.inner.Name() }

// markPermanent 将明确不可重试的提供者错误标记为永久错误.
func markPermanent(err error) error {
	if err == nil {
		return nil
	}
	var provErr *Error
	if errors.As(err, &provErr) && !provErr.Retryable {
		return retry.Permanent(err)
	}
	return err
}
