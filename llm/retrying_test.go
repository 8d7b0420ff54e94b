package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/readr/llm/retry"
)

// flakyProvider 前 failures 次调用返回给定错误.
type flakyProvider struct {
	failures int
	err      error
	calls    int
}

func (f *flakyProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &ChatResponse{
		Model:   "flaky",
		Choices: []ChatChoice{{Message: Message{Role: RoleAssistant, Content: "ok"}}},
	}, nil
}

func (f *flakyProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

func (f *flakyProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func (f *flakyProvider) Name() string { return "flaky" }

func fastPolicy() *retry.Policy {
	return &retry.Policy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetryRecoversFromTransientErrors(t *testing.T) {
	inner := &flakyProvider{
		failures: 2,
		err:      &Error{Code: ErrRateLimited, Message: "slow down", Retryable: true},
	}
	p := WithRetry(inner, fastPolicy(), zap.NewNop())

	resp, err := p.Completion(context.Background(), &ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", FirstContent(resp))
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyProvider{
		failures: 5,
		err:      &Error{Code: ErrUnauthorized, Message: "bad key", Retryable: false},
	}
	p := WithRetry(inner, fastPolicy(), zap.NewNop())

	_, err := p.Completion(context.Background(), &ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestWithRetryPreservesName(t *testing.T) {
	p := WithRetry(&flakyProvider{}, nil, zap.NewNop())
	assert.Equal(t, "flaky", p.Name())
}
