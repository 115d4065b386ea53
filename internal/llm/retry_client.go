package llm

import (
	"context"
	"time"

	"droidrun/internal/agent/ports"
	droidrunerrors "droidrun/internal/errors"
	"droidrun/internal/logging"
	"droidrun/internal/observability"
)

// retryClient wraps an LLM client with bounded exponential backoff. Rate
// limit and overload responses from the provider are transient; the delay
// never exceeds the 60s cap from LLMRetryConfig.
type retryClient struct {
	underlying  ports.LLMClient
	retryConfig droidrunerrors.RetryConfig
	logger      logging.Logger
}

// NewRetryClient wraps a client with the default LLM retry policy.
func NewRetryClient(client ports.LLMClient) ports.LLMClient {
	return NewRetryClientWithConfig(client, droidrunerrors.LLMRetryConfig())
}

// NewRetryClientWithConfig wraps a client with a custom retry policy.
func NewRetryClientWithConfig(client ports.LLMClient, config droidrunerrors.RetryConfig) ports.LLMClient {
	return &retryClient{
		underlying:  client,
		retryConfig: config,
		logger:      logging.NewComponentLogger("llm-retry"),
	}
}

func (c *retryClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	ctx, span := observability.StartSpan(ctx, "llm.complete")
	defer span.End()
	startTime := time.Now()

	attempts := 0
	resp, err := droidrunerrors.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (*ports.CompletionResponse, error) {
		attempts++
		return c.underlying.Complete(ctx, req)
	}, c.logger)

	duration := time.Since(startTime)
	observability.LLMLatency.Observe(duration.Seconds())
	if attempts > 1 {
		observability.LLMRetries.Inc()
	}
	if err != nil {
		observability.LLMCalls.WithLabelValues("error").Inc()
		c.logger.Warn("LLM request failed after retries (took %v): %v", duration, err)
		return nil, err
	}
	observability.LLMCalls.WithLabelValues("ok").Inc()
	if duration > 5*time.Second {
		c.logger.Debug("LLM request succeeded after %v", duration)
	}
	return resp, nil
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}
