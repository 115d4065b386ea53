package llm

import (
	"context"
	"fmt"
	"sync"

	"droidrun/internal/agent/ports"
)

// ScriptedClient is a test double. Either set CompleteFunc for full control
// or enqueue canned responses with Enqueue; responses are consumed in order.
type ScriptedClient struct {
	CompleteFunc func(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error)
	ModelName    string

	mu       sync.Mutex
	queue    []string
	requests []ports.CompletionRequest
}

// NewScriptedClient builds a client that replays the given responses.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{queue: responses}
}

// Enqueue appends canned responses to the replay queue.
func (c *ScriptedClient) Enqueue(responses ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, responses...)
}

// Requests returns every request received so far.
func (c *ScriptedClient) Requests() []ports.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.CompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// CallCount returns the number of Complete invocations.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *ScriptedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.CompleteFunc != nil {
		return c.CompleteFunc(ctx, req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, fmt.Errorf("scripted client: no responses left (call %d)", len(c.requests))
	}
	content := c.queue[0]
	c.queue = c.queue[1:]
	return &ports.CompletionResponse{Content: content}, nil
}

func (c *ScriptedClient) Model() string {
	if c.ModelName != "" {
		return c.ModelName
	}
	return "scripted"
}
