package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"droidrun/internal/agent/ports"
	droidrunerrors "droidrun/internal/errors"
	"droidrun/internal/logging"
)

// openaiClient speaks the OpenAI-compatible chat completions API. DeepSeek,
// Ollama and vLLM endpoints all accept the same wire format via BaseURL.
type openaiClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
	vision     bool
}

// NewOpenAIClient constructs a client for any OpenAI-compatible endpoint.
func NewOpenAIClient(config Config) (ports.LLMClient, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = config.Timeout
	}

	return &openaiClient{
		model:      config.Model,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("llm"),
		vision:     config.Vision && supportsVision(config.Model),
	}, nil
}

// supportsVision guards image attachments. The DeepSeek chat models reject
// multimodal content parts outright.
func supportsVision(model string) bool {
	return !strings.Contains(strings.ToLower(model), "deepseek")
}

func (c *openaiClient) Model() string {
	return c.model
}

func (c *openaiClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	payload := map[string]any{
		"model":    c.model,
		"messages": c.convertMessages(req.Messages),
		"stream":   false,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	c.logger.Debug("=== LLM Request ===")
	c.logger.Debug("URL: POST %s", endpoint)
	c.logger.Debug("Model: %s, messages: %d", c.model, len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, droidrunerrors.NewTransientError(err, fmt.Sprintf("request failed: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("=== LLM Response ===")
	c.logger.Debug("Status: %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapHTTPError(resp.StatusCode, respBody, resp.Header)
	}

	var oaiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if oaiResp.Error != nil && oaiResp.Error.Message != "" {
		return nil, mapHTTPError(resp.StatusCode, []byte(oaiResp.Error.Message), resp.Header)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, droidrunerrors.NewTransientError(errors.New("no choices in response"), "model returned an empty response")
	}

	return &ports.CompletionResponse{
		Content: oaiResp.Choices[0].Message.Content,
		Usage: ports.TokenUsage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
		},
	}, nil
}

// convertMessages maps port messages to the chat completions wire format.
// Image-bearing messages become multimodal content-part arrays when the
// client has vision enabled; otherwise images are silently dropped.
func (c *openaiClient) convertMessages(messages []ports.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		if !c.vision || len(msg.Images) == 0 {
			out = append(out, map[string]any{
				"role":    msg.Role,
				"content": msg.Content,
			})
			continue
		}

		parts := []map[string]any{
			{"type": "text", "text": msg.Content},
		}
		for _, img := range msg.Images {
			parts = append(parts, map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
				},
			})
		}
		out = append(out, map[string]any{
			"role":    msg.Role,
			"content": parts,
		})
	}
	return out
}

// mapHTTPError classifies a non-2xx response into the retry taxonomy.
func mapHTTPError(statusCode int, body []byte, header http.Header) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 500 {
		detail = detail[:500]
	}
	base := fmt.Errorf("api error status %d: %s", statusCode, detail)

	switch {
	case statusCode == http.StatusTooManyRequests:
		retryAfter := 0
		if v := header.Get("Retry-After"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				retryAfter = parsed
			}
		}
		return droidrunerrors.NewRateLimited(base, retryAfter)
	case statusCode == http.StatusServiceUnavailable || statusCode == 529:
		return droidrunerrors.NewOverloaded(base, statusCode)
	case statusCode >= 500:
		return droidrunerrors.NewTransientError(base, "")
	default:
		return droidrunerrors.NewPermanentError(base, "")
	}
}
