package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Config selects the provider and model for decision calls.
type Config struct {
	Provider    string // "openai", "anthropic", "openrouter", "deepseek"
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	RetryPolicy RetryPolicy
}

var DefaultOpenAIConfig = Config{
	Provider:    "openai",
	Model:       "gpt-4o-mini",
	BaseURL:     "https://api.openai.com/v1",
	MaxTokens:   4096,
	Temperature: 0.2,
	Timeout:     60 * time.Second,
}

var DefaultAnthropicConfig = Config{
	Provider:    "anthropic",
	Model:       "claude-sonnet-4-20250514",
	BaseURL:     "https://api.anthropic.com/v1",
	MaxTokens:   4096,
	Temperature: 0.2,
	Timeout:     60 * time.Second,
}

// Client calls the configured provider's chat API with native tool
// calling. It implements Decider.
type Client struct {
	config Config
	client *http.Client
	cost   *CostTracker
}

// NewClient builds a client with a pooled transport sized for chat API
// latencies.
func NewClient(config Config) *Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
	}
	return &Client{
		config: config,
		client: &http.Client{Transport: transport, Timeout: config.Timeout},
		cost:   &CostTracker{},
	}
}

// Cost exposes the running usage totals.
func (c *Client) Cost() *CostTracker {
	return c.cost
}

func (c *Client) applyDefaults(req *Request) {
	if req.MaxTokens == 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = c.config.Temperature
	}
}

// Decide runs one decision call, retrying per the configured policy.
// Context cancellation stops retries immediately.
func (c *Client) Decide(ctx context.Context, req *Request) (*Decision, error) {
	c.applyDefaults(req)

	attempts := c.config.RetryPolicy.MaxRetries
	if attempts == 0 {
		attempts = 1
	}

	var decision *Decision
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryPolicy.Backoff * time.Duration(i)):
			}
		}

		switch c.config.Provider {
		case "openai", "openrouter", "deepseek", "ollama":
			decision, err = c.callOpenAI(ctx, req)
		case "anthropic":
			decision, err = c.callAnthropic(ctx, req)
		default:
			return nil, fmt.Errorf("unknown provider: %s", c.config.Provider)
		}
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	c.cost.AddUsage(decision.Model, decision.Usage)
	return decision, nil
}

func (c *Client) callOpenAI(ctx context.Context, req *Request) (*Decision, error) {
	messages := make([]map[string]any, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	for _, m := range req.Messages {
		entry := map[string]any{"role": m.Role, "content": m.Content}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": string(tc.Arguments),
					},
				}
			}
			entry["tool_calls"] = calls
		}
		if m.Role == RoleTool {
			entry["tool_call_id"] = m.ToolCallID
		}
		messages = append(messages, entry)
	}

	body := map[string]any{
		"model":       c.config.Model,
		"messages":    messages,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			}
		}
		body["tools"] = tools
	}

	var raw struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage Usage `json:"usage"`
	}
	if err := c.post(ctx, "/chat/completions", c.openAIHeaders(), body, &raw); err != nil {
		return nil, err
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := raw.Choices[0]
	decision := &Decision{
		Content:      choice.Message.Content,
		Model:        raw.Model,
		FinishReason: choice.FinishReason,
		Usage:        raw.Usage,
	}
	for _, tc := range choice.Message.ToolCalls {
		decision.ToolCalls = append(decision.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return decision, nil
}

func (c *Client) callAnthropic(ctx context.Context, req *Request) (*Decision, error) {
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch {
		case m.Role == RoleTool:
			messages = append(messages, map[string]any{
				"role": RoleUser,
				"content": []map[string]any{{
					"type":        "tool_result",
					"tool_use_id": m.ToolCallID,
					"content":     m.Content,
				}},
			})
		case len(m.ToolCalls) > 0:
			content := make([]map[string]any, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				content = append(content, map[string]any{"type": "text", "text": m.Content})
			}
			for _, tc := range m.ToolCalls {
				content = append(content, map[string]any{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": tc.Arguments,
				})
			}
			messages = append(messages, map[string]any{"role": m.Role, "content": content})
		default:
			messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
		}
	}

	body := map[string]any{
		"model":      c.config.Model,
		"max_tokens": req.MaxTokens,
		"messages":   messages,
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			}
		}
		body["tools"] = tools
	}

	var raw struct {
		Model   string `json:"model"`
		Content []struct {
			Type  string          `json:"type"`
			Text  string          `json:"text"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	headers := map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	}
	if err := c.post(ctx, "/messages", headers, body, &raw); err != nil {
		return nil, err
	}

	decision := &Decision{
		Model:        raw.Model,
		FinishReason: raw.StopReason,
		Usage: Usage{
			PromptTokens:     raw.Usage.InputTokens,
			CompletionTokens: raw.Usage.OutputTokens,
			TotalTokens:      raw.Usage.InputTokens + raw.Usage.OutputTokens,
		},
	}
	for _, block := range raw.Content {
		switch block.Type {
		case "text":
			decision.Content += block.Text
		case "tool_use":
			decision.ToolCalls = append(decision.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	return decision, nil
}

func (c *Client) openAIHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.config.APIKey}
}

func (c *Client) post(ctx context.Context, path string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s API error %d: %s", c.config.Provider, resp.StatusCode, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
