// Package llm provides a client for the Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"site-assistant-go/internal/config"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"
	defaultMaxTokens  = 1024
	defaultTimeout    = 60 * time.Second
	maxResponseBytes  = 4 << 20
)

// Client defines the interface for an LLM client.
type Client interface {
	// CreateMessage 同步调用 /v1/messages，成功时返回原始响应体。
	CreateMessage(ctx context.Context, req MessageRequest) ([]byte, error)
}

// Message 表示一条角色消息。Content 可以是字符串或内容块数组的原始 JSON。
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MessageRequest 是一次 Messages API 调用的输入。
// Extra 中的字段（如 temperature）原样透传；model、max_tokens 缺省时使用配置值。
type MessageRequest struct {
	System   string
	Messages []Message
	Extra    map[string]json.RawMessage
}

// APIError 表示后端返回了非 2xx 状态码。
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messages api returned status %d: %s", e.StatusCode, e.Body)
}

type anthropicClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient 创建 Anthropic 客户端。超时未配置时默认 60 秒，避免后端挂起导致请求无限等待。
func NewClient(cfg config.LLMConfig) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &anthropicClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *anthropicClient) CreateMessage(ctx context.Context, req MessageRequest) ([]byte, error) {
	body := make(map[string]any, len(req.Extra)+4)
	for k, v := range req.Extra {
		body[k] = v
	}
	if _, ok := body["model"]; !ok {
		body["model"] = c.cfg.Model
	}
	if _, ok := body["max_tokens"]; !ok {
		body["max_tokens"] = c.cfg.MaxTokens
	}
	body["system"] = req.System
	body["messages"] = req.Messages

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create messages request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", c.cfg.APIVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call messages api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read messages response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}
