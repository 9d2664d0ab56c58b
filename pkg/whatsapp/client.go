// Package whatsapp 封装了 WhatsApp Cloud API 的出站发送与 webhook 解析。
package whatsapp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"site-assistant-go/internal/config"
	"site-assistant-go/internal/model"
	"strings"
	"time"
)

const (
	defaultAPIBaseURL = "https://graph.facebook.com"
	defaultAPIVersion = "v22.0"
	defaultTimeout    = 10 * time.Second

	// SignatureHeader 是 Meta 对 webhook 请求体签名所用的请求头。
	SignatureHeader = "X-Hub-Signature-256"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Client 通过 Graph API 发送文本消息。
type Client struct {
	client        *http.Client
	apiBaseURL    string
	apiVersion    string
	accessToken   string
	phoneNumberID string
}

// NewClient 创建客户端；httpClient 为空时使用带超时的默认客户端。
func NewClient(cfg config.WhatsAppConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	apiBaseURL := strings.TrimSpace(cfg.APIBaseURL)
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	apiVersion := strings.Trim(strings.TrimSpace(cfg.APIVersion), "/")
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &Client{
		client:        httpClient,
		apiBaseURL:    strings.TrimRight(apiBaseURL, "/"),
		apiVersion:    apiVersion,
		accessToken:   strings.TrimSpace(cfg.AccessToken),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
	}
}

// NormalizeNumber 去掉号码中的空白、加号和连字符。
func NormalizeNumber(number string) string {
	return strings.NewReplacer(" ", "", "+", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(number))
}

// SendText 向 to 发送一条文本消息。
func (c *Client) SendText(ctx context.Context, to, text string) error {
	recipient := NormalizeNumber(to)
	if recipient == "" {
		return fmt.Errorf("whatsapp recipient is required")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("whatsapp message body is required")
	}

	body, err := json.Marshal(map[string]any{
		"messaging_product": "whatsapp",
		"to":                recipient,
		"type":              "text",
		"text": map[string]any{
			"body":        text,
			"preview_url": false,
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling whatsapp message body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", c.apiBaseURL, c.apiVersion, url.PathEscape(c.phoneNumberID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("whatsapp send failed: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// VerifySignature 校验 X-Hub-Signature-256（sha256=<hex hmac>）。
func VerifySignature(appSecret, signature string, body []byte) error {
	if signature == "" {
		return ErrMissingSignature
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// FirstMessage 从 webhook 负载中取出第一条入站消息（entry[0].changes[0].value.messages[0]）。
// 状态回执等不含消息的负载返回 ok=false。
func FirstMessage(body []byte) (msg model.IncomingMessage, ok bool, err error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return msg, false, fmt.Errorf("parsing whatsapp payload: %w", err)
	}
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return msg, false, nil
	}
	messages := payload.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return msg, false, nil
	}
	first := messages[0]
	return model.IncomingMessage{
		From: strings.TrimSpace(first.From),
		Text: strings.TrimSpace(first.Text.Body),
	}, true, nil
}
