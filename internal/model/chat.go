package model

import (
	"encoding/json"
	"strings"
)

// ChatMessage 是调用方提交的单轮对话。Content 保留原始 JSON，
// 既可以是字符串，也可以是 Anthropic 的内容块数组，转发时不做改写。
type ChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Text 提取消息中的纯文本：字符串内容原样返回，内容块数组拼接其中的 text 字段。
func (m ChatMessage) Text() string {
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

// BlockedChatResponse 是对话被拦截时返回给前端的结构。
type BlockedChatResponse struct {
	Error      string        `json:"error,omitempty"`
	BlockChat  bool          `json:"block_chat"`
	Content    []TextContent `json:"content"`
	NavigateTo string        `json:"navigate_to"`
}

// TextContent 对齐 Anthropic 响应中的文本块结构，前端按同一方式渲染。
type TextContent struct {
	Text string `json:"text"`
}

// IncomingMessage 是从消息平台 webhook 中提取出的入站消息。
type IncomingMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}
