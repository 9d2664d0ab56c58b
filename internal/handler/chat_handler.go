// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"site-assistant-go/internal/model"
	"site-assistant-go/internal/moderation"
	"site-assistant-go/internal/service"
	"site-assistant-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责聊天代理、解除封禁与助手人设接口。
type ChatHandler struct {
	chatService     service.ChatService
	blockedRedirect string
}

// NewChatHandler 创建一个新的 ChatHandler 实例。blockedRedirect 是被封禁时前端跳转的页面。
func NewChatHandler(chatService service.ChatService, blockedRedirect string) *ChatHandler {
	return &ChatHandler{chatService: chatService, blockedRedirect: blockedRedirect}
}

// Messages 处理 POST /v1/messages：策略判定后把对话转发给语言模型，原样返回其响应。
func (h *ChatHandler) Messages(c *gin.Context) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Warnf("Messages: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var messages []model.ChatMessage
	if raw, ok := body["messages"]; ok {
		if err := json.Unmarshal(raw, &messages); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messages must be an array"})
			return
		}
	}
	// system 由服务端生成，调用方传入的会被忽略
	delete(body, "messages")
	delete(body, "system")

	clientIP := c.ClientIP()
	result, err := h.chatService.Handle(c.Request.Context(), clientIP, service.ChatRequest{
		Messages: messages,
		Extra:    body,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyConversation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messages must contain at least one turn"})
			return
		}
		log.Errorw("聊天请求处理失败", "clientIP", clientIP, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	switch result.Decision.Outcome {
	case moderation.OutcomeBlocked:
		c.JSON(http.StatusForbidden, model.BlockedChatResponse{
			Error:      "Chat access is blocked",
			BlockChat:  true,
			Content:    []model.TextContent{{Text: service.BlockedAccessMessage}},
			NavigateTo: h.blockedRedirect,
		})
	case moderation.OutcomeNewlyBlocked:
		c.JSON(http.StatusOK, model.BlockedChatResponse{
			BlockChat:  true,
			Content:    []model.TextContent{{Text: service.NewlyBlockedMessage}},
			NavigateTo: h.blockedRedirect,
		})
	default:
		c.Data(http.StatusOK, "application/json", result.Body)
	}
}

// Unblock 处理 POST /api/v1/unblock，清除调用方地址的封禁。总是返回 success。
func (h *ChatHandler) Unblock(c *gin.Context) {
	wasBlocked, err := h.chatService.Unblock(c.Request.Context(), c.ClientIP())
	if err != nil {
		log.Error("Unblock: 解除封禁失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	message := "Chat was not blocked."
	if wasBlocked {
		message = "Chat has been unblocked successfully."
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

// Profile 处理 GET /assistant-profile，返回助手人设。
func (h *ChatHandler) Profile(c *gin.Context) {
	c.JSON(http.StatusOK, h.chatService.Persona())
}
