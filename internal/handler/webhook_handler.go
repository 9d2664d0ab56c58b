package handler

import (
	"net/http"
	"site-assistant-go/internal/config"
	"site-assistant-go/internal/service"
	"site-assistant-go/pkg/log"
	"site-assistant-go/pkg/whatsapp"

	"github.com/gin-gonic/gin"
)

// WebhookHandler 处理 WhatsApp Cloud API 的订阅握手与入站消息。
type WebhookHandler struct {
	leadService service.LeadService
	verifyToken string
	appSecret   string
}

// NewWebhookHandler 创建一个新的 WebhookHandler 实例。
func NewWebhookHandler(leadService service.LeadService, cfg config.WhatsAppConfig) *WebhookHandler {
	return &WebhookHandler{
		leadService: leadService,
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
	}
}

// Verify 处理 GET 握手：mode 为 subscribe 且 token 匹配时原样返回 challenge。
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		log.Info("WhatsApp webhook 验证成功")
		c.String(http.StatusOK, challenge)
		return
	}
	log.Warnw("WhatsApp webhook 验证失败", "mode", mode)
	c.Status(http.StatusForbidden)
}

// Receive 处理 POST 入站消息。无论内部处理结果如何都返回 200，避免提供方重试。
func (h *WebhookHandler) Receive(c *gin.Context) {
	defer c.JSON(http.StatusOK, gin.H{"success": true})

	body, err := c.GetRawData()
	if err != nil {
		log.Error("Receive: 读取 webhook 请求体失败", err)
		return
	}
	if h.appSecret != "" {
		if err := whatsapp.VerifySignature(h.appSecret, c.GetHeader(whatsapp.SignatureHeader), body); err != nil {
			log.Warnw("丢弃签名无效的 webhook 请求", "error", err)
			return
		}
	}

	msg, ok, err := whatsapp.FirstMessage(body)
	if err != nil {
		log.Error("Receive: 解析 webhook 负载失败", err)
		return
	}
	if !ok {
		return
	}
	log.Infow("收到 WhatsApp 消息", "from", msg.From)
	if err := h.leadService.HandleIncomingMessage(c.Request.Context(), msg); err != nil {
		log.Error("Receive: 处理入站消息失败", err)
	}
}
