package handler

import (
	"net/http"
	"site-assistant-go/internal/config"

	"github.com/gin-gonic/gin"
)

// DiagnosticsHandler 报告各个外部集成是否已配置，只输出布尔值。
type DiagnosticsHandler struct {
	cfg config.Config
}

// NewDiagnosticsHandler 创建一个新的 DiagnosticsHandler 实例。
func NewDiagnosticsHandler(cfg config.Config) *DiagnosticsHandler {
	return &DiagnosticsHandler{cfg: cfg}
}

// Status 处理 GET /api/v1/diagnostics。
func (h *DiagnosticsHandler) Status(c *gin.Context) {
	cfg := h.cfg
	c.JSON(http.StatusOK, gin.H{
		"llmConfigured":           cfg.LLM.APIKey != "",
		"emailConfigured":         cfg.Mail.Enabled && cfg.Mail.Host != "" && cfg.Mail.Username != "",
		"whatsappConfigured":      cfg.WhatsApp.Enabled && cfg.WhatsApp.AccessToken != "" && cfg.WhatsApp.PhoneNumberID != "",
		"webhookVerifyConfigured": cfg.WhatsApp.VerifyToken != "",
		"webhookSignatureChecked": cfg.WhatsApp.AppSecret != "",
		"redisLedger":             cfg.Moderation.Ledger == "redis",
		"mysqlLeadStore":          cfg.Leads.Store == "mysql",
		"kafkaEnabled":            cfg.Kafka.Enabled,
		"elasticsearchEnabled":    cfg.Elasticsearch.Enabled,
		"minioKnowledge":          cfg.MinIO.Enabled && cfg.Assistant.KnowledgeSource == "minio",
	})
}
