package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"site-assistant-go/internal/model"
	"site-assistant-go/internal/service"
	"site-assistant-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// LeadHandler 负责线索收集与查询接口。
type LeadHandler struct {
	leadService service.LeadService
}

// NewLeadHandler 创建一个新的 LeadHandler 实例。
func NewLeadHandler(leadService service.LeadService) *LeadHandler {
	return &LeadHandler{leadService: leadService}
}

// decodeLead 按 JSON 数字原样保留的方式解析请求体；非对象或解析失败时返回 nil。
func decodeLead(c *gin.Context) model.Lead {
	raw, err := c.GetRawData()
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var lead model.Lead
	if err := dec.Decode(&lead); err != nil {
		log.Warnf("decodeLead: Invalid request payload, error: %v", err)
		return nil
	}
	return lead
}

// SubmitStrict 处理 POST /api/v1/leads，要求全部必填字段。
func (h *LeadHandler) SubmitStrict(c *gin.Context) {
	err := h.leadService.SubmitStrict(c.Request.Context(), decodeLead(c))
	var verr *service.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Lead saved successfully"})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, service.ErrEmptyLead):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead data"})
	default:
		log.Error("SubmitStrict: 保存线索失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save lead"})
	}
}

// SubmitLenient 处理 POST /v1/leads，只要求线索非空。
func (h *LeadHandler) SubmitLenient(c *gin.Context) {
	err := h.leadService.SubmitLenient(c.Request.Context(), decodeLead(c))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Lead saved successfully"})
	case errors.Is(err, service.ErrEmptyLead):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead data"})
	default:
		log.Error("SubmitLenient: 保存线索失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save lead"})
	}
}

// List 处理 GET /api/v1/leads，按写入顺序返回全部线索。
func (h *LeadHandler) List(c *gin.Context) {
	leads, err := h.leadService.List(c.Request.Context())
	if err != nil {
		log.Error("List: 读取线索失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve leads"})
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	c.JSON(http.StatusOK, leads)
}
