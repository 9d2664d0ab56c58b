package service

import (
	"context"
	"errors"
	"fmt"
	"site-assistant-go/internal/model"
	"site-assistant-go/internal/repository"
	"site-assistant-go/pkg/log"
	"strings"
	"time"
)

// RequiredLeadFields 是严格入口要求的字段，顺序即报错时的列出顺序。
var RequiredLeadFields = []string{
	model.LeadFieldName,
	model.LeadFieldEmail,
	model.LeadFieldCompanyName,
	model.LeadFieldMobileNumber,
	model.LeadFieldService,
}

// ErrEmptyLead 表示请求体为空或不是一个对象。
var ErrEmptyLead = errors.New("lead data is empty")

// ValidationError 列出严格入口中缺失的字段。
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Missing required fields: " + strings.Join(e.Missing, ", ")
}

// LeadService 定义了线索收集相关的操作。
type LeadService interface {
	// SubmitStrict 校验必填字段后保存线索并触发通知。
	SubmitStrict(ctx context.Context, lead model.Lead) error
	// SubmitLenient 只要求线索非空。
	SubmitLenient(ctx context.Context, lead model.Lead) error
	// List 按写入顺序返回全部线索。
	List(ctx context.Context) ([]model.Lead, error)
	// HandleIncomingMessage 把 WhatsApp 入站消息当作一条宽松线索处理。
	HandleIncomingMessage(ctx context.Context, msg model.IncomingMessage) error
}

type leadService struct {
	repo     repository.LeadRepository
	notifier Notifier
	now      func() time.Time
}

// NewLeadService 创建一个新的 LeadService 实例。notifier 可以为 nil。
func NewLeadService(repo repository.LeadRepository, notifier Notifier) LeadService {
	return &leadService{repo: repo, notifier: notifier, now: time.Now}
}

func (s *leadService) SubmitStrict(ctx context.Context, lead model.Lead) error {
	if lead == nil {
		return ErrEmptyLead
	}
	if missing := lead.MissingFields(RequiredLeadFields); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return s.save(ctx, lead)
}

func (s *leadService) SubmitLenient(ctx context.Context, lead model.Lead) error {
	if len(lead) == 0 {
		return ErrEmptyLead
	}
	return s.save(ctx, lead)
}

func (s *leadService) List(ctx context.Context) ([]model.Lead, error) {
	return s.repo.List(ctx)
}

func (s *leadService) HandleIncomingMessage(ctx context.Context, msg model.IncomingMessage) error {
	if msg.From == "" {
		return ErrEmptyLead
	}
	return s.SubmitLenient(ctx, model.Lead{
		model.LeadFieldMobileNumber: msg.From,
		"message":                   msg.Text,
		"source":                    "whatsapp",
	})
}

// save 先持久化再通知；通知在脱离请求取消信号的上下文中执行，结果不影响返回值。
func (s *leadService) save(ctx context.Context, lead model.Lead) error {
	stamped := lead.Stamped(s.now())
	if err := s.repo.Append(ctx, stamped); err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}
	log.Infow("线索已保存", "email", stamped.Email(), "service", stamped.Service())

	if s.notifier != nil {
		s.notifier.Notify(context.WithoutCancel(ctx), stamped)
	}
	return nil
}
