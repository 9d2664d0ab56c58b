package service

import (
	"context"
	"fmt"
	"site-assistant-go/internal/model"
	"site-assistant-go/pkg/log"
	"site-assistant-go/pkg/mail"
	"site-assistant-go/pkg/tasks"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultNotificationTimeout = 15 * time.Second

// Notifier 对一条已保存的线索做尽力而为的通知，永远不向调用方返回错误。
type Notifier interface {
	Notify(ctx context.Context, lead model.Lead)
}

// NotificationChannel 是一个独立的通知渠道（邮件、WhatsApp、事件总线……）。
type NotificationChannel interface {
	Name() string
	Deliver(ctx context.Context, lead model.Lead) error
}

// NotificationService 并发地把线索扇出到所有渠道，各渠道的失败互相隔离，只记录日志。
type NotificationService struct {
	channels []NotificationChannel
	timeout  time.Duration
}

// NewNotificationService 创建通知扇出服务；timeout 限制整次扇出的耗时。
func NewNotificationService(timeout time.Duration, channels ...NotificationChannel) *NotificationService {
	if timeout <= 0 {
		timeout = defaultNotificationTimeout
	}
	return &NotificationService{channels: channels, timeout: timeout}
}

// Notify 等待所有渠道结束（或超时）后返回。
func (s *NotificationService) Notify(ctx context.Context, lead model.Lead) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// 不使用 errgroup.WithContext：一个渠道失败不应取消其它渠道
	var g errgroup.Group
	for _, ch := range s.channels {
		ch := ch
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorw("通知渠道发生 panic", "channel", ch.Name(), "panic", r)
				}
			}()
			if err := ch.Deliver(ctx, lead); err != nil {
				log.Errorw("通知发送失败", "channel", ch.Name(), "error", err)
				return nil
			}
			log.Infow("通知发送成功", "channel", ch.Name())
			return nil
		})
	}
	_ = g.Wait()
}

type emailChannel struct {
	sender mail.Sender
	brand  string
}

// NewEmailChannel 向线索邮箱发送确认邮件；线索没有邮箱时跳过。
func NewEmailChannel(sender mail.Sender, brand string) NotificationChannel {
	return &emailChannel{sender: sender, brand: brand}
}

func (c *emailChannel) Name() string { return "email" }

func (c *emailChannel) Deliver(ctx context.Context, lead model.Lead) error {
	to := lead.Email()
	if to == "" {
		log.Infof("线索没有邮箱地址，跳过确认邮件")
		return nil
	}
	html, err := renderEstimateEmail(c.brand, lead)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, mail.Message{
		To:      to,
		Subject: estimateEmailSubject(c.brand, lead),
		HTML:    html,
	})
}

// TextMessenger 是发送即时消息的最小接口，由 whatsapp.Client 实现。
type TextMessenger interface {
	SendText(ctx context.Context, to, text string) error
}

type whatsAppChannel struct {
	messenger TextMessenger
	brand     string
}

// NewWhatsAppChannel 在线索带有手机号时发送模板消息。
func NewWhatsAppChannel(messenger TextMessenger, brand string) NotificationChannel {
	return &whatsAppChannel{messenger: messenger, brand: brand}
}

func (c *whatsAppChannel) Name() string { return "whatsapp" }

func (c *whatsAppChannel) Deliver(ctx context.Context, lead model.Lead) error {
	number := lead.MobileNumber()
	if number == "" {
		return nil
	}
	text, err := renderWhatsAppMessage(c.brand, lead)
	if err != nil {
		return err
	}
	return c.messenger.SendText(ctx, number, text)
}

// EventPublisher 发布领域事件，由 kafka.Producer 实现。
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type eventChannel struct {
	publisher EventPublisher
	now       func() time.Time
}

// NewEventChannel 把线索作为 lead.captured 事件发布到消息总线。
func NewEventChannel(publisher EventPublisher) NotificationChannel {
	return &eventChannel{publisher: publisher, now: time.Now}
}

func (c *eventChannel) Name() string { return "event" }

func (c *eventChannel) Deliver(ctx context.Context, lead model.Lead) error {
	key := lead.Email()
	if key == "" {
		key = lead.MobileNumber()
	}
	return c.publisher.Publish(ctx, key, tasks.NewLeadCapturedEvent(lead, c.now()))
}

// LeadIndexer 把线索写入检索索引，由 es.LeadIndexer 实现。
type LeadIndexer interface {
	IndexLead(ctx context.Context, documentID string, doc any) error
}

type searchIndexChannel struct {
	indexer LeadIndexer
}

// NewSearchIndexChannel 以随机 UUID 作为文档 ID 索引线索。
func NewSearchIndexChannel(indexer LeadIndexer) NotificationChannel {
	return &searchIndexChannel{indexer: indexer}
}

func (c *searchIndexChannel) Name() string { return "search_index" }

func (c *searchIndexChannel) Deliver(ctx context.Context, lead model.Lead) error {
	if err := c.indexer.IndexLead(ctx, uuid.NewString(), lead); err != nil {
		return fmt.Errorf("index lead: %w", err)
	}
	return nil
}
