// Package mail 通过 SMTP 发送事务性邮件。
package mail

import (
	"context"
	"fmt"
	"site-assistant-go/internal/config"
	"strings"

	"gopkg.in/gomail.v2"
)

// Message 是一封待发送的 HTML 邮件。
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender 定义了发信接口。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSender 基于 SMTP 配置创建发信器。未配置 from 时使用登录用户名作为发件人。
func NewSender(cfg config.MailConfig) Sender {
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = cfg.Username
	}
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

func (s *smtpSender) buildMessage(msg Message) (*gomail.Message, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil, fmt.Errorf("mail recipient is required")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	return m, nil
}

// Send 发送邮件。gomail 不支持 context，因此在独立 goroutine 中拨号，ctx 取消时提前返回。
func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail send aborted: %w", ctx.Err())
	}
}
