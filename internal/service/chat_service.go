// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"site-assistant-go/internal/config"
	"site-assistant-go/internal/model"
	"site-assistant-go/internal/moderation"
	"site-assistant-go/pkg/llm"
	"site-assistant-go/pkg/log"
	"strings"
)

// 被拦截时返回给前端的固定话术。
const (
	BlockedAccessMessage = "Your access is currently blocked due to multiple off-topic messages. Please try again later."
	NewlyBlockedMessage  = "I apologize, but we need to stay focused on website-related topics. This conversation has been blocked due to multiple off-topic messages."
	redirectInstruction  = "Politely redirect the conversation back to website-related topics."
)

// ErrEmptyConversation 表示请求中没有任何对话轮次。
var ErrEmptyConversation = errors.New("messages must contain at least one turn")

// ChatRequest 是一次聊天请求：有序的对话历史，加上需要透传给后端的其它字段。
type ChatRequest struct {
	Messages []model.ChatMessage
	Extra    map[string]json.RawMessage
}

// ChatResult 携带策略判定；未被拦截时 Body 为后端的原始响应体。
type ChatResult struct {
	Decision moderation.Decision
	Body     []byte
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Handle 对最新一轮消息做策略判定，放行时组装系统提示并转发给语言模型。
	Handle(ctx context.Context, clientID string, req ChatRequest) (ChatResult, error)
	// Unblock 清除客户端的封禁与离题计数，返回此前是否处于封禁状态。
	Unblock(ctx context.Context, clientID string) (bool, error)
	// Persona 返回助手人设。
	Persona() model.Persona
}

type chatService struct {
	engine    *moderation.Engine
	llmClient llm.Client
	assistant config.AssistantConfig
	persona   model.Persona
	knowledge json.RawMessage
}

// NewChatService 创建一个新的 ChatService 实例。knowledge 为空时按空对象注入提示。
func NewChatService(engine *moderation.Engine, llmClient llm.Client, assistant config.AssistantConfig, blockThreshold int, knowledge json.RawMessage) ChatService {
	if len(knowledge) == 0 {
		knowledge = json.RawMessage("{}")
	}
	return &chatService{
		engine:    engine,
		llmClient: llmClient,
		assistant: assistant,
		persona:   BuildPersona(assistant, blockThreshold),
		knowledge: knowledge,
	}
}

// BuildPersona 由配置生成助手人设。
func BuildPersona(cfg config.AssistantConfig, blockThreshold int) model.Persona {
	return model.Persona{
		Name:        cfg.Name,
		Role:        cfg.Role,
		Personality: cfg.Personality,
		Expertise:   cfg.Expertise,
		Greeting:    cfg.Greeting,
		Capabilities: model.Capabilities{
			EmailSupport:    true,
			LeadCollection:  true,
			Navigation:      true,
			WhatsAppSupport: true,
		},
		Rules: model.PersonaRules{
			MaxOffTopicResponses: blockThreshold,
			OffTopicMessage:      cfg.OffTopicMessage,
			RefocusMessage:       cfg.RefocusMessage,
		},
		NavigationInstructions: cfg.NavigationInstructions,
	}
}

func (s *chatService) Persona() model.Persona {
	return s.persona
}

func (s *chatService) Unblock(ctx context.Context, clientID string) (bool, error) {
	wasBlocked, err := s.engine.Unblock(ctx, clientID)
	if err != nil {
		return false, fmt.Errorf("failed to unblock client: %w", err)
	}
	log.Infow("解除封禁", "clientIP", clientID, "wasBlocked", wasBlocked)
	return wasBlocked, nil
}

func (s *chatService) Handle(ctx context.Context, clientID string, req ChatRequest) (ChatResult, error) {
	if len(req.Messages) == 0 {
		return ChatResult{}, ErrEmptyConversation
	}

	// 只对最后一轮做相关性判定，历史不重复评估
	latest := req.Messages[len(req.Messages)-1].Text()
	decision, err := s.engine.Evaluate(ctx, clientID, latest)
	if err != nil {
		return ChatResult{}, fmt.Errorf("failed to evaluate message: %w", err)
	}
	if decision.Terminal() {
		log.Infow("对话被拦截", "clientIP", clientID, "outcome", decision.Outcome.String(), "offTopicCount", decision.OffTopicCount)
		return ChatResult{Decision: decision}, nil
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	log.Infow("转发请求到语言模型", "clientIP", clientID, "outcome", decision.Outcome.String(), "turns", len(messages))
	body, err := s.llmClient.CreateMessage(ctx, llm.MessageRequest{
		System:   s.buildSystemMessage(decision),
		Messages: messages,
		Extra:    req.Extra,
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("failed to call language model: %w", err)
	}
	return ChatResult{Decision: decision, Body: body}, nil
}

// buildSystemMessage 组装人设、网站知识、固定操作说明，以及离题提醒。
func (s *chatService) buildSystemMessage(decision moderation.Decision) string {
	a := s.assistant
	var sys strings.Builder

	fmt.Fprintf(&sys, "You are %s, %s. Your expertise includes: %s. Your role is: %s.\n",
		a.Name, a.Personality, strings.Join(a.Expertise, ", "), a.Role)
	sys.WriteString("You have access to the following website information:\n")
	sys.Write(s.knowledge)
	sys.WriteString("\n\n")

	sys.WriteString("You have the ability to send emails to users. When users request information about our services, pricing, or any documentation:\n")
	sys.WriteString("1. Let them know you can send them detailed information via email\n")
	sys.WriteString("2. Offer to collect their contact information\n")
	sys.WriteString("3. Be specific about what information you'll send them\n\n")

	sys.WriteString("Some key points about handling email requests:\n")
	sys.WriteString("- If someone asks about prices or services, offer to send detailed information via email\n")
	sys.WriteString("- If someone wants documentation or examples, mention you can email those\n")
	sys.WriteString("- When someone asks for contact information, offer to send it via email\n")
	sys.WriteString("- Always maintain a professional tone when discussing email communications\n")
	if a.FounderPhone != "" {
		founder := a.FounderName
		if founder == "" {
			founder = "our founder"
		}
		fmt.Fprintf(&sys, "- If someone asks you to contact %s, tell them the best way to reach %s is by a phone call on %s\n", founder, founder, a.FounderPhone)
	}
	if a.PronunciationNote != "" {
		fmt.Fprintf(&sys, "- %s\n", a.PronunciationNote)
	}
	sys.WriteString("\n")
	sys.WriteString(a.NavigationInstructions)

	if decision.Outcome == moderation.OutcomeWarn {
		switch decision.WarnLevel {
		case 1:
			sys.WriteString(" ")
			sys.WriteString(redirectInstruction)
		default:
			sys.WriteString(" ")
			sys.WriteString(a.OffTopicMessage)
		}
	}
	return sys.String()
}
