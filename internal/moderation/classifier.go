// Package moderation 实现了对话的离题判定与基于 IP 的封禁策略。
package moderation

import "strings"

// DefaultIncludedKeywords 是与网站业务相关的词表。
var DefaultIncludedKeywords = []string{
	"website", "services", "web", "development", "seo",
	"company", "3alafekra", "business", "contact", "price",
	"project", "work", "portfolio", "about", "ai consultant",
	"email", "send", "message", "estimate", "quote",
	"information", "details", "whatsapp",
}

// DefaultExcludedKeywords 是社交或私人话题的词表，命中时优先判定为离题。
var DefaultExcludedKeywords = []string{
	"kiss", "date", "meet", "relationship", "personal",
	"inappropriate", "private", "chat", "friend",
}

// Classifier 用大小写不敏感的子串匹配判断消息是否与网站相关。
// 没有分词和词干处理：关键词出现在无关单词内部（如 "friendly" 含 "friend"）同样算命中。
type Classifier struct {
	included []string
	excluded []string
}

// NewClassifier 创建分类器；词表为空时使用默认词表。
func NewClassifier(included, excluded []string) *Classifier {
	if len(included) == 0 {
		included = DefaultIncludedKeywords
	}
	if len(excluded) == 0 {
		excluded = DefaultExcludedKeywords
	}
	return &Classifier{
		included: normalizeKeywords(included),
		excluded: normalizeKeywords(excluded),
	}
}

// IsRelevant 排除词优先；否则命中任一业务词即为相关。空消息不相关。
func (c *Classifier) IsRelevant(message string) bool {
	lower := strings.ToLower(message)
	if containsAny(lower, c.excluded) {
		return false
	}
	return containsAny(lower, c.included)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
