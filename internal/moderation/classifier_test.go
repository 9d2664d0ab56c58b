package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_IsRelevant(t *testing.T) {
	c := NewClassifier(nil, nil)

	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{"pricing question", "what are your web development prices?", true},
		{"dating request", "do you want to date sometime?", false},
		{"exclusion beats inclusion", "can we meet to discuss my website?", false},
		{"case insensitive", "Tell me about your SEO SERVICES", true},
		{"empty", "", false},
		{"whitespace", "   \t\n", false},
		{"small talk", "how is the weather today", false},
		{"substring inside unrelated word", "I need a friendly website", false},
		{"multi word keyword", "are you an AI Consultant?", true},
		{"brand name", "what does 3alaFekra do", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsRelevant(tt.message))
		})
	}
}

func TestClassifier_CustomKeywords(t *testing.T) {
	c := NewClassifier([]string{" Bakery ", "", "bakery"}, []string{"Gossip"})

	assert.True(t, c.IsRelevant("do you deliver bakery items?"))
	assert.False(t, c.IsRelevant("website"), "custom lists replace the defaults")
	assert.False(t, c.IsRelevant("bakery gossip"))
	assert.Equal(t, []string{"bakery"}, c.included)
}
