// Package tasks defines the structure for messages that are sent to Kafka.
package tasks

import (
	"site-assistant-go/internal/model"
	"time"
)

// LeadCapturedType is the event type published after a lead is persisted.
const LeadCapturedType = "lead.captured"

// LeadCapturedEvent represents a lead that has just been saved.
type LeadCapturedEvent struct {
	Type       string     `json:"type"`
	Lead       model.Lead `json:"lead"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewLeadCapturedEvent builds the event for lead at the given time (stored as UTC).
func NewLeadCapturedEvent(lead model.Lead, at time.Time) LeadCapturedEvent {
	return LeadCapturedEvent{Type: LeadCapturedType, Lead: lead, OccurredAt: at.UTC()}
}
