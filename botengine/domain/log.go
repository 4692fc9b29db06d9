package domain

import (
	"context"
	"time"
)

// LogEntry is one row of the classification audit trail.
type LogEntry struct {
	ID             uint            `json:"id"`
	MessageID      uint            `json:"message_id"`
	ConversationID uint            `json:"conversation_id"`
	ContactID      uint            `json:"contact_id"`
	Provider       string          `json:"provider"`
	Intent         string          `json:"intent"`
	Confidence     int             `json:"confidence"`
	Mode           string          `json:"mode"`
	LatencyMS      int64           `json:"latency_ms"`
	Error          string          `json:"error,omitempty"`
	Snapshot       *Classification `json:"snapshot,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type LogRepository interface {
	Create(ctx context.Context, entry *LogEntry) error
	ListByConversation(ctx context.Context, conversationID uint, limit int) ([]*LogEntry, error)
}
