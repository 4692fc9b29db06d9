package domain

import (
	"context"
	"time"
)

// ReasonEchoOfOutbound blocks a contact message that repeats what the
// business just sent.
const ReasonEchoOfOutbound = "echo_of_outbound"

// Verdict is the outcome of a guard check.
type Verdict struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// BlockEvent records why automation was skipped for a message.
type BlockEvent struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversation_id"`
	MessageID      uint      `json:"message_id"`
	Reason         string    `json:"reason"`
	Snippet        string    `json:"snippet"`
	CreatedAt      time.Time `json:"created_at"`
}

type BlockRepository interface {
	Record(ctx context.Context, ev *BlockEvent) error
	ListByConversation(ctx context.Context, conversationID uint, limit int) ([]*BlockEvent, error)
}
