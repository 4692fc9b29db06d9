package domain

import (
	"context"
	"time"
)

type ContactRepository interface {
	// Upsert returns the contact for c.Phone, inserting c when none exists.
	// It is safe under concurrent calls for the same phone and origin.
	Upsert(ctx context.Context, c *Contact) (contact *Contact, created bool, err error)
	GetByID(ctx context.Context, id uint) (*Contact, error)
	UpdateAvatar(ctx context.Context, id uint, avatar string) error
	AddTags(ctx context.Context, id uint, tags ...string) error
}

type ConversationRepository interface {
	// Upsert converges on one row per (contact, channel). repaired is true when
	// an existing row gained its channel instance id in this call.
	Upsert(ctx context.Context, contactID uint, channel string, channelInstanceID *uint) (conv *Conversation, created, repaired bool, err error)
	GetByID(ctx context.Context, id uint) (*Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]*Conversation, error)
	TouchInbound(ctx context.Context, id uint, preview string, at time.Time) error
	TouchOutbound(ctx context.Context, id uint, preview string, at time.Time) error
	SetMacrosetor(ctx context.Context, id uint, macrosetor string) error
}

type MessageRepository interface {
	// Create inserts m. created is false when a row with the same gateway
	// message id already exists.
	Create(ctx context.Context, m *Message) (created bool, err error)
	GetByID(ctx context.Context, id uint) (*Message, error)
	FindByGatewayID(ctx context.Context, gatewayID string) (*Message, error)
	AttachGatewayID(ctx context.Context, correlationID, gatewayID string) error
	// SupersedeEcho soft-deletes echoID, releases its gateway id and stamps
	// that id on the message created with correlationID, atomically.
	SupersedeEcho(ctx context.Context, echoID uint, correlationID, gatewayID string) error
	MergeMetadata(ctx context.Context, id uint, values map[string]any) error
	MarkDelivery(ctx context.Context, gatewayIDs []string, status DeliveryStatus, at time.Time) (int64, error)
	SoftDelete(ctx context.Context, id uint) (*Message, error)
	ListRecent(ctx context.Context, conversationID uint, limit int) ([]*Message, error)
	RecentOutboundContents(ctx context.Context, conversationID uint, since time.Time) ([]string, error)
}
