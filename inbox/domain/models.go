package domain

import "time"

// ChannelWhatsApp is the conversation channel tag for gateway traffic.
const ChannelWhatsApp = "whatsapp"

type Contact struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email,omitempty"`
	Origin         string    `json:"origin"`
	Avatar         string    `json:"avatar,omitempty"`
	Tags           []string  `json:"tags"`
	AssignedUserID *uint     `json:"assigned_user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ConversationStatus string

const (
	ConversationOpen     ConversationStatus = "open"
	ConversationPending  ConversationStatus = "pending"
	ConversationResolved ConversationStatus = "resolved"
)

type AssignmentMethod string

const (
	AssignmentAutomatic AssignmentMethod = "automatic"
	AssignmentManual    AssignmentMethod = "manual"
)

type Conversation struct {
	ID                uint               `json:"id"`
	ContactID         uint               `json:"contact_id"`
	Channel           string             `json:"channel"`
	ChannelInstanceID *uint              `json:"channel_instance_id,omitempty"`
	Status            ConversationStatus `json:"status"`
	TeamID            *uint              `json:"team_id,omitempty"`
	AssignedUserID    *uint              `json:"assigned_user_id,omitempty"`
	AssignmentMethod  AssignmentMethod   `json:"assignment_method,omitempty"`
	AssignedAt        *time.Time         `json:"assigned_at,omitempty"`
	Priority          string             `json:"priority"`
	Macrosetor        string             `json:"macrosetor,omitempty"`
	UnreadCount       int                `json:"unread_count"`
	LastMessage       string             `json:"last_message,omitempty"`
	LastMessageAt     *time.Time         `json:"last_message_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type MessageType string

const (
	MessageText        MessageType = "text"
	MessageImage       MessageType = "image"
	MessageGIF         MessageType = "gif"
	MessageAudio       MessageType = "audio"
	MessageVideo       MessageType = "video"
	MessageDocument    MessageType = "document"
	MessageSticker     MessageType = "sticker"
	MessageLocation    MessageType = "location"
	MessageContact     MessageType = "contact"
	MessageReaction    MessageType = "reaction"
	MessagePoll        MessageType = "poll"
	MessageButton      MessageType = "button"
	MessageList        MessageType = "list"
	MessageTemplate    MessageType = "template"
	MessageUnsupported MessageType = "unsupported"
)

// IsMedia reports whether content holds a media URL or placeholder.
func (t MessageType) IsMedia() bool {
	switch t {
	case MessageImage, MessageGIF, MessageAudio, MessageVideo, MessageDocument, MessageSticker:
		return true
	}
	return false
}

// Message metadata keys shared by the normalizer, the send path and the UI.
const (
	MetaMediaURL   = "media_url"
	MetaFileName   = "file_name"
	MetaMimeType   = "mime_type"
	MetaCaption    = "caption"
	MetaSenderName = "sender_name"
	MetaSendError  = "send_error"
	MetaSource     = "source"
)

type Message struct {
	ID               uint           `json:"id"`
	ConversationID   uint           `json:"conversation_id"`
	Content          string         `json:"content"`
	IsFromContact    bool           `json:"is_from_contact"`
	Type             MessageType    `json:"type"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	GatewayMessageID string         `json:"gateway_message_id,omitempty"`
	CorrelationID    string         `json:"correlation_id,omitempty"`
	IsDeleted        bool           `json:"is_deleted"`
	SentAt           time.Time      `json:"sent_at"`
	DeliveredAt      *time.Time     `json:"delivered_at,omitempty"`
	ReadAt           *time.Time     `json:"read_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Text returns the part of the message that can be read as words: the body
// for text and interactive replies, the caption for media, empty otherwise.
func (m *Message) Text() string {
	switch m.Type {
	case MessageText, MessageButton, MessageList, MessageTemplate:
		return m.Content
	}
	if c, ok := m.Metadata[MetaCaption].(string); ok {
		return c
	}
	return ""
}

// DeliveryStatus is the subset of gateway status values that move timestamps.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
)

type ConversationFilter struct {
	Status     ConversationStatus
	TeamID     *uint
	Macrosetor string
	Limit      int
	Offset     int
}
