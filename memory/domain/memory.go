package domain

import (
	"context"
	"errors"
	"time"
)

type EntryType string

const (
	TypeUserInfo    EntryType = "user_info"
	TypePreferences EntryType = "preferences"
	TypeContext     EntryType = "context"
	TypeHistory     EntryType = "history"
)

// Types lists entry types in the order they are rendered.
var Types = []EntryType{TypeUserInfo, TypePreferences, TypeContext, TypeHistory}

const (
	SourceManual   = "manual"
	SourceInferred = "inferred"
)

var (
	ErrEntryNotFound = errors.New("memory entry not found")
	ErrInvalidEntry  = errors.New("invalid memory entry")
)

// Entry is one contextual fact about a contact inside a conversation.
// (ConversationID, ContactID, Type, Key) is unique among active entries.
type Entry struct {
	ID             uint       `json:"id"`
	ConversationID uint       `json:"conversation_id"`
	ContactID      uint       `json:"contact_id"`
	Type           EntryType  `json:"type"`
	Key            string     `json:"key"`
	Value          string     `json:"value"`
	Confidence     int        `json:"confidence"`
	Source         string     `json:"source"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func ValidType(t EntryType) bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

type Repository interface {
	// Upsert inserts the entry or updates the active entry with the same key.
	Upsert(ctx context.Context, e *Entry) error
	// ListActive returns unexpired active entries ordered by confidence, then recency.
	ListActive(ctx context.Context, conversationID, contactID uint, now time.Time, limit int) ([]*Entry, error)
	Deactivate(ctx context.Context, id uint) error
	// DeactivateExpired soft-deactivates every active entry whose expiry has passed.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
