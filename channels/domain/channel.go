package domain

import (
	"context"
	"time"
)

type ChannelType string

const (
	// ChannelTypeGateway is a WhatsApp number served by the HTTP messaging gateway.
	ChannelTypeGateway ChannelType = "whatsapp_gateway"
)

type ConnectionStatus string

const (
	StatusUnknown      ConnectionStatus = "unknown"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// Channel is one configured gateway instance with its own credentials.
type Channel struct {
	ID              uint             `json:"id"`
	Name            string           `json:"name"`
	Type            ChannelType      `json:"type"`
	InstanceID      string           `json:"instance_id"`
	Token           string           `json:"-"`
	ClientToken     string           `json:"-"`
	Active          bool             `json:"active"`
	IsDefault       bool             `json:"is_default"`
	Status          ConnectionStatus `json:"status"`
	StatusChangedAt *time.Time       `json:"status_changed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// HasCredentials reports whether all three gateway credential fields are set.
func (c *Channel) HasCredentials() bool {
	return c.InstanceID != "" && c.Token != "" && c.ClientToken != ""
}

// CachedStatus is a gateway status probe result kept for a bounded TTL.
type CachedStatus struct {
	ChannelID           uint      `json:"channel_id"`
	Connected           bool      `json:"connected"`
	SmartphoneConnected bool      `json:"smartphone_connected"`
	Error               string    `json:"error,omitempty"`
	CheckedAt           time.Time `json:"checked_at"`
	Cached              bool      `json:"cached"`
}

type ChannelRepository interface {
	Create(ctx context.Context, ch *Channel) error
	GetByID(ctx context.Context, id uint) (*Channel, error)
	FindActiveByInstanceID(ctx context.Context, instanceID string) (*Channel, error)
	ListActiveDefaults(ctx context.Context) ([]*Channel, error)
	List(ctx context.Context) ([]*Channel, error)
	Update(ctx context.Context, ch *Channel) error
	UpdateStatus(ctx context.Context, instanceID string, status ConnectionStatus, at time.Time) (*Channel, error)
}

// StatusCache stores status probes. Get returns nil when absent or expired.
type StatusCache interface {
	Get(ctx context.Context, channelID uint) (*CachedStatus, error)
	Set(ctx context.Context, status CachedStatus, ttl time.Duration) error
	Invalidate(ctx context.Context, channelID uint) error
}
