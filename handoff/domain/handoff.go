package domain

import (
	"context"
	"time"
)

type Type string

const (
	TypeManual                  Type = "manual"
	TypeAutomatic               Type = "automatic"
	TypeAutomaticEquitable      Type = "automatic_equitable"
	TypeCorrectedRedistribution Type = "corrected_redistribution"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Team struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	Macrosetor string    `json:"macrosetor"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type Agent struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	TeamID    uint      `json:"team_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the part of the classification kept with a handoff.
type Snapshot struct {
	Intent           string `json:"intent,omitempty"`
	Confidence       int    `json:"confidence"`
	FrustrationLevel int    `json:"frustration_level"`
	Urgency          string `json:"urgency,omitempty"`
	Provider         string `json:"provider,omitempty"`
}

// Recommendation is a routing decision that has not been executed yet.
type Recommendation struct {
	Team     string   `json:"team"`
	TeamID   *uint    `json:"team_id,omitempty"`
	UserID   *uint    `json:"user_id,omitempty"`
	Type     Type     `json:"type"`
	Reason   string   `json:"reason"`
	Priority string   `json:"priority"`
	Trigger  string   `json:"trigger"`
	Snapshot Snapshot `json:"snapshot"`
}

type Handoff struct {
	ID             uint           `json:"id"`
	ConversationID uint           `json:"conversation_id"`
	FromTeamID     *uint          `json:"from_team_id,omitempty"`
	ToTeamID       *uint          `json:"to_team_id,omitempty"`
	ToUserID       *uint          `json:"to_user_id,omitempty"`
	Type           Type           `json:"type"`
	Reason         string         `json:"reason"`
	Priority       string         `json:"priority"`
	Status         Status         `json:"status"`
	Snapshot       Snapshot       `json:"snapshot"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Error          string         `json:"error,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Repository interface {
	CreateTeam(ctx context.Context, t *Team) error
	ListTeams(ctx context.Context) ([]*Team, error)
	// TeamForMacrosetor returns the first active team serving the macrosetor.
	TeamForMacrosetor(ctx context.Context, macrosetor string) (*Team, error)
	TeamByID(ctx context.Context, id uint) (*Team, error)
	CreateAgent(ctx context.Context, a *Agent) error
	AgentByID(ctx context.Context, id uint) (*Agent, error)
	// LeastLoadedAgent returns the active agent of the team with the fewest
	// unresolved assigned conversations, lowest id first on ties.
	LeastLoadedAgent(ctx context.Context, teamID uint) (*Agent, error)

	// Execute records the handoff and applies the assignment atomically. On
	// failure a failed handoff row is written and the error is returned.
	Execute(ctx context.Context, h *Handoff) error
	ListByConversation(ctx context.Context, conversationID uint, limit int) ([]*Handoff, error)
}
