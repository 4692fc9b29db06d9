package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDealNotFound = errors.New("deal not found")
	// ErrActiveDealExists is returned when another active deal for the same
	// contact and macrosetor won the insert.
	ErrActiveDealExists = errors.New("active deal already exists")
)

// Deal is one contact's position in a macrosetor funnel.
type Deal struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	ContactID   uint      `json:"contact_id"`
	Macrosetor  string    `json:"macrosetor"`
	Stage       string    `json:"stage"`
	StageIndex  int       `json:"stage_index"`
	Value       float64   `json:"value"`
	Probability int       `json:"probability"`
	OwnerID     *uint     `json:"owner_id,omitempty"`
	Origin      string    `json:"origin"`
	Tags        []string  `json:"tags"`
	Notes       string    `json:"notes,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Filter struct {
	ContactID  uint
	Macrosetor string
	Stage      string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type Repository interface {
	Active(ctx context.Context, contactID uint, macrosetor string) (*Deal, error)
	GetByID(ctx context.Context, id uint) (*Deal, error)
	Create(ctx context.Context, d *Deal) error
	// Advance moves the deal to stageIndex only if that is ahead of the
	// stored stage. It reports whether a row changed.
	Advance(ctx context.Context, id uint, stage string, stageIndex, probability int) (bool, error)
	List(ctx context.Context, filter Filter) ([]*Deal, error)
}
