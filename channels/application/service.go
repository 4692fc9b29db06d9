package application

import (
	"context"
	"strings"

	"github.com/eduzayn/educhat/channels/domain"
)

// Service is the administrative surface for channel rows.
type Service struct {
	repo domain.ChannelRepository
}

func NewService(repo domain.ChannelRepository) *Service {
	return &Service{repo: repo}
}

type ChannelInput struct {
	Name        string `json:"name"`
	InstanceID  string `json:"instance_id"`
	Token       string `json:"token"`
	ClientToken string `json:"client_token"`
	Active      *bool  `json:"active"`
	IsDefault   bool   `json:"is_default"`
}

func (s *Service) Create(ctx context.Context, in ChannelInput) (*domain.Channel, error) {
	ch := &domain.Channel{
		Name:        strings.TrimSpace(in.Name),
		Type:        domain.ChannelTypeGateway,
		InstanceID:  strings.TrimSpace(in.InstanceID),
		Token:       strings.TrimSpace(in.Token),
		ClientToken: strings.TrimSpace(in.ClientToken),
		Active:      in.Active == nil || *in.Active,
		IsDefault:   in.IsDefault,
		Status:      domain.StatusUnknown,
	}
	if err := s.repo.Create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.Channel, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uint) (*domain.Channel, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces mutable fields. Empty token fields keep the stored secret.
func (s *Service) Update(ctx context.Context, id uint, in ChannelInput) (*domain.Channel, error) {
	ch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(in.Name); v != "" {
		ch.Name = v
	}
	if v := strings.TrimSpace(in.InstanceID); v != "" {
		ch.InstanceID = v
	}
	if v := strings.TrimSpace(in.Token); v != "" {
		ch.Token = v
	}
	if v := strings.TrimSpace(in.ClientToken); v != "" {
		ch.ClientToken = v
	}
	if in.Active != nil {
		ch.Active = *in.Active
	}
	ch.IsDefault = in.IsDefault

	if err := s.repo.Update(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}
