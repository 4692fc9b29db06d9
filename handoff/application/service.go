package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	bot "github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
	"github.com/eduzayn/educhat/domains/realtime"
	"github.com/eduzayn/educhat/handoff/domain"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/sirupsen/logrus"
)

const (
	TriggerKeywordRouting = "keyword_routing"
	TriggerClassification = "classification"

	defaultTeam = "suporte"
)

var urgencyPriority = map[string]string{
	bot.UrgencyLow:      domain.PriorityLow,
	bot.UrgencyMedium:   domain.PriorityNormal,
	bot.UrgencyHigh:     domain.PriorityHigh,
	bot.UrgencyCritical: domain.PriorityUrgent,
}

type Service struct {
	rules       *rules.Rules
	repo        domain.Repository
	publisher   realtime.Publisher
	assignAgent bool
}

func NewService(r *rules.Rules, repo domain.Repository, publisher realtime.Publisher, assignAgent bool) *Service {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	return &Service{rules: r, repo: repo, publisher: publisher, assignAgent: assignAgent}
}

// Recommend decides whether the conversation should be routed to a team.
// It returns nil when no routing is warranted.
func (s *Service) Recommend(ctx context.Context, cls *bot.Classification, conv *inbox.Conversation, text string) (*domain.Recommendation, error) {
	rec := s.evaluate(cls, text)
	if rec == nil {
		return nil, nil
	}

	team, err := s.repo.TeamForMacrosetor(ctx, rec.Team)
	if errors.Is(err, domain.ErrTeamNotFound) {
		logrus.Warnf("[HANDOFF] No active team for %s, conversation %d stays unrouted", rec.Team, conv.ID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup team %s: %w", rec.Team, err)
	}
	if conv.TeamID != nil && *conv.TeamID == team.ID {
		logrus.Debugf("[HANDOFF] Conversation %d already with team %s", conv.ID, team.Name)
		return nil, nil
	}
	rec.TeamID = &team.ID

	if s.assignAgent {
		agent, err := s.repo.LeastLoadedAgent(ctx, team.ID)
		switch {
		case err == nil:
			rec.UserID = &agent.ID
			rec.Type = domain.TypeAutomaticEquitable
		case errors.Is(err, domain.ErrAgentNotFound):
		default:
			return nil, fmt.Errorf("pick agent: %w", err)
		}
	}
	return rec, nil
}

func (s *Service) evaluate(cls *bot.Classification, text string) *domain.Recommendation {
	var snap domain.Snapshot
	if cls != nil {
		snap = domain.Snapshot{
			Intent:           cls.Intent,
			Confidence:       cls.Confidence,
			FrustrationLevel: cls.FrustrationLevel,
			Urgency:          cls.Urgency,
			Provider:         cls.Provider,
		}
	}

	if rt, kw, ok := s.rules.Route(text); ok {
		return &domain.Recommendation{
			Team:     rt.Team,
			Type:     domain.TypeAutomatic,
			Reason:   "keyword:" + kw,
			Priority: rt.Priority,
			Trigger:  TriggerKeywordRouting,
			Snapshot: snap,
		}
	}
	if cls == nil {
		return nil
	}

	reasons := s.triggers(cls)
	if len(reasons) == 0 {
		return nil
	}
	team := cls.SuggestedTeam
	if team == "" {
		if m, ok := s.rules.MacrosetorFor(cls.Intent); ok {
			team = m
		} else {
			team = defaultTeam
		}
	}
	priority, ok := urgencyPriority[cls.Urgency]
	if !ok {
		priority = domain.PriorityNormal
	}
	return &domain.Recommendation{
		Team:     team,
		Type:     domain.TypeAutomatic,
		Reason:   strings.Join(reasons, ","),
		Priority: priority,
		Trigger:  TriggerClassification,
		Snapshot: snap,
	}
}

func (s *Service) triggers(cls *bot.Classification) []string {
	h := s.rules.Handoff
	var reasons []string
	if cls.FrustrationLevel >= h.FrustrationThreshold {
		reasons = append(reasons, fmt.Sprintf("frustration:%d", cls.FrustrationLevel))
	}
	if cls.Confidence < h.ConfidenceThreshold {
		reasons = append(reasons, fmt.Sprintf("low_confidence:%d", cls.Confidence))
	}
	for _, in := range h.Intents {
		if cls.Intent == in {
			reasons = append(reasons, "intent:"+in)
		}
	}
	for _, u := range h.Urgencies {
		if cls.Urgency == u {
			reasons = append(reasons, "urgency:"+u)
		}
	}
	if cls.SuggestedResponse != "" && rules.ContainsAny(cls.SuggestedResponse, h.InabilityPhrases) {
		reasons = append(reasons, "inability_phrase")
	}
	return reasons
}

// Execute applies a recommendation to the conversation.
func (s *Service) Execute(ctx context.Context, conversationID uint, rec *domain.Recommendation) (*domain.Handoff, error) {
	h := &domain.Handoff{
		ConversationID: conversationID,
		ToTeamID:       rec.TeamID,
		ToUserID:       rec.UserID,
		Type:           rec.Type,
		Reason:         rec.Reason,
		Priority:       rec.Priority,
		Snapshot:       rec.Snapshot,
		Metadata:       map[string]any{"trigger": rec.Trigger, "team": rec.Team},
	}
	if err := s.repo.Execute(ctx, h); err != nil {
		logrus.WithError(err).Errorf("[HANDOFF] Conversation %d handoff failed", conversationID)
		return h, err
	}

	logrus.Infof("[HANDOFF] Conversation %d routed to team %s (%s, %s)", conversationID, rec.Team, h.Type, h.Reason)
	s.publisher.Publish(ctx, realtime.Event{
		Type:           realtime.EventConversationAssigned,
		ConversationID: conversationID,
		Payload: map[string]any{
			"handoff_id": h.ID,
			"team_id":    h.ToTeamID,
			"user_id":    h.ToUserID,
			"type":       h.Type,
			"priority":   h.Priority,
		},
	})
	return h, nil
}

// ManualRequest is an operator-initiated routing.
type ManualRequest struct {
	Type     domain.Type `json:"type"`
	TeamID   *uint       `json:"team_id"`
	UserID   *uint       `json:"user_id"`
	Reason   string      `json:"reason"`
	Priority string      `json:"priority"`
}

// ExecuteManual runs an operator-initiated handoff through the same
// transactional path. The request must already be validated.
func (s *Service) ExecuteManual(ctx context.Context, conversationID uint, req ManualRequest) (*domain.Handoff, error) {
	rec := &domain.Recommendation{
		TeamID:   req.TeamID,
		UserID:   req.UserID,
		Type:     req.Type,
		Reason:   req.Reason,
		Priority: req.Priority,
		Trigger:  string(req.Type),
	}
	if rec.Priority == "" {
		rec.Priority = domain.PriorityNormal
	}
	if req.TeamID != nil {
		team, err := s.repo.TeamByID(ctx, *req.TeamID)
		if err != nil {
			return nil, err
		}
		rec.Team = team.Macrosetor
	}
	if req.UserID != nil {
		agent, err := s.repo.AgentByID(ctx, *req.UserID)
		if err != nil {
			return nil, err
		}
		if rec.TeamID == nil {
			rec.TeamID = &agent.TeamID
		}
	}
	return s.Execute(ctx, conversationID, rec)
}

func (s *Service) History(ctx context.Context, conversationID uint, limit int) ([]*domain.Handoff, error) {
	return s.repo.ListByConversation(ctx, conversationID, limit)
}

func (s *Service) Teams(ctx context.Context) ([]*domain.Team, error) {
	return s.repo.ListTeams(ctx)
}

func (s *Service) CreateTeam(ctx context.Context, t *domain.Team) error {
	return s.repo.CreateTeam(ctx, t)
}

func (s *Service) CreateAgent(ctx context.Context, a *domain.Agent) error {
	if _, err := s.repo.TeamByID(ctx, a.TeamID); err != nil {
		return err
	}
	return s.repo.CreateAgent(ctx, a)
}
