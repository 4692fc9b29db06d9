package application

import (
	"context"
	"errors"
	"fmt"

	bot "github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
	"github.com/eduzayn/educhat/crm/domain"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/sirupsen/logrus"
)

type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCreated   Outcome = "created"
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeUnchanged Outcome = "unchanged"
)

const (
	TagLead    = "lead"
	TagStudent = "aluno"
)

// Inbox is the slice of the registry the projector writes to.
type Inbox interface {
	AddContactTags(ctx context.Context, contactID uint, tags ...string) error
	SetMacrosetor(ctx context.Context, conversationID uint, macrosetor string) error
}

type Projector struct {
	rules *rules.Rules
	deals domain.Repository
	inbox Inbox
}

func NewProjector(r *rules.Rules, deals domain.Repository, inbox Inbox) *Projector {
	return &Projector{rules: r, deals: deals, inbox: inbox}
}

// Project creates or advances the contact's deal for the macrosetor the
// classification maps to. Stages never move backwards.
func (p *Projector) Project(ctx context.Context, cls *bot.Classification, contact *inbox.Contact, conv *inbox.Conversation, text string) (*domain.Deal, Outcome, error) {
	if cls == nil {
		return nil, OutcomeSkipped, nil
	}
	macrosetor, ok := p.rules.MacrosetorFor(cls.Intent)
	if !ok {
		return nil, OutcomeSkipped, nil
	}
	funnel, _ := p.rules.Macrosetor(macrosetor)

	idx := p.targetStage(funnel, cls, text)
	stage := funnel.Stages[idx]
	probability := Probability(stage.Probability, cls)

	if err := p.stamp(ctx, macrosetor, cls, contact, conv); err != nil {
		logrus.WithError(err).Warnf("[CRM] Could not tag contact %d", contact.ID)
	}

	deal, err := p.deals.Active(ctx, contact.ID, macrosetor)
	if errors.Is(err, domain.ErrDealNotFound) {
		deal, err = p.create(ctx, funnel, idx, probability, contact, conv, text)
		if err == nil {
			logrus.Infof("[CRM] Deal %d created for contact %d in %s at %s", deal.ID, contact.ID, macrosetor, deal.Stage)
			return deal, OutcomeCreated, nil
		}
		if !errors.Is(err, domain.ErrActiveDealExists) {
			return nil, OutcomeSkipped, err
		}
		deal, err = p.deals.Active(ctx, contact.ID, macrosetor)
	}
	if err != nil {
		return nil, OutcomeSkipped, fmt.Errorf("load active deal: %w", err)
	}

	if idx <= deal.StageIndex {
		return deal, OutcomeUnchanged, nil
	}
	advanced, err := p.deals.Advance(ctx, deal.ID, stage.Name, idx, probability)
	if err != nil {
		return nil, OutcomeSkipped, fmt.Errorf("advance deal %d: %w", deal.ID, err)
	}
	if !advanced {
		return deal, OutcomeUnchanged, nil
	}
	logrus.Infof("[CRM] Deal %d advanced %s -> %s", deal.ID, deal.Stage, stage.Name)
	deal.Stage, deal.StageIndex, deal.Probability = stage.Name, idx, probability
	return deal, OutcomeAdvanced, nil
}

func (p *Projector) create(ctx context.Context, funnel rules.MacrosetorRule, idx, probability int, contact *inbox.Contact, conv *inbox.Conversation, text string) (*domain.Deal, error) {
	value, ok := p.rules.CourseValue(text)
	if !ok {
		value = funnel.DefaultValue
	}
	deal := &domain.Deal{
		Name:        fmt.Sprintf("%s - %s", contact.Name, funnel.Name),
		ContactID:   contact.ID,
		Macrosetor:  funnel.Name,
		Stage:       funnel.Stages[idx].Name,
		StageIndex:  idx,
		Value:       value,
		Probability: probability,
		Origin:      inbox.ChannelWhatsApp,
		Tags:        []string{funnel.Name},
	}
	if conv != nil {
		deal.OwnerID = conv.AssignedUserID
		deal.Origin = conv.Channel
	}
	if err := p.deals.Create(ctx, deal); err != nil {
		return nil, err
	}
	return deal, nil
}

// targetStage returns the first stage whose keywords occur in the text or
// the classification keywords. Without a match, high urgency or frustration
// lands on the second stage.
func (p *Projector) targetStage(funnel rules.MacrosetorRule, cls *bot.Classification, text string) int {
	folded := utils.Fold(text)
	for i, s := range funnel.Stages {
		if len(s.Keywords) == 0 {
			continue
		}
		if rules.ContainsAny(folded, s.Keywords) {
			return i
		}
		for _, kw := range cls.Keywords {
			if rules.ContainsAny(kw, s.Keywords) {
				return i
			}
		}
	}
	if len(funnel.Stages) > 1 && (highUrgency(cls.Urgency) || cls.FrustrationLevel >= p.rules.Handoff.FrustrationThreshold) {
		return 1
	}
	return 0
}

func (p *Projector) stamp(ctx context.Context, macrosetor string, cls *bot.Classification, contact *inbox.Contact, conv *inbox.Conversation) error {
	if p.inbox == nil {
		return nil
	}
	tags := []string{macrosetor}
	if cls.IsLead {
		tags = append(tags, TagLead)
	}
	if cls.IsStudent {
		tags = append(tags, TagStudent)
	}
	var errs []error
	if err := p.inbox.AddContactTags(ctx, contact.ID, tags...); err != nil {
		errs = append(errs, err)
	}
	if conv != nil && conv.Macrosetor != macrosetor {
		if err := p.inbox.SetMacrosetor(ctx, conv.ID, macrosetor); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Probability adjusts a stage's base probability by the classification.
func Probability(base int, cls *bot.Classification) int {
	p := base
	switch {
	case cls.Confidence >= 80:
		p += 10
	case cls.Confidence < 50:
		p -= 10
	}
	if highUrgency(cls.Urgency) {
		p += 15
	}
	return min(max(p, 0), 100)
}

func highUrgency(u string) bool {
	return u == bot.UrgencyHigh || u == bot.UrgencyCritical
}

func (p *Projector) Deals(ctx context.Context, filter domain.Filter) ([]*domain.Deal, error) {
	return p.deals.List(ctx, filter)
}

func (p *Projector) Deal(ctx context.Context, id uint) (*domain.Deal, error) {
	return p.deals.GetByID(ctx, id)
}
