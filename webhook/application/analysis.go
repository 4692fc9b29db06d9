package application

import (
	"context"
	"errors"
	"fmt"

	bot "github.com/eduzayn/educhat/botengine/domain"
	crmApp "github.com/eduzayn/educhat/crm/application"
	crm "github.com/eduzayn/educhat/crm/domain"
	handoff "github.com/eduzayn/educhat/handoff/domain"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/sirupsen/logrus"
)

const historySize = 10

// AnalysisJob is the deferred work for one stored inbound message.
type AnalysisJob struct {
	MessageID      uint
	ConversationID uint
	ContactID      uint
	Text           string
}

type Classifier interface {
	Classify(ctx context.Context, req bot.Request) *bot.Classification
}

type Memory interface {
	GetContext(ctx context.Context, conversationID, contactID uint) (string, error)
	ExtractAndSave(ctx context.Context, cls *bot.Classification, conversationID, contactID uint, text string) error
}

type Router interface {
	Recommend(ctx context.Context, cls *bot.Classification, conv *inbox.Conversation, text string) (*handoff.Recommendation, error)
	Execute(ctx context.Context, conversationID uint, rec *handoff.Recommendation) (*handoff.Handoff, error)
}

type DealProjector interface {
	Project(ctx context.Context, cls *bot.Classification, contact *inbox.Contact, conv *inbox.Conversation, text string) (*crm.Deal, crmApp.Outcome, error)
}

type Conversations interface {
	GetContact(ctx context.Context, id uint) (*inbox.Contact, error)
	GetConversation(ctx context.Context, id uint) (*inbox.Conversation, error)
	History(ctx context.Context, conversationID uint, limit int) ([]*inbox.Message, error)
}

// MessageAnalyzer classifies a stored message and feeds the result to
// memory, handoff routing and the CRM projection.
type MessageAnalyzer struct {
	conversations Conversations
	classifier    Classifier
	memory        Memory
	router        Router
	projector     DealProjector
}

func NewMessageAnalyzer(conversations Conversations, classifier Classifier, memory Memory, router Router, projector DealProjector) *MessageAnalyzer {
	return &MessageAnalyzer{
		conversations: conversations,
		classifier:    classifier,
		memory:        memory,
		router:        router,
		projector:     projector,
	}
}

// Analyze runs every downstream step even when an earlier one fails. The
// returned error joins all step failures.
func (a *MessageAnalyzer) Analyze(ctx context.Context, job AnalysisJob) error {
	conv, err := a.conversations.GetConversation(ctx, job.ConversationID)
	if err != nil {
		return fmt.Errorf("load conversation %d: %w", job.ConversationID, err)
	}
	contact, err := a.conversations.GetContact(ctx, job.ContactID)
	if err != nil {
		return fmt.Errorf("load contact %d: %w", job.ContactID, err)
	}

	req := a.request(ctx, job.ConversationID, job.ContactID, job.MessageID, job.Text)
	cls := a.classifier.Classify(ctx, req)

	var errs []error
	if a.memory != nil {
		if err := a.memory.ExtractAndSave(ctx, cls, job.ConversationID, job.ContactID, job.Text); err != nil {
			errs = append(errs, fmt.Errorf("memory: %w", err))
		}
	}
	if a.router != nil {
		rec, err := a.router.Recommend(ctx, cls, conv, job.Text)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("handoff recommendation: %w", err))
		case rec != nil:
			if _, err := a.router.Execute(ctx, job.ConversationID, rec); err != nil {
				errs = append(errs, fmt.Errorf("handoff: %w", err))
			}
		}
	}
	if a.projector != nil {
		if _, _, err := a.projector.Project(ctx, cls, contact, conv, job.Text); err != nil {
			errs = append(errs, fmt.Errorf("crm: %w", err))
		}
	}

	logrus.Debugf("[WEBHOOK] Message %d analyzed: intent=%s confidence=%d provider=%s",
		job.MessageID, cls.Intent, cls.Confidence, cls.Provider)
	return errors.Join(errs...)
}

func (a *MessageAnalyzer) request(ctx context.Context, conversationID, contactID, messageID uint, text string) bot.Request {
	req := bot.Request{
		Text:           text,
		ContactID:      contactID,
		ConversationID: conversationID,
		MessageID:      messageID,
	}
	if msgs, err := a.conversations.History(ctx, conversationID, historySize+1); err != nil {
		logrus.WithError(err).Warnf("[WEBHOOK] History unavailable for conversation %d", conversationID)
	} else {
		for _, m := range msgs {
			if (messageID != 0 && m.ID == messageID) || m.Text() == "" {
				continue
			}
			req.History = append(req.History, bot.HistoryLine{FromContact: m.IsFromContact, Content: m.Text()})
		}
		if len(req.History) > historySize {
			req.History = req.History[len(req.History)-historySize:]
		}
	}
	if a.memory != nil {
		memCtx, err := a.memory.GetContext(ctx, conversationID, contactID)
		if err != nil {
			logrus.WithError(err).Warnf("[WEBHOOK] Memory context unavailable for conversation %d", conversationID)
		}
		req.MemoryContext = memCtx
	}
	return req
}

// Preview classifies text in the context of a conversation and returns the
// handoff that would be recommended, without saving memory, routing or
// touching deals.
func (a *MessageAnalyzer) Preview(ctx context.Context, conversationID uint, text string) (*bot.Classification, *handoff.Recommendation, error) {
	conv, err := a.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	cls := a.classifier.Classify(ctx, a.request(ctx, conversationID, conv.ContactID, 0, text))
	if a.router == nil {
		return cls, nil, nil
	}
	rec, err := a.router.Recommend(ctx, cls, conv, text)
	if err != nil {
		return cls, nil, err
	}
	return cls, rec, nil
}
