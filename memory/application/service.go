package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	bot "github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/config"
	"github.com/eduzayn/educhat/memory/domain"
	"github.com/eduzayn/educhat/pkg/utils"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
)

const lastMessageLength = 200

var headings = map[domain.EntryType]string{
	domain.TypeUserInfo:    "Informações do usuário",
	domain.TypePreferences: "Preferências",
	domain.TypeContext:     "Contexto",
	domain.TypeHistory:     "Histórico",
}

type Service struct {
	repo           domain.Repository
	lastMessageTTL time.Duration
	contextLimit   int
	contextMaxLen  int
	now            func() time.Time
}

func NewService(repo domain.Repository, cfg config.MemoryConfig) *Service {
	s := &Service{
		repo:           repo,
		lastMessageTTL: cfg.LastMessageTTL,
		contextLimit:   cfg.ContextLimit,
		contextMaxLen:  cfg.ContextMaxLen,
		now:            time.Now,
	}
	if s.lastMessageTTL <= 0 {
		s.lastMessageTTL = 24 * time.Hour
	}
	if s.contextLimit <= 0 {
		s.contextLimit = 20
	}
	if s.contextMaxLen <= 0 {
		s.contextMaxLen = 1500
	}
	return s
}

// ExtractAndSave writes the memory entries derived from a classification.
// Every entry is attempted; failures are joined.
func (s *Service) ExtractAndSave(ctx context.Context, cls *bot.Classification, conversationID, contactID uint, text string) error {
	if cls == nil {
		return nil
	}
	conf := cls.Confidence
	expires := s.now().Add(s.lastMessageTTL)

	entries := []*domain.Entry{
		{Type: domain.TypeUserInfo, Key: "profile_type", Value: cls.Profile.Type, Confidence: conf},
		{Type: domain.TypeUserInfo, Key: "profile_stage", Value: cls.Profile.Stage, Confidence: conf},
		{Type: domain.TypeContext, Key: "intent", Value: cls.Intent, Confidence: conf},
		{Type: domain.TypeContext, Key: "sentiment", Value: cls.Sentiment, Confidence: conf},
		{Type: domain.TypeContext, Key: "frustration_level", Value: strconv.Itoa(cls.FrustrationLevel), Confidence: conf},
	}
	if len(cls.Profile.Interests) > 0 {
		entries = append(entries, &domain.Entry{Type: domain.TypePreferences, Key: "interests", Value: strings.Join(cls.Profile.Interests, ", "), Confidence: conf})
	}
	if len(cls.Keywords) > 0 {
		entries = append(entries, &domain.Entry{Type: domain.TypeContext, Key: "keywords", Value: strings.Join(cls.Keywords, ", "), Confidence: conf})
	}
	if t := strings.TrimSpace(text); t != "" {
		entries = append(entries, &domain.Entry{Type: domain.TypeHistory, Key: "last_message", Value: utils.Truncate(t, lastMessageLength), Confidence: conf, ExpiresAt: &expires})
	}

	var errs []error
	for _, e := range entries {
		if e.Value == "" {
			continue
		}
		e.ConversationID = conversationID
		e.ContactID = contactID
		e.Source = domain.SourceInferred
		if err := s.repo.Upsert(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", e.Type, e.Key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logrus.WithError(err).Warnf("[MEMORY] Partial write for conversation %d", conversationID)
		return err
	}
	logrus.Debugf("[MEMORY] Saved %d entries for conversation %d", len(entries), conversationID)
	return nil
}

// Save stores a manually written entry.
func (s *Service) Save(ctx context.Context, e *domain.Entry) error {
	err := validation.ValidateStruct(e,
		validation.Field(&e.ConversationID, validation.Required),
		validation.Field(&e.ContactID, validation.Required),
		validation.Field(&e.Type, validation.Required, validation.By(func(v any) error {
			if !domain.ValidType(v.(domain.EntryType)) {
				return errors.New("must be one of user_info, preferences, context, history")
			}
			return nil
		})),
		validation.Field(&e.Key, validation.Required, validation.Length(1, 128)),
		validation.Field(&e.Value, validation.Required),
		validation.Field(&e.Confidence, validation.Min(0), validation.Max(100)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidEntry, err)
	}
	if e.Source == "" {
		e.Source = domain.SourceManual
	}
	return s.repo.Upsert(ctx, e)
}

func (s *Service) Entries(ctx context.Context, conversationID, contactID uint) ([]*domain.Entry, error) {
	return s.repo.ListActive(ctx, conversationID, contactID, s.now(), 0)
}

func (s *Service) Forget(ctx context.Context, id uint) error {
	return s.repo.Deactivate(ctx, id)
}

// GetContext renders active entries as a prompt block grouped by type.
// Returns "" when there is nothing to say.
func (s *Service) GetContext(ctx context.Context, conversationID, contactID uint) (string, error) {
	entries, err := s.repo.ListActive(ctx, conversationID, contactID, s.now(), s.contextLimit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	grouped := make(map[domain.EntryType][]*domain.Entry, len(domain.Types))
	for _, e := range entries {
		grouped[e.Type] = append(grouped[e.Type], e)
	}

	var b strings.Builder
	for _, t := range domain.Types {
		group := grouped[t]
		if len(group) == 0 {
			continue
		}
		heading := "## " + headings[t] + "\n"
		if b.Len()+len(heading) > s.contextMaxLen {
			break
		}
		b.WriteString(heading)
		for _, e := range group {
			line := fmt.Sprintf("- %s: %s\n", e.Key, e.Value)
			if b.Len()+len(line) > s.contextMaxLen {
				return strings.TrimRight(b.String(), "\n"), nil
			}
			b.WriteString(line)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Sweep deactivates expired entries.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logrus.Infof("[MEMORY] Sweep deactivated %d expired entries", n)
	}
	return n, nil
}
