package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	cls   *domain.Classification
	err   error
	delay time.Duration
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Classify(ctx context.Context, req domain.Request) (*domain.Classification, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	c := *s.cls
	return &c, nil
}

type memLogs struct {
	mu      sync.Mutex
	entries []*domain.LogEntry
}

func (m *memLogs) Create(ctx context.Context, e *domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLogs) ListByConversation(ctx context.Context, id uint, limit int) ([]*domain.LogEntry, error) {
	return m.entries, nil
}

func TestEngine_ProviderErrorFallsBack(t *testing.T) {
	logs := &memLogs{}
	e := NewEngine(&stubProvider{err: errors.New("dial tcp: connection refused")}, rules.Default(), logs, time.Second)

	cls := e.Classify(context.Background(), domain.Request{Text: "Quero saber sobre o curso de pedagogia", MessageID: 7})
	require.NotNil(t, cls)
	assert.Equal(t, 50, cls.Confidence)
	assert.Equal(t, "course_inquiry", cls.Intent)
	assert.Equal(t, domain.ModeFallback, cls.Mode)
	assert.Equal(t, "comercial", cls.SuggestedTeam)
	assert.True(t, cls.IsLead)
	assert.NoError(t, cls.Validate(rules.Default().IntentNames()))

	require.Len(t, logs.entries, 1)
	assert.Equal(t, uint(7), logs.entries[0].MessageID)
	assert.Contains(t, logs.entries[0].Error, "connection refused")
}

func TestEngine_TimeoutFallsBack(t *testing.T) {
	p := &stubProvider{delay: time.Second, cls: &domain.Classification{Intent: "greeting"}}
	e := NewEngine(p, rules.Default(), nil, 20*time.Millisecond)

	start := time.Now()
	cls := e.Classify(context.Background(), domain.Request{Text: "mensalidade em atraso, urgente"})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 50, cls.Confidence)
	assert.Equal(t, "billing_issue", cls.Intent)
	assert.Equal(t, domain.UrgencyHigh, cls.Urgency)
	assert.Equal(t, domain.SentimentNegative, cls.Sentiment)
}

func TestEngine_InvalidEnumFallsBack(t *testing.T) {
	p := &stubProvider{cls: &domain.Classification{Intent: "buy_pizza", Sentiment: "neutral", Urgency: "low", Confidence: 90}}
	e := NewEngine(p, rules.Default(), nil, time.Second)

	cls := e.Classify(context.Background(), domain.Request{Text: "oi"})
	assert.Equal(t, domain.ModeFallback, cls.Provider)
	assert.Equal(t, "greeting", cls.Intent)
}

func TestEngine_ValidProviderOutputIsCompleted(t *testing.T) {
	p := &stubProvider{cls: &domain.Classification{
		Intent:           "technical_issue",
		Sentiment:        "frustrated",
		Confidence:       140,
		FrustrationLevel: 12,
		Urgency:          "high",
		SuggestedTeam:    "ti",
	}}
	e := NewEngine(p, rules.Default(), nil, time.Second)

	cls := e.Classify(context.Background(), domain.Request{Text: "não consigo acessar a plataforma"})
	assert.Equal(t, "stub", cls.Provider)
	assert.Equal(t, 100, cls.Confidence)
	assert.Equal(t, 10, cls.FrustrationLevel)
	assert.Equal(t, "suporte", cls.SuggestedTeam)
	assert.Equal(t, domain.ModeSupport, cls.Mode)
	assert.Equal(t, domain.ProfileUnknown, cls.Profile.Type)
}

func TestEngine_NoProviderUsesFallbackSilently(t *testing.T) {
	logs := &memLogs{}
	e := NewEngine(nil, rules.Default(), logs, 0)

	cls := e.Classify(context.Background(), domain.Request{Text: "Tenho uma reclamação sobre o atendimento"})
	assert.Equal(t, "complaint", cls.Intent)
	assert.Equal(t, 6, cls.FrustrationLevel)
	require.Len(t, logs.entries, 1)
	assert.Empty(t, logs.entries[0].Error)
}

func TestFallback_UnmatchedTextIsGeneralInfo(t *testing.T) {
	f := NewFallbackClassifier(rules.Default())
	cls := f.Classify("xyz")
	assert.Equal(t, "general_info", cls.Intent)
	assert.Empty(t, cls.SuggestedTeam)
	assert.Equal(t, []string{}, cls.Keywords)
	assert.NoError(t, cls.Validate(rules.Default().IntentNames()))
}

func TestFallback_StudentIntent(t *testing.T) {
	f := NewFallbackClassifier(rules.Default())
	cls := f.Classify("preciso da declaração")
	assert.Equal(t, "document_request", cls.Intent)
	assert.True(t, cls.IsStudent)
	assert.False(t, cls.IsLead)
	assert.Equal(t, domain.ProfileStudent, cls.Profile.Type)
	assert.Equal(t, []string{"declaração"}, cls.Keywords)
}
