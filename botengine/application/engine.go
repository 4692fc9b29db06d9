package application

import (
	"context"
	"errors"
	"time"

	"github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
	"github.com/sirupsen/logrus"
)

var errNoProvider = errors.New("no AI provider configured")

// Engine wraps an optional LLM provider in the fallback contract: Classify
// always returns a valid classification.
type Engine struct {
	provider domain.Provider
	fallback *FallbackClassifier
	rules    *rules.Rules
	logs     domain.LogRepository
	timeout  time.Duration
}

// NewEngine accepts a nil provider (keyword fallback only) and a nil log repository.
func NewEngine(provider domain.Provider, r *rules.Rules, logs domain.LogRepository, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Engine{
		provider: provider,
		fallback: NewFallbackClassifier(r),
		rules:    r,
		logs:     logs,
		timeout:  timeout,
	}
}

func (e *Engine) Classify(ctx context.Context, req domain.Request) *domain.Classification {
	start := time.Now()

	cls, err := e.classifyWithProvider(ctx, req)
	if err != nil {
		if errors.Is(err, errNoProvider) {
			logrus.Debugf("[CLASSIFIER] No provider, keyword fallback for message %d", req.MessageID)
		} else {
			logrus.WithError(err).Warnf("[CLASSIFIER] Falling back to keyword table for message %d", req.MessageID)
		}
		cls = e.fallback.Classify(req.Text)
	}
	cls.Latency = time.Since(start)

	e.record(ctx, req, cls, err)
	logrus.WithFields(logrus.Fields{
		"message_id": req.MessageID,
		"provider":   cls.Provider,
		"intent":     cls.Intent,
		"confidence": cls.Confidence,
		"latency_ms": cls.Latency.Milliseconds(),
	}).Debug("[CLASSIFIER] Message classified")
	return cls
}

func (e *Engine) classifyWithProvider(ctx context.Context, req domain.Request) (*domain.Classification, error) {
	if e.provider == nil {
		return nil, &domain.ClassificationUnavailable{Provider: "none", Err: errNoProvider}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cls, err := e.provider.Classify(ctx, req)
	if err != nil {
		return nil, &domain.ClassificationUnavailable{Provider: e.provider.Name(), Err: err}
	}
	if cls == nil {
		return nil, &domain.ClassificationUnavailable{Provider: e.provider.Name(), Err: errors.New("empty classification")}
	}

	e.complete(cls)
	if err := cls.Validate(e.rules.IntentNames()); err != nil {
		return nil, &domain.ClassificationUnavailable{Provider: e.provider.Name(), Err: err}
	}
	cls.Provider = e.provider.Name()
	return cls, nil
}

// complete clamps ranges and derives the fields a provider may omit.
func (e *Engine) complete(cls *domain.Classification) {
	cls.Clamp()

	macro, hasMacro := e.rules.MacrosetorFor(cls.Intent)
	if _, ok := e.rules.Macrosetor(cls.SuggestedTeam); !ok {
		cls.SuggestedTeam = ""
		if hasMacro {
			cls.SuggestedTeam = macro
		}
	}
	if cls.Mode == "" {
		cls.Mode = modeFor(cls.SuggestedTeam)
	}
}

func (e *Engine) record(ctx context.Context, req domain.Request, cls *domain.Classification, cause error) {
	if e.logs == nil {
		return
	}
	entry := &domain.LogEntry{
		MessageID:      req.MessageID,
		ConversationID: req.ConversationID,
		ContactID:      req.ContactID,
		Provider:       cls.Provider,
		Intent:         cls.Intent,
		Confidence:     cls.Confidence,
		Mode:           cls.Mode,
		LatencyMS:      cls.Latency.Milliseconds(),
		Snapshot:       cls,
	}
	if cause != nil && !errors.Is(cause, errNoProvider) {
		entry.Error = cause.Error()
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		logrus.WithError(err).Warn("[CLASSIFIER] Failed to store classification log")
	}
}

func modeFor(macrosetor string) string {
	switch macrosetor {
	case "comercial":
		return domain.ModeSales
	case "tutoria":
		return domain.ModeMentor
	default:
		return domain.ModeSupport
	}
}
