package application

import (
	"github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
)

const (
	intentGeneralInfo = "general_info"
	intentComplaint   = "complaint"
	intentBilling     = "billing_issue"

	fallbackConfidence   = 50
	complaintFrustration = 6
)

// FallbackClassifier reads a message with the keyword tables only. It never
// fails and never blocks.
type FallbackClassifier struct {
	rules *rules.Rules
}

func NewFallbackClassifier(r *rules.Rules) *FallbackClassifier {
	return &FallbackClassifier{rules: r}
}

func (f *FallbackClassifier) Classify(text string) *domain.Classification {
	intent, matched := f.rules.MatchIntent(text)
	if intent == "" {
		intent = f.defaultIntent()
	}

	cls := &domain.Classification{
		Intent:     intent,
		Sentiment:  domain.SentimentNeutral,
		Confidence: fallbackConfidence,
		Urgency:    domain.UrgencyMedium,
		Mode:       domain.ModeFallback,
		Keywords:   matched,
		Provider:   domain.ModeFallback,
	}

	switch intent {
	case intentComplaint:
		cls.Sentiment = domain.SentimentNegative
		cls.FrustrationLevel = complaintFrustration
	case intentBilling:
		cls.Sentiment = domain.SentimentNegative
	}
	if f.rules.IsUrgent(text) {
		cls.Urgency = domain.UrgencyHigh
	}

	if macro, ok := f.rules.MacrosetorFor(intent); ok {
		cls.SuggestedTeam = macro
		if m, ok := f.rules.Macrosetor(macro); ok {
			cls.IsLead = m.Lead
		}
	}
	if in, ok := f.rules.Intent(intent); ok {
		cls.IsStudent = in.Student
	}

	switch {
	case cls.IsLead:
		cls.Profile = domain.UserProfile{Type: domain.ProfileLead, Stage: domain.StageAwareness, Interests: matched}
	case cls.IsStudent:
		cls.Profile = domain.UserProfile{Type: domain.ProfileStudent, Stage: domain.StageEnrolled}
	default:
		cls.Profile = domain.UserProfile{Type: domain.ProfileUnknown, Stage: domain.StageUnknown}
	}

	cls.Clamp()
	return cls
}

func (f *FallbackClassifier) defaultIntent() string {
	if f.rules.HasIntent(intentGeneralInfo) {
		return intentGeneralInfo
	}
	names := f.rules.IntentNames()
	return names[len(names)-1]
}
