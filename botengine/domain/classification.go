package domain

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	SentimentPositive   = "positive"
	SentimentNeutral    = "neutral"
	SentimentNegative   = "negative"
	SentimentFrustrated = "frustrated"
)

const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

const (
	ModeSales    = "sales"
	ModeSupport  = "support"
	ModeMentor   = "mentor"
	ModeFallback = "fallback"
)

const (
	ProfileLead          = "lead"
	ProfileStudent       = "student"
	ProfileFormerStudent = "former_student"
	ProfileUnknown       = "unknown"
)

const (
	StageAwareness     = "awareness"
	StageConsideration = "consideration"
	StageDecision      = "decision"
	StageEnrolled      = "enrolled"
	StageUnknown       = "unknown"
)

var (
	Sentiments    = []string{SentimentPositive, SentimentNeutral, SentimentNegative, SentimentFrustrated}
	Urgencies     = []string{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}
	Modes         = []string{ModeSales, ModeSupport, ModeMentor, ModeFallback}
	ProfileTypes  = []string{ProfileLead, ProfileStudent, ProfileFormerStudent, ProfileUnknown}
	ProfileStages = []string{StageAwareness, StageConsideration, StageDecision, StageEnrolled, StageUnknown}
)

type UserProfile struct {
	Type      string   `json:"type"`
	Stage     string   `json:"stage"`
	Interests []string `json:"interests"`
}

// Classification is the structured reading of one inbound message.
type Classification struct {
	Intent            string      `json:"intent"`
	Sentiment         string      `json:"sentiment"`
	Confidence        int         `json:"confidence"`
	IsLead            bool        `json:"is_lead"`
	IsStudent         bool        `json:"is_student"`
	FrustrationLevel  int         `json:"frustration_level"`
	Urgency           string      `json:"urgency"`
	SuggestedTeam     string      `json:"suggested_team"`
	Mode              string      `json:"mode"`
	Keywords          []string    `json:"keywords"`
	Profile           UserProfile `json:"user_profile"`
	SuggestedResponse string      `json:"suggested_response,omitempty"`

	// Provider names who produced the classification; "fallback" for the keyword table.
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"-"`
}

// Clamp forces numeric fields into range and fills empty enums with safe defaults.
func (c *Classification) Clamp() {
	c.Confidence = clamp(c.Confidence, 0, 100)
	c.FrustrationLevel = clamp(c.FrustrationLevel, 0, 10)
	if c.Sentiment == "" {
		c.Sentiment = SentimentNeutral
	}
	if c.Urgency == "" {
		c.Urgency = UrgencyMedium
	}
	if c.Profile.Type == "" {
		c.Profile.Type = ProfileUnknown
	}
	if c.Profile.Stage == "" {
		c.Profile.Stage = StageUnknown
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	if c.Profile.Interests == nil {
		c.Profile.Interests = []string{}
	}
}

// Validate checks every enum against its closed set. intents is the intent
// enum of the active rule tables.
func (c *Classification) Validate(intents []string) error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Intent, validation.Required, validation.In(toAny(intents)...)),
		validation.Field(&c.Sentiment, validation.Required, validation.In(toAny(Sentiments)...)),
		validation.Field(&c.Confidence, validation.Min(0), validation.Max(100)),
		validation.Field(&c.FrustrationLevel, validation.Min(0), validation.Max(10)),
		validation.Field(&c.Urgency, validation.Required, validation.In(toAny(Urgencies)...)),
		validation.Field(&c.Mode, validation.Required, validation.In(toAny(Modes)...)),
		validation.Field(&c.Profile),
	)
}

func (p UserProfile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Type, validation.In(toAny(ProfileTypes)...)),
		validation.Field(&p.Stage, validation.In(toAny(ProfileStages)...)),
	)
}

type HistoryLine struct {
	FromContact bool
	Content     string
}

// Request is everything a classifier may look at for one message.
type Request struct {
	Text           string
	ContactID      uint
	ConversationID uint
	MessageID      uint
	History        []HistoryLine
	MemoryContext  string
}

// Provider is one LLM backend. Implementations return raw output; the engine
// validates it and falls back on any error.
type Provider interface {
	Name() string
	Classify(ctx context.Context, req Request) (*Classification, error)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
