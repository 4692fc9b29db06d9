// Package rules loads the declarative classification, routing and funnel
// tables once at startup. Every component that matches keywords reads from
// the same *Rules value.
package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

//go:embed default_rules.yaml
var defaultRules []byte

type IntentRule struct {
	Name       string   `mapstructure:"name"`
	Macrosetor string   `mapstructure:"macrosetor"`
	Student    bool     `mapstructure:"student"`
	Keywords   []string `mapstructure:"keywords"`
}

type StageRule struct {
	Name        string   `mapstructure:"name"`
	Probability int      `mapstructure:"probability"`
	Keywords    []string `mapstructure:"keywords"`
}

type MacrosetorRule struct {
	Name         string      `mapstructure:"name"`
	Lead         bool        `mapstructure:"lead"`
	DefaultValue float64     `mapstructure:"default_value"`
	Stages       []StageRule `mapstructure:"stages"`
}

type ValueRule struct {
	Keyword string  `mapstructure:"keyword"`
	Value   float64 `mapstructure:"value"`
}

type RoutingRule struct {
	Keywords []string `mapstructure:"keywords"`
	Team     string   `mapstructure:"team"`
	Priority string   `mapstructure:"priority"`
}

type HandoffRule struct {
	FrustrationThreshold int      `mapstructure:"frustration_threshold"`
	ConfidenceThreshold  int      `mapstructure:"confidence_threshold"`
	Intents              []string `mapstructure:"intents"`
	Urgencies            []string `mapstructure:"urgencies"`
	InabilityPhrases     []string `mapstructure:"inability_phrases"`
}

type GuardRule struct {
	Name    string `mapstructure:"name"`
	Kind    string `mapstructure:"kind"` // contains | prefix | regex
	Pattern string `mapstructure:"pattern"`

	re *regexp.Regexp
}

// Rules is the parsed rule set. It is immutable after Load returns.
type Rules struct {
	Intents        []IntentRule     `mapstructure:"intents"`
	UrgentKeywords []string         `mapstructure:"urgent_keywords"`
	Macrosetores   []MacrosetorRule `mapstructure:"macrosetores"`
	CourseValues   []ValueRule      `mapstructure:"course_values"`
	Routing        []RoutingRule    `mapstructure:"routing"`
	Handoff        HandoffRule      `mapstructure:"handoff"`
	Guard          []GuardRule      `mapstructure:"guard"`

	intentIdx map[string]int
	macroIdx  map[string]int
}

var (
	defaultOnce sync.Once
	defaultSet  *Rules
)

// Default returns the embedded rule set, parsed on first use.
func Default() *Rules {
	defaultOnce.Do(func() {
		r, err := Parse(defaultRules)
		if err != nil {
			panic(fmt.Sprintf("embedded rules are invalid: %v", err))
		}
		defaultSet = r
	})
	return defaultSet
}

// Load reads the rule file at path, or returns the embedded defaults when path is empty.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, err
	}
	logrus.Infof("[RULES] Loaded %d intents, %d macrosetores, %d routing rules from %s",
		len(r.Intents), len(r.Macrosetores), len(r.Routing), path)
	return r, nil
}

// Parse decodes YAML rule tables and validates their cross references.
func Parse(data []byte) (*Rules, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	var r Rules
	if err := v.Unmarshal(&r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := r.index(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) index() error {
	r.intentIdx = make(map[string]int, len(r.Intents))
	r.macroIdx = make(map[string]int, len(r.Macrosetores))

	for i, m := range r.Macrosetores {
		if len(m.Stages) == 0 {
			return fmt.Errorf("macrosetor %q has no stages", m.Name)
		}
		r.macroIdx[m.Name] = i
	}
	for i, in := range r.Intents {
		if in.Macrosetor != "" {
			if _, ok := r.macroIdx[in.Macrosetor]; !ok {
				return fmt.Errorf("intent %q maps to unknown macrosetor %q", in.Name, in.Macrosetor)
			}
		}
		r.intentIdx[in.Name] = i
	}
	for i := range r.Guard {
		g := &r.Guard[i]
		switch g.Kind {
		case "contains", "prefix":
		case "regex":
			re, err := regexp.Compile("(?i)" + g.Pattern)
			if err != nil {
				return fmt.Errorf("guard %q: %w", g.Name, err)
			}
			g.re = re
		default:
			return fmt.Errorf("guard %q: unknown kind %q", g.Name, g.Kind)
		}
	}
	for _, rt := range r.Routing {
		if _, ok := r.macroIdx[rt.Team]; !ok {
			return fmt.Errorf("routing rule %v targets unknown team %q", rt.Keywords, rt.Team)
		}
	}
	return nil
}

// Intent returns the rule for an intent name.
func (r *Rules) Intent(name string) (IntentRule, bool) {
	i, ok := r.intentIdx[name]
	if !ok {
		return IntentRule{}, false
	}
	return r.Intents[i], true
}

// HasIntent reports whether name belongs to the closed intent set.
func (r *Rules) HasIntent(name string) bool {
	_, ok := r.intentIdx[name]
	return ok
}

// IntentNames returns the intent enum in table order.
func (r *Rules) IntentNames() []string {
	out := make([]string, len(r.Intents))
	for i, in := range r.Intents {
		out[i] = in.Name
	}
	return out
}

// MacrosetorFor maps an intent to its funnel. ok is false when the intent has no funnel.
func (r *Rules) MacrosetorFor(intent string) (string, bool) {
	in, ok := r.Intent(intent)
	if !ok || in.Macrosetor == "" {
		return "", false
	}
	return in.Macrosetor, true
}

// MacrosetorNames returns the funnel names in table order.
func (r *Rules) MacrosetorNames() []string {
	out := make([]string, len(r.Macrosetores))
	for i, m := range r.Macrosetores {
		out[i] = m.Name
	}
	return out
}

func (r *Rules) Macrosetor(name string) (MacrosetorRule, bool) {
	i, ok := r.macroIdx[name]
	if !ok {
		return MacrosetorRule{}, false
	}
	return r.Macrosetores[i], true
}

// StageIndex returns the position of stage in the macrosetor ordering, or -1.
func (r *Rules) StageIndex(macrosetor, stage string) int {
	m, ok := r.Macrosetor(macrosetor)
	if !ok {
		return -1
	}
	for i, s := range m.Stages {
		if s.Name == stage {
			return i
		}
	}
	return -1
}

// MatchIntent runs the keyword table over text and returns the first intent
// with a matching keyword plus the keywords that matched for that intent.
func (r *Rules) MatchIntent(text string) (string, []string) {
	folded := utils.Fold(text)
	for _, in := range r.Intents {
		matched := matchAll(folded, in.Keywords)
		if len(matched) > 0 {
			return in.Name, matched
		}
	}
	return "", nil
}

// IsUrgent reports whether text carries one of the urgency keywords.
func (r *Rules) IsUrgent(text string) bool {
	return len(matchAll(utils.Fold(text), r.UrgentKeywords)) > 0
}

// CourseValue returns the estimated value for the first course keyword found in text.
func (r *Rules) CourseValue(text string) (float64, bool) {
	folded := utils.Fold(text)
	for _, v := range r.CourseValues {
		if strings.Contains(folded, utils.Fold(v.Keyword)) {
			return v.Value, true
		}
	}
	return 0, false
}

// Route returns the first routing rule whose keyword occurs in text.
func (r *Rules) Route(text string) (RoutingRule, string, bool) {
	folded := utils.Fold(text)
	for _, rt := range r.Routing {
		for _, kw := range rt.Keywords {
			if strings.Contains(folded, utils.Fold(kw)) {
				return rt, kw, true
			}
		}
	}
	return RoutingRule{}, "", false
}

// GuardMatch returns the first guard rule matching text.
func (r *Rules) GuardMatch(text string) (GuardRule, bool) {
	trimmed := strings.TrimSpace(text)
	folded := utils.Fold(trimmed)
	for _, g := range r.Guard {
		switch g.Kind {
		case "contains":
			if strings.Contains(folded, utils.Fold(g.Pattern)) {
				return g, true
			}
		case "prefix":
			if strings.HasPrefix(folded, utils.Fold(g.Pattern)) {
				return g, true
			}
		case "regex":
			if g.re != nil && g.re.MatchString(trimmed) {
				return g, true
			}
		}
	}
	return GuardRule{}, false
}

// ContainsAny reports whether folded text contains one of the phrases.
func ContainsAny(text string, phrases []string) bool {
	return len(matchAll(utils.Fold(text), phrases)) > 0
}

func matchAll(folded string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(folded, utils.Fold(kw)) {
			out = append(out, kw)
		}
	}
	return out
}
