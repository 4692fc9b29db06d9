package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
)

const schemaName = "message_classification"

// systemPrompt describes the closed enums of the active rule set.
func systemPrompt(r *rules.Rules) string {
	teams := make([]string, 0, len(r.Macrosetores))
	for _, m := range r.Macrosetores {
		teams = append(teams, m.Name)
	}

	return fmt.Sprintf(`You classify WhatsApp messages received by a Brazilian distance-learning institution.
Messages are usually in Portuguese. Read the message, the recent conversation and the stored memory about the contact.

Return ONLY the JSON object described by the schema:
- intent: one of %s
- sentiment: one of %s
- confidence: 0-100, how sure you are about the intent
- is_lead: true when the person is a prospective student asking about courses, prices or enrollment
- is_student: true when the person is already enrolled
- frustration_level: 0-10
- urgency: one of %s
- suggested_team: one of %s, or "" when no team fits
- mode: one of %s
- keywords: the words from the message that justify the intent
- user_profile: type (%s), stage (%s), interests (courses or subjects mentioned)
- suggested_response: a short reply in Portuguese an agent could send. Say plainly when you cannot help.`,
		strings.Join(r.IntentNames(), ", "),
		strings.Join(domain.Sentiments, ", "),
		strings.Join(domain.Urgencies, ", "),
		strings.Join(teams, ", "),
		strings.Join(domain.Modes[:3], ", "),
		strings.Join(domain.ProfileTypes, ", "),
		strings.Join(domain.ProfileStages, ", "),
	)
}

func userPrompt(req domain.Request) string {
	var b strings.Builder
	if req.MemoryContext != "" {
		b.WriteString(req.MemoryContext)
		b.WriteString("\n\n")
	}
	if len(req.History) > 0 {
		b.WriteString("Conversa recente:\n")
		for _, h := range req.History {
			who := "Atendente"
			if h.FromContact {
				who = "Contato"
			}
			fmt.Fprintf(&b, "%s: %s\n", who, h.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Mensagem a classificar: %q", req.Text)
	return b.String()
}

// classificationSchema is a strict JSON schema: every property required, no extras.
func classificationSchema(r *rules.Rules) map[string]any {
	str := func() map[string]any { return map[string]any{"type": "string"} }
	enum := func(values []string) map[string]any {
		return map[string]any{"type": "string", "enum": values}
	}

	teams := []string{""}
	for _, m := range r.Macrosetores {
		teams = append(teams, m.Name)
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent":             enum(r.IntentNames()),
			"sentiment":          enum(domain.Sentiments),
			"confidence":         map[string]any{"type": "integer"},
			"is_lead":            map[string]any{"type": "boolean"},
			"is_student":         map[string]any{"type": "boolean"},
			"frustration_level":  map[string]any{"type": "integer"},
			"urgency":            enum(domain.Urgencies),
			"suggested_team":     enum(teams),
			"mode":               enum(domain.Modes[:3]),
			"keywords":           map[string]any{"type": "array", "items": str()},
			"suggested_response": str(),
			"user_profile": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":      enum(domain.ProfileTypes),
					"stage":     enum(domain.ProfileStages),
					"interests": map[string]any{"type": "array", "items": str()},
				},
				"required":             []string{"type", "stage", "interests"},
				"additionalProperties": false,
			},
		},
		"required": []string{
			"intent", "sentiment", "confidence", "is_lead", "is_student", "frustration_level",
			"urgency", "suggested_team", "mode", "keywords", "suggested_response", "user_profile",
		},
		"additionalProperties": false,
	}
}

func decodeClassification(raw string) (*domain.Classification, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if raw == "" {
		return nil, fmt.Errorf("empty model output")
	}
	var cls domain.Classification
	if err := json.Unmarshal([]byte(raw), &cls); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	return &cls, nil
}
