package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body any) *http.Response {
	data, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(string(data))),
	}
}

func TestOpenAIProvider_DecodesSchemaOutput(t *testing.T) {
	var sent map[string]any
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))

		content := `{"intent":"pricing_inquiry","sentiment":"neutral","confidence":88,"is_lead":true,"is_student":false,` +
			`"frustration_level":0,"urgency":"medium","suggested_team":"comercial","mode":"sales","keywords":["valor"],` +
			`"suggested_response":"A mensalidade começa em R$ 199.","user_profile":{"type":"lead","stage":"consideration","interests":["pedagogia"]}}`
		return jsonResponse(http.StatusOK, map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 40, "total_tokens": 160},
		}), nil
	})

	p := NewOpenAIProvider("sk-test", "", rules.Default(),
		option.WithHTTPClient(&http.Client{Transport: transport}),
		option.WithMaxRetries(0),
	)
	cls, err := p.Classify(context.Background(), domain.Request{
		Text:    "qual o valor?",
		History: []domain.HistoryLine{{FromContact: true, Content: "Quero saber sobre o curso de pedagogia"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pricing_inquiry", cls.Intent)
	assert.Equal(t, 88, cls.Confidence)
	assert.Equal(t, "consideration", cls.Profile.Stage)
	assert.Equal(t, []string{"pedagogia"}, cls.Profile.Interests)

	assert.Equal(t, DefaultOpenAIModel, sent["model"])
	format, _ := sent["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
}

func TestOpenAIProvider_HTTPErrorIsReturned(t *testing.T) {
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": "boom"}}), nil
	})
	p := NewOpenAIProvider("sk-test", "", rules.Default(),
		option.WithHTTPClient(&http.Client{Transport: transport}),
		option.WithMaxRetries(0),
	)
	_, err := p.Classify(context.Background(), domain.Request{Text: "oi"})
	assert.Error(t, err)
}

func TestDecodeClassification_StripsFences(t *testing.T) {
	cls, err := decodeClassification("```json\n{\"intent\":\"greeting\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "greeting", cls.Intent)

	_, err = decodeClassification("  ")
	assert.Error(t, err)
}

func TestClassificationSchema_RequiresEveryProperty(t *testing.T) {
	schema := classificationSchema(rules.Default())
	props := schema["properties"].(map[string]any)
	required := schema["required"].([]string)
	assert.Len(t, required, len(props))
	assert.Contains(t, systemPrompt(rules.Default()), "secretaria_pos")
}

func TestGeminiProvider_RequiresKey(t *testing.T) {
	p := NewGeminiProvider("", "", rules.Default())
	_, err := p.Classify(context.Background(), domain.Request{Text: "oi"})
	assert.Error(t, err)
	assert.Equal(t, "gemini", p.Name())
}

func TestGeminiProvider_DecodesJSONCandidate(t *testing.T) {
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		text := `{"intent":"complaint","sentiment":"frustrated","confidence":91,"is_lead":false,"is_student":true,` +
			`"frustration_level":8,"urgency":"high","suggested_team":"suporte","mode":"support","keywords":["absurdo"],` +
			`"suggested_response":"Vou transferir para um atendente.","user_profile":{"type":"student","stage":"enrolled","interests":[]}}`
		return jsonResponse(http.StatusOK, map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 100, "candidatesTokenCount": 30},
		}), nil
	})

	p := NewGeminiProvider("g-key", "", rules.Default()).
		WithTransport(&http.Client{Transport: transport}, "https://gemini.test/")
	cls, err := p.Classify(context.Background(), domain.Request{Text: "isso é um absurdo"})
	require.NoError(t, err)
	assert.Equal(t, "complaint", cls.Intent)
	assert.Equal(t, 8, cls.FrustrationLevel)
	assert.Equal(t, "Vou transferir para um atendente.", cls.SuggestedResponse)
}
