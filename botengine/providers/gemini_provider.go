package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider classifies through GenerateContent with a JSON response schema.
type GeminiProvider struct {
	apiKey     string
	model      string
	rules      *rules.Rules
	httpClient *http.Client
	baseURL    string
}

func NewGeminiProvider(apiKey, model string, r *rules.Rules) *GeminiProvider {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{apiKey: apiKey, model: model, rules: r}
}

// WithTransport routes API calls through client, optionally against another base URL.
func (p *GeminiProvider) WithTransport(client *http.Client, baseURL string) *GeminiProvider {
	p.httpClient = client
	p.baseURL = baseURL
	return p
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Classify(ctx context.Context, req domain.Request) (*domain.Classification, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("gemini provider has no API key")
	}

	cc := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(systemPrompt(p.rules), ""),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: classificationSchema(p.rules),
		Temperature:        genai.Ptr[float32](0.1),
	}
	contents := []*genai.Content{genai.NewContentFromText(userPrompt(req), genai.RoleUser)}

	result, err := p.generateWithRetry(ctx, client, contents, cfg)
	if err != nil {
		return nil, err
	}
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates from gemini")
	}
	if result.UsageMetadata != nil {
		logrus.WithFields(logrus.Fields{
			"model":         p.model,
			"input_tokens":  result.UsageMetadata.PromptTokenCount,
			"output_tokens": result.UsageMetadata.CandidatesTokenCount,
		}).Debug("[GEMINI] Classification completed")
	}
	return decodeClassification(result.Text())
}

func (p *GeminiProvider) generateWithRetry(ctx context.Context, client *genai.Client, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		result, err := client.Models.GenerateContent(ctx, p.model, contents, cfg)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !strings.Contains(err.Error(), "503") {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(1<<uint(i)) * 500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
