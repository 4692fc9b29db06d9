package providers

import (
	"context"
	"fmt"

	"github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/core/rules"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider classifies through Chat Completions with a strict JSON schema.
type OpenAIProvider struct {
	client openai.Client
	model  string
	rules  *rules.Rules
}

func NewOpenAIProvider(apiKey, model string, r *rules.Rules, opts ...option.RequestOption) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
		rules:  r,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Classify(ctx context.Context, req domain.Request) (*domain.Classification, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(p.rules)),
			openai.UserMessage(userPrompt(req)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: any(classificationSchema(p.rules)),
					Strict: openai.Bool(true),
				},
			},
		},
		Temperature: openai.Float(0.1),
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	logrus.WithFields(logrus.Fields{
		"model":         p.model,
		"input_tokens":  completion.Usage.PromptTokens,
		"output_tokens": completion.Usage.CompletionTokens,
	}).Debug("[OPENAI] Classification completed")

	return decodeClassification(completion.Choices[0].Message.Content)
}
