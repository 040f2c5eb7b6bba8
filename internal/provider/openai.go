package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/wopr-network/wopr/pkg/types"
)

var openaiModelCatalog = []string{
	string(openai.ChatModelGPT4o),
	string(openai.ChatModelGPT4oMini),
	string(openai.ChatModelO3Mini),
}

// OpenAIProvider is the OpenAI (and OpenAI-compatible) chat completions
// client. BaseURL is overridable so the same client serves self-hosted
// or third-party OpenAI-compatible endpoints.
type OpenAIProvider struct {
	id           string
	client       openai.Client
	defaultModel string
}

// OpenAIConfig configures the client.
type OpenAIConfig struct {
	ID           string // defaults to "openai"
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewOpenAIProvider constructs a client. An OpenAI-compatible endpoint may
// supply BaseURL with an empty APIKey.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("provider: openai requires an API key or base URL")
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	id := cfg.ID
	if id == "" {
		id = "openai"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = openaiModelCatalog[0]
	}

	return &OpenAIProvider{
		id:           id,
		client:       openai.NewClient(opts...),
		defaultModel: defaultModel,
	}, nil
}

func (p *OpenAIProvider) ID() string          { return p.id }
func (p *OpenAIProvider) Name() string         { return "OpenAI" }
func (p *OpenAIProvider) ListModels() []string { return openaiModelCatalog }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// Query starts a streaming chat completion.
func (p *OpenAIProvider) Query(ctx context.Context, opts types.QueryOptions) (types.ProviderStream, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(opts.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(opts.Message))

	stream := p.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	})

	return &openaiStream{stream: stream, conversationID: opts.ConversationID}, nil
}

type openaiStream struct {
	stream         *openai.Stream[openai.ChatCompletionChunk]
	acc            openai.ChatCompletionAccumulator
	conversationID string
	sentInit       bool
}

func (s *openaiStream) Next(ctx context.Context) (types.ProviderEvent, bool, error) {
	if !s.sentInit {
		s.sentInit = true
		return types.ProviderEvent{Kind: types.EventSystemInit, ConversationID: s.conversationID}, true, nil
	}

	for s.stream.Next() {
		chunk := s.stream.Current()
		s.acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return types.ProviderEvent{Kind: types.EventStreamDelta, TextDelta: chunk.Choices[0].Delta.Content}, true, nil
		}
	}

	if err := s.stream.Err(); err != nil && !errors.Is(err, io.EOF) {
		return types.ProviderEvent{}, false, fmt.Errorf("openai: %w", err)
	}

	text := ""
	if len(s.acc.Choices) > 0 {
		text = s.acc.Choices[0].Message.Content
	}
	return types.ProviderEvent{Kind: types.EventResult, ResultSubtype: "success", AssistantText: text}, false, nil
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}
