package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wopr-network/wopr/pkg/types"
)

// anthropicModelCatalog is the set of models this client advertises. The
// IDs and ordering are grounded on the teacher's anthropicModels().
var anthropicModelCatalog = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
}

// AnthropicProvider is the direct Anthropic Messages API client.
type AnthropicProvider struct {
	id           string
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures a direct (non-Bedrock) Anthropic client.
type AnthropicConfig struct {
	ID           string // defaults to "anthropic"
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicProvider constructs a client. APIKey must be non-empty.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("provider: anthropic requires an API key")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	id := cfg.ID
	if id == "" {
		id = "anthropic"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = anthropicModelCatalog[0]
	}

	return &AnthropicProvider{
		id:           id,
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
	}, nil
}

func (p *AnthropicProvider) ID() string             { return p.id }
func (p *AnthropicProvider) Name() string            { return "Anthropic" }
func (p *AnthropicProvider) ListModels() []string    { return anthropicModelCatalog }
func (p *AnthropicProvider) DefaultModel() string    { return p.defaultModel }

// Query starts a streaming Messages call and returns a ProviderStream that
// translates SSE deltas into types.ProviderEvent.
func (p *AnthropicProvider) Query(ctx context.Context, opts types.QueryOptions) (types.ProviderStream, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(opts.Message)),
		},
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt}}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{stream: stream, conversationID: opts.ConversationID, sentInit: false}, nil
}

// anthropicStream adapts the SDK's SSE iterator to types.ProviderStream,
// emitting a synthetic system/init event first so the executor can learn
// the conversation id (Anthropic's API is stateless, so this simply
// echoes the caller's own id) before any content arrives.
type anthropicStream struct {
	stream         *anthropic.Stream[anthropic.MessageStreamEventUnion]
	message        anthropic.Message
	conversationID string
	sentInit       bool
}

func (s *anthropicStream) Next(ctx context.Context) (types.ProviderEvent, bool, error) {
	if !s.sentInit {
		s.sentInit = true
		return types.ProviderEvent{Kind: types.EventSystemInit, ConversationID: s.conversationID}, true, nil
	}

	for s.stream.Next() {
		event := s.stream.Current()
		_ = s.message.Accumulate(event)

		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if d, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
				return types.ProviderEvent{Kind: types.EventStreamDelta, TextDelta: d.Text}, true, nil
			}
		}
	}

	if err := s.stream.Err(); err != nil && !errors.Is(err, io.EOF) {
		return types.ProviderEvent{}, false, fmt.Errorf("anthropic: %w", err)
	}

	text := ""
	for _, block := range s.message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}
	return types.ProviderEvent{Kind: types.EventResult, ResultSubtype: "success", AssistantText: text}, false, nil
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}
