package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/wopr-network/wopr/pkg/types"
)

// bedrockModelCatalog lists the Anthropic-on-Bedrock model ids this
// client advertises, grounded on the teacher's
// "anthropic."+modelID+"-v1:0" Bedrock id convention.
var bedrockModelCatalog = []string{
	"anthropic.claude-sonnet-4-20250514-v1:0",
	"anthropic.claude-3-5-haiku-20241022-v1:0",
}

// BedrockProvider invokes Anthropic models hosted on AWS Bedrock via
// InvokeModelWithResponseStream, using the Anthropic Messages API request
// body Bedrock expects for anthropic.* model ids.
type BedrockProvider struct {
	id           string
	client       *bedrockruntime.Client
	defaultModel string
}

// BedrockConfig configures the client.
type BedrockConfig struct {
	ID           string // defaults to "bedrock"
	Region       string
	AccessKey    string
	SecretKey    string
	DefaultModel string
}

// NewBedrockProvider constructs a client from static credentials when
// provided, otherwise falls back to the default AWS credential chain
// (environment, shared config, instance role).
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		return nil, errors.New("provider: bedrock requires a region")
	}

	optFns := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("provider: bedrock: load aws config: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = "bedrock"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = bedrockModelCatalog[0]
	}

	return &BedrockProvider{
		id:           id,
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: defaultModel,
	}, nil
}

func (p *BedrockProvider) ID() string          { return p.id }
func (p *BedrockProvider) Name() string         { return "AWS Bedrock" }
func (p *BedrockProvider) ListModels() []string { return bedrockModelCatalog }
func (p *BedrockProvider) DefaultModel() string { return p.defaultModel }

// bedrockRequest is the Anthropic Messages API body shape Bedrock expects
// for anthropic.* model ids.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// bedrockChunk is the subset of the streamed event payload this client
// consumes: content block text deltas and the final message-stop marker.
type bedrockChunk struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (p *BedrockProvider) Query(ctx context.Context, opts types.QueryOptions) (types.ProviderStream, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        8192,
		System:           opts.SystemPrompt,
		Messages:         []bedrockMessage{{Role: "user", Content: opts.Message}},
	})
	if err != nil {
		return nil, fmt.Errorf("provider: bedrock: marshal request: %w", err)
	}

	out, err := p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: bedrock: invoke: %w", err)
	}

	return &bedrockStream{
		events:         out.GetStream().Events(),
		closer:         out.GetStream(),
		conversationID: opts.ConversationID,
	}, nil
}

type bedrockStream struct {
	events         <-chan bedrocktypes.ResponseStream
	closer         interface{ Close() error }
	conversationID string
	sentInit       bool
	text           string
}

func (s *bedrockStream) Next(ctx context.Context) (types.ProviderEvent, bool, error) {
	if !s.sentInit {
		s.sentInit = true
		return types.ProviderEvent{Kind: types.EventSystemInit, ConversationID: s.conversationID}, true, nil
	}

	for {
		select {
		case <-ctx.Done():
			return types.ProviderEvent{}, false, ctx.Err()
		case raw, ok := <-s.events:
			if !ok {
				return types.ProviderEvent{Kind: types.EventResult, ResultSubtype: "success", AssistantText: s.text}, false, nil
			}

			member, ok := raw.(*bedrocktypes.ResponseStreamMemberChunk)
			if !ok {
				continue
			}

			var chunk bedrockChunk
			if err := json.Unmarshal(member.Value.Bytes, &chunk); err != nil {
				continue
			}
			if chunk.Type == "content_block_delta" && chunk.Delta.Text != "" {
				s.text += chunk.Delta.Text
				return types.ProviderEvent{Kind: types.EventStreamDelta, TextDelta: chunk.Delta.Text}, true, nil
			}
		}
	}
}

func (s *bedrockStream) Close() error {
	return s.closer.Close()
}
