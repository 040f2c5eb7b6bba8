package types

import "context"

// ProviderDescriptor is the registry's view of a provider: identity,
// advertised models, and last-known health. Credentials are stored
// separately (see the provider package's credential store).
type ProviderDescriptor struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DefaultModel    string   `json:"defaultModel"`
	SupportedModels []string `json:"supportedModels"`
	Available       bool     `json:"available"`
}

// ResolvedProvider is the output of walking a fallback chain: the provider
// that answered, and the model chosen for the call.
type ResolvedProvider struct {
	Descriptor ProviderDescriptor
	Client     Provider
	Model      string
}

// Provider is the uniform streaming query interface every model backend
// implements. Concrete wire protocols (the Anthropic/OpenAI/etc. HTTP
// clients) are external collaborators; this interface is the seam WOPR's
// core code depends on.
type Provider interface {
	ID() string
	Name() string
	ListModels() []string
	DefaultModel() string
	// Query starts a streamed completion and returns a ProviderStream to
	// iterate it; the stream's Close must be callable at any time to
	// release underlying resources (best-effort).
	Query(ctx context.Context, opts QueryOptions) (ProviderStream, error)
}

// ProviderStream is an async iterator of ProviderEvent, mirroring the
// "process exited" subprocess-wrapper shape the executor's stale-resume
// recovery depends on.
type ProviderStream interface {
	// Next blocks for the next event. It returns ok=false when the stream
	// is exhausted; err is non-nil only on a genuine stream failure (the
	// stale-resume signature included).
	Next(ctx context.Context) (event ProviderEvent, ok bool, err error)
	Close() error
}

// QueryOptions is everything the executor assembled for one provider call.
type QueryOptions struct {
	ConversationID string
	Model          string
	SystemPrompt   string
	Message        string
	Images         []ImageRef
	Resuming       bool
}

// ImageRef is an opaque reference to an attached image, passed through to
// the provider client unmodified; the provider is responsible for
// rejecting it if the model does not advertise image support.
type ImageRef struct {
	MediaType string `json:"mediaType"`
	Data      string `json:"data"`
}

// ProviderEventKind is the tagged-union discriminant for ProviderEvent.
type ProviderEventKind string

const (
	EventSystemInit   ProviderEventKind = "system/init"
	EventStreamDelta  ProviderEventKind = "stream_event"
	EventAssistant    ProviderEventKind = "assistant"
	EventResult       ProviderEventKind = "result"
)

// ProviderEvent is one event yielded by a ProviderStream. Exactly one of
// the payload fields is meaningful, selected by Kind.
type ProviderEvent struct {
	Kind ProviderEventKind

	// EventSystemInit
	ConversationID string

	// EventStreamDelta
	TextDelta string

	// EventAssistant
	AssistantText string
	ToolUse       *ToolUseBlock

	// EventResult
	ResultSubtype   string // "success" or an error subtype
	ResultError     string
	PermissionError string
}

// ToolUseBlock is forwarded for visibility; tool execution itself happens
// out of band via the (external) tool registry.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

// StaleResumeSignature is the documented "conversation no longer known to
// the provider" error text the executor matches on to trigger its single
// stale-resume retry (spec.md §4.6 step 11, §7).
const StaleResumeSignature = "process exited with code 1"
