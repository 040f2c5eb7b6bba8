package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wopr-network/wopr/internal/contextpipeline"
	"github.com/wopr-network/wopr/internal/logging"
	"github.com/wopr-network/wopr/internal/middleware"
	"github.com/wopr-network/wopr/internal/provider"
	"github.com/wopr-network/wopr/internal/queue"
	"github.com/wopr-network/wopr/internal/security"
	"github.com/wopr-network/wopr/internal/sessionstore"
	"github.com/wopr-network/wopr/pkg/types"

	"github.com/wopr-network/wopr/internal/event"
)

// idleTimeout aborts a stream that yields nothing for this long (step 10).
const idleTimeout = 10 * time.Minute

// Sink receives the out-of-band stream messages step 10 describes —
// forwarded independently of the accumulated InjectResult returned to the
// caller. A daemon wires this to internal/wsfanout and the SSE layer.
type Sink interface {
	System(session, injectID, text string)
	Text(session, injectID, delta string)
	ToolUse(session, injectID string, tool types.ToolUseBlock)
	Complete(session, injectID string)
	Error(session, injectID, subtype, detail string)
}

// NopSink discards every forwarded message.
type NopSink struct{}

func (NopSink) System(session, injectID, text string)                     {}
func (NopSink) Text(session, injectID, delta string)                      {}
func (NopSink) ToolUse(session, injectID string, tool types.ToolUseBlock) {}
func (NopSink) Complete(session, injectID string)                         {}
func (NopSink) Error(session, injectID, subtype, detail string)          {}

// Deps bundles every collaborator the executor wires together.
type Deps struct {
	Security   *security.Engine
	Store      *sessionstore.Store
	Log        *sessionstore.Log
	Context    *contextpipeline.Pipeline
	Middleware *middleware.Chain
	Providers  *provider.Registry
	Sink       Sink
}

// Executor implements queue.Executor against Deps.
type Executor struct {
	deps Deps
}

// New returns an Executor ready to be wired via queue.Manager.SetExecutor.
func New(deps Deps) *Executor {
	if deps.Sink == nil {
		deps.Sink = NopSink{}
	}
	return &Executor{deps: deps}
}

// securityContext is the per-injection record spec.md's invariant requires
// be built at the start of every injection and cleared on every exit path,
// success or failure alike.
type securityContext struct {
	mu      sync.Mutex
	source  types.InjectionSource
	session string
	policy  types.ResolvedPolicy
	cleared bool
}

func (c *securityContext) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = true
	c.policy = types.ResolvedPolicy{}
}

// Execute runs one injection to completion, cancellation, or error. Its
// signature matches queue.Executor so it can be passed directly to
// queue.Manager.SetExecutor.
func (x *Executor) Execute(ctx context.Context, session string, message string, opts types.InjectOptions, abort <-chan struct{}) (types.InjectResult, error) {
	src := opts.Source
	if src.Type == "" {
		src.Type = types.SourceCLI
	}

	// Step 1: security.
	secCtx := &securityContext{source: src, session: session, policy: x.deps.Security.ResolvePolicy(src, session)}
	defer secCtx.clear()

	decision := x.deps.Security.CheckSessionAccess(src, session)
	if !decision.Allowed {
		return types.InjectResult{}, &AccessDeniedError{Session: session, Reason: decision.Reason}
	}
	if decision.Warning {
		logging.Warn().Str("session", session).Str("reason", decision.Reason).Msg("executor: security check would deny, continuing in warn mode")
	}

	// Step 2: abort check.
	if aborted(abort) {
		return types.InjectResult{}, queue.ErrCancelled
	}

	// Step 3: normalize payload (images already arrive merged in opts).
	message = strings.TrimSpace(message)

	// Step 4: new-session event.
	convID, hadSession, err := x.deps.Store.GetSessionID(session)
	if err != nil {
		return types.InjectResult{}, fmt.Errorf("session %q: %w", session, err)
	}
	isNew := !hadSession
	if isNew {
		event.PublishSync(event.Event{Type: event.SessionCreate, Data: event.SessionCreatedData{
			Session: &types.Session{Name: session},
		}})
	}

	injectID := ulid.Make().String()

	// Step 5: context assembly.
	ctxResult := x.deps.Context.AssembleContext(ctx, contextpipeline.MessageInfo{
		Session: session,
		From:    opts.From,
		Channel: opts.Channel,
		Message: message,
	}, contextpipeline.Options{Providers: opts.Providers})

	if ctxResult.Context != "" || ctxResult.System != "" {
		if logErr := x.deps.Log.Append(session, types.ConversationEntry{
			From: "system", Content: ctxResult.Context, Type: types.EntryContext, Channel: opts.Channel,
		}); logErr != nil {
			logging.Warn().Err(logErr).Str("session", session).Msg("executor: failed to log context entry")
		}
	}
	for _, w := range ctxResult.Warnings {
		logging.Warn().Str("session", session).Str("warning", w).Msg("executor: context provider warning")
	}

	// Step 6: incoming middleware.
	incoming := x.deps.Middleware.RunIncoming(ctx, session, message, opts.From, opts.Channel)
	if incoming.Prevented {
		if logErr := x.deps.Log.Append(session, types.ConversationEntry{
			From: "system", Content: "Message blocked by hook.", Type: types.EntryContext, Channel: opts.Channel,
		}); logErr != nil {
			logging.Warn().Err(logErr).Str("session", session).Msg("executor: failed to log incoming-block entry")
		}
		return types.InjectResult{SessionID: convID}, nil
	}
	message = incoming.Message

	// Step 7: log user message.
	if err := x.deps.Log.Append(session, types.ConversationEntry{
		From: opts.From, SenderID: opts.SenderID, Content: message, Type: types.EntryMessage, Channel: opts.Channel,
	}); err != nil {
		return types.InjectResult{}, fmt.Errorf("session %q: %w", session, err)
	}

	// Step 8: compose prompt.
	prompt := composePrompt(message, ctxResult.System+ctxResult.Context, opts.From)

	// Step 9: provider resolution.
	cfg, err := x.deps.Store.GetProvider(session)
	if err != nil {
		return types.InjectResult{}, fmt.Errorf("session %q: %w", session, err)
	}
	if cfg == nil {
		id, ok := x.deps.Providers.FirstAvailable()
		if !ok {
			return types.InjectResult{}, &ProviderResolutionError{Session: session, Err: errors.New("no provider available to select for this session")}
		}
		cfg = &types.ProviderConfig{Name: id}
		if err := x.deps.Store.SetProvider(session, cfg); err != nil {
			return types.InjectResult{}, fmt.Errorf("session %q: %w", session, err)
		}
	}

	resolved, err := x.deps.Providers.ResolveProvider(cfg)
	if err != nil {
		return types.InjectResult{}, &ProviderResolutionError{Session: session, Err: err}
	}

	// Step 10/11: streaming loop with idle-timeout guard, a single
	// stale-resume retry against the same provider, and a fallback walk
	// across the rest of the provider chain when a provider that looked
	// available fails outright on the Query call or its first event — a
	// mid-stream failure, once output has already reached the sink, is
	// not retried against a different provider.
	excluded := []string{resolved.Descriptor.ID}
	resumeID := convID
	var response, newConvID string
	for {
		response, newConvID, err = x.runStream(ctx, session, injectID, resolved, prompt, resumeID, opts.Images, abort)
		if err != nil && errors.Is(err, errStaleResume) && resumeID != "" {
			if clearErr := x.deps.Store.SaveSessionID(session, ""); clearErr != nil {
				logging.Warn().Err(clearErr).Str("session", session).Msg("executor: failed to clear stale conversation id")
			}
			resumeID = ""
			response, newConvID, err = x.runStream(ctx, session, injectID, resolved, prompt, resumeID, opts.Images, abort)
		}

		var attemptErr *providerAttemptError
		if err == nil || !errors.As(err, &attemptErr) {
			break
		}

		next, resolveErr := x.deps.Providers.ResolveProvider(cfg, excluded...)
		if resolveErr != nil {
			err = fmt.Errorf("provider %q: %w", resolved.Descriptor.ID, attemptErr.err)
			break
		}
		logging.Warn().Str("session", session).Str("provider", resolved.Descriptor.ID).Err(attemptErr.err).
			Msg("executor: provider failed immediately, falling back to next in chain")
		resolved = next
		excluded = append(excluded, resolved.Descriptor.ID)
		resumeID = "" // a different provider never recognizes this session's prior conversation id
	}
	if err != nil {
		if errors.Is(err, queue.ErrCancelled) {
			return types.InjectResult{Cancelled: true, SessionID: convID}, queue.ErrCancelled
		}
		x.deps.Sink.Error(session, injectID, "error", err.Error())
		return types.InjectResult{}, fmt.Errorf("session %q: %w", session, err)
	}
	if newConvID != "" && newConvID != convID {
		if err := x.deps.Store.SaveSessionID(session, newConvID); err != nil {
			logging.Warn().Err(err).Str("session", session).Msg("executor: failed to persist conversation id")
		}
		convID = newConvID
	}

	// Step 12: outgoing middleware.
	outgoing := x.deps.Middleware.RunOutgoing(ctx, session, response, opts.From, opts.Channel)
	if outgoing.Prevented {
		if logErr := x.deps.Log.Append(session, types.ConversationEntry{
			From: "system", Content: "Response blocked by hook.", Type: types.EntryContext, Channel: opts.Channel,
		}); logErr != nil {
			logging.Warn().Err(logErr).Str("session", session).Msg("executor: failed to log outgoing-block entry")
		}
		return types.InjectResult{SessionID: convID}, nil
	}
	response = outgoing.Response

	// Step 13: log response.
	if response != "" {
		if err := x.deps.Log.Append(session, types.ConversationEntry{
			From: "assistant", Content: response, Type: types.EntryResponse, Channel: opts.Channel,
		}); err != nil {
			logging.Warn().Err(err).Str("session", session).Msg("executor: failed to log response")
		}
	}

	// Step 14: last-trigger watermark.
	if err := x.deps.Store.SetLastTrigger(session, time.Now().UnixMilli()); err != nil {
		logging.Warn().Err(err).Str("session", session).Msg("executor: failed to update last-trigger watermark")
	}

	x.deps.Sink.Complete(session, injectID)
	return types.InjectResult{Response: response, SessionID: convID}, nil
}

// errStaleResume is the sentinel matched against the provider's
// documented "conversation no longer known" signature.
var errStaleResume = errors.New("executor: stale conversation on resume")

// providerAttemptError marks a failure on the Query call itself or the
// first stream event as eligible for the fallback walk across the
// remaining provider chain — a provider registered and marked available
// can still fail the instant it's actually used.
type providerAttemptError struct {
	err error
}

func (e *providerAttemptError) Error() string { return e.err.Error() }
func (e *providerAttemptError) Unwrap() error { return e.err }

// runStream drives one provider call to completion: idle-timeout guard,
// per-event-kind handling, and the accumulated response text. resuming is
// the conversation id passed in (empty means a fresh conversation).
func (x *Executor) runStream(ctx context.Context, session, injectID string, resolved types.ResolvedProvider, prompt, resuming string, images []types.ImageRef, abort <-chan struct{}) (response string, newConvID string, err error) {
	stream, err := resolved.Client.Query(ctx, types.QueryOptions{
		ConversationID: resuming,
		Model:          resolved.Model,
		Message:        prompt,
		Images:         images,
		Resuming:       resuming != "",
	})
	if err != nil {
		return "", "", &providerAttemptError{fmt.Errorf("provider %q: %w", resolved.Descriptor.ID, err)}
	}
	defer stream.Close()

	var builder strings.Builder
	first := true
	for {
		if aborted(abort) {
			return "", "", queue.ErrCancelled
		}

		eventCtx, cancel := context.WithTimeout(ctx, idleTimeout)
		ev, ok, nextErr := stream.Next(eventCtx)
		cancel()
		if nextErr != nil {
			if first {
				classified := x.classifyStreamError(nextErr, resuming != "")
				if errors.Is(classified, errStaleResume) {
					return "", "", classified
				}
				return "", "", &providerAttemptError{fmt.Errorf("provider %q: %w", resolved.Descriptor.ID, classified)}
			}
			return "", "", fmt.Errorf("provider %q: %w", resolved.Descriptor.ID, nextErr)
		}
		if !ok {
			break
		}
		first = false

		switch ev.Kind {
		case types.EventSystemInit:
			newConvID = ev.ConversationID
			x.deps.Sink.System(session, injectID, "")
		case types.EventStreamDelta:
			builder.WriteString(ev.TextDelta)
			x.deps.Sink.Text(session, injectID, ev.TextDelta)
		case types.EventAssistant:
			if ev.AssistantText != "" {
				builder.WriteString(ev.AssistantText)
				x.deps.Sink.Text(session, injectID, ev.AssistantText)
			}
			if ev.ToolUse != nil {
				x.deps.Sink.ToolUse(session, injectID, *ev.ToolUse)
			}
		case types.EventResult:
			if ev.ResultSubtype != "success" {
				detail := ev.ResultError
				if detail == "" {
					detail = ev.PermissionError
				}
				return builder.String(), newConvID, fmt.Errorf("provider %q: result %s: %s", resolved.Descriptor.ID, ev.ResultSubtype, detail)
			}
			if ev.AssistantText != "" {
				builder.Reset()
				builder.WriteString(ev.AssistantText)
			}
		}
	}

	return builder.String(), newConvID, nil
}

// classifyStreamError tags a first-iteration failure as a stale-resume
// signature only when the call was actually resuming a conversation.
func (x *Executor) classifyStreamError(err error, resuming bool) error {
	if resuming && strings.Contains(err.Error(), types.StaleResumeSignature) {
		return errStaleResume
	}
	return err
}

// composePrompt implements step 8: slash commands never get a context
// block prepended (they must be the first line); everything else gets
// the context block, then an "{from}: " prefix when from is a real
// identified speaker.
func composePrompt(message, context, from string) string {
	isCommand := strings.HasPrefix(strings.TrimSpace(message), "/")

	body := message
	if !isCommand && context != "" {
		body = context + "\n" + message
	}

	if from != "" && from != "cli" && from != "unknown" {
		return from + ": " + body
	}
	return body
}

func aborted(abort <-chan struct{}) bool {
	select {
	case <-abort:
		return true
	default:
		return false
	}
}
