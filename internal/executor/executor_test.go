package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wopr-network/wopr/internal/config"
	"github.com/wopr-network/wopr/internal/contextpipeline"
	"github.com/wopr-network/wopr/internal/middleware"
	"github.com/wopr-network/wopr/internal/provider"
	"github.com/wopr-network/wopr/internal/queue"
	"github.com/wopr-network/wopr/internal/security"
	"github.com/wopr-network/wopr/internal/sessionstore"
	"github.com/wopr-network/wopr/pkg/types"
)

func newTestDeps(t *testing.T) (Deps, *sessionstore.Store) {
	t.Helper()
	paths := &config.Paths{Base: t.TempDir()}
	require.NoError(t, paths.Ensure())

	secEngine, err := security.New(paths)
	require.NoError(t, err)

	store := sessionstore.New(paths)
	registry := provider.NewRegistry()
	registry.Register(&provider.MockProvider{IDValue: "mock", Deltas: []string{"hello ", "world"}})

	return Deps{
		Security:   secEngine,
		Store:      store,
		Log:        sessionstore.NewLog(paths),
		Context:    contextpipeline.New(),
		Middleware: middleware.New(),
		Providers:  registry,
	}, store
}

func ownerSource() types.InjectionSource {
	return types.InjectionSource{Type: types.SourceCLI}
}

func TestExecuteGoldenPath(t *testing.T) {
	deps, store := newTestDeps(t)
	ex := New(deps)

	result, err := ex.Execute(context.Background(), "s1", "hello there", types.InjectOptions{
		Source: ownerSource(),
		From:   "cli",
	}, make(chan struct{}))
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Response)
	assert.Equal(t, "mock-conv", result.SessionID)

	entries, err := deps.Log.Read("s1", 0)
	require.NoError(t, err)
	var kinds []types.EntryType
	for _, e := range entries {
		kinds = append(kinds, e.Type)
	}
	assert.Contains(t, kinds, types.EntryMessage)
	assert.Contains(t, kinds, types.EntryResponse)

	convID, ok, err := store.GetSessionID("s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "mock-conv", convID)
}

func TestExecuteAbortBeforeStartReturnsCancelled(t *testing.T) {
	deps, _ := newTestDeps(t)
	ex := New(deps)

	abort := make(chan struct{})
	close(abort)

	_, err := ex.Execute(context.Background(), "s1", "hi", types.InjectOptions{Source: ownerSource()}, abort)
	assert.ErrorIs(t, err, queue.ErrCancelled)
}

func TestExecuteAccessDeniedInEnforceMode(t *testing.T) {
	deps, _ := newTestDeps(t)
	require.NoError(t, deps.Security.Save(types.SecurityConfig{
		Enforcement: types.EnforcementEnforce,
		ByTrust: map[string]types.TrustPolicy{
			types.Untrusted.String(): {Capabilities: []string{"session.read"}},
		},
		Defaults: types.Defaults{MinTrustLevel: types.SemiTrusted},
	}))

	ex := New(deps)
	_, err := ex.Execute(context.Background(), "s1", "hi", types.InjectOptions{
		Source: types.InjectionSource{Type: types.SourceP2P},
	}, make(chan struct{}))

	require.Error(t, err)
	assert.True(t, IsAccessDeniedError(err))
}

func TestExecuteIncomingMiddlewarePreventionReturnsEmptyAndLogs(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Middleware.Register(vetoIncoming{}, 1)
	ex := New(deps)

	result, err := ex.Execute(context.Background(), "s1", "hi", types.InjectOptions{Source: ownerSource()}, make(chan struct{}))
	require.NoError(t, err)
	assert.Empty(t, result.Response)

	entries, err := deps.Log.Read("s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Content, "Message blocked by hook.")
}

func TestExecuteOutgoingMiddlewarePreventionReturnsEmptyAndLogs(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Middleware.Register(vetoOutgoing{}, 1)
	ex := New(deps)

	result, err := ex.Execute(context.Background(), "s1", "hi", types.InjectOptions{Source: ownerSource()}, make(chan struct{}))
	require.NoError(t, err)
	assert.Empty(t, result.Response)

	entries, err := deps.Log.Read("s1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Content, "Response blocked by hook.")
}

func TestExecutePicksAndPersistsFirstAvailableProvider(t *testing.T) {
	deps, store := newTestDeps(t)
	ex := New(deps)

	_, err := ex.Execute(context.Background(), "s1", "hi", types.InjectOptions{Source: ownerSource()}, make(chan struct{}))
	require.NoError(t, err)

	cfg, err := store.GetProvider("s1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "mock", cfg.Name)
}

func TestExecuteNoProviderAvailableWrapsSessionName(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Providers = provider.NewRegistry() // empty, overriding the mock
	ex := New(deps)

	_, err := ex.Execute(context.Background(), "s1", "hi", types.InjectOptions{Source: ownerSource()}, make(chan struct{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s1")
}

func TestExecuteStaleResumeRetriesExactlyOnce(t *testing.T) {
	deps, store := newTestDeps(t)
	deps.Providers = provider.NewRegistry()
	deps.Providers.Register(&staleResumeProvider{})
	require.NoError(t, store.SaveSessionID("s1", "old-conv"))
	require.NoError(t, store.SetProvider("s1", &types.ProviderConfig{Name: "stale"}))

	ex := New(deps)
	result, err := ex.Execute(context.Background(), "s1", "hi", types.InjectOptions{Source: ownerSource()}, make(chan struct{}))
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Response)
	assert.Equal(t, "fresh-conv", result.SessionID)

	convID, ok, err := store.GetSessionID("s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fresh-conv", convID)
}

func TestExecuteFallsBackToNextProviderOnImmediateFailure(t *testing.T) {
	deps, store := newTestDeps(t)
	deps.Providers = provider.NewRegistry()
	deps.Providers.Register(&provider.MockProvider{IDValue: "p1", FailImmediately: true})
	deps.Providers.Register(&provider.MockProvider{IDValue: "p2", Deltas: []string{"from p2"}})
	require.NoError(t, store.SetProvider("s1", &types.ProviderConfig{Name: "p1", Fallback: []string{"p2"}}))

	ex := New(deps)
	result, err := ex.Execute(context.Background(), "s1", "hi", types.InjectOptions{Source: ownerSource()}, make(chan struct{}))
	require.NoError(t, err)
	assert.Equal(t, "from p2", result.Response)
}

func TestExecuteExhaustedFallbackChainSurfacesLastProviderError(t *testing.T) {
	deps, store := newTestDeps(t)
	deps.Providers = provider.NewRegistry()
	deps.Providers.Register(&provider.MockProvider{IDValue: "p1", FailImmediately: true})
	require.NoError(t, store.SetProvider("s1", &types.ProviderConfig{Name: "p1"}))

	ex := New(deps)
	_, err := ex.Execute(context.Background(), "s1", "hi", types.InjectOptions{Source: ownerSource()}, make(chan struct{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p1")
}

func TestComposePromptSlashCommandSkipsContext(t *testing.T) {
	assert.Equal(t, "/status", composePrompt("/status", "some context", "cli"))
}

func TestComposePromptPrependsContextForNonCommand(t *testing.T) {
	assert.Equal(t, "ctx\nhello", composePrompt("hello", "ctx", "cli"))
}

func TestComposePromptPrefixesNonTrivialFrom(t *testing.T) {
	assert.Equal(t, "alice: hello", composePrompt("hello", "", "alice"))
}

func TestComposePromptOmitsPrefixForCLIAndUnknown(t *testing.T) {
	assert.Equal(t, "hello", composePrompt("hello", "", "cli"))
	assert.Equal(t, "hello", composePrompt("hello", "", "unknown"))
}

func TestSecurityContextClearedExactlyOnce(t *testing.T) {
	sc := &securityContext{}
	assert.False(t, sc.cleared)
	sc.clear()
	assert.True(t, sc.cleared)
	assert.Equal(t, types.ResolvedPolicy{}, sc.policy)
}

type vetoIncoming struct{ middleware.NopMiddleware }

func (vetoIncoming) Name() string { return "veto-in" }
func (vetoIncoming) OnIncoming(ctx context.Context, session, message, from, channel string) (middleware.IncomingResult, error) {
	return middleware.IncomingResult{Prevented: true}, nil
}

type vetoOutgoing struct{ middleware.NopMiddleware }

func (vetoOutgoing) Name() string { return "veto-out" }
func (vetoOutgoing) OnOutgoing(ctx context.Context, session, response, from, channel string) (middleware.OutgoingResult, error) {
	return middleware.OutgoingResult{Prevented: true}, nil
}

// staleResumeProvider fails its first event with the documented stale
// signature whenever it is asked to resume a conversation, and succeeds
// cleanly on a fresh one — exercising the executor's single retry.
type staleResumeProvider struct{}

func (*staleResumeProvider) ID() string           { return "stale" }
func (*staleResumeProvider) Name() string         { return "stale" }
func (*staleResumeProvider) ListModels() []string { return []string{"m"} }
func (*staleResumeProvider) DefaultModel() string  { return "m" }

func (*staleResumeProvider) Query(ctx context.Context, opts types.QueryOptions) (types.ProviderStream, error) {
	return &staleResumeStream{resuming: opts.ConversationID != ""}, nil
}

type staleResumeStream struct {
	resuming bool
	i        int
}

func (s *staleResumeStream) Next(ctx context.Context) (types.ProviderEvent, bool, error) {
	if s.resuming {
		return types.ProviderEvent{}, false, errors.New(types.StaleResumeSignature)
	}
	switch s.i {
	case 0:
		s.i++
		return types.ProviderEvent{Kind: types.EventSystemInit, ConversationID: "fresh-conv"}, true, nil
	case 1:
		s.i++
		return types.ProviderEvent{Kind: types.EventStreamDelta, TextDelta: "ok"}, true, nil
	default:
		return types.ProviderEvent{Kind: types.EventResult, ResultSubtype: "success"}, false, nil
	}
}

func (s *staleResumeStream) Close() error { return nil }
