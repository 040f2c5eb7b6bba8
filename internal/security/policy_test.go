package security

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wopr-network/wopr/internal/config"
	"github.com/wopr-network/wopr/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	paths := &config.Paths{Base: t.TempDir()}
	require.NoError(t, paths.Ensure())
	e, err := New(paths)
	require.NoError(t, err)
	return e
}

func ownerSource() types.InjectionSource {
	return types.InjectionSource{Type: types.SourceCLI}
}

func trustedSource(caps ...string) types.InjectionSource {
	return types.InjectionSource{Type: types.SourcePlugin, GrantedCapabilities: caps}
}

func TestEnforcementOverridePrecedence(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Enforcement = types.EnforcementEnforce
	require.NoError(t, e.Save(cfg))

	t.Setenv("WOPR_SECURITY_ENFORCEMENT", "warn")
	effective, stored := e.IsEnforcementEnabled()
	assert.Equal(t, types.EnforcementWarn, effective)
	assert.Equal(t, types.EnforcementEnforce, stored)
}

func TestEnforcementInvalidEnvFallsBackToStored(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Enforcement = types.EnforcementEnforce
	require.NoError(t, e.Save(cfg))

	os.Setenv("WOPR_SECURITY_ENFORCEMENT", "bogus")
	defer os.Unsetenv("WOPR_SECURITY_ENFORCEMENT")

	effective, stored := e.IsEnforcementEnabled()
	assert.Equal(t, types.EnforcementEnforce, effective)
	assert.Equal(t, types.EnforcementEnforce, stored)
}

func TestParentCapabilityImpliesChildren(t *testing.T) {
	e := newTestEngine(t)
	src := trustedSource("inject")

	assert.True(t, e.CheckCapability(src, "inject.tools").Allowed)
	assert.True(t, e.CheckCapability(src, "inject.exec").Allowed)

	cfg := e.snapshot()
	cfg.Enforcement = types.EnforcementEnforce
	require.NoError(t, e.Save(cfg))
	assert.False(t, e.CheckCapability(src, "config.write").Allowed)
}

func TestWildcardCapabilityGrantsEverything(t *testing.T) {
	e := newTestEngine(t)
	assert.True(t, e.CheckCapability(ownerSource(), "config.write").Allowed)
	assert.True(t, e.CheckCapability(ownerSource(), "inject.exec").Allowed)
}

func TestOwnerAlwaysPassesSessionAccess(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Defaults.MinTrustLevel = types.Trusted
	require.NoError(t, e.Save(cfg))

	assert.True(t, e.CheckSessionAccess(ownerSource(), "anything").Allowed)
}

func TestCheckSessionAccessDeniesBelowMinTrust(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Defaults.MinTrustLevel = types.Trusted
	cfg.Enforcement = types.EnforcementEnforce
	require.NoError(t, e.Save(cfg))

	src := types.InjectionSource{Type: types.SourceP2P} // defaults to Untrusted
	decision := e.CheckSessionAccess(src, "s1")
	assert.False(t, decision.Allowed)
}

func TestCheckSessionAccessWarnModeAllowsWithWarning(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Defaults.MinTrustLevel = types.Trusted
	cfg.Enforcement = types.EnforcementWarn
	require.NoError(t, e.Save(cfg))

	src := types.InjectionSource{Type: types.SourceP2P}
	decision := e.CheckSessionAccess(src, "s1")
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Warning)
}

func TestCheckSessionAccessOffModeAllowsSilently(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Defaults.MinTrustLevel = types.Trusted
	cfg.Enforcement = types.EnforcementOff
	require.NoError(t, e.Save(cfg))

	src := types.InjectionSource{Type: types.SourceP2P}
	decision := e.CheckSessionAccess(src, "s1")
	assert.True(t, decision.Allowed)
	assert.False(t, decision.Warning)
}

func TestCheckSessionAccessBlockedSessionList(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Enforcement = types.EnforcementEnforce
	p := cfg.ByTrust[types.Trusted.String()]
	p.Blocked = []string{"restricted"}
	cfg.ByTrust[types.Trusted.String()] = p
	require.NoError(t, e.Save(cfg))

	src := trustedSource()
	assert.False(t, e.CheckSessionAccess(src, "restricted").Allowed)
	assert.True(t, e.CheckSessionAccess(src, "other").Allowed)
}

func TestCheckToolAccessDenyListWinsOverCapability(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Enforcement = types.EnforcementEnforce
	p := cfg.ByTrust[types.Trusted.String()]
	p.Capabilities = []string{"inject"}
	p.ToolDeny = []string{"inject"}
	cfg.ByTrust[types.Trusted.String()] = p
	require.NoError(t, e.Save(cfg))

	src := trustedSource()
	assert.False(t, e.CheckToolAccess(src, "inject").Allowed)
}

func TestCheckToolAccessExplicitAllowBeatsWildcardDeny(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Enforcement = types.EnforcementEnforce
	p := cfg.ByTrust[types.Trusted.String()]
	p.Capabilities = []string{"inject"}
	p.ToolDeny = []string{"*"}
	p.ToolAllow = []string{"inject"}
	cfg.ByTrust[types.Trusted.String()] = p
	require.NoError(t, e.Save(cfg))

	src := trustedSource()
	assert.True(t, e.CheckToolAccess(src, "inject").Allowed)
}

func TestCheckToolAccessWarnModeStillEnforcesDenyList(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Enforcement = types.EnforcementWarn
	p := cfg.ByTrust[types.Trusted.String()]
	p.Capabilities = []string{"inject"}
	p.ToolDeny = []string{"*"}
	cfg.ByTrust[types.Trusted.String()] = p
	require.NoError(t, e.Save(cfg))

	src := trustedSource()
	decision := e.CheckToolAccess(src, "inject")
	assert.False(t, decision.Allowed, "warn mode relaxes capability denials, not deny-list filtering")
}

func TestFilterToolsByPolicy(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Enforcement = types.EnforcementEnforce
	require.NoError(t, e.Save(cfg))

	src := trustedSource("inject", "session.read")
	filtered := e.FilterToolsByPolicy(src, []string{"inject", "session.read", "config.write"})
	assert.ElementsMatch(t, []string{"inject", "session.read"}, filtered)
}

func TestCanSessionForwardRequiresCrossInject(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Enforcement = types.EnforcementEnforce
	require.NoError(t, e.Save(cfg))

	src := trustedSource("inject")
	assert.False(t, e.CanSessionForward("from", "to", src).Allowed)

	src2 := trustedSource("inject", "cross.inject")
	assert.True(t, e.CanSessionForward("from", "to", src2).Allowed)
}

func TestResolvePolicySessionOverrideCapabilities(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.snapshot()
	cfg.Sessions = map[string]types.SessionOverride{
		"special": {Capabilities: []string{"config.write"}, CanForward: true},
	}
	require.NoError(t, e.Save(cfg))

	src := trustedSource("inject")
	policy := e.ResolvePolicy(src, "special")
	assert.Contains(t, policy.Capabilities, "config.write")
	assert.True(t, policy.CanForward)
}
