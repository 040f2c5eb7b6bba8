package security

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/wopr-network/wopr/internal/config"
	"github.com/wopr-network/wopr/internal/event"
	"github.com/wopr-network/wopr/internal/logging"
	"github.com/wopr-network/wopr/pkg/types"
)

// Decision is the result of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
	Warning bool // set when enforcement=warn turned a would-be deny into an allow
}

// RejectedError is returned by CheckCapability/CheckToolAccess/
// CheckSessionAccess callers that choose to surface a denial as an error
// rather than inspect the Decision directly.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

// IsRejectedError reports whether err is a RejectedError.
func IsRejectedError(err error) bool {
	_, ok := err.(*RejectedError)
	return ok
}

// toolCapability is the static tool -> required-capability map checkToolAccess
// consults after the deny-list check.
var toolCapability = map[string]string{
	"inject":        "inject",
	"inject.tools":  "inject.tools",
	"inject.exec":   "inject.exec",
	"session.read":  "session.read",
	"session.write": "session.write",
	"config.write":  "config.write",
	"cross.inject":  "cross.inject",
}

// Engine is the policy engine: a cached SecurityConfig plus the atomic
// persistence backing it. All checks read the in-memory cache; Save
// updates the cache and the on-disk file together.
type Engine struct {
	mu     sync.RWMutex
	cfg    types.SecurityConfig
	paths  *config.Paths
}

// New loads security.json if present, or starts from compiled defaults.
func New(paths *config.Paths) (*Engine, error) {
	e := &Engine{paths: paths, cfg: defaultConfig()}
	data, err := os.ReadFile(paths.SecurityConfig())
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		return nil, err
	}
	var cfg types.SecurityConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		logging.Warn().Err(err).Msg("security: malformed security.json, using compiled defaults")
		return e, nil
	}
	e.cfg = cfg
	return e, nil
}

func defaultConfig() types.SecurityConfig {
	return types.SecurityConfig{
		Enforcement: types.EnforcementWarn,
		ByTrust: map[string]types.TrustPolicy{
			types.Owner.String(): {Capabilities: []string{"*"}},
			types.Trusted.String(): {
				Capabilities: []string{"inject", "session.read", "session.write"},
			},
			types.SemiTrusted.String(): {
				Capabilities: []string{"inject", "session.read"},
			},
			types.Untrusted.String(): {
				Capabilities: []string{"session.read"},
			},
		},
		Sessions: map[string]types.SessionOverride{},
		Defaults: types.Defaults{MinTrustLevel: types.Untrusted},
	}
}

// Reload re-reads security.json from disk and swaps the cache, for use by
// a filesystem watcher that wants picking up out-of-band edits without a
// daemon restart. A missing or malformed file leaves the current cache in
// place.
func (e *Engine) Reload() error {
	data, err := os.ReadFile(e.paths.SecurityConfig())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var cfg types.SecurityConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return nil
}

// Save replaces the cached config and persists it atomically.
func (e *Engine) Save(cfg types.SecurityConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp := e.paths.SecurityConfig() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, e.paths.SecurityConfig()); err != nil {
		os.Remove(tmp)
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return nil
}

// Config returns a snapshot of the full persisted policy configuration, for
// admin/API inspection and as the read half of a read-modify-write Save.
func (e *Engine) Config() types.SecurityConfig {
	return e.snapshot()
}

func (e *Engine) snapshot() types.SecurityConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// IsEnforcementEnabled applies the env-override > stored > compiled-default
// precedence and reports whether checks should actually block (enforce),
// merely warn, or pass through silently (off). The persistent stored
// value returned by this function's second result is always the
// on-disk/cached value, unaffected by any environment override — an
// override never persists.
func (e *Engine) IsEnforcementEnabled() (effective types.EnforcementMode, stored types.EnforcementMode) {
	stored = e.snapshot().Enforcement
	if stored == "" {
		stored = types.EnforcementWarn
	}
	if v := os.Getenv("WOPR_SECURITY_ENFORCEMENT"); v != "" {
		if mode, ok := types.ParseEnforcementMode(v); ok {
			return mode, stored
		}
	}
	return stored, stored
}

// ResolvePolicy computes the effective policy for an injection source,
// optionally scoped to a session (session overrides only apply when a
// session name is given).
func (e *Engine) ResolvePolicy(src types.InjectionSource, session string) types.ResolvedPolicy {
	cfg := e.snapshot()

	trust := src.Type.DefaultTrust()
	if src.TrustOverride != nil {
		trust = *src.TrustOverride
	}

	base := cfg.TrustPolicyFor(trust)

	caps := dedupe(append(append([]string{}, base.Capabilities...), src.GrantedCapabilities...))
	allowed := append([]string{}, base.Allowed...)
	blocked := append([]string{}, base.Blocked...)

	canForward := false
	var forwardRules []string
	if session != "" {
		if ov, ok := cfg.Sessions[session]; ok {
			if len(ov.Capabilities) > 0 {
				caps = dedupe(append(caps, ov.Capabilities...))
			}
			if len(ov.Access) > 0 {
				allowed = append(allowed, ov.Access...)
			}
			canForward = ov.CanForward
			forwardRules = ov.ForwardRules
		}
	}

	return types.ResolvedPolicy{
		TrustLevel:      trust,
		Capabilities:    caps,
		AllowedSessions: allowed,
		BlockedSessions: blocked,
		Sandbox:         base.Sandbox,
		RateLimit:       base.RateLimit,
		ToolAllow:       base.ToolAllow,
		ToolDeny:        base.ToolDeny,
		IsGateway:       hasCapability(caps, "cross.inject"),
		CanForward:      canForward,
		ForwardRules:    forwardRules,
	}
}

// CheckSessionAccess reports whether src may act on session.
func (e *Engine) CheckSessionAccess(src types.InjectionSource, session string) Decision {
	cfg := e.snapshot()
	policy := e.ResolvePolicy(src, session)

	if policy.TrustLevel == types.Owner {
		return Decision{Allowed: true}
	}
	if policy.TrustLevel < cfg.Defaults.MinTrustLevel {
		return e.enforceDecision(false, "trust level below minimum")
	}
	for _, b := range policy.BlockedSessions {
		if b == session {
			return e.enforceDecision(false, "session is blocked for this trust level")
		}
	}
	if !policy.AllowsAllSessions() && !policy.AllowsSession(session) {
		return e.enforceDecision(false, "session not in allow-list")
	}
	if ov, ok := cfg.Sessions[session]; ok && len(ov.Access) > 0 {
		if !matchesAny(ov.Access, src.Origin) {
			return e.enforceDecision(false, "source does not match session access patterns")
		}
	}
	return Decision{Allowed: true}
}

// CheckCapability reports whether src holds cap, directly, via a parent
// dotted-prefix, or via the wildcard "*". Holding "inject" implies every
// "inject.*" capability — this is the parent-capability relation and
// must never be inverted.
func (e *Engine) CheckCapability(src types.InjectionSource, cap string) Decision {
	policy := e.ResolvePolicy(src, "")
	if hasCapability(policy.Capabilities, cap) {
		return Decision{Allowed: true}
	}
	return e.enforceDecision(false, "capability not granted: "+cap)
}

// hasCapability implements the "*", exact, and dotted-prefix matching
// rule shared by CheckCapability and ResolvedPolicy.IsGateway.
func hasCapability(caps []string, cap string) bool {
	for _, c := range caps {
		if c == "*" || c == cap {
			return true
		}
		if strings.HasPrefix(cap, c+".") {
			return true
		}
	}
	return false
}

// CheckToolAccess applies the deny-list-first, then-capability rule. In
// warn mode a capability-based deny becomes an allow-with-warning, but a
// deny-list match is still enforced: warn relaxes capability checks, it
// does not expose tools the policy wholesale withholds.
func (e *Engine) CheckToolAccess(src types.InjectionSource, toolName string) Decision {
	policy := e.ResolvePolicy(src, "")

	denied := matchesAny(policy.ToolDeny, toolName)
	allowedExplicit := matchesAny(policy.ToolAllow, toolName)
	if denied && !allowedExplicit {
		return Decision{Allowed: false, Reason: "tool denied by policy"}
	}

	requiredCap, known := toolCapability[toolName]
	if !known {
		return e.enforceDecision(false, "unknown tool: "+toolName)
	}
	if hasCapability(policy.Capabilities, requiredCap) {
		return Decision{Allowed: true}
	}
	return e.enforceDecision(false, "capability not granted: "+requiredCap)
}

// FilterToolsByPolicy returns the subset of toolNames that would pass
// CheckToolAccess under the current enforcement mode.
func (e *Engine) FilterToolsByPolicy(src types.InjectionSource, toolNames []string) []string {
	out := make([]string, 0, len(toolNames))
	for _, name := range toolNames {
		if e.CheckToolAccess(src, name).Allowed {
			out = append(out, name)
		}
	}
	return out
}

// CanSessionForward reports whether a message may be forwarded from one
// session to another: the source session must hold cross.inject, and the
// destination must pass session access for the same source.
func (e *Engine) CanSessionForward(from, to string, src types.InjectionSource) Decision {
	if !e.CheckCapability(src, "cross.inject").Allowed {
		return Decision{Allowed: false, Reason: "missing cross.inject capability"}
	}
	return e.CheckSessionAccess(src, to)
}

// enforceDecision applies the enforcement mode to a would-be deny:
// off passes silently, warn passes with a warning (and publishes
// security:denied for audit), enforce actually denies.
func (e *Engine) enforceDecision(allowed bool, reason string) Decision {
	if allowed {
		return Decision{Allowed: true}
	}
	mode, _ := e.IsEnforcementEnabled()
	switch mode {
	case types.EnforcementOff:
		return Decision{Allowed: true}
	case types.EnforcementWarn:
		event.Publish(event.Event{Type: event.SecurityDenied, Data: event.SecurityDeniedData{
			Reason: reason, Warned: true,
		}})
		return Decision{Allowed: true, Warning: true, Reason: reason}
	default: // enforce
		event.Publish(event.Event{Type: event.SecurityDenied, Data: event.SecurityDeniedData{
			Reason: reason, Warned: false,
		}})
		return Decision{Allowed: false, Reason: reason}
	}
}

func matchesAny(patterns []string, value string) bool {
	for _, p := range patterns {
		if p == "*" || p == value {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
