package contextpipeline

import (
	"context"
	"fmt"

	"github.com/wopr-network/wopr/internal/logging"
)

// MessageInfo is the subset of an injection the context pipeline and its
// providers need to decide what to contribute.
type MessageInfo struct {
	Session string
	From    string
	Channel string
	Message string
}

// Options restricts which providers run for one assembly.
type Options struct {
	// Providers, if non-empty, is a whitelist of provider names; only
	// these run, still in their registered priority order.
	Providers []string
}

// Provider contributes system-prompt and/or context-block text to one
// assembly. Implementations may read arbitrary external state (files,
// recent history, time) but must not block indefinitely; the pipeline
// does not itself impose a per-provider timeout, matching the teacher's
// synchronous multi-source assembly.
type Provider interface {
	Name() string
	// Run returns the system-prompt and context-block additions (either
	// may be empty). An error is logged and turned into a warning; it
	// never aborts the assembly.
	Run(ctx context.Context, info MessageInfo, soFar Result) (systemAddition, contextAddition string, err error)
}

// entry pairs a Provider with its registry-level priority/enabled state.
type entry struct {
	provider Provider
	priority int
	enabled  bool
}

// Result is the accumulated output of one assembleContext call.
type Result struct {
	System   string
	Context  string
	Sources  []string
	Warnings []string
}

// Pipeline is the named, priority-ordered provider registry. Priority
// and enabled flags are live-editable at runtime via SetPriority/
// SetEnabled, taking effect on the next assembly.
type Pipeline struct {
	entries map[string]*entry
	order   []string // insertion order, used only to break priority ties deterministically
}

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{entries: make(map[string]*entry)}
}

// Register adds a provider at the given priority, enabled by default.
// Registering under a name that already exists replaces it.
func (p *Pipeline) Register(provider Provider, priority int) {
	name := provider.Name()
	if _, exists := p.entries[name]; !exists {
		p.order = append(p.order, name)
	}
	p.entries[name] = &entry{provider: provider, priority: priority, enabled: true}
}

// SetEnabled toggles a provider by name. Unknown names are a no-op.
func (p *Pipeline) SetEnabled(name string, enabled bool) {
	if e, ok := p.entries[name]; ok {
		e.enabled = enabled
	}
}

// SetPriority changes a provider's run order. Unknown names are a no-op.
func (p *Pipeline) SetPriority(name string, priority int) {
	if e, ok := p.entries[name]; ok {
		e.priority = priority
	}
}

// Info is the externally-visible state of one registered context provider.
type Info struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// List returns every registered provider's name/priority/enabled state, in
// registration order, for admin/API inspection.
func (p *Pipeline) List() []Info {
	out := make([]Info, 0, len(p.order))
	for _, name := range p.order {
		e := p.entries[name]
		out = append(out, Info{Name: name, Priority: e.priority, Enabled: e.enabled})
	}
	return out
}

// sortedEntries returns the currently-selected entries in priority order
// (lower runs earlier), breaking ties by registration order.
func (p *Pipeline) sortedEntries(whitelist []string) []*entry {
	var allow map[string]bool
	if len(whitelist) > 0 {
		allow = make(map[string]bool, len(whitelist))
		for _, n := range whitelist {
			allow[n] = true
		}
	}

	out := make([]*entry, 0, len(p.order))
	for _, name := range p.order {
		e := p.entries[name]
		if !e.enabled {
			continue
		}
		if allow != nil && !allow[name] {
			continue
		}
		out = append(out, e)
	}

	// stable insertion-order sort by priority
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].priority > out[j].priority {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

// AssembleContext runs every selected, enabled provider in priority
// order, each observing the accumulated result of providers that ran
// before it, and concatenates their additions.
func (p *Pipeline) AssembleContext(ctx context.Context, info MessageInfo, opts Options) Result {
	var result Result

	for _, e := range p.sortedEntries(opts.Providers) {
		system, contextAddition, err := p.runSafely(ctx, e.provider, info, result)
		if err != nil {
			logging.Warn().Err(err).Str("provider", e.provider.Name()).Msg("contextpipeline: provider failed, skipping")
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", e.provider.Name(), err))
			continue
		}
		if system == "" && contextAddition == "" {
			continue
		}
		if system != "" {
			result.System += system
		}
		if contextAddition != "" {
			result.Context += contextAddition
		}
		result.Sources = append(result.Sources, e.provider.Name())
	}

	return result
}

// runSafely recovers from a provider panic and turns it into an error,
// so one misbehaving provider can never abort the whole assembly.
func (p *Pipeline) runSafely(ctx context.Context, provider Provider, info MessageInfo, soFar Result) (system, contextAddition string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return provider.Run(ctx, info, soFar)
}
