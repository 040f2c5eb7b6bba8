package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wopr-network/wopr/internal/event"
	"github.com/wopr-network/wopr/pkg/types"
)

// ErrNoProvidersAvailable is returned when a fallback chain is exhausted
// without finding an available provider.
var ErrNoProvidersAvailable = fmt.Errorf("provider: no available provider in chain")

// registered pairs a live client with its last-known health flag.
type registered struct {
	client    types.Provider
	available bool
}

// Registry is the daemon-wide set of configured providers. Available is
// a hint updated by CheckHealth; ResolveProvider does not call a provider,
// so one marked available that fails is skipped only when the caller
// resolves again with its id in exclude (see doc.go).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*registered
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*registered)}
}

// Register adds or replaces a provider, initially marked available.
func (r *Registry) Register(p types.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = &registered{client: p, available: true}
}

// Get retrieves a provider client by id.
func (r *Registry) Get(id string) (types.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.providers[id]
	if !ok {
		return nil, false
	}
	return reg.client, true
}

// ListProviders returns a ProviderDescriptor for every registered
// provider, in no particular order.
func (r *Registry) ListProviders() []types.ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ProviderDescriptor, 0, len(r.providers))
	for id, reg := range r.providers {
		out = append(out, types.ProviderDescriptor{
			ID:              id,
			Name:            reg.client.Name(),
			DefaultModel:    reg.client.DefaultModel(),
			SupportedModels: reg.client.ListModels(),
			Available:       reg.available,
		})
	}
	return out
}

// SetAvailable updates a provider's health flag and publishes
// provider:health. Unknown provider ids are ignored.
func (r *Registry) SetAvailable(id string, available bool) {
	r.mu.Lock()
	reg, ok := r.providers[id]
	if ok {
		reg.available = available
	}
	r.mu.Unlock()

	if ok {
		event.Publish(event.Event{Type: event.ProviderHealth, Data: event.ProviderHealthData{
			ProviderID: id, Available: available,
		}})
	}
}

// CheckHealth probes every registered provider with a lightweight call
// (listing models never requires network access in the concrete
// clients, so it doubles as a liveness check: ListModels returning a
// non-empty list means the client constructed successfully) and updates
// each one's Available flag. Health is a hint for display and default
// selection, not a correctness boundary: ResolveProvider's fallback walk
// still tolerates an "available" provider failing immediately.
func (r *Registry) CheckHealth() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.providers))
	clients := make([]types.Provider, 0, len(r.providers))
	for id, reg := range r.providers {
		ids = append(ids, id)
		clients = append(clients, reg.client)
	}
	r.mu.RUnlock()

	for i, client := range clients {
		r.SetAvailable(ids[i], len(client.ListModels()) > 0)
	}
}

// ResolveProvider walks [cfg.Name, cfg.Fallback...], returning the first
// provider whose Available flag is true, the model chosen for it (a
// per-session override beats the provider's default), and the matching
// descriptor. If none are available, it returns ErrNoProvidersAvailable.
// Any id in exclude is skipped even if registered and available — the
// executor's within-injection fallback walk uses this to rule out a
// provider chosen at the start of the injection but whose Query call
// failed once this request is already in flight, without reaching for
// CheckHealth/SetAvailable (which would affect every other session too).
func (r *Registry) ResolveProvider(cfg *types.ProviderConfig, exclude ...string) (types.ResolvedProvider, error) {
	if cfg == nil || cfg.Name == "" {
		return types.ResolvedProvider{}, fmt.Errorf("provider: no provider configured")
	}

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	chain := append([]string{cfg.Name}, cfg.Fallback...)
	var lastErr error

	for _, id := range chain {
		if excluded[id] {
			lastErr = fmt.Errorf("provider %q: excluded from this attempt", id)
			continue
		}

		r.mu.RLock()
		reg, ok := r.providers[id]
		r.mu.RUnlock()

		if !ok {
			lastErr = fmt.Errorf("provider %q: not registered", id)
			continue
		}
		if !reg.available {
			lastErr = fmt.Errorf("provider %q: marked unavailable", id)
			continue
		}

		model := cfg.Model
		if model == "" {
			model = reg.client.DefaultModel()
		}

		return types.ResolvedProvider{
			Descriptor: types.ProviderDescriptor{
				ID:              id,
				Name:            reg.client.Name(),
				DefaultModel:    reg.client.DefaultModel(),
				SupportedModels: reg.client.ListModels(),
				Available:       reg.available,
			},
			Client: reg.client,
			Model:  model,
		}, nil
	}

	if lastErr != nil {
		return types.ResolvedProvider{}, fmt.Errorf("%w: %s", ErrNoProvidersAvailable, lastErr)
	}
	return types.ResolvedProvider{}, ErrNoProvidersAvailable
}

// FirstAvailable returns the id of the first registered provider whose
// Available flag is true, used to pick a session's initial provider
// config when none is stored yet. Order is not guaranteed across calls
// beyond "some available provider, if any."
func (r *Registry) FirstAvailable() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, reg := range r.providers {
		if reg.available {
			return id, true
		}
	}
	return "", false
}

// ParseModelString splits a "provider/model" string; if there is no
// slash, providerID is empty and the whole string is the model id.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}
