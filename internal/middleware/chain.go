package middleware

import (
	"context"
	"fmt"

	"github.com/wopr-network/wopr/internal/logging"
)

// IncomingResult is returned by an OnIncoming hook.
type IncomingResult struct {
	Prevented bool
	Message   string
}

// OutgoingResult is returned by an OnOutgoing hook.
type OutgoingResult struct {
	Prevented bool
	Response  string
}

// Middleware implements both hooks; one that only cares about one hook
// embeds NopMiddleware, whose hooks pass their input through unchanged.
type Middleware interface {
	Name() string
	OnIncoming(ctx context.Context, session, message, from, channel string) (IncomingResult, error)
	OnOutgoing(ctx context.Context, session, response, from, channel string) (OutgoingResult, error)
}

// NopMiddleware embeds into concrete middlewares that only implement one
// hook, so they don't need to stub the other.
type NopMiddleware struct{}

func (NopMiddleware) OnIncoming(ctx context.Context, session, message, from, channel string) (IncomingResult, error) {
	return IncomingResult{Message: message}, nil
}

func (NopMiddleware) OnOutgoing(ctx context.Context, session, response, from, channel string) (OutgoingResult, error) {
	return OutgoingResult{Response: response}, nil
}

type entry struct {
	mw       Middleware
	priority int
	enabled  bool
}

// Chain is the named, priority-ordered middleware registry.
type Chain struct {
	entries map[string]*entry
	order   []string
}

// New returns an empty chain.
func New() *Chain {
	return &Chain{entries: make(map[string]*entry)}
}

// Register adds a middleware at the given priority, enabled by default.
func (c *Chain) Register(mw Middleware, priority int) {
	name := mw.Name()
	if _, exists := c.entries[name]; !exists {
		c.order = append(c.order, name)
	}
	c.entries[name] = &entry{mw: mw, priority: priority, enabled: true}
}

// SetEnabled toggles a middleware by name. Unknown names are a no-op.
func (c *Chain) SetEnabled(name string, enabled bool) {
	if e, ok := c.entries[name]; ok {
		e.enabled = enabled
	}
}

// SetPriority changes a middleware's run order. Unknown names are a no-op.
func (c *Chain) SetPriority(name string, priority int) {
	if e, ok := c.entries[name]; ok {
		e.priority = priority
	}
}

// Info is the externally-visible state of one registered middleware.
type Info struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// List returns every registered middleware's name/priority/enabled state,
// in registration order, for admin/API inspection.
func (c *Chain) List() []Info {
	out := make([]Info, 0, len(c.order))
	for _, name := range c.order {
		e := c.entries[name]
		out = append(out, Info{Name: name, Priority: e.priority, Enabled: e.enabled})
	}
	return out
}

func (c *Chain) sorted() []*entry {
	out := make([]*entry, 0, len(c.order))
	for _, name := range c.order {
		if e := c.entries[name]; e.enabled {
			out = append(out, e)
		}
	}
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].priority > out[j].priority {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

// RunIncoming runs every enabled middleware's OnIncoming hook in
// priority order. The first to set Prevented stops the chain; its
// message up to that point is returned alongside Prevented=true.
func (c *Chain) RunIncoming(ctx context.Context, session, message, from, channel string) IncomingResult {
	current := message
	for _, e := range c.sorted() {
		result, err := c.runIncomingSafely(ctx, e.mw, session, current, from, channel)
		if err != nil {
			logging.Warn().Err(err).Str("middleware", e.mw.Name()).Msg("middleware: onIncoming failed, treated as no-op")
			continue
		}
		if result.Prevented {
			return IncomingResult{Prevented: true, Message: current}
		}
		if result.Message != "" {
			current = result.Message
		}
	}
	return IncomingResult{Message: current}
}

// RunOutgoing mirrors RunIncoming for responses.
func (c *Chain) RunOutgoing(ctx context.Context, session, response, from, channel string) OutgoingResult {
	current := response
	for _, e := range c.sorted() {
		result, err := c.runOutgoingSafely(ctx, e.mw, session, current, from, channel)
		if err != nil {
			logging.Warn().Err(err).Str("middleware", e.mw.Name()).Msg("middleware: onOutgoing failed, treated as no-op")
			continue
		}
		if result.Prevented {
			return OutgoingResult{Prevented: true, Response: current}
		}
		if result.Response != "" {
			current = result.Response
		}
	}
	return OutgoingResult{Response: current}
}

func (c *Chain) runIncomingSafely(ctx context.Context, mw Middleware, session, message, from, channel string) (result IncomingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return mw.OnIncoming(ctx, session, message, from, channel)
}

func (c *Chain) runOutgoingSafely(ctx context.Context, mw Middleware, session, response, from, channel string) (result OutgoingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return mw.OnOutgoing(ctx, session, response, from, channel)
}
