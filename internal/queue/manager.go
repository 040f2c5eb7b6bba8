package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wopr-network/wopr/internal/event"
	"github.com/wopr-network/wopr/pkg/types"
)

// Executor runs one injection to completion or cancellation. abort is
// closed when the caller or CancelActive requests cancellation; the
// executor must observe it between suspension points (context assembly,
// middleware calls, provider stream yields, log appends) and return
// ErrCancelled promptly once it does.
type Executor func(ctx context.Context, session string, message string, opts types.InjectOptions, abort <-chan struct{}) (types.InjectResult, error)

// ErrCancelled is returned by an Executor (and surfaced to the caller of
// Inject) when the abort handle fired before the injection completed.
var ErrCancelled = errors.New("queue: injection cancelled")

// ErrExecutorAlreadySet is returned by SetExecutor on a second call.
var ErrExecutorAlreadySet = errors.New("queue: executor already set")

type entry struct {
	id       string
	session  string
	message  string
	opts     types.InjectOptions
	resultCh chan outcome
	abort    chan struct{}
	abortOne sync.Once
}

type outcome struct {
	result types.InjectResult
	err    error
}

type sessionQueue struct {
	mu      sync.Mutex
	pending []*entry
	active  *entry
}

// Manager is the daemon-wide queue: one sessionQueue per session name,
// created lazily on first use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*sessionQueue
	executor Executor
	execOnce sync.Once
}

// NewManager returns an empty Manager. SetExecutor must be called exactly
// once before the first Inject.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*sessionQueue)}
}

// SetExecutor wires the executor closure. Must be called exactly once;
// a second call returns ErrExecutorAlreadySet without replacing the first.
func (m *Manager) SetExecutor(fn Executor) error {
	err := ErrExecutorAlreadySet
	m.execOnce.Do(func() {
		m.executor = fn
		err = nil
	})
	return err
}

func (m *Manager) queueFor(session string) *sessionQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.sessions[session]
	if !ok {
		q = &sessionQueue{}
		m.sessions[session] = q
	}
	return q
}

// Inject enqueues work for session and blocks until it settles: success,
// failure, or cancellation. Entries for the same session run strictly in
// enqueue order; entries for different sessions run independently.
func (m *Manager) Inject(ctx context.Context, session, message string, opts types.InjectOptions) (types.InjectResult, error) {
	if m.executor == nil {
		return types.InjectResult{}, errors.New("queue: no executor set")
	}

	e := &entry{
		id:       ulid.Make().String(),
		session:  session,
		message:  message,
		opts:     opts,
		resultCh: make(chan outcome, 1),
		abort:    make(chan struct{}),
	}

	q := m.queueFor(session)
	q.mu.Lock()
	q.pending = append(q.pending, e)
	starter := len(q.pending) == 1 && q.active == nil
	q.mu.Unlock()

	event.Publish(event.Event{Type: event.QueueEnqueue, Data: event.QueueStateData{
		Kind: types.QueueEnqueue, Session: session, InjectID: e.id,
	}})

	if starter {
		go m.drain(session, q)
	}

	select {
	case out := <-e.resultCh:
		return out.result, out.err
	case <-ctx.Done():
		return types.InjectResult{}, ctx.Err()
	}
}

// drain runs every pending entry for a session to completion, one at a
// time, until the queue is empty. It runs on a background context
// independent of any single caller's request context: an Inject caller
// that gives up early (its own ctx cancelled) must not abort entries
// queued behind it or the entry it itself enqueued, since cancellation of
// an in-flight injection is expressed through the abort handle, not the
// caller's context.
func (m *Manager) drain(session string, q *sessionQueue) {
	ctx := context.Background()
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.active = nil
			q.mu.Unlock()
			return
		}
		e := q.pending[0]
		q.pending = q.pending[1:]
		q.active = e
		q.mu.Unlock()

		event.PublishSync(event.Event{Type: event.QueueStart, Data: event.QueueStateData{
			Kind: types.QueueStart, Session: session, InjectID: e.id,
		}})

		result, err := m.executor(ctx, session, e.message, e.opts, e.abort)

		switch {
		case errors.Is(err, ErrCancelled):
			event.PublishSync(event.Event{Type: event.QueueCancel, Data: event.QueueStateData{
				Kind: types.QueueCancel, Session: session, InjectID: e.id,
			}})
		case err != nil:
			event.PublishSync(event.Event{Type: event.QueueError, Data: event.QueueStateData{
				Kind: types.QueueError, Session: session, InjectID: e.id, Err: err.Error(),
			}})
		default:
			event.PublishSync(event.Event{Type: event.QueueComplete, Data: event.QueueStateData{
				Kind: types.QueueComplete, Session: session, InjectID: e.id,
			}})
		}

		e.resultCh <- outcome{result: result, err: err}
	}
}

// CancelActive signals the abort handle of the currently active entry for
// session, if any, and reports whether one was cancelled. Entries still
// queued (not yet active) are untouched.
func (m *Manager) CancelActive(session string) bool {
	q := m.queueFor(session)
	q.mu.Lock()
	active := q.active
	q.mu.Unlock()

	if active == nil {
		return false
	}
	active.abortOne.Do(func() { close(active.abort) })
	return true
}

// HasPending reports whether any entry is active or queued for session.
func (m *Manager) HasPending(session string) bool {
	q := m.queueFor(session)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active != nil || len(q.pending) > 0
}

// GetStats returns active/queued counts for one session, or aggregated
// across every session seen so far when session is "".
func (m *Manager) GetStats(session string) types.QueueStats {
	if session != "" {
		q := m.queueFor(session)
		q.mu.Lock()
		defer q.mu.Unlock()
		stats := types.QueueStats{Queued: len(q.pending)}
		if q.active != nil {
			stats.Active = 1
		}
		return stats
	}

	m.mu.Lock()
	queues := make([]*sessionQueue, 0, len(m.sessions))
	for _, q := range m.sessions {
		queues = append(queues, q)
	}
	m.mu.Unlock()

	var stats types.QueueStats
	for _, q := range queues {
		q.mu.Lock()
		stats.Queued += len(q.pending)
		if q.active != nil {
			stats.Active++
		}
		q.mu.Unlock()
	}
	return stats
}
