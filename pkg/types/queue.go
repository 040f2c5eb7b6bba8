package types

import "time"

// InjectOptions carries everything an injection call can supply beyond the
// session name and message text.
type InjectOptions struct {
	From      string
	Channel   string
	SenderID  string
	Images    []ImageRef
	Source    InjectionSource
	Providers []string // restricts context assembly to this provider whitelist
}

// InjectResult is what a successful (non-cancelled) injection resolves with.
type InjectResult struct {
	Response       string
	SessionID      string
	Cancelled      bool
}

// QueueStats is the observability snapshot for one session or the whole
// queue manager.
type QueueStats struct {
	Active int `json:"active"`
	Queued int `json:"queued"`
}

// QueueEventKind enumerates the queue manager's observability events.
type QueueEventKind string

const (
	QueueEnqueue  QueueEventKind = "enqueue"
	QueueStart    QueueEventKind = "start"
	QueueComplete QueueEventKind = "complete"
	QueueCancel   QueueEventKind = "cancel"
	QueueError    QueueEventKind = "error"
)

// QueueEvent is published once per queue entry per lifecycle transition.
type QueueEvent struct {
	Kind      QueueEventKind
	Session   string
	InjectID  string
	At        time.Time
	Err       string
}
