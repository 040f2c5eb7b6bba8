package types

// Session is a named, persistent conversation. The name is the primary key:
// unique, case-sensitive, and filesystem-safe.
type Session struct {
	Name             string        `json:"name"`
	ConversationID   string        `json:"conversationId,omitempty"`
	Context          string        `json:"context,omitempty"`
	Provider         *ProviderConfig `json:"provider,omitempty"`
	CreatedAt        int64         `json:"createdAt"`
}

// ProviderConfig is the per-session provider selection: a provider id, an
// optional model override, and an optional ordered fallback chain of
// provider ids tried in order when the primary is unavailable.
type ProviderConfig struct {
	Name     string   `json:"name"`
	Model    string   `json:"model,omitempty"`
	Fallback []string `json:"fallback,omitempty"`
}

// EntryType enumerates the kinds of conversation log entries.
type EntryType string

const (
	EntryMessage  EntryType = "message"
	EntryResponse EntryType = "response"
	EntryContext  EntryType = "context"
	EntryTool     EntryType = "tool"
	EntrySystem   EntryType = "system"
)

// ConversationEntry is one append-only record in a session's conversation
// log. The log is the authority for session history; entries are never
// rewritten in place.
type ConversationEntry struct {
	TS       int64     `json:"ts"`
	From     string    `json:"from"`
	SenderID string    `json:"senderId,omitempty"`
	Content  string    `json:"content"`
	Type     EntryType `json:"type"`
	Channel  string    `json:"channel,omitempty"`
}

// LogOptions customizes an ambient LogMessage append (external platform
// adapters capturing context without triggering a model call).
type LogOptions struct {
	SenderID string
	Channel  string
}

// SessionListing is the joined view of a session's id, context, and
// creation timestamp returned by ListSessions.
type SessionListing struct {
	Name           string `json:"name"`
	ConversationID string `json:"conversationId,omitempty"`
	Context        string `json:"context,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}
