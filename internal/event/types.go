package event

import "github.com/wopr-network/wopr/pkg/types"

// SessionCreatedData is the data for session:create events.
type SessionCreatedData struct {
	Session *types.Session `json:"session"`
}

// SessionDestroyedData is the data for session:destroy events. The
// conversation log file itself survives the destroy, but the event still
// carries the history it held at the moment of deletion (plus why the
// session was deleted) for any subscriber that needs it and won't get a
// second chance to read the file.
type SessionDestroyedData struct {
	Name    string                    `json:"name"`
	Reason  string                    `json:"reason"`
	History []types.ConversationEntry `json:"history"`
}

// StreamChunkKind discriminates the shape of a SessionResponseChunkData
// payload: a forwarded provider event, an inline error, or stream end.
type StreamChunkKind string

const (
	StreamSystem   StreamChunkKind = "system"
	StreamDelta    StreamChunkKind = "delta"
	StreamToolUse  StreamChunkKind = "tool_use"
	StreamComplete StreamChunkKind = "complete"
	StreamError    StreamChunkKind = "error"
)

// SessionResponseChunkData is the data for session:response_chunk events,
// one per out-of-band message the executor forwards while streaming a
// provider response (see internal/executor.Sink).
type SessionResponseChunkData struct {
	Session  string          `json:"session"`
	InjectID string          `json:"injectId"`
	Kind     StreamChunkKind `json:"kind"`
	Text     string          `json:"text,omitempty"`
	Tool     *types.ToolUseBlock `json:"tool,omitempty"`
	Subtype  string          `json:"subtype,omitempty"`
	Detail   string          `json:"detail,omitempty"`
}

// QueueStateData mirrors a types.QueueEvent onto the bus.
type QueueStateData struct {
	Kind     types.QueueEventKind `json:"kind"`
	Session  string               `json:"session"`
	InjectID string               `json:"injectId"`
	Err      string               `json:"error,omitempty"`
}

// SecurityDeniedData is published whenever an injection fails its security
// check, even in warn mode (where the injection still proceeds).
type SecurityDeniedData struct {
	Session string `json:"session"`
	Source  string `json:"source"`
	Reason  string `json:"reason"`
	Warned  bool   `json:"warned"`
}

// SchedulerFiredData is published every time a schedule trigger fires,
// before the resulting injection is enqueued.
type SchedulerFiredData struct {
	ScheduleID string `json:"scheduleId"`
	Session    string `json:"session"`
}

// ProviderHealthData is published whenever checkHealth updates a
// provider's availability.
type ProviderHealthData struct {
	ProviderID string `json:"providerId"`
	Available  bool   `json:"available"`
}
