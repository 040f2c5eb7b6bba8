package executor

import (
	"github.com/wopr-network/wopr/internal/event"
	"github.com/wopr-network/wopr/pkg/types"
)

// EventSink forwards every stream message onto the shared event bus as
// session:response_chunk events. internal/wsfanout and the OpenAI-compat SSE
// shim both consume it via event.SubscribeAll, independent of each other and
// of the Executor itself.
type EventSink struct{}

func (EventSink) System(session, injectID, text string) {
	event.Publish(event.Event{Type: event.SessionResponseChunk, Data: event.SessionResponseChunkData{
		Session: session, InjectID: injectID, Kind: event.StreamSystem, Text: text,
	}})
}

func (EventSink) Text(session, injectID, delta string) {
	event.Publish(event.Event{Type: event.SessionResponseChunk, Data: event.SessionResponseChunkData{
		Session: session, InjectID: injectID, Kind: event.StreamDelta, Text: delta,
	}})
}

func (EventSink) ToolUse(session, injectID string, tool types.ToolUseBlock) {
	event.Publish(event.Event{Type: event.SessionResponseChunk, Data: event.SessionResponseChunkData{
		Session: session, InjectID: injectID, Kind: event.StreamToolUse, Tool: &tool,
	}})
}

func (EventSink) Complete(session, injectID string) {
	event.Publish(event.Event{Type: event.SessionResponseChunk, Data: event.SessionResponseChunkData{
		Session: session, InjectID: injectID, Kind: event.StreamComplete,
	}})
}

func (EventSink) Error(session, injectID, subtype, detail string) {
	event.Publish(event.Event{Type: event.SessionResponseChunk, Data: event.SessionResponseChunkData{
		Session: session, InjectID: injectID, Kind: event.StreamError, Subtype: subtype, Detail: detail,
	}})
}
