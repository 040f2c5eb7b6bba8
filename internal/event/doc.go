/*
Package event provides a type-safe pub/sub event system built on watermill's
gochannel. It is the seam between the injection pipeline and its consumers:
the WebSocket fan-out hub, HTTP SSE handlers, and audit logging.

# Event types

Session events:
  - session:create: a session was created, by first injection or explicit call
  - session:destroy: a session was destroyed (conversation log preserved)
  - session:response_chunk: one streamed chunk from an active injection; its
    Kind is system, delta, tool_use, complete or error

Queue events (one per types.QueueEventKind):
  - queue:enqueue, queue:start, queue:complete, queue:cancel, queue:error

Security and scheduling:
  - security:denied: an injection failed its security check (fires even in
    warn mode, where the injection proceeds despite the denial)
  - scheduler:fired: a cron or one-shot trigger fired
  - provider:health: checkHealth updated a provider's availability

# Basic usage

Publishing events:

	event.Publish(event.Event{
		Type: event.SessionCreate,
		Data: event.SessionCreatedData{Session: sess},
	})

	event.PublishSync(event.Event{
		Type: event.QueueComplete,
		Data: event.QueueStateData{Session: name, InjectID: id},
	})

Subscribing:

	unsubscribe := event.Subscribe(event.SessionCreate, func(e event.Event) {
		data := e.Data.(event.SessionCreatedData)
		logging.Info().Str("session", data.Session.Name).Msg("session created")
	})
	defer unsubscribe()

	unsubscribe = event.SubscribeAll(func(e event.Event) {
		logging.Debug().Str("type", string(e.Type)).Msg("event")
	})

# Subscriber safety

PublishSync calls subscribers synchronously in the publisher's goroutine.
Subscribers must complete quickly, use non-blocking sends, and never call
Publish/PublishSync re-entrantly.

# Custom bus instances

	bus := event.NewBus()
	defer bus.Close()
	bus.Subscribe(event.SessionCreate, handler)

# Thread safety

The bus is safe for concurrent publish and subscribe from multiple
goroutines.
*/
package event
