package wsfanout

import (
	"strings"

	"github.com/wopr-network/wopr/internal/event"
)

// topicMatches reports whether a client's subscription covers topic, per
// the hierarchical dotted-colon matching rules:
//
//   - "*" matches everything.
//   - "instances" matches any "instance:*" topic.
//   - "instance:X" matches "instance:X" itself and any "instance:X:*" topic.
//   - anything else requires an exact match.
func topicMatches(subscription, topic string) bool {
	if subscription == "*" {
		return true
	}
	if subscription == topic {
		return true
	}
	if subscription == "instances" && strings.HasPrefix(topic, "instance:") {
		return true
	}
	return strings.HasPrefix(subscription, "instance:") && strings.HasPrefix(topic, subscription+":")
}

// topicsForEvent maps a bus event onto the set of topics it should be
// published under. Every session-scoped event also lands on the flat
// "session:{name}" legacy alias.
func topicsForEvent(ev event.Event) []string {
	switch ev.Type {
	case event.SessionCreate:
		d, ok := ev.Data.(event.SessionCreatedData)
		if !ok || d.Session == nil || d.Session.Name == "" {
			return nil
		}
		return []string{"instance:" + d.Session.Name + ":session", "session:" + d.Session.Name}

	case event.SessionDestroy:
		d, ok := ev.Data.(event.SessionDestroyedData)
		if !ok || d.Name == "" {
			return nil
		}
		return []string{"instance:" + d.Name + ":session", "session:" + d.Name}

	case event.SessionResponseChunk:
		d, ok := ev.Data.(event.SessionResponseChunkData)
		if !ok || d.Session == "" {
			return nil
		}
		return []string{"instance:" + d.Session + ":logs", "session:" + d.Session}

	case event.QueueEnqueue, event.QueueStart, event.QueueComplete, event.QueueCancel, event.QueueError:
		d, ok := ev.Data.(event.QueueStateData)
		if !ok || d.Session == "" {
			return nil
		}
		return []string{"instance:" + d.Session + ":status", "session:" + d.Session}

	case event.SecurityDenied:
		d, ok := ev.Data.(event.SecurityDeniedData)
		if !ok || d.Session == "" {
			return nil
		}
		return []string{"instance:" + d.Session + ":status", "session:" + d.Session}

	case event.SchedulerFired:
		d, ok := ev.Data.(event.SchedulerFiredData)
		if !ok || d.Session == "" {
			return nil
		}
		return []string{"instance:" + d.Session + ":status", "session:" + d.Session}

	case event.ProviderHealth:
		return []string{"instances"}

	default:
		return nil
	}
}
