package wsfanout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wopr-network/wopr/internal/event"
	"github.com/wopr-network/wopr/pkg/types"
)

func TestTopicMatchesWildcard(t *testing.T) {
	assert.True(t, topicMatches("*", "instance:X:logs"))
	assert.True(t, topicMatches("*", "session:anything"))
}

func TestTopicMatchesInstancesCatchAll(t *testing.T) {
	assert.True(t, topicMatches("instances", "instance:X"))
	assert.True(t, topicMatches("instances", "instance:X:logs"))
	assert.False(t, topicMatches("instances", "session:X"))
}

func TestTopicMatchesInstancePrefix(t *testing.T) {
	assert.True(t, topicMatches("instance:X", "instance:X"))
	assert.True(t, topicMatches("instance:X", "instance:X:logs"))
	assert.True(t, topicMatches("instance:X", "instance:X:status"))
	assert.False(t, topicMatches("instance:X", "instance:Y:logs"))
}

func TestTopicMatchesExactOnly(t *testing.T) {
	assert.True(t, topicMatches("session:X", "session:X"))
	assert.False(t, topicMatches("session:X", "session:Y"))
	assert.False(t, topicMatches("session:X", "session:X:logs"))
}

func TestTopicsForEventSessionResponseChunk(t *testing.T) {
	topics := topicsForEvent(event.Event{
		Type: event.SessionResponseChunk,
		Data: event.SessionResponseChunkData{Session: "s1", Kind: event.StreamDelta, Text: "hi"},
	})
	assert.ElementsMatch(t, []string{"instance:s1:logs", "session:s1"}, topics)
}

func TestTopicsForEventProviderHealthIsGlobal(t *testing.T) {
	topics := topicsForEvent(event.Event{
		Type: event.ProviderHealth,
		Data: event.ProviderHealthData{ProviderID: "anthropic", Available: true},
	})
	assert.Equal(t, []string{"instances"}, topics)
}

func TestTopicsForEventSessionCreate(t *testing.T) {
	topics := topicsForEvent(event.Event{
		Type: event.SessionCreate,
		Data: event.SessionCreatedData{Session: &types.Session{Name: "s1"}},
	})
	assert.ElementsMatch(t, []string{"instance:s1:session", "session:s1"}, topics)
}

func TestTopicsForEventUnknownTypeReturnsNil(t *testing.T) {
	topics := topicsForEvent(event.Event{Type: "bogus", Data: nil})
	assert.Nil(t, topics)
}
