package sessionstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wopr-network/wopr/internal/config"
	"github.com/wopr-network/wopr/pkg/types"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	paths := &config.Paths{Base: t.TempDir()}
	require.NoError(t, paths.Ensure())
	return NewLog(paths)
}

func TestLogAppendAndRead(t *testing.T) {
	l := newTestLog(t)

	require.NoError(t, l.Append("s1", types.ConversationEntry{From: "user", Content: "one", Type: types.EntryMessage}))
	require.NoError(t, l.Append("s1", types.ConversationEntry{From: "assistant", Content: "two", Type: types.EntryResponse}))

	entries, err := l.Read("s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Content)
	assert.Equal(t, "two", entries[1].Content)
}

func TestLogReadLimit(t *testing.T) {
	l := newTestLog(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append("s1", types.ConversationEntry{From: "user", Content: "msg", Type: types.EntryMessage}))
	}

	entries, err := l.Read("s1", 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLogReadMissingSessionIsEmpty(t *testing.T) {
	l := newTestLog(t)
	entries, err := l.Read("nope", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogSkipsUnparsableLines(t *testing.T) {
	l := newTestLog(t)
	require.NoError(t, l.Append("s1", types.ConversationEntry{From: "user", Content: "good", Type: types.EntryMessage}))

	f, err := os.OpenFile(l.paths.SessionLog("s1"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\nnot json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, l.Append("s1", types.ConversationEntry{From: "user", Content: "after", Type: types.EntryMessage}))

	entries, err := l.Read("s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "good", entries[0].Content)
	assert.Equal(t, "after", entries[1].Content)
}

func TestLogMessageConvenience(t *testing.T) {
	l := newTestLog(t)
	require.NoError(t, l.LogMessage("s1", "ambient", types.LogOptions{SenderID: "slack-bot", Channel: "#general"}))

	entries, err := l.Read("s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.EntryMessage, entries[0].Type)
	assert.Equal(t, "#general", entries[0].Channel)
}
