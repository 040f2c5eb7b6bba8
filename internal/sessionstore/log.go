package sessionstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/wopr-network/wopr/internal/config"
	"github.com/wopr-network/wopr/internal/logging"
	"github.com/wopr-network/wopr/pkg/types"
)

// Log is the append-only conversation log for one store. It has no
// in-memory buffering: every Append is an O_APPEND write, every Read scans
// the file from the start. This is deliberately simple — conversation
// logs are small relative to provider call latency.
type Log struct {
	paths *config.Paths
}

// NewLog returns a Log rooted at the given paths.
func NewLog(paths *config.Paths) *Log {
	return &Log{paths: paths}
}

// Append writes one JSON-encoded entry as a new line. If ts is zero, the
// current time is stamped.
func (l *Log) Append(session string, entry types.ConversationEntry) error {
	if entry.TS == 0 {
		entry.TS = time.Now().UnixMilli()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.paths.SessionLog(session), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// LogMessage is a convenience for appending a message-typed entry without
// triggering a model call — used by external platform adapters to record
// ambient context.
func (l *Log) LogMessage(session, content string, opts types.LogOptions) error {
	return l.Append(session, types.ConversationEntry{
		From:     "external",
		SenderID: opts.SenderID,
		Content:  content,
		Type:     types.EntryMessage,
		Channel:  opts.Channel,
	})
}

// Read returns at most the last limit entries for a session, oldest
// first. limit <= 0 means unbounded. Blank lines are skipped; lines that
// fail to parse are skipped and logged once each, so a single corrupt
// line never loses the rest of the history.
func (l *Log) Read(session string, limit int) ([]types.ConversationEntry, error) {
	f, err := os.Open(l.paths.SessionLog(session))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var all []types.ConversationEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry types.ConversationEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			logging.Warn().Err(err).Str("session", session).Msg("sessionstore: skipping unparsable log line")
			continue
		}
		all = append(all, entry)
	}
	if err := scanner.Err(); err != nil {
		return all, err
	}

	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
