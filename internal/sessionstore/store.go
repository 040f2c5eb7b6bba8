package sessionstore

import (
	"encoding/json"
	"errors"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wopr-network/wopr/internal/config"
	"github.com/wopr-network/wopr/internal/event"
	"github.com/wopr-network/wopr/internal/logging"
	"github.com/wopr-network/wopr/pkg/types"
)

// ErrInvalidName is returned for a session name that isn't filesystem-safe.
var ErrInvalidName = errors.New("sessionstore: invalid session name")

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidName reports whether name is unique-safe: non-empty and
// filesystem-safe (letters, digits, dot, underscore, dash).
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// Store is the session index plus per-session context/provider/created
// persistence. It holds no in-memory cache of conversation IDs: every read
// goes to disk, since the daemon is single-process and file I/O here is
// local and infrequent relative to provider calls.
type Store struct {
	paths *config.Paths
	mu    sync.Mutex // serializes sessions.json read-modify-write
}

// New returns a Store rooted at the given paths. Callers must have already
// called paths.Ensure().
func New(paths *config.Paths) *Store {
	return &Store{paths: paths}
}

// GetSessions returns the full name -> conversation-id index. A missing
// index file is treated as empty, not an error.
func (s *Store) GetSessions() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndexLocked()
}

func (s *Store) readIndexLocked() (map[string]string, error) {
	data, err := os.ReadFile(s.paths.SessionsIndex())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	var idx map[string]string
	if err := json.Unmarshal(data, &idx); err != nil {
		logging.Warn().Err(err).Msg("sessionstore: malformed sessions.json, treating as empty")
		return map[string]string{}, nil
	}
	if idx == nil {
		idx = map[string]string{}
	}
	return idx, nil
}

func (s *Store) writeIndexLocked(idx map[string]string) error {
	return atomicWriteJSON(s.paths.SessionsIndex(), idx)
}

// GetSessionID returns the stored conversation id for name and whether one
// is recorded at all.
func (s *Store) GetSessionID(name string) (string, bool, error) {
	idx, err := s.GetSessions()
	if err != nil {
		return "", false, err
	}
	id, ok := idx[name]
	return id, ok, nil
}

// SaveSessionID upserts the conversation id for name. If the session has
// no recorded creation timestamp yet, one is stamped now; an existing
// timestamp is never overwritten.
func (s *Store) SaveSessionID(name, convID string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	idx, err := s.readIndexLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	_, existed := idx[name]
	idx[name] = convID
	err = s.writeIndexLocked(idx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(s.paths.SessionCreated(name)); os.IsNotExist(statErr) {
		now := time.Now().UnixMilli()
		if werr := os.WriteFile(s.paths.SessionCreated(name), []byte(formatTS(now)), 0o644); werr != nil {
			return werr
		}
		if !existed {
			event.PublishSync(event.Event{
				Type: event.SessionCreate,
				Data: event.SessionCreatedData{Session: &types.Session{
					Name: name, ConversationID: convID, CreatedAt: now,
				}},
			})
		}
	}
	return nil
}

// DeleteSessionID removes the id mapping but leaves context/provider/log
// untouched.
func (s *Store) DeleteSessionID(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.readIndexLocked()
	if err != nil {
		return err
	}
	delete(idx, name)
	return s.writeIndexLocked(idx)
}

// GetContext returns the session's system context text, or "" if unset.
func (s *Store) GetContext(name string) (string, error) {
	data, err := os.ReadFile(s.paths.SessionContext(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// SetContext overwrites the session's context text.
func (s *Store) SetContext(name, text string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	return atomicWrite(s.paths.SessionContext(name), []byte(text))
}

// GetProvider returns the session's provider config, or nil if unset.
func (s *Store) GetProvider(name string) (*types.ProviderConfig, error) {
	data, err := os.ReadFile(s.paths.SessionProvider(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var pc types.ProviderConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		logging.Warn().Err(err).Str("session", name).Msg("sessionstore: malformed provider config, treating as unset")
		return nil, nil
	}
	return &pc, nil
}

// SetProvider overwrites the session's provider config.
func (s *Store) SetProvider(name string, pc *types.ProviderConfig) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	return atomicWriteJSON(s.paths.SessionProvider(name), pc)
}

// GetLastTrigger returns the last-trigger watermark for name (unix
// milliseconds), or 0 if never set. Time-windowed context providers read
// this to decide how long a session has been quiet.
func (s *Store) GetLastTrigger(name string) int64 {
	data, err := os.ReadFile(s.paths.SessionLastTrigger(name))
	if err != nil {
		return 0
	}
	return parseTS(string(data))
}

// SetLastTrigger overwrites the last-trigger watermark for name.
func (s *Store) SetLastTrigger(name string, ts int64) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	return atomicWrite(s.paths.SessionLastTrigger(name), []byte(formatTS(ts)))
}

// getCreated returns the session's creation timestamp, or 0 if unset.
func (s *Store) getCreated(name string) int64 {
	data, err := os.ReadFile(s.paths.SessionCreated(name))
	if err != nil {
		return 0
	}
	return parseTS(string(data))
}

// ListSessions joins id, context, and creation ts for every known session.
func (s *Store) ListSessions() ([]types.SessionListing, error) {
	idx, err := s.GetSessions()
	if err != nil {
		return nil, err
	}
	out := make([]types.SessionListing, 0, len(idx))
	for name, convID := range idx {
		ctx, _ := s.GetContext(name)
		out = append(out, types.SessionListing{
			Name:           name,
			ConversationID: convID,
			Context:        ctx,
			CreatedAt:      s.getCreated(name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteSession clears the id, context, provider, and created marker for
// name, and emits session:destroy carrying the prior history and reason.
// The conversation log file itself is never removed.
func (s *Store) DeleteSession(name, reason string) error {
	history, err := NewLog(s.paths).Read(name, 0)
	if err != nil {
		logging.Warn().Err(err).Str("session", name).Msg("sessionstore: failed to read history before destroy")
	}

	s.mu.Lock()
	idx, err := s.readIndexLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	delete(idx, name)
	err = s.writeIndexLocked(idx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	for _, p := range []string{s.paths.SessionContext(name), s.paths.SessionProvider(name), s.paths.SessionCreated(name)} {
		if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
			return rmErr
		}
	}

	event.PublishSync(event.Event{
		Type: event.SessionDestroy,
		Data: event.SessionDestroyedData{Name: name, Reason: reason, History: history},
	})
	return nil
}

func formatTS(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

func parseTS(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
