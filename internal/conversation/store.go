package conversation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Store persists the conversation history mapping as a single JSON file.
//
// Every mutation saves the full mapping with an atomic replace (temp file +
// rename), so the file stays valid even if the process is killed between
// saves. An advisory file lock guards the write against another docchat
// process saving at the same instant; last-writer-wins across processes
// remains a documented limitation, not an invariant.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	path   string
	logger *slog.Logger
	flk    *flock.Flock

	mu      sync.Mutex
	history History
}

// NewStore creates a Store backed by the JSON file at path and loads the
// existing history, repairing it if malformed.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	s := &Store{
		path:   path,
		logger: logger,
		// Lock a sibling file: the data file itself is replaced by rename on
		// every save, which would silently drop a lock held on the old inode.
		flk: flock.New(path + ".lock"),
	}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads the persisted mapping from disk, replacing the in-memory copy,
// and returns a snapshot. An absent file yields an empty mapping. A malformed
// file (anything that is not a mapping of id to message list) is repaired to
// an empty mapping and logged as a recoverable warning; it is a deliberate
// repair policy, not silent data loss.
func (s *Store) Load() (History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = History{}
			return History{}, nil
		}
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		s.logger.Warn("history file is malformed, resetting to empty",
			"path", s.path, "error", err)
		s.history = History{}
		return History{}, nil
	}
	if h == nil {
		h = History{}
	}

	s.history = h
	return s.snapshotLocked(), nil
}

// Save serializes the full in-memory mapping to disk, overwriting the
// previous revision entirely. On failure the in-memory copy is untouched so
// the caller can surface "history not saved" and retry.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Create mints a fresh conversation id, inserts an empty turn list, persists
// immediately, and returns the id.
func (s *Store) Create() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.history[id] = []Message{}
	if err := s.saveLocked(); err != nil {
		return "", err
	}

	s.logger.Debug("created conversation", "id", id)
	return id, nil
}

// Append generates a message id, appends the turn to the addressed
// conversation, and persists immediately. Returns ErrConversationNotFound if
// the id is not in the mapping.
func (s *Store) Append(conversationID, role, content string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.history[conversationID]
	if !ok {
		return Message{}, fmt.Errorf("appending to %q: %w", conversationID, ErrConversationNotFound)
	}

	msg := Message{
		ID:      uuid.New(),
		Role:    role,
		Content: content,
	}
	s.history[conversationID] = append(turns, msg)
	if err := s.saveLocked(); err != nil {
		return Message{}, err
	}

	s.logger.Debug("appended message",
		"conversation_id", conversationID, "role", role, "length", len(content))
	return msg, nil
}

// Messages returns the ordered turn list for a conversation.
func (s *Store) Messages(conversationID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.history[conversationID]
	if !ok {
		return nil, fmt.Errorf("reading %q: %w", conversationID, ErrConversationNotFound)
	}
	out := make([]Message, len(turns))
	copy(out, turns)
	return out, nil
}

// Exists reports whether the conversation id is present in the mapping.
func (s *Store) Exists(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.history[conversationID]
	return ok
}

// List returns the ids of all stored conversations. Order is unspecified.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.history))
	for id := range s.history {
		ids = append(ids, id)
	}
	return ids
}

// saveLocked writes the mapping with an atomic replace. Caller holds s.mu.
func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.history)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("locking history file: %w", err)
	}
	defer func() {
		if err := s.flk.Unlock(); err != nil {
			s.logger.Warn("unlocking history file", "error", err)
		}
	}()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp history file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publishing history: %w", err)
	}

	return nil
}

// snapshotLocked deep-copies the mapping. Caller holds s.mu.
func (s *Store) snapshotLocked() History {
	out := make(History, len(s.history))
	for id, turns := range s.history {
		cp := make([]Message, len(turns))
		copy(cp, turns)
		out[id] = cp
	}
	return out
}
