package stores

import (
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory MessageStore. It backs tests and short-lived
// sessions that do not need durability; logs vanish when the process exits.
type MemoryStore struct {
	mu       sync.Mutex
	logs     map[string][]Message
	sessions map[string]SessionMarker
	memories map[string][]EmotionalMemory
	closed   bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs:     make(map[string][]Message),
		sessions: make(map[string]SessionMarker),
		memories: make(map[string][]EmotionalMemory),
	}
}

// LoadAll returns a copy of the stored log for a username.
func (s *MemoryStore) LoadAll(username string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	msgs := s.logs[Normalize(username)]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return SanitizeLog(out), nil
}

// Append adds one message to the end of the log.
func (s *MemoryStore) Append(username string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	username = Normalize(username)
	s.logs[username] = append(s.logs[username], msg)
	if marker, ok := s.sessions[username]; ok {
		marker.MessageCount = len(s.logs[username])
		s.sessions[username] = marker
	}
	return nil
}

// Overwrite replaces the entire stored log.
func (s *MemoryStore) Overwrite(username string, msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	replacement := make([]Message, len(msgs))
	copy(replacement, msgs)
	s.logs[Normalize(username)] = replacement
	return nil
}

// Clear deletes the log and the session marker together.
func (s *MemoryStore) Clear(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	username = Normalize(username)
	delete(s.logs, username)
	delete(s.sessions, username)
	return nil
}

// Count returns the length of the stored log.
func (s *MemoryStore) Count(username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	return len(s.logs[Normalize(username)]), nil
}

// TodaySession returns the current day's marker, rolling over at midnight.
func (s *MemoryStore) TodaySession(username string) (SessionMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return SessionMarker{}, fmt.Errorf("store is closed")
	}

	username = Normalize(username)
	today := time.Now().Format("2006-01-02")
	if marker, ok := s.sessions[username]; ok && marker.Date == today {
		return marker, nil
	}

	marker := SessionMarker{
		ID:   fmt.Sprintf("session-%d", time.Now().UnixMilli()),
		Date: today,
	}
	s.sessions[username] = marker
	return marker, nil
}

// PruneSessions deletes day markers from before the cutoff.
func (s *MemoryStore) PruneSessions(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	cutoff := before.Format("2006-01-02")
	pruned := 0
	for username, marker := range s.sessions {
		if marker.Date < cutoff {
			delete(s.sessions, username)
			pruned++
		}
	}
	return pruned, nil
}

// SaveEmotionalMemory appends one memory, evicting beyond the ring size.
func (s *MemoryStore) SaveEmotionalMemory(username string, mem EmotionalMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	username = Normalize(username)
	mems := append(s.memories[username], mem)
	if len(mems) > MaxEmotionalMemories {
		mems = mems[len(mems)-MaxEmotionalMemories:]
	}
	s.memories[username] = mems
	return nil
}

// RecentMemories returns up to limit memories, newest first.
func (s *MemoryStore) RecentMemories(username string, limit int) ([]EmotionalMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if limit <= 0 || limit > MaxEmotionalMemories {
		limit = MaxEmotionalMemories
	}

	mems := s.memories[Normalize(username)]
	out := make([]EmotionalMemory, 0, limit)
	for i := len(mems) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, mems[i])
	}
	return out, nil
}

// Connect is a no-op for the in-memory store
func (s *MemoryStore) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	return nil
}

// Close marks the store closed; subsequent operations fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping reports whether the store is usable
func (s *MemoryStore) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
