package stores

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RoleUser and RoleAssistant are the only roles a conversation turn can have.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TypeWelcome marks non-interactive introductory turns.
const TypeWelcome = "welcome"

// AnonymousUser is the sentinel log owner used when no username has been chosen yet.
const AnonymousUser = "anonymous"

// Version is one historical content state of a Message. Versions are
// append-only: edit and regenerate add entries, nothing removes them.
type Version struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Message represents one conversational turn in a user's log.
// Content and Timestamp always mirror Versions[CurrentVersionIndex].
type Message struct {
	ID                  string    `json:"id"`
	Role                string    `json:"role"` // "user" or "assistant"
	Content             string    `json:"content"`
	Timestamp           time.Time `json:"timestamp"`
	Type                string    `json:"type,omitempty"` // "welcome" for intro banners
	Versions            []Version `json:"versions"`
	CurrentVersionIndex int       `json:"currentVersionIndex"`
}

// NewMessage creates a turn with a single initial version mirroring its content.
func NewMessage(role, content string) Message {
	now := time.Now()
	return Message{
		ID:                  GenerateID(),
		Role:                role,
		Content:             content,
		Timestamp:           now,
		Versions:            []Version{{Content: content, Timestamp: now}},
		CurrentVersionIndex: 0,
	}
}

// GenerateID returns a time-based id with a random suffix. Never reused.
func GenerateID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// CurrentVersion returns the version Content/Timestamp mirror.
func (m *Message) CurrentVersion() Version {
	if len(m.Versions) == 0 {
		return Version{Content: m.Content, Timestamp: m.Timestamp}
	}
	return m.Versions[m.CurrentVersionIndex]
}

// SessionMarker is per-user, per-day bookkeeping used to detect day
// rollover. Message retrieval does not depend on it.
type SessionMarker struct {
	ID           string `json:"id"`
	Date         string `json:"date"` // YYYY-MM-DD
	MessageCount int    `json:"messageCount"`
}

// EmotionalMemory captures an emotional topic extracted from a user turn.
// At most MaxEmotionalMemories are retained per user, oldest evicted.
type EmotionalMemory struct {
	Topic          string    `json:"topic"`
	Emotion        string    `json:"emotion"`
	Timestamp      time.Time `json:"timestamp"`
	MessageSnippet string    `json:"messageSnippet"`
}

// MaxEmotionalMemories bounds the per-user emotional memory ring buffer.
const MaxEmotionalMemories = 5

// MessageStore abstracts durable per-username persistence of the full
// conversation log. The log is read and written as a whole; callers pass
// the owning username explicitly on every operation.
type MessageStore interface {
	// Log operations
	LoadAll(username string) ([]Message, error)
	Append(username string, msg Message) error
	Overwrite(username string, msgs []Message) error
	Clear(username string) error
	Count(username string) (int, error)

	// Day-rollover bookkeeping
	TodaySession(username string) (SessionMarker, error)
	PruneSessions(before time.Time) (int, error)

	// Emotional memory ring buffer
	SaveEmotionalMemory(username string, mem EmotionalMemory) error
	RecentMemories(username string, limit int) ([]EmotionalMemory, error)

	// Connection management
	Connect() error
	Close() error

	// Health check
	Ping() error
}

// StoreConfig holds configuration for database stores
type StoreConfig struct {
	Type       string            `json:"type"`       // "sqlite", "postgres"
	Connection string            `json:"connection"` // connection string
	Options    map[string]string `json:"options"`    // additional options
}

// NewStoreConfig creates a new store configuration
func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{
		Type:       storeType,
		Connection: connection,
		Options:    make(map[string]string),
	}
}

// WithOption adds an option to the store configuration
func (c *StoreConfig) WithOption(key, value string) *StoreConfig {
	c.Options[key] = value
	return c
}

// Normalize maps an unset or blank username onto the anonymous log owner.
func Normalize(username string) string {
	if strings.TrimSpace(username) == "" {
		return AnonymousUser
	}
	return strings.TrimSpace(username)
}

// decodeLog reconstitutes a serialized log. A corrupt payload is logged and
// degrades to an empty log rather than surfacing an error to the caller.
func decodeLog(payload string) []Message {
	if payload == "" {
		return []Message{}
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(payload), &msgs); err != nil {
		log.Printf("Warning: corrupt conversation log payload, starting empty: %v", err)
		return []Message{}
	}
	return SanitizeLog(msgs)
}

// encodeLog serializes the full log for whole-row storage.
func encodeLog(msgs []Message) (string, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal conversation log: %w", err)
	}
	return string(data), nil
}

// userLocks serializes mutating whole-log operations per username, so two
// overlapping read-modify-write cycles cannot silently drop an append.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (u *userLocks) forUser(username string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[username]
	if !ok {
		l = &sync.Mutex{}
		u.locks[username] = l
	}
	return l
}
