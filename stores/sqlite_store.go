package stores

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements MessageStore for SQLite databases
type SQLiteStore struct {
	db    *gorm.DB
	path  string
	locks *userLocks
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(config *StoreConfig) (*SQLiteStore, error) {
	if config.Type != "sqlite" {
		return nil, fmt.Errorf("invalid store type for SQLite store: %s", config.Type)
	}

	store := &SQLiteStore{
		path:  config.Connection,
		locks: newUserLocks(),
	}

	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	return store, nil
}

// NewSQLiteStoreSimple creates a new SQLite store with just a file path
func NewSQLiteStoreSimple(dbPath string) (*SQLiteStore, error) {
	config := NewStoreConfig("sqlite", dbPath)
	return NewSQLiteStore(config)
}

// Connect establishes a connection to the SQLite database
func (s *SQLiteStore) Connect() error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	s.db = db

	// Auto-migrate the schema
	if err := s.db.AutoMigrate(&ConversationLog{}, &SessionRecord{}, &MemoryRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (s *SQLiteStore) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// LoadAll reads the full conversation log for a username. A missing row or
// a corrupt payload yields an empty log, never an error.
func (s *SQLiteStore) LoadAll(username string) ([]Message, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	username = Normalize(username)

	var row ConversationLog
	err := s.db.Where("username = ?", username).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation log for %s: %w", username, err)
	}

	return decodeLog(row.Payload), nil
}

// Append loads the full log, appends one message, and writes the whole log
// back. Appends for the same username are serialized so overlapping calls
// cannot drop each other's entries.
func (s *SQLiteStore) Append(username string, msg Message) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	username = Normalize(username)

	lock := s.locks.forUser(username)
	lock.Lock()
	defer lock.Unlock()

	msgs, err := s.LoadAll(username)
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)
	if err := s.writeLog(username, msgs); err != nil {
		return err
	}
	s.bumpSessionCount(username, len(msgs))
	return nil
}

// Overwrite replaces the entire stored log. Used after versioning
// operations that mutate history in place.
func (s *SQLiteStore) Overwrite(username string, msgs []Message) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	username = Normalize(username)

	lock := s.locks.forUser(username)
	lock.Lock()
	defer lock.Unlock()

	return s.writeLog(username, msgs)
}

// Clear deletes the conversation log and the session marker together.
func (s *SQLiteStore) Clear(username string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	username = Normalize(username)

	lock := s.locks.forUser(username)
	lock.Lock()
	defer lock.Unlock()

	if err := s.db.Unscoped().Where("username = ?", username).Delete(&ConversationLog{}).Error; err != nil {
		return fmt.Errorf("failed to clear conversation log for %s: %w", username, err)
	}
	if err := s.db.Unscoped().Where("username = ?", username).Delete(&SessionRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clear session marker for %s: %w", username, err)
	}
	return nil
}

// Count returns the length of the stored log.
func (s *SQLiteStore) Count(username string) (int, error) {
	msgs, err := s.LoadAll(username)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

// TodaySession returns the current day's session marker, rolling a new one
// when the stored marker belongs to an earlier day.
func (s *SQLiteStore) TodaySession(username string) (SessionMarker, error) {
	if s.db == nil {
		return SessionMarker{}, fmt.Errorf("database connection is nil")
	}
	username = Normalize(username)
	today := time.Now().Format("2006-01-02")

	var rec SessionRecord
	err := s.db.Where("username = ?", username).Order("id DESC").First(&rec).Error
	if err == nil && rec.Date == today {
		return SessionMarker{ID: rec.SessionID, Date: rec.Date, MessageCount: rec.MessageCount}, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return SessionMarker{}, fmt.Errorf("failed to load session marker for %s: %w", username, err)
	}

	fresh := SessionRecord{
		Username:  username,
		SessionID: fmt.Sprintf("session-%d", time.Now().UnixMilli()),
		Date:      today,
	}
	if err := s.db.Create(&fresh).Error; err != nil {
		return SessionMarker{}, fmt.Errorf("failed to create session marker for %s: %w", username, err)
	}
	return SessionMarker{ID: fresh.SessionID, Date: fresh.Date, MessageCount: 0}, nil
}

// PruneSessions deletes day markers from before the cutoff. Only the
// current day's marker matters, so old rows are pure bookkeeping debris.
func (s *SQLiteStore) PruneSessions(before time.Time) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	cutoff := before.Format("2006-01-02")
	res := s.db.Unscoped().Where("date < ?", cutoff).Delete(&SessionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune session markers: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// SaveEmotionalMemory appends one memory and evicts the oldest entries
// beyond MaxEmotionalMemories.
func (s *SQLiteStore) SaveEmotionalMemory(username string, mem EmotionalMemory) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	username = Normalize(username)

	rec := MemoryRecord{
		Username:   username,
		Topic:      mem.Topic,
		Emotion:    mem.Emotion,
		Snippet:    mem.MessageSnippet,
		RecordedAt: mem.Timestamp,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save emotional memory for %s: %w", username, err)
	}

	var ids []uint
	if err := s.db.Model(&MemoryRecord{}).
		Where("username = ?", username).
		Order("id DESC").
		Offset(MaxEmotionalMemories).
		Pluck("id", &ids).Error; err != nil {
		log.Printf("Warning: failed to prune emotional memories for %s: %v", username, err)
		return nil
	}
	if len(ids) > 0 {
		if err := s.db.Unscoped().Delete(&MemoryRecord{}, ids).Error; err != nil {
			log.Printf("Warning: failed to evict old emotional memories for %s: %v", username, err)
		}
	}
	return nil
}

// RecentMemories returns up to limit memories, newest first.
func (s *SQLiteStore) RecentMemories(username string, limit int) ([]EmotionalMemory, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	username = Normalize(username)
	if limit <= 0 || limit > MaxEmotionalMemories {
		limit = MaxEmotionalMemories
	}

	var recs []MemoryRecord
	if err := s.db.Where("username = ?", username).Order("id DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load emotional memories for %s: %w", username, err)
	}

	mems := make([]EmotionalMemory, 0, len(recs))
	for _, r := range recs {
		mems = append(mems, EmotionalMemory{
			Topic:          r.Topic,
			Emotion:        r.Emotion,
			Timestamp:      r.RecordedAt,
			MessageSnippet: r.Snippet,
		})
	}
	return mems, nil
}

// writeLog serializes and upserts the whole log row for a username.
func (s *SQLiteStore) writeLog(username string, msgs []Message) error {
	payload, err := encodeLog(msgs)
	if err != nil {
		return err
	}

	var row ConversationLog
	err = s.db.Where("username = ?", username).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = ConversationLog{Username: username, Payload: payload}
		if err := s.db.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create conversation log for %s: %w", username, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read conversation log for %s: %w", username, err)
	}

	if err := s.db.Model(&row).Update("payload", payload).Error; err != nil {
		return fmt.Errorf("failed to write conversation log for %s: %w", username, err)
	}
	return nil
}

// bumpSessionCount keeps the day marker's count roughly in sync. Failures
// only get logged since retrieval never depends on the marker.
func (s *SQLiteStore) bumpSessionCount(username string, count int) {
	today := time.Now().Format("2006-01-02")
	err := s.db.Model(&SessionRecord{}).
		Where("username = ? AND date = ?", username, today).
		Update("message_count", count).Error
	if err != nil {
		log.Printf("Warning: failed to update session marker count for %s: %v", username, err)
	}
}
