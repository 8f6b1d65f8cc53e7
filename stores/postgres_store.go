package stores

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresStore implements MessageStore for PostgreSQL databases
type PostgresStore struct {
	db    *gorm.DB
	dsn   string
	locks *userLocks
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(config *StoreConfig) (*PostgresStore, error) {
	if config.Type != "postgres" {
		return nil, fmt.Errorf("invalid store type for PostgreSQL store: %s", config.Type)
	}

	store := &PostgresStore{
		dsn:   config.Connection,
		locks: newUserLocks(),
	}

	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	return store, nil
}

// NewPostgresStoreSimple creates a new PostgreSQL store with just a DSN
func NewPostgresStoreSimple(dsn string) (*PostgresStore, error) {
	config := NewStoreConfig("postgres", dsn)
	return NewPostgresStore(config)
}

// Connect establishes a connection to the PostgreSQL database
func (s *PostgresStore) Connect() error {
	db, err := gorm.Open(postgres.Open(s.dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	s.db = db

	// Auto-migrate the schema
	if err := s.db.AutoMigrate(&ConversationLog{}, &SessionRecord{}, &MemoryRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
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
func (s *PostgresStore) Ping() error {
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
func (s *PostgresStore) LoadAll(username string) ([]Message, error) {
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
// back, serialized per username.
func (s *PostgresStore) Append(username string, msg Message) error {
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

// Overwrite replaces the entire stored log.
func (s *PostgresStore) Overwrite(username string, msgs []Message) error {
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
func (s *PostgresStore) Clear(username string) error {
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
func (s *PostgresStore) Count(username string) (int, error) {
	msgs, err := s.LoadAll(username)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

// TodaySession returns the current day's session marker, rolling a new one
// when the stored marker belongs to an earlier day.
func (s *PostgresStore) TodaySession(username string) (SessionMarker, error) {
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

// PruneSessions deletes day markers from before the cutoff.
func (s *PostgresStore) PruneSessions(before time.Time) (int, error) {
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
func (s *PostgresStore) SaveEmotionalMemory(username string, mem EmotionalMemory) error {
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
func (s *PostgresStore) RecentMemories(username string, limit int) ([]EmotionalMemory, error) {
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
func (s *PostgresStore) writeLog(username string, msgs []Message) error {
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

// bumpSessionCount keeps the day marker's count roughly in sync.
func (s *PostgresStore) bumpSessionCount(username string, count int) {
	today := time.Now().Format("2006-01-02")
	err := s.db.Model(&SessionRecord{}).
		Where("username = ? AND date = ?", username, today).
		Update("message_count", count).Error
	if err != nil {
		log.Printf("Warning: failed to update session marker count for %s: %v", username, err)
	}
}
