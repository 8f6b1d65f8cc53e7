package stores

import (
	"time"

	"gorm.io/gorm"
)

// ConversationLog is the whole-log row backing one user's conversation.
// The full message sequence is serialized into Payload and replaced on
// every write, matching the log's whole-value persistence contract.
type ConversationLog struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null"`
	Payload  string `gorm:"type:json"`
}

// SessionRecord is one day's session marker for a user.
type SessionRecord struct {
	gorm.Model
	Username     string `gorm:"index;not null"`
	SessionID    string `gorm:"not null"`
	Date         string `gorm:"index;not null"` // YYYY-MM-DD
	MessageCount int    `gorm:"default:0"`
}

// MemoryRecord is one retained emotional memory for a user.
type MemoryRecord struct {
	gorm.Model
	Username   string `gorm:"index;not null"`
	Topic      string `gorm:"not null"`
	Emotion    string `gorm:"not null"`
	Snippet    string `gorm:"type:text"`
	RecordedAt time.Time
}
