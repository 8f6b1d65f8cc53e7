// Package sanctum wires chat sessions together: a message store, a reply
// client, and the pacing the widget expects.
package sanctum

import (
	"time"

	"github.com/mindpex/sanctum/reply"
	"github.com/mindpex/sanctum/session"
	"github.com/mindpex/sanctum/stores"
)

// ChatConfig holds the pieces a chat session is built from.
type ChatConfig struct {
	Store   stores.MessageStore
	Replyer reply.Client
	Pacing  time.Duration
}

// NewChatConfig creates a configuration with default values: a SQLite
// store and the default pacing delay. A reply client must still be set.
func NewChatConfig() *ChatConfig {
	defaultStore, err := stores.NewSQLiteStoreDefault()
	if err != nil {
		// Without a store nothing downstream can work.
		panic("Failed to create default SQLite store: " + err.Error())
	}

	return &ChatConfig{
		Store:  defaultStore,
		Pacing: session.DefaultPacing,
	}
}

// WithStore sets the message store for the configuration
func (c *ChatConfig) WithStore(store stores.MessageStore) *ChatConfig {
	c.Store = store
	return c
}

// WithSQLiteStore sets a SQLite store with the specified database path
func (c *ChatConfig) WithSQLiteStore(dbPath string) *ChatConfig {
	store, err := stores.NewSQLiteStoreSimple(dbPath)
	if err != nil {
		panic("Failed to create SQLite store: " + err.Error())
	}
	c.Store = store
	return c
}

// WithPostgresStore sets a PostgreSQL store with the specified connection parameters
func (c *ChatConfig) WithPostgresStore(host, user, password, dbname string, port int) *ChatConfig {
	store, err := stores.NewPostgresStoreDefault(host, user, password, dbname, port)
	if err != nil {
		panic("Failed to create PostgreSQL store: " + err.Error())
	}
	c.Store = store
	return c
}

// WithMemoryStore sets a non-durable in-memory store
func (c *ChatConfig) WithMemoryStore() *ChatConfig {
	c.Store = stores.NewMemoryStore()
	return c
}

// WithReplyClient sets the reply backend for the configuration
func (c *ChatConfig) WithReplyClient(client reply.Client) *ChatConfig {
	c.Replyer = client
	return c
}

// WithReplyEndpoints sets an HTTP reply client for the given endpoints
func (c *ChatConfig) WithReplyEndpoints(primaryURL, fallbackURL string) *ChatConfig {
	c.Replyer = reply.NewHTTPClient(primaryURL, fallbackURL)
	return c
}

// WithPacing sets the artificial delay before the loading state
func (c *ChatConfig) WithPacing(d time.Duration) *ChatConfig {
	c.Pacing = d
	return c
}

// NewSession creates a loaded chat session for a username.
func (c *ChatConfig) NewSession(username string) (*session.ChatSession, error) {
	sess := session.NewChatSession(username, c.Store, c.Replyer)
	sess.Pacing = c.Pacing
	if err := sess.Load(); err != nil {
		return nil, err
	}
	return sess, nil
}
