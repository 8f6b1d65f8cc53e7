package auth

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenDatabase opens the users database. The auth service keeps its own
// connection; account data and conversation logs are separate stores.
func OpenDatabase(storeType, connection string) (*gorm.DB, error) {
	// TranslateError turns driver unique-violations into gorm.ErrDuplicatedKey.
	gormConfig := &gorm.Config{TranslateError: true}

	switch storeType {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(connection), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite users database: %w", err)
		}
		return db, nil
	case "postgres":
		db, err := gorm.Open(postgres.Open(connection), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL users database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", storeType)
	}
}
