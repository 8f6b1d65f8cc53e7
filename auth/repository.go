package auth

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// UserRepository is the persistence boundary for accounts.
type UserRepository interface {
	Create(user *User) error
	FindByUsername(username string) (*User, error)
	FindByID(id uint) (*User, error)
	TouchLastLogin(id uint) error
	SetIntroCompleted(id uint) (*User, error)
	UpdateDisplayName(id uint, displayName string) (*User, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a gorm-backed repository and migrates the
// users table.
func NewUserRepository(db *gorm.DB) (UserRepository, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate users table: %w", err)
	}
	return &gormUserRepository{db: db}, nil
}

func (r *gormUserRepository) Create(user *User) error {
	err := r.db.Create(user).Error
	// A concurrent signup can slip past the pre-check and land on the
	// unique index; surface it as the taken-username failure.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUsernameTaken
	}
	return err
}

func (r *gormUserRepository) FindByUsername(username string) (*User, error) {
	var user User
	err := r.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormUserRepository) FindByID(id uint) (*User, error) {
	var user User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormUserRepository) TouchLastLogin(id uint) error {
	now := time.Now()
	return r.db.Model(&User{}).Where("id = ?", id).Update("last_login_at", now).Error
}

func (r *gormUserRepository) SetIntroCompleted(id uint) (*User, error) {
	if err := r.db.Model(&User{}).Where("id = ?", id).Update("intro_completed", true).Error; err != nil {
		return nil, err
	}
	return r.FindByID(id)
}

func (r *gormUserRepository) UpdateDisplayName(id uint, displayName string) (*User, error) {
	if err := r.db.Model(&User{}).Where("id = ?", id).Update("display_name", displayName).Error; err != nil {
		return nil, err
	}
	return r.FindByID(id)
}
