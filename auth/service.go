package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mindpex/sanctum/pkg/log"
	"github.com/mindpex/sanctum/pkg/token"
)

const bcryptCost = 10

// Sentinel errors the handlers translate into HTTP statuses.
var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrUsernameTooShort   = fmt.Errorf("username must be at least %d characters", MinUsernameLen)
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
)

// Service owns signup/login/profile business logic.
type Service struct {
	repo UserRepository
	jwt  *token.JWTManager
}

// NewService creates the auth service.
func NewService(repo UserRepository, jwtManager *token.JWTManager) *Service {
	return &Service{repo: repo, jwt: jwtManager}
}

// Signup creates an account and issues its first token.
func (s *Service) Signup(username, password string) (*User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, "", ErrMissingCredentials
	}
	if len(username) < MinUsernameLen {
		return nil, "", ErrUsernameTooShort
	}
	if len(password) < MinPasswordLen {
		return nil, "", ErrPasswordTooShort
	}

	existing, err := s.repo.FindByUsername(username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  username,
	}
	if err := s.repo.Create(user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, "", ErrUsernameTaken
		}
		return nil, "", fmt.Errorf("failed to create account: %w", err)
	}

	tok, err := s.jwt.Generate(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}
	return user, tok, nil
}

// Login verifies credentials and issues a token.
func (s *Service) Login(username, password string) (*User, string, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, "", ErrMissingCredentials
	}

	user, err := s.repo.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := s.repo.TouchLastLogin(user.ID); err != nil {
		// The timestamp is bookkeeping; login still succeeds.
		log.Warnf("Failed to record login time for %s: %v", user.Username, err)
	}

	tok, err := s.jwt.Generate(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}
	return user, tok, nil
}

// Me resolves the account behind verified claims.
func (s *Service) Me(userID uint) (*User, error) {
	user, err := s.repo.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CompleteIntro marks the intro flow finished for the account.
func (s *Service) CompleteIntro(userID uint) (*User, error) {
	user, err := s.repo.SetIntroCompleted(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update intro flag: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes the account's display name.
func (s *Service) UpdateProfile(userID uint, displayName string) (*User, error) {
	user, err := s.repo.UpdateDisplayName(userID, displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
