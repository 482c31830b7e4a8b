// Package users handles account registration and credential checks.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"skillsync/internal/apperr"
	"skillsync/internal/models"
	"skillsync/internal/storage"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 64
)

// Service handles the user lifecycle.
type Service struct {
	db     *sql.DB
	driver string
}

func NewService(db *sql.DB, driver string) *Service {
	return &Service{db: db, driver: storage.Normalize(driver)}
}

// RegisterUser creates a user with the supplied credentials.
func (s *Service) RegisterUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, apperr.Validation("username is too long")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, storage.Rebind(s.driver,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`), username,
	).Scan(&exists); err != nil {
		return nil, apperr.Persistence("Failed to create user", fmt.Errorf("check username: %w", err))
	}
	if exists {
		return nil, apperr.Conflict("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	id, err := storage.InsertID(ctx, s.db, s.driver,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, string(hash), now,
	)
	if err != nil {
		return nil, apperr.Persistence("Failed to create user", fmt.Errorf("create user: %w", err))
	}
	return &models.User{ID: id, Username: username, PasswordHash: string(hash), CreatedAt: now}, nil
}

// Login validates credentials and returns the user profile.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}

	row := s.db.QueryRowContext(ctx, storage.Rebind(s.driver,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`), username,
	)
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, apperr.Persistence("Failed to log in", fmt.Errorf("query user: %w", err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return &user, nil
}
