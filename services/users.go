package services

import (
	"context"
	"regexp"
	"strings"

	"friendtime/apperrors"
	"friendtime/models"

	"github.com/google/uuid"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// Register создает пользователя с уникальным именем
func (s *UserService) Register(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, apperrors.NewValidationError("username must be 3-20 characters: letters, digits, underscore")
	}

	// имена уникальны без учета регистра
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflictError("username already taken")
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	user := &models.User{ID: uuid.NewString(), Username: username}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Search ищет пользователя по имени без учета регистра
func (s *UserService) Search(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewValidationError("username is required")
	}
	return s.users.FindByUsername(ctx, username)
}
