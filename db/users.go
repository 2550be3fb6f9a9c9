package db

import (
	"context"
	"errors"
	"time"

	"friendtime/apperrors"
	"friendtime/models"

	"gorm.io/gorm"
)

type UserStore struct {
	base
}

func NewUserStore(orm *gorm.DB, timeout time.Duration) *UserStore {
	return &UserStore{base: newBase(orm, timeout)}
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	q, cancel := s.write(ctx)
	defer cancel()

	if err := q.Create(user).Error; err != nil {
		if isDuplicate(err) {
			return apperrors.NewConflictError("username already taken")
		}
		return apperrors.Storage("create user", err)
	}
	return nil
}

// FindByUsername ищет пользователя без учета регистра
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	q, cancel := s.read(ctx)
	defer cancel()

	var user models.User
	err := q.Where("LOWER(username) = LOWER(?)", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("user not found")
	}
	if err != nil {
		return nil, apperrors.Storage("find user", err)
	}
	return &user, nil
}

// CountByIDs - сколько из указанных пользователей существует
func (s *UserStore) CountByIDs(ctx context.Context, ids []string) (int64, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	var count int64
	if err := q.Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return 0, apperrors.Storage("count users", err)
	}
	return count, nil
}

// UsernamesByIDs возвращает имена пользователей по идентификаторам
func (s *UserStore) UsernamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	q, cancel := s.read(ctx)
	defer cancel()

	var users []models.User
	if err := q.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperrors.Storage("usernames", err)
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}
