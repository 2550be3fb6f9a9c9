package db

import (
	"context"
	"errors"
	"time"

	"friendtime/apperrors"
	"friendtime/models"

	"gorm.io/gorm"
)

// FriendStore - граф дружбы, одна запись на неупорядоченную пару
type FriendStore struct {
	base
}

func NewFriendStore(orm *gorm.DB, timeout time.Duration) *FriendStore {
	return &FriendStore{base: newBase(orm, timeout)}
}

// FindBetween ищет запись о дружбе в обоих направлениях
func (s *FriendStore) FindBetween(ctx context.Context, a, b string) (*models.Friendship, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	var friendship models.Friendship
	err := q.Where(
		"(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)",
		a, b, b, a,
	).First(&friendship).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Storage("find friendship", err)
	}
	return &friendship, nil
}

// Create вставляет заявку. Гонка двух встречных заявок упирается в уникальный индекс пары.
func (s *FriendStore) Create(ctx context.Context, friendship *models.Friendship) error {
	q, cancel := s.write(ctx)
	defer cancel()

	pair := models.NewPairKey(friendship.RequesterID, friendship.RecipientID)
	friendship.PairLow, friendship.PairHigh = pair.Low, pair.High
	if err := q.Create(friendship).Error; err != nil {
		if isDuplicate(err) {
			return apperrors.NewConflictError("friend request already exists")
		}
		return apperrors.Storage("create friendship", err)
	}
	return nil
}

func (s *FriendStore) Save(ctx context.Context, friendship *models.Friendship) error {
	q, cancel := s.write(ctx)
	defer cancel()

	if err := q.Save(friendship).Error; err != nil {
		return apperrors.Storage("save friendship", err)
	}
	return nil
}

// Delete удаляет запись о дружбе (жесткое удаление). false - записи не было.
func (s *FriendStore) Delete(ctx context.Context, a, b string) (bool, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	pair := models.NewPairKey(a, b)
	result := q.Where("pair_low = ? AND pair_high = ?", pair.Low, pair.High).Delete(&models.Friendship{})
	if result.Error != nil {
		return false, apperrors.Storage("delete friendship", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// AcceptedFriendIDs возвращает идентификаторы принятых друзей
func (s *FriendStore) AcceptedFriendIDs(ctx context.Context, userID string) ([]string, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	var rows []models.Friendship
	err := q.Where("(requester_id = ? OR recipient_id = ?) AND status = ?", userID, userID, models.FriendshipAccepted).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Storage("accepted friends", err)
	}

	ids := make([]string, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.OtherID(userID))
	}
	return ids, nil
}

// ListFriends - принятые друзья с именами, с реплик
func (s *FriendStore) ListFriends(ctx context.Context, userID string) ([]models.FriendView, error) {
	return s.listViews(ctx, userID, "(f.requester_id = ? OR f.recipient_id = ?) AND f.status = ?",
		userID, userID, models.FriendshipAccepted)
}

// PendingRequests - входящие заявки, ожидающие ответа пользователя
func (s *FriendStore) PendingRequests(ctx context.Context, userID string) ([]models.FriendView, error) {
	return s.listViews(ctx, userID, "f.recipient_id = ? AND f.status = ?", userID, models.FriendshipPending)
}

func (s *FriendStore) listViews(ctx context.Context, userID string, where string, args ...interface{}) ([]models.FriendView, error) {
	q, cancel := s.read(ctx)
	defer cancel()

	var rows []struct {
		models.Friendship
		RequesterName string
		RecipientName string
	}
	err := q.Table("friendships f").
		Select("f.*, ru.username AS requester_name, pu.username AS recipient_name").
		Joins("JOIN users ru ON ru.id = f.requester_id").
		Joins("JOIN users pu ON pu.id = f.recipient_id").
		Where(where, args...).
		Order("f.updated_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Storage("list friends", err)
	}

	views := make([]models.FriendView, 0, len(rows))
	for _, r := range rows {
		v := models.FriendView{
			FriendshipID: r.ID,
			FriendID:     r.OtherID(userID),
			Status:       r.Status,
			Since:        r.UpdatedAt,
		}
		if r.RequesterID == userID {
			v.Username = r.RecipientName
		} else {
			v.Username = r.RequesterName
		}
		views = append(views, v)
	}
	return views, nil
}
