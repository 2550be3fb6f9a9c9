package services

import (
	"context"

	"friendtime/apperrors"
	"friendtime/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FriendService - заявки в друзья и граф дружбы
type FriendService struct {
	friends FriendStore
	users   UserStore
	log     *zap.Logger
}

func NewFriendService(friends FriendStore, users UserStore, log *zap.Logger) *FriendService {
	return &FriendService{friends: friends, users: users, log: log}
}

// AddFriend создает заявку в друзья. Отклоненную ранее заявку можно отправить снова.
func (fs *FriendService) AddFriend(ctx context.Context, userID, friendID string) (*models.Friendship, error) {
	if userID == "" || friendID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	if userID == friendID {
		return nil, apperrors.NewValidationError("cannot add yourself as friend")
	}

	// Проверяем, что пользователи существуют
	count, err := fs.users.CountByIDs(ctx, []string{userID, friendID})
	if err != nil {
		return nil, err
	}
	if count != 2 {
		return nil, apperrors.NewNotFoundError("user not found")
	}

	// Проверяем заявку в обоих направлениях
	existing, err := fs.friends.FindBetween(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case models.FriendshipAccepted:
			return nil, apperrors.NewConflictError("users are already friends")
		case models.FriendshipPending:
			return nil, apperrors.NewConflictError("friend request already pending")
		}
		existing.RequesterID = userID
		existing.RecipientID = friendID
		existing.Status = models.FriendshipPending
		if err := fs.friends.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	friendship := &models.Friendship{
		ID:          uuid.NewString(),
		RequesterID: userID,
		RecipientID: friendID,
		Status:      models.FriendshipPending,
	}
	if err := fs.friends.Create(ctx, friendship); err != nil {
		return nil, err
	}
	fs.log.Info("friend request created",
		zap.String("requester_id", userID),
		zap.String("recipient_id", friendID))
	return friendship, nil
}

// AcceptFriend подтверждает входящую заявку. Подтвердить может только получатель.
func (fs *FriendService) AcceptFriend(ctx context.Context, userID, requesterID string) (*models.Friendship, error) {
	return fs.respond(ctx, userID, requesterID, models.FriendshipAccepted)
}

// RejectFriend отклоняет входящую заявку
func (fs *FriendService) RejectFriend(ctx context.Context, userID, requesterID string) (*models.Friendship, error) {
	return fs.respond(ctx, userID, requesterID, models.FriendshipRejected)
}

func (fs *FriendService) respond(ctx context.Context, userID, requesterID string, status models.FriendshipStatus) (*models.Friendship, error) {
	if userID == "" || requesterID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	friendship, err := fs.friends.FindBetween(ctx, userID, requesterID)
	if err != nil {
		return nil, err
	}
	if friendship == nil || friendship.Status != models.FriendshipPending {
		return nil, apperrors.NewNotFoundError("friend request not found")
	}
	if friendship.RecipientID != userID {
		return nil, apperrors.NewForbiddenError("only the recipient can respond to a friend request")
	}

	friendship.Status = status
	if err := fs.friends.Save(ctx, friendship); err != nil {
		return nil, err
	}
	fs.log.Info("friend request answered",
		zap.String("recipient_id", userID),
		zap.String("requester_id", requesterID),
		zap.String("status", string(status)))
	return friendship, nil
}

// DeleteFriend удаляет дружбу или заявку. Открытая сессия с бывшим другом
// закроется при следующей проверке близости или сборщиком.
func (fs *FriendService) DeleteFriend(ctx context.Context, userID, friendID string) error {
	if userID == "" || friendID == "" {
		return apperrors.NewValidationError("user id is required")
	}
	deleted, err := fs.friends.Delete(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NewNotFoundError("friendship not found")
	}
	return nil
}

// GetFriends возвращает список друзей пользователя
func (fs *FriendService) GetFriends(ctx context.Context, userID string) ([]models.FriendView, error) {
	return fs.friends.ListFriends(ctx, userID)
}

// GetPendingRequests возвращает входящие заявки в друзья
func (fs *FriendService) GetPendingRequests(ctx context.Context, userID string) ([]models.FriendView, error) {
	return fs.friends.PendingRequests(ctx, userID)
}
