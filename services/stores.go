package services

import (
	"context"
	"time"

	"friendtime/geo"
	"friendtime/models"
)

// Интерфейсы хранилищ, которыми пользуются сервисы. Реализации на gorm - в пакете db.

type PositionWriter interface {
	UpsertPosition(ctx context.Context, pos models.Position) error
}

type PositionReader interface {
	GetPositions(ctx context.Context, userIDs []string) (map[string]models.Position, error)
}

type ProximityStore interface {
	QueryNearby(ctx context.Context, userID string, point geo.Point, threshold float64) ([]models.NearbyCandidate, error)
}

type FriendGraph interface {
	AcceptedFriendIDs(ctx context.Context, userID string) ([]string, error)
}

type SessionStore interface {
	FindActiveSessions(ctx context.Context, pair models.PairKey) ([]models.TimeSession, error)
	InsertActiveSession(ctx context.Context, pair models.PairKey, startedAt time.Time) (*models.TimeSession, error)
	CloseSession(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) (bool, error)
	LatestEndedAt(ctx context.Context, pair models.PairKey) (time.Time, bool, error)
	ListActiveSessions(ctx context.Context) ([]models.TimeSession, error)
	ListActiveSessionsForUser(ctx context.Context, userID string) ([]models.TimeSession, error)
	ListClosedSessions(ctx context.Context, filter models.SessionFilter) ([]models.TimeSession, error)
}

type FriendStore interface {
	FriendGraph
	FindBetween(ctx context.Context, a, b string) (*models.Friendship, error)
	Create(ctx context.Context, friendship *models.Friendship) error
	Save(ctx context.Context, friendship *models.Friendship) error
	Delete(ctx context.Context, a, b string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]models.FriendView, error)
	PendingRequests(ctx context.Context, userID string) ([]models.FriendView, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	CountByIDs(ctx context.Context, ids []string) (int64, error)
	UsernamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}
