package db

import (
	"context"
	"time"

	"friendtime/apperrors"
	"friendtime/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStore хранит сессии в таблице time_sessions
type SessionStore struct {
	base
}

func NewSessionStore(orm *gorm.DB, timeout time.Duration) *SessionStore {
	return &SessionStore{base: newBase(orm, timeout)}
}

// FindActiveSessions возвращает активные сессии пары. В норме не больше одной,
// несколько означают нарушение инварианта и разбираются SessionManager.
func (s *SessionStore) FindActiveSessions(ctx context.Context, pair models.PairKey) ([]models.TimeSession, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	var sessions []models.TimeSession
	err := q.Where("user_low = ? AND user_high = ? AND is_active = ?", pair.Low, pair.High, true).
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, apperrors.Storage("find active session", err)
	}
	return sessions, nil
}

// InsertActiveSession открывает сессию. Если уникальный индекс уже занят
// активной сессией пары, возвращает apperrors.ErrAlreadyActive.
func (s *SessionStore) InsertActiveSession(ctx context.Context, pair models.PairKey, startedAt time.Time) (*models.TimeSession, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	session := &models.TimeSession{
		ID:        uuid.NewString(),
		UserLow:   pair.Low,
		UserHigh:  pair.High,
		StartedAt: startedAt.UTC(),
		IsActive:  true,
	}
	if err := q.Create(session).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrAlreadyActive
		}
		return nil, apperrors.Storage("insert active session", err)
	}
	return session, nil
}

// CloseSession закрывает сессию, только если она еще активна.
// Возвращает false, если сессия уже была закрыта.
func (s *SessionStore) CloseSession(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) (bool, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	result := q.Model(&models.TimeSession{}).
		Where("id = ? AND is_active = ?", sessionID, true).
		Updates(map[string]interface{}{
			"ended_at":         endedAt.UTC(),
			"duration_seconds": durationSeconds,
			"is_active":        false,
		})
	if result.Error != nil {
		return false, apperrors.Storage("close session", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// LatestEndedAt - время окончания последней закрытой сессии пары
func (s *SessionStore) LatestEndedAt(ctx context.Context, pair models.PairKey) (time.Time, bool, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	var session models.TimeSession
	err := q.Where("user_low = ? AND user_high = ? AND is_active = ?", pair.Low, pair.High, false).
		Order("ended_at DESC").
		Limit(1).
		Find(&session).Error
	if err != nil {
		return time.Time{}, false, apperrors.Storage("latest ended session", err)
	}
	if session.ID == "" || session.EndedAt == nil {
		return time.Time{}, false, nil
	}
	return *session.EndedAt, true, nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*models.TimeSession, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	var session models.TimeSession
	err := q.Where("id = ?", sessionID).First(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.NewNotFoundError("session not found")
	}
	if err != nil {
		return nil, apperrors.Storage("get session", err)
	}
	return &session, nil
}

// ListActiveSessions возвращает все активные сессии (для сборщика устаревших)
func (s *SessionStore) ListActiveSessions(ctx context.Context) ([]models.TimeSession, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	var sessions []models.TimeSession
	if err := q.Where("is_active = ?", true).Order("started_at").Find(&sessions).Error; err != nil {
		return nil, apperrors.Storage("list active sessions", err)
	}
	return sessions, nil
}

// ListActiveSessionsForUser - активные сессии, где пользователь любой из участников
func (s *SessionStore) ListActiveSessionsForUser(ctx context.Context, userID string) ([]models.TimeSession, error) {
	q, cancel := s.write(ctx)
	defer cancel()

	var sessions []models.TimeSession
	err := q.Where("(user_low = ? OR user_high = ?) AND is_active = ?", userID, userID, true).
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, apperrors.Storage("list active sessions for user", err)
	}
	return sessions, nil
}

// ListClosedSessions - история закрытых сессий пользователя. Читает с реплик.
// Границы From/To применяются к started_at и ended_at: [From, To).
func (s *SessionStore) ListClosedSessions(ctx context.Context, filter models.SessionFilter) ([]models.TimeSession, error) {
	q, cancel := s.read(ctx)
	defer cancel()

	q = q.Where("is_active = ?", false)
	if filter.FriendID != "" {
		pair := models.NewPairKey(filter.UserID, filter.FriendID)
		q = q.Where("user_low = ? AND user_high = ?", pair.Low, pair.High)
	} else {
		q = q.Where("(user_low = ? OR user_high = ?)", filter.UserID, filter.UserID)
	}
	if !filter.From.IsZero() {
		q = q.Where("started_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("ended_at < ?", filter.To.UTC())
	}

	var sessions []models.TimeSession
	if err := q.Order("started_at DESC").Find(&sessions).Error; err != nil {
		return nil, apperrors.Storage("list closed sessions", err)
	}
	return sessions, nil
}
