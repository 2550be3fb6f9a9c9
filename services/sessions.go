package services

import (
	"context"
	"errors"
	"time"

	"friendtime/apperrors"
	"friendtime/models"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DurationSeconds - целые секунды между start и end, не меньше нуля
func DurationSeconds(start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Transitions - результат применения близости к сессиям пользователя
type Transitions struct {
	Opened []models.TimeSession
	Closed []models.TimeSession
	// Kept - друзья, с которыми сессия продолжается
	Kept []string
	// Awaiting - сессии с замолчавшими друзьями, их судьбу решает сборщик
	Awaiting []string
}

// SessionManager - автомат состояний сессии пары: нет сессии / активна.
// Сериализация открытий обеспечивается уникальным индексом хранилища.
type SessionManager struct {
	store     SessionStore
	publisher Publisher
	log       *zap.Logger
}

func NewSessionManager(store SessionStore, publisher Publisher, log *zap.Logger) *SessionManager {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &SessionManager{store: store, publisher: publisher, log: log}
}

// Open открывает сессию пары, если активной еще нет. Если активная сессия
// уже есть (в том числе открыта параллельно другим процессом), возвращает ее
// и false. Сессия не открывается раньше окончания предыдущей сессии пары:
// запоздавшая проверка близости получает nil и false.
func (m *SessionManager) Open(ctx context.Context, a, b string, now time.Time) (*models.TimeSession, bool, error) {
	if a == "" || b == "" || a == b {
		return nil, false, apperrors.NewValidationError("session requires two distinct users")
	}
	pair := models.NewPairKey(a, b)

	active, err := m.store.FindActiveSessions(ctx, pair)
	if err != nil {
		return nil, false, err
	}
	if len(active) > 0 {
		current, err := m.reconcile(ctx, active, now)
		return current, false, err
	}

	lastEnded, ok, err := m.store.LatestEndedAt(ctx, pair)
	if err != nil {
		return nil, false, err
	}
	if ok && now.Before(lastEnded) {
		m.log.Warn("late open ignored",
			zap.String("pair", pair.String()),
			zap.Time("started_at", now),
			zap.Time("previous_ended_at", lastEnded))
		return nil, false, nil
	}

	session, err := m.store.InsertActiveSession(ctx, pair, now)
	if errors.Is(err, apperrors.ErrAlreadyActive) {
		// проиграли гонку за уникальный индекс
		m.log.Debug("session already active", zap.String("pair", pair.String()))
		active, err := m.store.FindActiveSessions(ctx, pair)
		if err != nil || len(active) == 0 {
			return nil, false, err
		}
		return &active[0], false, nil
	}
	if err != nil {
		return nil, false, err
	}

	sessionsOpenedTotal.Inc()
	m.log.Info("session opened",
		zap.String("session_id", session.ID),
		zap.String("pair", pair.String()),
		zap.Time("started_at", session.StartedAt))
	publish(ctx, m.publisher, m.log, newSessionEvent(SessionStarted, session, "", now))
	return session, true, nil
}

// Close закрывает активную сессию. Закрытие уже закрытой сессии - no-op,
// длительность при этом не меняется.
func (m *SessionManager) Close(ctx context.Context, session *models.TimeSession, now time.Time, reason string) (bool, error) {
	duration := DurationSeconds(session.StartedAt, now)
	closed, err := m.store.CloseSession(ctx, session.ID, now, duration)
	if err != nil {
		return false, err
	}
	if !closed {
		m.log.Debug("session already closed", zap.String("session_id", session.ID))
		return false, nil
	}

	endedAt := now.UTC()
	session.EndedAt = &endedAt
	session.DurationSeconds = duration
	session.IsActive = false

	sessionsClosedTotal.WithLabelValues(reason).Inc()
	sessionDuration.Observe(float64(duration))
	m.log.Info("session closed",
		zap.String("session_id", session.ID),
		zap.String("pair", session.Pair().String()),
		zap.String("reason", reason),
		zap.Int64("duration_seconds", duration))
	publish(ctx, m.publisher, m.log, newSessionEvent(SessionEnded, session, reason, now))
	return true, nil
}

// reconcile оставляет самую позднюю из активных сессий пары (список отсортирован
// по started_at по убыванию), остальные закрывает.
func (m *SessionManager) reconcile(ctx context.Context, active []models.TimeSession, now time.Time) (*models.TimeSession, error) {
	current := &active[0]
	if len(active) == 1 {
		return current, nil
	}

	invariantViolationsTotal.Inc()
	m.log.Error("multiple active sessions for pair",
		zap.String("pair", current.Pair().String()),
		zap.Int("active", len(active)),
		zap.Error(apperrors.ErrInvariantViolation))

	var errs error
	for i := 1; i < len(active); i++ {
		if _, err := m.Close(ctx, &active[i], now, CloseReasonInvariant); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return current, errs
}

// Apply приводит активные сессии пользователя в соответствие с близостью друзей:
// держит сессии с друзьями в пределах порога удержания, закрывает остальные и
// открывает новые с друзьями в пределах порога открытия. Сессию с другом, чья
// позиция устарела, Apply не трогает. Ошибка по одной паре
// не мешает обработке остальных.
func (m *SessionManager) Apply(ctx context.Context, userID string, nearby []NearbyFriend, now time.Time) (Transitions, error) {
	var result Transitions

	active, err := m.store.ListActiveSessionsForUser(ctx, userID)
	if err != nil {
		return result, err
	}

	byFriend := make(map[string]NearbyFriend, len(nearby))
	for _, n := range nearby {
		byFriend[n.FriendID] = n
	}

	// группируем по паре, порядок started_at DESC сохраняется
	grouped := make(map[models.PairKey][]models.TimeSession)
	var order []models.PairKey
	for _, s := range active {
		pair := s.Pair()
		if _, ok := grouped[pair]; !ok {
			order = append(order, pair)
		}
		grouped[pair] = append(grouped[pair], s)
	}

	var errs error
	handled := make(map[string]bool, len(order))
	for _, pair := range order {
		friendID := pair.Other(userID)
		handled[friendID] = true

		current, err := m.reconcile(ctx, grouped[pair], now)
		if err != nil {
			errs = multierr.Append(errs, err)
		}

		n, ok := byFriend[friendID]
		if ok && n.Stale {
			// друг молчит рядом: подтверждения нет, закрывает сборщик
			result.Awaiting = append(result.Awaiting, friendID)
			continue
		}
		if ok && n.CanKeep() {
			result.Kept = append(result.Kept, friendID)
			continue
		}

		closed, err := m.Close(ctx, current, now, CloseReasonOutOfRange)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if closed {
			result.Closed = append(result.Closed, *current)
		}
	}

	for _, n := range nearby {
		if handled[n.FriendID] || !n.CanOpen() {
			continue
		}
		session, created, err := m.Open(ctx, userID, n.FriendID, now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if created {
			result.Opened = append(result.Opened, *session)
		} else if session != nil {
			result.Kept = append(result.Kept, n.FriendID)
		}
	}

	return result, errs
}
