package services

import (
	"context"
	"time"

	"friendtime/models"

	"go.uber.org/zap"
)

type SessionEventType string

const (
	SessionStarted SessionEventType = "session_started"
	SessionEnded   SessionEventType = "session_ended"
)

// Причины закрытия сессии
const (
	CloseReasonOutOfRange = "out_of_range"
	CloseReasonReaped     = "reaped"
	CloseReasonInvariant  = "invariant"
)

// SessionEvent - событие перехода сессии, уходит в брокер и в WebSocket участникам
type SessionEvent struct {
	Type            SessionEventType `json:"event"`
	SessionID       string           `json:"session_id"`
	UserLow         string           `json:"user_low"`
	UserHigh        string           `json:"user_high"`
	StartedAt       time.Time        `json:"started_at"`
	EndedAt         *time.Time       `json:"ended_at,omitempty"`
	DurationSeconds int64            `json:"duration_seconds"`
	Reason          string           `json:"reason,omitempty"`
	OccurredAt      time.Time        `json:"occurred_at"`
}

func (e SessionEvent) Pair() models.PairKey {
	return models.PairKey{Low: e.UserLow, High: e.UserHigh}
}

func newSessionEvent(t SessionEventType, s *models.TimeSession, reason string, at time.Time) SessionEvent {
	return SessionEvent{
		Type:            t,
		SessionID:       s.ID,
		UserLow:         s.UserLow,
		UserHigh:        s.UserHigh,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		DurationSeconds: s.DurationSeconds,
		Reason:          reason,
		OccurredAt:      at,
	}
}

// Publisher отправляет события сессий. Ошибка публикации не отменяет переход.
type Publisher interface {
	Publish(ctx context.Context, event SessionEvent) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, SessionEvent) error { return nil }
func (NoopPublisher) Close() error                                { return nil }

// MultiPublisher рассылает событие всем издателям
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event SessionEvent) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiPublisher) Close() error {
	var firstErr error
	for _, p := range m {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WSPublisher пушит событие напрямую в WebSocket соединения участников
// (когда брокер не настроен)
type WSPublisher struct {
	Conns *WSConnManager
}

func (p WSPublisher) Publish(_ context.Context, event SessionEvent) error {
	return pushSessionEvent(p.Conns, event)
}

func (WSPublisher) Close() error { return nil }

// publish отправляет событие и только логирует ошибку
func publish(ctx context.Context, p Publisher, log *zap.Logger, event SessionEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		log.Warn("failed to publish session event",
			zap.String("event", string(event.Type)),
			zap.String("session_id", event.SessionID),
			zap.Error(err))
	}
}
