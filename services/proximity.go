package services

import (
	"context"
	"time"

	"friendtime/geo"

	"go.uber.org/zap"
)

// Thresholds - порог открытия и порог удержания сессии, метры.
// Exit больше Enter: полоса между ними гасит дребезг на границе.
type Thresholds struct {
	Enter float64
	Exit  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Enter: 50, Exit: 60}
}

// NearbyFriend - друг в пределах порога удержания
type NearbyFriend struct {
	FriendID       string
	DistanceMeters float64
	LastPositionAt time.Time
	WithinEnter    bool
	WithinExit     bool
	// Stale - позиция друга старше окна свежести, считается вне зоны
	Stale bool
}

// CanOpen - можно ли открыть сессию с этим другом
func (n NearbyFriend) CanOpen() bool {
	return n.WithinEnter && !n.Stale
}

// CanKeep - можно ли удерживать открытую сессию
func (n NearbyFriend) CanKeep() bool {
	return n.WithinExit && !n.Stale
}

type ProximityResolver struct {
	store      ProximityStore
	thresholds Thresholds
	staleness  time.Duration
	log        *zap.Logger
}

func NewProximityResolver(store ProximityStore, thresholds Thresholds, staleness time.Duration, log *zap.Logger) *ProximityResolver {
	return &ProximityResolver{
		store:      store,
		thresholds: thresholds,
		staleness:  staleness,
		log:        log,
	}
}

func (r *ProximityResolver) Thresholds() Thresholds {
	return r.thresholds
}

// Resolve возвращает принятых друзей пользователя в пределах порога удержания.
// Один запрос к хранилищу по большему порогу, оба флага считаются по одному расстоянию.
func (r *ProximityResolver) Resolve(ctx context.Context, userID string, point geo.Point, now time.Time) ([]NearbyFriend, error) {
	candidates, err := r.store.QueryNearby(ctx, userID, point, r.thresholds.Exit)
	if err != nil {
		return nil, err
	}

	nearby := make([]NearbyFriend, 0, len(candidates))
	for _, c := range candidates {
		n := NearbyFriend{
			FriendID:       c.FriendID,
			DistanceMeters: c.DistanceMeters,
			LastPositionAt: c.LastPositionAt,
			WithinEnter:    c.DistanceMeters <= r.thresholds.Enter,
			WithinExit:     c.DistanceMeters <= r.thresholds.Exit,
			Stale:          r.isStale(c.LastPositionAt, now),
		}
		if !n.WithinExit {
			continue
		}
		nearby = append(nearby, n)
	}

	r.log.Debug("proximity resolved",
		zap.String("user_id", userID),
		zap.Int("candidates", len(candidates)),
		zap.Int("nearby", len(nearby)))
	return nearby, nil
}

func (r *ProximityResolver) isStale(lastAt, now time.Time) bool {
	if r.staleness <= 0 {
		return false
	}
	return now.Sub(lastAt) > r.staleness
}
