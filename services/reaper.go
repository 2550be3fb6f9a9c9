package services

import (
	"context"
	"time"

	"friendtime/models"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// StaleSessionReaper закрывает активные сессии, оба участника которых
// давно не присылали позицию. Работает независимо от приема координат.
type StaleSessionReaper struct {
	sessions      SessionStore
	positions     PositionReader
	manager       *SessionManager
	maxInactivity time.Duration
	interval      time.Duration
	clock         Clock
	log           *zap.Logger
}

func NewStaleSessionReaper(
	sessions SessionStore,
	positions PositionReader,
	manager *SessionManager,
	maxInactivity, interval time.Duration,
	clock Clock,
	log *zap.Logger,
) *StaleSessionReaper {
	if clock == nil {
		clock = NewMonotonicClock()
	}
	return &StaleSessionReaper{
		sessions:      sessions,
		positions:     positions,
		manager:       manager,
		maxInactivity: maxInactivity,
		interval:      interval,
		clock:         clock,
		log:           log,
	}
}

// Reap делает один проход и возвращает число закрытых сессий.
// Сессия остается открытой, пока хотя бы один участник присылает позиции.
func (r *StaleSessionReaper) Reap(ctx context.Context) (int, error) {
	now := r.clock.Now()

	active, err := r.sessions.ListActiveSessions(ctx)
	if err != nil {
		reaperRunsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	if len(active) == 0 {
		reaperRunsTotal.WithLabelValues("ok").Inc()
		return 0, nil
	}

	userIDs := participants(active)
	positions, err := r.positions.GetPositions(ctx, userIDs)
	if err != nil {
		reaperRunsTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	closed := 0
	var errs error
	for i := range active {
		s := &active[i]
		if !r.inactive(positions, s.UserLow, now) || !r.inactive(positions, s.UserHigh, now) {
			continue
		}
		ok, err := r.manager.Close(ctx, s, now, CloseReasonReaped)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			closed++
		}
	}

	status := "ok"
	if errs != nil {
		status = "error"
	}
	reaperRunsTotal.WithLabelValues(status).Inc()
	return closed, errs
}

func (r *StaleSessionReaper) inactive(positions map[string]models.Position, userID string, now time.Time) bool {
	p, ok := positions[userID]
	if !ok {
		return true
	}
	return now.Sub(p.ReceivedAt) > r.maxInactivity
}

func participants(sessions []models.TimeSession) []string {
	seen := make(map[string]bool, len(sessions)*2)
	ids := make([]string, 0, len(sessions)*2)
	for _, s := range sessions {
		for _, id := range []string{s.UserLow, s.UserHigh} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Run делает проход сразу при старте и затем по таймеру, пока не отменен контекст
func (r *StaleSessionReaper) Run(ctx context.Context) {
	r.log.Info("stale session reaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("max_inactivity", r.maxInactivity))

	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("stale session reaper stopping")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *StaleSessionReaper) runOnce(ctx context.Context) {
	closed, err := r.Reap(ctx)
	if err != nil {
		r.log.Warn("reaper pass failed", zap.Int("closed", closed), zap.Error(err))
		return
	}
	if closed > 0 {
		r.log.Info("stale sessions closed", zap.Int("closed", closed))
	}
}
