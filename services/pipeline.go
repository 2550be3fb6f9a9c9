package services

import (
	"context"
	"time"

	"friendtime/geo"
	"friendtime/logger"

	"go.uber.org/zap"
)

// ReportResult - итог обработки одной позиции
type ReportResult struct {
	Ingest IngestResult
	// Queued - проверка близости поставлена в очередь и выполнится асинхронно
	Queued      bool
	Transitions *Transitions
}

// LocationPipeline проводит позицию через прием, определение близости и
// менеджер сессий. С очередью проверка близости выполняется воркерами.
type LocationPipeline struct {
	ingest   *LocationIngest
	resolver *ProximityResolver
	manager   *SessionManager
	positions PositionReader
	queue     *ProximityQueue
	clock    Clock
	log      *zap.Logger
}

func NewLocationPipeline(
	ingest *LocationIngest,
	resolver *ProximityResolver,
	manager *SessionManager,
	positions PositionReader,
	queue *ProximityQueue,
	clock Clock,
	log *zap.Logger,
) *LocationPipeline {
	if clock == nil {
		clock = NewMonotonicClock()
	}
	return &LocationPipeline{
		ingest:   ingest,
		resolver: resolver,
		manager:   manager,
		positions: positions,
		queue:     queue,
		clock:    clock,
		log:      log,
	}
}

// Report принимает позицию пользователя
func (p *LocationPipeline) Report(ctx context.Context, userID string, fix Fix) (ReportResult, error) {
	ingested, err := p.ingest.Submit(ctx, userID, fix)
	if err != nil {
		return ReportResult{}, err
	}
	result := ReportResult{Ingest: ingested}
	if !ingested.Accepted() {
		return result, nil
	}

	now := ingested.Position.ReceivedAt
	if p.queue != nil {
		err := p.queue.Enqueue(ctx, ProximityTask{
			UserID:     userID,
			Latitude:   fix.Latitude,
			Longitude:  fix.Longitude,
			ReceivedAt: now,
		})
		if err == nil {
			result.Queued = true
			return result, nil
		}
		logger.WithUserID(p.log, userID).Warn("proximity queue unavailable, checking inline", zap.Error(err))
	}

	transitions, err := p.CheckProximity(ctx, userID, fix.Point(), now)
	if err != nil {
		return result, err
	}
	result.Transitions = &transitions
	return result, nil
}

// CheckProximity определяет друзей рядом и применяет переходы сессий
func (p *LocationPipeline) CheckProximity(ctx context.Context, userID string, point geo.Point, now time.Time) (Transitions, error) {
	nearby, err := p.resolver.Resolve(ctx, userID, point, now)
	if err != nil {
		return Transitions{}, err
	}
	return p.manager.Apply(ctx, userID, nearby, now)
}

// HandleTask - обработчик задач очереди близости. Воркеры разбирают очередь
// параллельно, поэтому задача, которую уже обогнала более новая позиция
// пользователя, пропускается.
func (p *LocationPipeline) HandleTask(ctx context.Context, task ProximityTask) error {
	point := geo.Point{Latitude: task.Latitude, Longitude: task.Longitude}
	now := task.ReceivedAt
	if now.IsZero() {
		now = p.clock.Now()
	}

	superseded, err := p.superseded(ctx, task.UserID, now)
	if err != nil {
		return err
	}
	if superseded {
		proximityTasksSkippedTotal.Inc()
		p.log.Debug("proximity task superseded",
			zap.String("user_id", task.UserID),
			zap.Time("received_at", now))
		return nil
	}

	_, err = p.CheckProximity(ctx, task.UserID, point, now)
	return err
}

func (p *LocationPipeline) superseded(ctx context.Context, userID string, receivedAt time.Time) (bool, error) {
	if p.positions == nil {
		return false, nil
	}
	positions, err := p.positions.GetPositions(ctx, []string{userID})
	if err != nil {
		return false, err
	}
	stored, ok := positions[userID]
	return ok && stored.ReceivedAt.After(receivedAt), nil
}
