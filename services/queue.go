package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	PROXIMITY_CHECK_QUEUE = "proximity_check_queue"
	QUEUE_WORKER_COUNT    = 5
)

// ProximityTask - проверка близости для принятой позиции
type ProximityTask struct {
	UserID     string    `json:"user_id"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lon"`
	ReceivedAt time.Time `json:"received_at"`
}

type ProximityHandler func(ctx context.Context, task ProximityTask) error

// ProximityQueue - очередь проверок близости в Redis списке, разбирается воркерами
type ProximityQueue struct {
	client  *redis.Client
	workers int
	handler ProximityHandler
	log     *zap.Logger
}

func NewProximityQueue(client *redis.Client, workers int, log *zap.Logger) *ProximityQueue {
	if workers <= 0 {
		workers = QUEUE_WORKER_COUNT
	}
	return &ProximityQueue{client: client, workers: workers, log: log}
}

// StartWorkers запускает воркеры для обработки очереди
func (q *ProximityQueue) StartWorkers(ctx context.Context, handler ProximityHandler) {
	q.handler = handler
	for i := 0; i < q.workers; i++ {
		go q.worker(ctx, i)
	}
}

// worker обрабатывает задачи из очереди
func (q *ProximityQueue) worker(ctx context.Context, workerID int) {
	log := q.log.With(zap.Int("worker", workerID))
	log.Info("proximity worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("proximity worker stopping")
			return
		default:
			// блокирующий вызов с таймаутом
			result, err := q.client.BLPop(ctx, 5*time.Second, PROXIMITY_CHECK_QUEUE).Result()
			if err != nil {
				if err == redis.Nil || ctx.Err() != nil {
					continue
				}
				log.Warn("failed to get task", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(result) < 2 {
				continue
			}

			var task ProximityTask
			if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
				log.Warn("failed to unmarshal task", zap.Error(err))
				continue
			}
			if err := q.handler(ctx, task); err != nil {
				log.Warn("proximity check failed", zap.String("user_id", task.UserID), zap.Error(err))
			}
		}
	}
}

// Enqueue добавляет проверку близости в очередь
func (q *ProximityQueue) Enqueue(ctx context.Context, task ProximityTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	length, err := q.client.RPush(ctx, PROXIMITY_CHECK_QUEUE, data).Result()
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	proximityQueueLength.Set(float64(length))
	return nil
}

// Stats возвращает статистику очереди
func (q *ProximityQueue) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"worker_count": q.workers,
		"queue_name":   PROXIMITY_CHECK_QUEUE,
	}
	length, err := q.client.LLen(ctx, PROXIMITY_CHECK_QUEUE).Result()
	if err != nil {
		stats["error"] = err.Error()
		return stats
	}
	stats["queue_length"] = length
	return stats
}
