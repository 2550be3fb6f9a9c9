package services

import (
	"context"
	"fmt"

	"friendtime/config"
	"friendtime/db"
	"friendtime/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container - собранные сервисы приложения
type Container struct {
	Users     *UserService
	Friends   *FriendService
	Ingest    *LocationIngest
	Resolver  *ProximityResolver
	Manager   *SessionManager
	Pipeline  *LocationPipeline
	Stats     *StatsAggregator
	Reaper    *StaleSessionReaper
	Queue     *ProximityQueue
	Publisher Publisher
	Conns     *WSConnManager

	cfg *config.ConfigSchema
	log *zap.Logger
}

// NewContainer собирает сервисы поверх gorm и (если есть) Redis.
// Без Redis кеш позиций живет в памяти, а проверка близости идет синхронно.
func NewContainer(ctx context.Context, cfg *config.ConfigSchema, orm *gorm.DB, rdb *redis.Client, log *zap.Logger) (*Container, error) {
	tracking := cfg.Tracking
	clock := NewMonotonicClock()
	conns := GlobalWSConnManager

	users := db.NewUserStore(orm, tracking.StoreTimeout)
	friends := db.NewFriendStore(orm, tracking.StoreTimeout)
	positions := db.NewPositionStore(orm, tracking.StoreTimeout, friends)
	sessions := db.NewSessionStore(orm, tracking.StoreTimeout)

	publisher, err := NewPublisher(ctx, cfg, conns, log)
	if err != nil {
		return nil, err
	}

	var cache FixCache = NewMemoryFixCache()
	var queue *ProximityQueue
	if rdb != nil {
		cache = NewRedisFixCache(rdb)
		queue = NewProximityQueue(rdb, tracking.QueueWorkers, logger.WithComponent(log, "proximity_queue"))
	}

	c := &Container{
		Users:     NewUserService(users),
		Friends:   NewFriendService(friends, users, logger.WithComponent(log, "friends")),
		Publisher: publisher,
		Queue:     queue,
		Conns:     conns,
		cfg:       cfg,
		log:       log,
	}
	c.Ingest = NewLocationIngest(positions, cache, IngestOptionsFromConfig(tracking), clock,
		logger.WithComponent(log, "ingest"))
	c.Resolver = NewProximityResolver(positions,
		Thresholds{Enter: tracking.EnterThresholdMeters, Exit: tracking.ExitThresholdMeters},
		tracking.StalenessWindow, logger.WithComponent(log, "proximity"))
	c.Manager = NewSessionManager(sessions, publisher, logger.WithComponent(log, "sessions"))
	c.Pipeline = NewLocationPipeline(c.Ingest, c.Resolver, c.Manager, positions, queue, clock,
		logger.WithComponent(log, "pipeline"))
	c.Stats = NewStatsAggregator(sessions, friends, users, clock)
	c.Reaper = NewStaleSessionReaper(sessions, positions, c.Manager,
		cfg.Reaper.MaxInactivity, cfg.Reaper.Interval, clock, logger.WithComponent(log, "reaper"))
	return c, nil
}

// NewPublisher создает издателя событий сессий по настройке events.driver.
// В WebSocket события доходят всегда: через потребителя RabbitMQ или напрямую.
func NewPublisher(ctx context.Context, cfg *config.ConfigSchema, conns *WSConnManager, log *zap.Logger) (Publisher, error) {
	events := cfg.Events
	switch events.Driver {
	case "rabbitmq":
		rabbit, err := NewRabbitPublisher(events.RabbitMQ, events.Exchange, logger.WithComponent(log, "rabbitmq"))
		if err != nil {
			return nil, err
		}
		if err := rabbit.StartConsumer(ctx, events.Queue, conns); err != nil {
			_ = rabbit.Close()
			return nil, err
		}
		return rabbit, nil
	case "kafka":
		kafka := NewKafkaPublisher(events.Brokers, events.Topic, logger.WithComponent(log, "kafka"))
		return MultiPublisher{kafka, WSPublisher{Conns: conns}}, nil
	case "none", "":
		return WSPublisher{Conns: conns}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", events.Driver)
	}
}

// Start запускает фоновые воркеры: очередь близости и, если включен, сборщик
func (c *Container) Start(ctx context.Context) {
	if c.Queue != nil {
		c.Queue.StartWorkers(ctx, c.Pipeline.HandleTask)
	}
	if c.cfg.Reaper.Enabled {
		go c.Reaper.Run(ctx)
	}
}

func (c *Container) Close() error {
	if c.Publisher != nil {
		return c.Publisher.Close()
	}
	return nil
}
