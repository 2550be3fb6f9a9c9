package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"friendtime/geo"

	"github.com/go-redis/redis/v8"
)

const (
	lastFixKeyPrefix = "last_fix:"
	lastFixTTL       = 24 * time.Hour
)

// LastFix - последняя принятая позиция пользователя, по ней считается ограничение частоты
type LastFix struct {
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lon"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (f LastFix) Point() geo.Point {
	return geo.Point{Latitude: f.Latitude, Longitude: f.Longitude}
}

// FixCache хранит последнюю принятую позицию каждого пользователя
type FixCache interface {
	Last(ctx context.Context, userID string) (LastFix, bool, error)
	Remember(ctx context.Context, userID string, fix LastFix) error
}

// MemoryFixCache - кеш в памяти процесса, для тестов и запуска без Redis
type MemoryFixCache struct {
	mu    sync.RWMutex
	fixes map[string]LastFix
}

func NewMemoryFixCache() *MemoryFixCache {
	return &MemoryFixCache{fixes: make(map[string]LastFix)}
}

func (c *MemoryFixCache) Last(_ context.Context, userID string) (LastFix, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fix, ok := c.fixes[userID]
	return fix, ok, nil
}

func (c *MemoryFixCache) Remember(_ context.Context, userID string, fix LastFix) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fixes[userID] = fix
	return nil
}

// RedisFixCache - общий для всех экземпляров API кеш в Redis
type RedisFixCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFixCache(client *redis.Client) *RedisFixCache {
	return &RedisFixCache{client: client, ttl: lastFixTTL}
}

func (c *RedisFixCache) Last(ctx context.Context, userID string) (LastFix, bool, error) {
	data, err := c.client.Get(ctx, lastFixKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return LastFix{}, false, nil
	}
	if err != nil {
		return LastFix{}, false, fmt.Errorf("failed to get last fix: %w", err)
	}
	var fix LastFix
	if err := json.Unmarshal(data, &fix); err != nil {
		return LastFix{}, false, fmt.Errorf("failed to unmarshal last fix: %w", err)
	}
	return fix, true, nil
}

func (c *RedisFixCache) Remember(ctx context.Context, userID string, fix LastFix) error {
	data, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("failed to marshal last fix: %w", err)
	}
	if err := c.client.Set(ctx, lastFixKeyPrefix+userID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store last fix: %w", err)
	}
	return nil
}
