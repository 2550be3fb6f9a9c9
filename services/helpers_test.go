package services

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"friendtime/db"
	"friendtime/geo"
	"friendtime/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var t0 = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

var paris = geo.Point{Latitude: 48.8566, Longitude: 2.3522}

// metersPerDegreeLat - длина градуса широты на сфере радиуса geo.EarthRadiusMeters
const metersPerDegreeLat = geo.EarthRadiusMeters * math.Pi / 180

// north сдвигает точку на meters метров к северу
func north(p geo.Point, meters float64) geo.Point {
	return geo.Point{Latitude: p.Latitude + meters/metersPerDegreeLat, Longitude: p.Longitude}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher запоминает опубликованные события
type recordingPublisher struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []SessionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SessionEvent(nil), p.events...)
}

// testEnv - сервисы поверх SQLite в памяти
type testEnv struct {
	orm       *gorm.DB
	clock     *testClock
	events    *recordingPublisher
	users     *db.UserStore
	friends   *db.FriendStore
	positions *db.PositionStore
	sessions  *db.SessionStore

	manager  *SessionManager
	resolver *ProximityResolver
	ingest   *LocationIngest
	pipeline *LocationPipeline
	stats    *StatsAggregator
	reaper   *StaleSessionReaper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	orm := db.NewTestDB(t)
	log := zap.NewNop()
	env := &testEnv{
		orm:    orm,
		clock:  newTestClock(t0),
		events: &recordingPublisher{},
	}
	env.users = db.NewUserStore(orm, time.Second)
	env.friends = db.NewFriendStore(orm, time.Second)
	env.positions = db.NewPositionStore(orm, time.Second, env.friends)
	env.sessions = db.NewSessionStore(orm, time.Second)

	env.manager = NewSessionManager(env.sessions, env.events, log)
	env.resolver = NewProximityResolver(env.positions, DefaultThresholds(), 3*time.Minute, log)
	env.ingest = NewLocationIngest(env.positions, NewMemoryFixCache(), IngestOptions{
		MinAccuracyMeters:       100,
		RateLimitInterval:       120 * time.Second,
		RateLimitDistanceMeters: 5,
	}, env.clock, log)
	env.pipeline = NewLocationPipeline(env.ingest, env.resolver, env.manager, env.positions, nil, env.clock, log)
	env.stats = NewStatsAggregator(env.sessions, env.friends, env.users, env.clock)
	env.reaper = NewStaleSessionReaper(env.sessions, env.positions, env.manager, 3*time.Minute, 5*time.Minute, env.clock, log)
	return env
}

// user создает пользователя с id = username
func (e *testEnv) user(t *testing.T, username string) string {
	t.Helper()
	require.NoError(t, e.users.Create(context.Background(), &models.User{ID: username, Username: username}))
	return username
}

// befriend создает принятую дружбу
func (e *testEnv) befriend(t *testing.T, a, b string) {
	t.Helper()
	require.NoError(t, e.friends.Create(context.Background(), &models.Friendship{
		ID:          a + "-" + b,
		RequesterID: a,
		RecipientID: b,
		Status:      models.FriendshipAccepted,
	}))
}

// place записывает позицию пользователя напрямую, минуя прием
func (e *testEnv) place(t *testing.T, userID string, p geo.Point, at time.Time) {
	t.Helper()
	require.NoError(t, e.positions.UpsertPosition(context.Background(), models.Position{
		UserID:     userID,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		AccuracyM:  5,
		RecordedAt: at,
	}))
}

func (e *testEnv) activeCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.orm.Model(&models.TimeSession{}).Where("is_active = ?", true).Count(&count).Error)
	return count
}
