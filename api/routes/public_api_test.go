package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"friendtime/api/handlers"
	"friendtime/db"
	"friendtime/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type apiEnv struct {
	router *gin.Engine
	orm    *gorm.DB
	clock  *fixedClock
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newAPI(t *testing.T) *apiEnv {
	gin.SetMode(gin.TestMode)
	orm := db.NewTestDB(t)
	log := zap.NewNop()
	clock := &fixedClock{now: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}

	users := db.NewUserStore(orm, time.Second)
	friends := db.NewFriendStore(orm, time.Second)
	positions := db.NewPositionStore(orm, time.Second, friends)
	sessions := db.NewSessionStore(orm, time.Second)

	manager := services.NewSessionManager(sessions, services.NoopPublisher{}, log)
	resolver := services.NewProximityResolver(positions, services.DefaultThresholds(), 3*time.Minute, log)
	ingest := services.NewLocationIngest(positions, services.NewMemoryFixCache(), services.IngestOptions{
		MinAccuracyMeters:       100,
		RateLimitInterval:       120 * time.Second,
		RateLimitDistanceMeters: 5,
	}, clock, log)

	h := &handlers.Handlers{
		Users:    services.NewUserService(users),
		Friends:  services.NewFriendService(friends, users, log),
		Pipeline: services.NewLocationPipeline(ingest, resolver, manager, positions, nil, clock, log),
		Stats:    services.NewStatsAggregator(sessions, friends, users, clock),
		Reaper:   services.NewStaleSessionReaper(sessions, positions, manager, 3*time.Minute, 5*time.Minute, clock, log),
		Conns:    services.NewWSConnManager(),
		Log:      log,
	}
	return &apiEnv{router: NewRouter(h, "friendtime-test"), orm: orm, clock: clock}
}

func (e *apiEnv) do(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func (e *apiEnv) register(t *testing.T, username string) string {
	t.Helper()
	w, body := e.do(t, http.MethodPost, "/api/v1/users/register", "", gin.H{"username": username})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["id"].(string)
}

func TestRegisterAndSearch(t *testing.T) {
	api := newAPI(t)
	id := api.register(t, "alice")

	w, _ := api.do(t, http.MethodPost, "/api/v1/users/register", "", gin.H{"username": "ALICE"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body := api.do(t, http.MethodPost, "/api/v1/users/register", "", gin.H{"username": "a"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	w, body = api.do(t, http.MethodGet, "/api/v1/users/search?username=Alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, body["id"])

	w, _ = api.do(t, http.MethodGet, "/api/v1/users/search?username=bob", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserHeaderRequired(t *testing.T) {
	api := newAPI(t)

	w, _ := api.do(t, http.MethodGet, "/api/v1/friends/list", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFriendsFlow(t *testing.T) {
	api := newAPI(t)
	alice, bob := api.register(t, "alice"), api.register(t, "bob")

	w, _ := api.do(t, http.MethodPost, "/api/v1/friends/add", alice, gin.H{"friend_id": bob})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// отправитель не может принять свою заявку
	w, _ = api.do(t, http.MethodPost, "/api/v1/friends/accept", alice, gin.H{"friend_id": bob})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := api.do(t, http.MethodGet, "/api/v1/friends/requests", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["requests"], 1)

	w, _ = api.do(t, http.MethodPost, "/api/v1/friends/accept", bob, gin.H{"friend_id": alice})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = api.do(t, http.MethodGet, "/api/v1/friends/list", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	friends := body["friends"].([]interface{})
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].(map[string]interface{})["username"])

	w, _ = api.do(t, http.MethodPost, "/api/v1/friends/add", alice, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLocationReportOpensSession(t *testing.T) {
	api := newAPI(t)
	alice, bob := api.register(t, "alice"), api.register(t, "bob")
	api.do(t, http.MethodPost, "/api/v1/friends/add", alice, gin.H{"friend_id": bob})
	api.do(t, http.MethodPost, "/api/v1/friends/accept", bob, gin.H{"friend_id": alice})

	fix := gin.H{"latitude": 48.8566, "longitude": 2.3522, "accuracy": 8}
	w, body := api.do(t, http.MethodPost, "/api/v1/location/report", alice, fix)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "accepted", body["status"])

	w, body = api.do(t, http.MethodPost, "/api/v1/location/report", bob, fix)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["opened"], 1)

	api.clock.now = api.clock.now.Add(5 * time.Minute)
	w, body = api.do(t, http.MethodGet, "/api/v1/sessions/active", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sessions := body["sessions"].([]interface{})
	require.Len(t, sessions, 1)
	active := sessions[0].(map[string]interface{})
	assert.Equal(t, bob, active["friend_id"])
	assert.Equal(t, float64(300), active["live_duration_seconds"])

	w, body = api.do(t, http.MethodGet, "/api/v1/stats/friends", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := body["friends"].([]interface{})
	require.Len(t, stats, 1)
	assert.Equal(t, float64(300), stats[0].(map[string]interface{})["total_seconds"])

	w, body = api.do(t, http.MethodGet, "/api/v1/stats/month?month=2025-03", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(300), body["total_seconds"])

	// без параметра берется месяц по часам сервиса
	w, body = api.do(t, http.MethodGet, "/api/v1/stats/month", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-03-01T00:00:00Z", body["start"])
	assert.Equal(t, float64(300), body["total_seconds"])

	// оба молчат дольше трех минут
	api.clock.now = api.clock.now.Add(time.Minute)
	w, body = api.do(t, http.MethodPost, "/api/v1/sessions/reap", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["closed"])
}

func TestLocationReportValidation(t *testing.T) {
	api := newAPI(t)

	w, _ := api.do(t, http.MethodPost, "/api/v1/location/report", "alice", gin.H{"latitude": 48.8})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := api.do(t, http.MethodPost, "/api/v1/location/report", "alice", gin.H{"latitude": 95.0, "longitude": 0.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	w, body = api.do(t, http.MethodPost, "/api/v1/location/report", "alice", gin.H{"latitude": 0.0, "longitude": 0.0, "accuracy": 500})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dropped_accuracy", body["status"])

	future := api.clock.now.AddDate(1, 0, 0).Format(time.RFC3339)
	w, body = api.do(t, http.MethodPost, "/api/v1/location/report", "alice",
		gin.H{"latitude": 1.0, "longitude": 1.0, "recorded_at": future})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestPeriodStatsValidation(t *testing.T) {
	api := newAPI(t)

	w, _ := api.do(t, http.MethodGet, "/api/v1/stats/period?start=yesterday&end=2025-03-14T00:00:00Z", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := api.do(t, http.MethodGet, "/api/v1/stats/period?start=2025-03-01T00:00:00Z&end=2025-04-01T00:00:00Z", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["total_seconds"])

	w, _ = api.do(t, http.MethodGet, "/api/v1/stats/month?month=March", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStorageFailureIsRetryable(t *testing.T) {
	api := newAPI(t)
	sqlDB, err := api.orm.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w, body := api.do(t, http.MethodGet, "/api/v1/sessions/active", "alice", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, true, body["retryable"])
}

func TestMetricsEndpoint(t *testing.T) {
	api := newAPI(t)
	w, body := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "proximity_queue")


	w, _ = api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
