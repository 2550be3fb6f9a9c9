package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"friendtime/apperrors"
	"friendtime/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationSeconds(t *testing.T) {
	assert.Equal(t, int64(600), DurationSeconds(t0, t0.Add(600*time.Second)))
	// дробная часть отбрасывается
	assert.Equal(t, int64(600), DurationSeconds(t0, t0.Add(600*time.Second+900*time.Millisecond)))
	assert.Equal(t, int64(0), DurationSeconds(t0, t0))
	// рассинхронизация часов не дает отрицательной длительности
	assert.Equal(t, int64(0), DurationSeconds(t0, t0.Add(-10*time.Second)))
}

func TestOpenIsNoOpWhenActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, created, err := env.manager.Open(ctx, "bob", "alice", t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", first.UserLow)
	assert.Equal(t, "bob", first.UserHigh)

	second, created, err := env.manager.Open(ctx, "alice", "bob", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), env.activeCount(t))

	events := env.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, SessionStarted, events[0].Type)
}

func TestOpenRejectsSelfPair(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.manager.Open(context.Background(), "alice", "alice", t0)
	assert.True(t, apperrors.IsValidation(err))
}

func TestConcurrentOpensCreateOneSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	ids := make(map[string]bool)

	for i := 0; i < attempts; i++ {
		a, b := "alice", "bob"
		if i%2 == 1 {
			a, b = b, a
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, ok, err := env.manager.Open(ctx, a, b, t0)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			if session != nil {
				ids[session.ID] = true
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, int64(1), env.activeCount(t))
}

func TestCloseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _, err := env.manager.Open(ctx, "alice", "bob", t0)
	require.NoError(t, err)

	stale := *session
	closed, err := env.manager.Close(ctx, session, t0.Add(10*time.Minute), CloseReasonOutOfRange)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.False(t, session.IsActive)
	assert.Equal(t, int64(600), session.DurationSeconds)

	// вторая попытка (например, от сборщика) ничего не меняет
	closed, err = env.manager.Close(ctx, &stale, t0.Add(30*time.Minute), CloseReasonReaped)
	require.NoError(t, err)
	assert.False(t, closed)

	stored, err := env.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), stored.DurationSeconds)

	events := env.events.Events()
	require.Len(t, events, 2)
	assert.Equal(t, SessionEnded, events[1].Type)
	assert.Equal(t, CloseReasonOutOfRange, events[1].Reason)
}

func TestCloseClampsNegativeDuration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _, err := env.manager.Open(ctx, "alice", "bob", t0)
	require.NoError(t, err)

	closed, err := env.manager.Close(ctx, session, t0.Add(-30*time.Second), CloseReasonOutOfRange)
	require.NoError(t, err)
	assert.True(t, closed)

	stored, err := env.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.DurationSeconds)
}

func TestHysteresisBand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := env.user(t, "alice"), env.user(t, "bob")
	env.befriend(t, alice, bob)

	step := func(bobMeters float64) Transitions {
		now := env.clock.Now()
		env.place(t, alice, paris, now)
		env.place(t, bob, north(paris, bobMeters), now)
		tr, err := env.pipeline.CheckProximity(ctx, alice, paris, now)
		require.NoError(t, err)
		env.clock.Advance(30 * time.Second)
		return tr
	}

	// 52 м: дальше порога открытия, сессия не открывается
	tr := step(52)
	assert.Empty(t, tr.Opened)
	assert.Equal(t, int64(0), env.activeCount(t))

	tr = step(45)
	require.Len(t, tr.Opened, 1)

	// 58 м: дальше порога открытия, но в пределах порога удержания
	tr = step(58)
	assert.Empty(t, tr.Closed)
	assert.Equal(t, []string{bob}, tr.Kept)

	tr = step(52)
	assert.Empty(t, tr.Closed)
	assert.Equal(t, int64(1), env.activeCount(t))

	tr = step(62)
	require.Len(t, tr.Closed, 1)
	assert.Equal(t, int64(90), tr.Closed[0].DurationSeconds)
	assert.Equal(t, int64(0), env.activeCount(t))
}

func TestApplyLeavesSessionWithStaleFriendToReaper(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := env.user(t, "alice"), env.user(t, "bob")
	env.befriend(t, alice, bob)

	env.place(t, alice, paris, t0)
	env.place(t, bob, paris, t0)
	tr, err := env.pipeline.CheckProximity(ctx, alice, paris, t0)
	require.NoError(t, err)
	require.Len(t, tr.Opened, 1)

	// Боб замолчал, Алиса на месте и продолжает присылать позиции
	now := t0.Add(4 * time.Minute)
	env.place(t, alice, paris, now)
	env.clock.Set(now)
	tr, err = env.pipeline.CheckProximity(ctx, alice, paris, now)
	require.NoError(t, err)
	assert.Empty(t, tr.Closed)
	assert.Empty(t, tr.Kept)
	assert.Equal(t, []string{bob}, tr.Awaiting)
	assert.Equal(t, int64(1), env.activeCount(t))

	// Алиса свежая - сборщик сессию не закрывает
	closed, err := env.reaper.Reap(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)

	// Алиса замолчала тоже - закрывает сборщик
	env.clock.Set(now.Add(4 * time.Minute))
	closed, err = env.reaper.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	events := env.events.Events()
	require.Len(t, events, 2)
	assert.Equal(t, CloseReasonReaped, events[1].Reason)
}

func TestApplyDoesNotOpenWithStaleFriend(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := env.user(t, "alice"), env.user(t, "bob")
	env.befriend(t, alice, bob)

	env.place(t, bob, paris, t0)
	now := t0.Add(10 * time.Minute)
	env.place(t, alice, paris, now)

	tr, err := env.pipeline.CheckProximity(context.Background(), alice, paris, now)
	require.NoError(t, err)
	assert.Empty(t, tr.Opened)
}

func TestReconcileClosesExtraActiveSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// без уникального индекса можно получить две активные сессии пары
	require.NoError(t, env.orm.Exec("DROP INDEX ux_time_sessions_active_pair").Error)
	pair := models.NewPairKey("alice", "bob")
	older, err := env.sessions.InsertActiveSession(ctx, pair, t0)
	require.NoError(t, err)
	newer, err := env.sessions.InsertActiveSession(ctx, pair, t0.Add(time.Minute))
	require.NoError(t, err)

	current, created, err := env.manager.Open(ctx, "alice", "bob", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, newer.ID, current.ID)
	assert.Equal(t, int64(1), env.activeCount(t))

	stored, err := env.sessions.GetSession(ctx, older.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, int64(120), stored.DurationSeconds)

	events := env.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, CloseReasonInvariant, events[0].Reason)
}

func TestOpenDoesNotOverlapPreviousSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, created, err := env.manager.Open(ctx, "alice", "bob", t0)
	require.NoError(t, err)
	require.True(t, created)
	_, err = env.manager.Close(ctx, first, t0.Add(600*time.Second), CloseReasonOutOfRange)
	require.NoError(t, err)

	// запоздавшая проверка с временем до закрытия
	session, created, err := env.manager.Open(ctx, "alice", "bob", t0.Add(590*time.Second))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, session)
	assert.Zero(t, env.activeCount(t))

	session, created, err = env.manager.Open(ctx, "bob", "alice", t0.Add(600*time.Second))
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, session)
}
