package services

import (
	"context"
	"math"
	"sort"
	"time"

	"friendtime/apperrors"
	"friendtime/models"
)

// UsernameResolver подставляет имена друзей в статистику
type UsernameResolver interface {
	UsernamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// StatsAggregator - представления только для чтения над закрытыми и активными сессиями.
// Каждый вызов берет одно показание часов.
type StatsAggregator struct {
	sessions SessionStore
	friends  FriendGraph
	users    UsernameResolver
	clock    Clock
}

func NewStatsAggregator(sessions SessionStore, friends FriendGraph, users UsernameResolver, clock Clock) *StatsAggregator {
	if clock == nil {
		clock = NewMonotonicClock()
	}
	return &StatsAggregator{sessions: sessions, friends: friends, users: users, clock: clock}
}

// LiveDuration - длительность активной сессии на момент now
func LiveDuration(startedAt, now time.Time) int64 {
	return DurationSeconds(startedAt, now)
}

func hours(seconds int64) float64 {
	return math.Round(float64(seconds)/3600*10) / 10
}

// FriendTimeStats - суммарное время с каждым принятым другом, по убыванию
func (a *StatsAggregator) FriendTimeStats(ctx context.Context, userID string) ([]models.FriendTimeStats, error) {
	now := a.clock.Now()

	friendIDs, err := a.friends.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(friendIDs) == 0 {
		return []models.FriendTimeStats{}, nil
	}

	closed, err := a.sessions.ListClosedSessions(ctx, models.SessionFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	active, err := a.sessions.ListActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names, err := a.users.UsernamesByIDs(ctx, friendIDs)
	if err != nil {
		return nil, err
	}

	byFriend := make(map[string]*models.FriendTimeStats, len(friendIDs))
	for _, id := range friendIDs {
		byFriend[id] = &models.FriendTimeStats{FriendID: id, Username: names[id]}
	}

	for _, s := range closed {
		stats, ok := byFriend[s.Pair().Other(userID)]
		if !ok {
			// сессии с бывшими друзьями в статистику не входят
			continue
		}
		stats.TotalSeconds += s.DurationSeconds
		stats.SessionCount++
		if s.EndedAt != nil && (stats.LastSeen == nil || s.EndedAt.After(*stats.LastSeen)) {
			endedAt := *s.EndedAt
			stats.LastSeen = &endedAt
		}
	}
	for _, s := range active {
		stats, ok := byFriend[s.Pair().Other(userID)]
		if !ok {
			continue
		}
		stats.TotalSeconds += LiveDuration(s.StartedAt, now)
		stats.SessionCount++
		seen := now
		stats.LastSeen = &seen
	}

	result := make([]models.FriendTimeStats, 0, len(byFriend))
	for _, stats := range byFriend {
		stats.TotalHours = hours(stats.TotalSeconds)
		result = append(result, *stats)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalSeconds != result[j].TotalSeconds {
			return result[i].TotalSeconds > result[j].TotalSeconds
		}
		if result[i].Username != result[j].Username {
			return result[i].Username < result[j].Username
		}
		return result[i].FriendID < result[j].FriendID
	})
	return result, nil
}

// PeriodStats - время с друзьями за [start, end): закрытые сессии, целиком
// попавшие в интервал, и активные, начатые в нем
func (a *StatsAggregator) PeriodStats(ctx context.Context, userID string, start, end time.Time) (models.PeriodStats, error) {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return models.PeriodStats{}, apperrors.NewValidationError("period end must be after start")
	}
	now := a.clock.Now()

	closed, err := a.sessions.ListClosedSessions(ctx, models.SessionFilter{UserID: userID, From: start, To: end})
	if err != nil {
		return models.PeriodStats{}, err
	}
	active, err := a.sessions.ListActiveSessionsForUser(ctx, userID)
	if err != nil {
		return models.PeriodStats{}, err
	}

	perFriend := make(map[string]int64)
	for _, s := range closed {
		perFriend[s.Pair().Other(userID)] += s.DurationSeconds
	}
	for _, s := range active {
		if s.StartedAt.Before(start) || !s.StartedAt.Before(end) {
			continue
		}
		perFriend[s.Pair().Other(userID)] += LiveDuration(s.StartedAt, now)
	}

	stats := models.PeriodStats{Start: start, End: end, FriendCount: len(perFriend)}
	var top int64 = -1
	for friendID, total := range perFriend {
		stats.TotalSeconds += total
		if total > top || (total == top && friendID < stats.TopFriendID) {
			top = total
			stats.TopFriendID = friendID
		}
	}
	stats.TotalHours = hours(stats.TotalSeconds)
	return stats, nil
}

// MonthStats - PeriodStats за календарный месяц (UTC), в который попадает month
func (a *StatsAggregator) MonthStats(ctx context.Context, userID string, month time.Time) (models.PeriodStats, error) {
	month = month.UTC()
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	return a.PeriodStats(ctx, userID, start, start.AddDate(0, 1, 0))
}

// CurrentMonthStats - MonthStats за текущий по часам агрегатора месяц
func (a *StatsAggregator) CurrentMonthStats(ctx context.Context, userID string) (models.PeriodStats, error) {
	return a.MonthStats(ctx, userID, a.clock.Now())
}

// MonthlyStats - время с одним другом по месяцам, новые месяцы первыми.
// Сессия относится к месяцу, в котором началась.
func (a *StatsAggregator) MonthlyStats(ctx context.Context, userID, friendID string) ([]models.MonthlyStats, error) {
	if friendID == "" || friendID == userID {
		return nil, apperrors.NewValidationError("friend_id is required")
	}
	now := a.clock.Now()

	closed, err := a.sessions.ListClosedSessions(ctx, models.SessionFilter{UserID: userID, FriendID: friendID})
	if err != nil {
		return nil, err
	}
	active, err := a.sessions.ListActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int64)
	for _, s := range closed {
		totals[s.StartedAt.UTC().Format("2006-01")] += s.DurationSeconds
	}
	pair := models.NewPairKey(userID, friendID)
	for _, s := range active {
		if s.Pair() != pair {
			continue
		}
		totals[s.StartedAt.UTC().Format("2006-01")] += LiveDuration(s.StartedAt, now)
	}

	result := make([]models.MonthlyStats, 0, len(totals))
	for month, total := range totals {
		result = append(result, models.MonthlyStats{
			Month:        month,
			FriendID:     friendID,
			TotalSeconds: total,
			TotalHours:   hours(total),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month > result[j].Month })
	return result, nil
}

// ActiveSessions - текущие сессии пользователя с живой длительностью, новые первыми
func (a *StatsAggregator) ActiveSessions(ctx context.Context, userID string) ([]models.ActiveSessionView, error) {
	now := a.clock.Now()

	active, err := a.sessions.ListActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.ActiveSessionView, 0, len(active))
	for _, s := range active {
		views = append(views, models.ActiveSessionView{
			SessionID:           s.ID,
			FriendID:            s.Pair().Other(userID),
			StartedAt:           s.StartedAt,
			LiveDurationSeconds: LiveDuration(s.StartedAt, now),
		})
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].StartedAt.After(views[j].StartedAt) })
	return views, nil
}
