package models

import "time"

// FriendTimeStats - суммарное время с другом (вычисляется, не хранится)
type FriendTimeStats struct {
	FriendID     string     `json:"friend_id"`
	Username     string     `json:"username"`
	TotalSeconds int64      `json:"total_seconds"`
	TotalHours   float64    `json:"total_hours"`
	SessionCount int        `json:"session_count"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
}

// PeriodStats - статистика за интервал [Start, End)
type PeriodStats struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	TotalSeconds int64     `json:"total_seconds"`
	TotalHours   float64   `json:"total_hours"`
	FriendCount  int       `json:"friend_count"`
	TopFriendID  string    `json:"top_friend_id,omitempty"`
}

// MonthlyStats - время с одним другом за календарный месяц
type MonthlyStats struct {
	Month        string  `json:"month"` // 2025-01
	FriendID     string  `json:"friend_id"`
	TotalSeconds int64   `json:"total_seconds"`
	TotalHours   float64 `json:"total_hours"`
}

// ActiveSessionView - активная сессия с живой длительностью
type ActiveSessionView struct {
	SessionID           string    `json:"session_id"`
	FriendID            string    `json:"friend_id"`
	StartedAt           time.Time `json:"started_at"`
	LiveDurationSeconds int64     `json:"live_duration_seconds"`
}
