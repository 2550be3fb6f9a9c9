package models

import (
	"time"
)

// PairKey - неупорядоченная пара пользователей, Low < High лексикографически
type PairKey struct {
	Low  string
	High string
}

// NewPairKey нормализует пару. Все обращения к сессиям идут через него.
func NewPairKey(a, b string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

func (k PairKey) String() string {
	return k.Low + ":" + k.High
}

// Contains проверяет, что пользователь участник пары
func (k PairKey) Contains(userID string) bool {
	return k.Low == userID || k.High == userID
}

// Other возвращает второго участника пары
func (k PairKey) Other(userID string) string {
	if k.Low == userID {
		return k.High
	}
	return k.Low
}

// TimeSession - непрерывный период, проведенный парой рядом.
// После закрытия запись не меняется.
type TimeSession struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	UserLow         string     `gorm:"size:36;not null;index:idx_time_sessions_pair,priority:1" json:"user_low"`
	UserHigh        string     `gorm:"size:36;not null;index:idx_time_sessions_pair,priority:2" json:"user_high"`
	StartedAt       time.Time  `gorm:"not null;index" json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int64      `gorm:"not null;default:0" json:"duration_seconds"`
	IsActive        bool       `gorm:"not null;index" json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (TimeSession) TableName() string {
	return "time_sessions"
}

func (s TimeSession) Pair() PairKey {
	return PairKey{Low: s.UserLow, High: s.UserHigh}
}

// SessionFilter - выборка закрытых сессий пользователя.
// Пустой FriendID - все друзья, нулевые From/To - без ограничения.
type SessionFilter struct {
	UserID   string
	FriendID string
	From     time.Time
	To       time.Time
}
