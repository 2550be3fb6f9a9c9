package models

import (
	"time"

	"friendtime/geo"
)

// Position - последняя известная позиция пользователя, одна строка на пользователя
type Position struct {
	UserID     string    `gorm:"primaryKey;size:36" json:"user_id"`
	Latitude   float64   `gorm:"not null" json:"latitude"`
	Longitude  float64   `gorm:"not null" json:"longitude"`
	AccuracyM  float64   `gorm:"column:accuracy_m" json:"accuracy_m"`
	RecordedAt time.Time `gorm:"not null;index" json:"recorded_at"`
	// ReceivedAt - время приема сервером, по нему считается свежесть
	ReceivedAt time.Time `gorm:"not null;index;default:CURRENT_TIMESTAMP" json:"received_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

func (p Position) Point() geo.Point {
	return geo.Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

// NearbyCandidate - принятый друг с позицией и расстоянием до запрашивающего
type NearbyCandidate struct {
	FriendID       string    `json:"friend_id"`
	DistanceMeters float64   `json:"distance_m"`
	LastPositionAt time.Time `json:"last_position_at"`
}
