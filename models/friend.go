package models

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
)

// Friendship - одна запись на неупорядоченную пару пользователей.
// RequesterID/RecipientID хранят направление заявки, PairLow/PairHigh - нормализованную пару.
type Friendship struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	RequesterID string           `gorm:"size:36;index;not null" json:"requester_id"`
	RecipientID string           `gorm:"size:36;index;not null" json:"recipient_id"`
	PairLow     string           `gorm:"size:36;not null;uniqueIndex:ux_friendships_pair,priority:1" json:"-"`
	PairHigh    string           `gorm:"size:36;not null;uniqueIndex:ux_friendships_pair,priority:2" json:"-"`
	Status      FriendshipStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (Friendship) TableName() string {
	return "friendships"
}

// OtherID возвращает второго участника дружбы
func (f Friendship) OtherID(userID string) string {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}

// FriendView - друг пользователя вместе с записью о дружбе
type FriendView struct {
	FriendshipID string           `json:"friendship_id"`
	FriendID     string           `json:"friend_id"`
	Username     string           `json:"username"`
	Status       FriendshipStatus `json:"status"`
	Since        time.Time        `json:"since"`
}
