package services

import (
	"encoding/json"
	"fmt"
)

// sessionPush - сообщение клиенту о начале или конце сессии с другом
type sessionPush struct {
	Event           SessionEventType `json:"event"`
	SessionID       string           `json:"session_id"`
	FriendID        string           `json:"friend_id"`
	DurationSeconds int64            `json:"duration_seconds"`
	Message         string           `json:"message"`
}

// pushSessionEvent отправляет событие обоим участникам пары
func pushSessionEvent(conns *WSConnManager, event SessionEvent) error {
	if conns == nil {
		return nil
	}
	pair := event.Pair()
	for _, userID := range []string{pair.Low, pair.High} {
		data, err := json.Marshal(sessionPushFor(userID, event))
		if err != nil {
			return err
		}
		conns.Send(userID, data)
	}
	return nil
}

func sessionPushFor(userID string, event SessionEvent) sessionPush {
	push := sessionPush{
		Event:           event.Type,
		SessionID:       event.SessionID,
		FriendID:        event.Pair().Other(userID),
		DurationSeconds: event.DurationSeconds,
	}
	if event.Type == SessionStarted {
		push.Message = "friend is nearby"
	} else {
		push.Message = fmt.Sprintf("spent %d min together", event.DurationSeconds/60)
	}
	return push
}
