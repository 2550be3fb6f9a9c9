package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSSessions - WebSocket для событий о начале и конце сессий с друзьями
func (h *Handlers) WSSessions(c *gin.Context) {
	userID := currentUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	h.Conns.Add(userID, conn)
	defer h.Conns.Remove(userID, conn)

	h.Conns.Send(userID, []byte(`{"event":"connected","message":"WebSocket connected"}`))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.Log.Debug("WebSocket closed", zap.String("user_id", userID), zap.Error(err))
			break
		}
	}
}
