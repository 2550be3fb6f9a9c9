package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type friendRequest struct {
	FriendID string `json:"friend_id" binding:"required"`
}

func bindFriend(c *gin.Context) (string, bool) {
	var r friendRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return "", false
	}
	return r.FriendID, true
}

// AddFriend - обработчик для отправки заявки в друзья
func (h *Handlers) AddFriend(c *gin.Context) {
	friendID, ok := bindFriend(c)
	if !ok {
		return
	}
	friendship, err := h.Friends.AddFriend(c.Request.Context(), currentUser(c), friendID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend request sent", "friendship": friendship})
}

// AcceptFriend - обработчик для подтверждения заявки, friend_id - отправитель заявки
func (h *Handlers) AcceptFriend(c *gin.Context) {
	friendID, ok := bindFriend(c)
	if !ok {
		return
	}
	friendship, err := h.Friends.AcceptFriend(c.Request.Context(), currentUser(c), friendID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friendship accepted", "friendship": friendship})
}

// RejectFriend - обработчик для отклонения заявки
func (h *Handlers) RejectFriend(c *gin.Context) {
	friendID, ok := bindFriend(c)
	if !ok {
		return
	}
	friendship, err := h.Friends.RejectFriend(c.Request.Context(), currentUser(c), friendID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend request rejected", "friendship": friendship})
}

// DeleteFriend - обработчик для удаления друга
func (h *Handlers) DeleteFriend(c *gin.Context) {
	friendID, ok := bindFriend(c)
	if !ok {
		return
	}
	if err := h.Friends.DeleteFriend(c.Request.Context(), currentUser(c), friendID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend deleted"})
}

// GetFriends - обработчик для получения списка друзей
func (h *Handlers) GetFriends(c *gin.Context) {
	friends, err := h.Friends.GetFriends(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// GetPendingRequests - обработчик для получения входящих заявок
func (h *Handlers) GetPendingRequests(c *gin.Context) {
	requests, err := h.Friends.GetPendingRequests(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}
