package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type UserRegisterRequest struct {
	Username string `json:"username" binding:"required"`
}

// UserRegister - регистрация пользователя по имени
func (h *Handlers) UserRegister(c *gin.Context) {
	var req UserRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.Users.Register(c.Request.Context(), req.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UserSearch - поиск пользователя по имени без учета регистра
func (h *Handlers) UserSearch(c *gin.Context) {
	user, err := h.Users.Search(c.Request.Context(), c.Query("username"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
