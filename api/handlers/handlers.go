package handlers

import (
	"net/http"

	"friendtime/apperrors"
	"friendtime/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers - HTTP обработчики с зависимостями
type Handlers struct {
	Users    *services.UserService
	Friends  *services.FriendService
	Pipeline *services.LocationPipeline
	Stats    *services.StatsAggregator
	Reaper   *services.StaleSessionReaper
	Conns    *services.WSConnManager
	// Queue может быть nil: Redis не настроен
	Queue    *services.ProximityQueue
	Log      *zap.Logger
}

// Health - состояние сервиса и очереди проверок близости
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "ws_connections": h.Conns.Total()}
	if h.Queue != nil {
		resp["proximity_queue"] = h.Queue.Stats(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}

// currentUser - пользователь, выставленный UserMiddleware
func currentUser(c *gin.Context) string {
	return c.GetString("user_id")
}

// respondError переводит ошибку сервиса в HTTP ответ
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperrors.CodeValidation})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": apperrors.CodeNotFound})
	case apperrors.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": apperrors.CodeConflict})
	case apperrors.IsForbidden(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": apperrors.CodeForbidden})
	case apperrors.IsTransient(err):
		h.Log.Warn("storage temporarily unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "storage temporarily unavailable",
			"code":      apperrors.CodeTransientStorage,
			"retryable": true,
		})
	default:
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
