package handlers

import (
	"net/http"
	"time"

	"friendtime/apperrors"
	"friendtime/models"

	"github.com/gin-gonic/gin"
)

// FriendStats - суммарное время с каждым другом
func (h *Handlers) FriendStats(c *gin.Context) {
	stats, err := h.Stats.FriendTimeStats(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": stats})
}

// PeriodStats - время с друзьями за интервал, start и end в RFC3339
func (h *Handlers) PeriodStats(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		h.respondError(c, apperrors.NewValidationError("start must be RFC3339"))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		h.respondError(c, apperrors.NewValidationError("end must be RFC3339"))
		return
	}

	stats, err := h.Stats.PeriodStats(c.Request.Context(), currentUser(c), start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// MonthStats - статистика за месяц YYYY-MM, по умолчанию текущий
func (h *Handlers) MonthStats(c *gin.Context) {
	var (
		stats models.PeriodStats
		err   error
	)
	if m := c.Query("month"); m != "" {
		month, perr := time.Parse("2006-01", m)
		if perr != nil {
			h.respondError(c, apperrors.NewValidationError("month must be YYYY-MM"))
			return
		}
		stats, err = h.Stats.MonthStats(c.Request.Context(), currentUser(c), month)
	} else {
		stats, err = h.Stats.CurrentMonthStats(c.Request.Context(), currentUser(c))
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// FriendMonthlyStats - время с другом по месяцам
func (h *Handlers) FriendMonthlyStats(c *gin.Context) {
	monthly, err := h.Stats.MonthlyStats(c.Request.Context(), currentUser(c), c.Param("friend_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"months": monthly})
}

// ActiveSessions - текущие сессии пользователя с живой длительностью
func (h *Handlers) ActiveSessions(c *gin.Context) {
	sessions, err := h.Stats.ActiveSessions(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// ReapSessions - внеочередной проход сборщика устаревших сессий
func (h *Handlers) ReapSessions(c *gin.Context) {
	closed, err := h.Reaper.Reap(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}
