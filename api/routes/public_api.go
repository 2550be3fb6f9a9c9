package routes

import (
	"friendtime/api/handlers"
	"friendtime/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PublicApi регистрирует маршруты API. Все, кроме регистрации и поиска
// пользователей, требуют X-User-ID.
func PublicApi(router *gin.Engine, h *handlers.Handlers) *gin.RouterGroup {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", h.Health)

	publicEndpoints := router.Group("/api/v1/")
	{
		publicEndpoints.POST("users/register", h.UserRegister)
		publicEndpoints.GET("users/search", h.UserSearch)
	}

	userEndpoints := publicEndpoints.Group("", middleware.UserMiddleware())
	{
		// Друзья
		userEndpoints.POST("friends/add", h.AddFriend)
		userEndpoints.POST("friends/accept", h.AcceptFriend)
		userEndpoints.POST("friends/reject", h.RejectFriend)
		userEndpoints.POST("friends/delete", h.DeleteFriend)
		userEndpoints.GET("friends/list", h.GetFriends)
		userEndpoints.GET("friends/requests", h.GetPendingRequests)

		// Координаты
		userEndpoints.POST("location/report", h.ReportLocation)

		// Статистика
		userEndpoints.GET("stats/friends", h.FriendStats)
		userEndpoints.GET("stats/period", h.PeriodStats)
		userEndpoints.GET("stats/month", h.MonthStats)
		userEndpoints.GET("stats/friends/:friend_id/monthly", h.FriendMonthlyStats)

		// Сессии
		userEndpoints.GET("sessions/active", h.ActiveSessions)
		userEndpoints.POST("sessions/reap", h.ReapSessions)

		userEndpoints.GET("ws", h.WSSessions)
	}
	return publicEndpoints
}

// NewRouter собирает gin с middleware и маршрутами
func NewRouter(h *handlers.Handlers, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware(serviceName))

	PublicApi(router, h)
	return router
}
