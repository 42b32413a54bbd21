package api

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册聊天域的所有路由。
func RegisterRoutes(group *gin.RouterGroup, h *Handler) {
	sessions := group.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/messages", h.SendMessage)
		sessions.POST("/:id/end", h.EndSession)
		sessions.GET("/:id/history", h.GetHistory)
		sessions.POST("/:id/participants", h.AddParticipant)
		sessions.DELETE("/:id/participants/:agent_id", h.RemoveParticipant)
		sessions.POST("/:id/discussion", h.RunDiscussion)
	}
}
