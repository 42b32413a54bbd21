package api

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册后台任务域的所有路由。
func RegisterRoutes(group *gin.RouterGroup, h *Handler) {
	tasks := group.Group("/tasks")
	{
		tasks.POST("/chat", h.SubmitChatTask)
		tasks.POST("/code", h.SubmitCodeTask)
		tasks.GET("", h.ListTasks)
		tasks.GET("/:id", h.GetTask)
		tasks.GET("/:id/status", h.GetTaskStatus)
		tasks.POST("/:id/revoke", h.RevokeTask)
	}
}
