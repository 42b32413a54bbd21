package api

import "github.com/gin-gonic/gin"

// RegisterRoutes 将 agent 域的路由挂载到指定分组下。
func RegisterRoutes(group *gin.RouterGroup, h *Handler) {
	agents := group.Group("/agents")
	{
		agents.POST("", h.CreateAgent)
		agents.GET("", h.ListAgents)
		agents.GET("/:id", h.GetAgent)
		agents.PUT("/:id", h.UpdateAgent)
		agents.DELETE("/:id", h.DeleteAgent)

		agents.POST("/:id/activate", h.ActivateAgent)
		agents.POST("/:id/deactivate", h.DeactivateAgent)
		agents.POST("/:id/messages", h.ProcessMessage)
		agents.POST("/:id/tools/execute", h.ExecuteTool)

		agents.POST("/:id/tools", h.AssignTool)
		agents.DELETE("/:id/tools/:tool_id", h.RevokeTool)
	}

	providers := group.Group("/providers")
	{
		providers.POST("", h.CreateProvider)
		providers.GET("", h.ListProviders)
		providers.PUT("/:id", h.UpdateProvider)
		providers.DELETE("/:id", h.DeleteProvider)
	}

	tools := group.Group("/tools")
	{
		tools.POST("", h.CreateTool)
		tools.GET("", h.ListTools)
		tools.GET("/:id", h.GetTool)
		tools.PUT("/:id", h.UpdateTool)
		tools.DELETE("/:id", h.DeleteTool)
	}
}
