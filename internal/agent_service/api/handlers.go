package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"Symposium/internal/agent_service/service"
	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// Handler 封装了 agent 域所有 API endpoint 的处理函数。
type Handler struct {
	manager *service.Manager
	catalog *service.Catalog
}

// NewHandler 创建一个新的 Handler 实例。
func NewHandler(manager *service.Manager, catalog *service.Catalog) *Handler {
	return &Handler{manager: manager, catalog: catalog}
}

// respondError 把分类错误映射为 HTTP 状态码并输出统一的错误结构。
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
}

// parseID 解析路径中的数字 ID 参数。
func parseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		respondError(c, apperr.Newf(apperr.KindValidation, "invalid %s: %s", name, raw))
		return 0, false
	}
	return uint(id), true
}

// --- Agent Handlers ---

// AgentRequest 定义了创建/更新 agent 请求的 JSON 结构。
type AgentRequest struct {
	Name         string             `json:"name" binding:"required"`
	Role         string             `json:"role" binding:"required"`
	Description  string             `json:"description"`
	SystemPrompt string             `json:"system_prompt"`
	ModelConfig  models.ModelConfig `json:"model_config" binding:"required"`
	Metadata     map[string]any     `json:"metadata"`
}

func (r *AgentRequest) toModel() (*models.Agent, error) {
	mc, err := json.Marshal(r.ModelConfig)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "malformed model config", err)
	}
	a := &models.Agent{
		Name:         r.Name,
		Role:         r.Role,
		Description:  r.Description,
		SystemPrompt: r.SystemPrompt,
		ModelConfig:  datatypes.JSON(mc),
	}
	if r.Metadata != nil {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed metadata", err)
		}
		a.Meta = datatypes.JSON(meta)
	}
	return a, nil
}

// CreateAgent 处理创建 agent 的请求。
func (h *Handler) CreateAgent(c *gin.Context) {
	var req AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	a, err := req.toModel()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.manager.CreateAgent(c.Request.Context(), a); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetAgent 返回单个 agent。
func (h *Handler) GetAgent(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	a, err := h.manager.GetAgent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ListAgents 返回全部 agent。
func (h *Handler) ListAgents(c *gin.Context) {
	agents, err := h.manager.ListAgents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// UpdateAgent 处理更新 agent 的请求。
func (h *Handler) UpdateAgent(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	existing, err := h.manager.GetAgent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	var req AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	updated, err := req.toModel()
	if err != nil {
		respondError(c, err)
		return
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.Status = existing.Status
	updated.LastActive = existing.LastActive

	if err := h.manager.UpdateAgent(c.Request.Context(), updated); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteAgent 处理删除 agent 的请求。
func (h *Handler) DeleteAgent(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := h.manager.DeleteAgent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ActivateAgent 激活一个 agent。
func (h *Handler) ActivateAgent(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := h.manager.ActivateAgent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "status": models.AgentStatusActive})
}

// DeactivateAgent 停用一个 agent。
func (h *Handler) DeactivateAgent(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := h.manager.DeactivateAgent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "status": models.AgentStatusInactive})
}

// MessageRequest 定义了向 agent 发送消息的 JSON 结构。
type MessageRequest struct {
	Message string         `json:"message" binding:"required"`
	Context map[string]any `json:"context"`
}

// ProcessMessage 将一条消息交给 agent 处理并返回回复。
func (h *Handler) ProcessMessage(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	reply, err := h.manager.ProcessMessage(c.Request.Context(), id, req.Message, req.Context)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "reply": reply})
}

// ToolCallRequest 定义了以 agent 身份执行工具的 JSON 结构。
type ToolCallRequest struct {
	Tool   string         `json:"tool" binding:"required"`
	Params map[string]any `json:"params"`
}

// ExecuteTool 以 agent 的身份执行一个工具并返回结果值。
func (h *Handler) ExecuteTool(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req ToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	result, err := h.manager.ExecuteTool(c.Request.Context(), id, req.Tool, req.Params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "tool": req.Tool, "result": result})
}
