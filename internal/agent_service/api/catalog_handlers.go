package api

import (
	"encoding/json"
	"net/http"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// --- Provider Handlers ---

// ProviderRequest 定义了创建/更新提供商请求的 JSON 结构。
type ProviderRequest struct {
	Name            string         `json:"name" binding:"required"`
	APIKey          string         `json:"api_key"`
	BaseURL         string         `json:"base_url"`
	IsActive        *bool          `json:"is_active"`
	SupportedModels []string       `json:"supported_models"`
	Config          map[string]any `json:"config"`
}

func (r *ProviderRequest) toModel() (*models.ModelProvider, error) {
	provider := &models.ModelProvider{
		Name:     r.Name,
		APIKey:   r.APIKey,
		BaseURL:  r.BaseURL,
		IsActive: true,
	}
	if r.IsActive != nil {
		provider.IsActive = *r.IsActive
	}
	if r.SupportedModels != nil {
		data, err := json.Marshal(r.SupportedModels)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed supported_models", err)
		}
		provider.SupportedModels = datatypes.JSON(data)
	}
	if r.Config != nil {
		data, err := json.Marshal(r.Config)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed config", err)
		}
		provider.Config = datatypes.JSON(data)
	}
	return provider, nil
}

// CreateProvider 处理注册提供商的请求。
func (h *Handler) CreateProvider(c *gin.Context) {
	var req ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	provider, err := req.toModel()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.catalog.CreateProvider(c.Request.Context(), provider); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, provider)
}

// ListProviders 返回全部提供商。
func (h *Handler) ListProviders(c *gin.Context) {
	providers, err := h.catalog.ListProviders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

// UpdateProvider 处理更新提供商的请求。
func (h *Handler) UpdateProvider(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	existing, err := h.catalog.GetProvider(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	var req ProviderRequest
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
	if updated.APIKey == "" {
		updated.APIKey = existing.APIKey // 空密钥表示保留原值
	}

	if err := h.catalog.UpdateProvider(c.Request.Context(), updated); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteProvider 删除提供商。
func (h *Handler) DeleteProvider(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := h.catalog.DeleteProvider(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// --- Tool Handlers ---

// ToolRequest 定义了创建/更新工具请求的 JSON 结构。
type ToolRequest struct {
	Name          string         `json:"name" binding:"required"`
	Description   string         `json:"description"`
	ToolType      string         `json:"tool_type" binding:"required"`
	ConfigSchema  map[string]any `json:"config_schema"`
	DefaultConfig map[string]any `json:"default_config"`
	IsSystem      bool           `json:"is_system"`
}

func (r *ToolRequest) toModel() (*models.Tool, error) {
	tool := &models.Tool{
		Name:        r.Name,
		Description: r.Description,
		ToolType:    r.ToolType,
		IsSystem:    r.IsSystem,
	}
	if r.ConfigSchema != nil {
		data, err := json.Marshal(r.ConfigSchema)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed config_schema", err)
		}
		tool.ConfigSchema = datatypes.JSON(data)
	}
	if r.DefaultConfig != nil {
		data, err := json.Marshal(r.DefaultConfig)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed default_config", err)
		}
		tool.DefaultConfig = datatypes.JSON(data)
	}
	return tool, nil
}

// CreateTool 处理创建工具的请求。
func (h *Handler) CreateTool(c *gin.Context) {
	var req ToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}
	tool, err := req.toModel()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.catalog.CreateTool(c.Request.Context(), tool); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tool)
}

// GetTool 返回单个工具及其可用性。
func (h *Handler) GetTool(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	view, err := h.catalog.GetTool(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListTools 返回全部工具及其可用性。
func (h *Handler) ListTools(c *gin.Context) {
	views, err := h.catalog.ListTools(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": views})
}

// UpdateTool 处理更新工具的请求。
func (h *Handler) UpdateTool(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	existing, err := h.catalog.GetTool(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	var req ToolRequest
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

	if err := h.catalog.UpdateTool(c.Request.Context(), updated); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteTool 删除工具。
func (h *Handler) DeleteTool(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := h.catalog.DeleteTool(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// AssignToolRequest 定义了工具授权请求的 JSON 结构。
type AssignToolRequest struct {
	ToolID uint           `json:"tool_id" binding:"required"`
	Config map[string]any `json:"config"`
}

// AssignTool 授权 agent 使用工具。
func (h *Handler) AssignTool(c *gin.Context) {
	agentID, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req AssignToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	var config datatypes.JSON
	if req.Config != nil {
		data, err := json.Marshal(req.Config)
		if err != nil {
			respondError(c, apperr.Wrap(apperr.KindValidation, "malformed config", err))
			return
		}
		config = datatypes.JSON(data)
	}

	if err := h.catalog.AssignTool(c.Request.Context(), agentID, req.ToolID, config); err != nil {
		respondError(c, err)
		return
	}
	if err := h.manager.RefreshAgentTools(c.Request.Context(), agentID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "tool_id": req.ToolID})
}

// RevokeTool 撤销 agent 对工具的授权。
func (h *Handler) RevokeTool(c *gin.Context) {
	agentID, valid := parseID(c, "id")
	if !valid {
		return
	}
	toolID, valid := parseID(c, "tool_id")
	if !valid {
		return
	}
	if err := h.catalog.RevokeTool(c.Request.Context(), agentID, toolID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.manager.RefreshAgentTools(c.Request.Context(), agentID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "tool_id": toolID})
}
