package service

import (
	"context"

	"Symposium/internal/llm"
	"Symposium/internal/models"
	"Symposium/internal/tools"
	"Symposium/pkg/apperr"
	"gorm.io/datatypes"
)

// Catalog 管理提供商与工具的配置实体。
// 工具的可用性不入库，列出时由注册表实时计算。
type Catalog struct {
	store    catalogStore
	registry *tools.Registry
}

// catalogStore 是 Catalog 依赖的存储操作子集。
type catalogStore interface {
	CreateProvider(ctx context.Context, provider *models.ModelProvider) error
	GetProvider(ctx context.Context, id uint) (*models.ModelProvider, error)
	ListProviders(ctx context.Context) ([]models.ModelProvider, error)
	UpdateProvider(ctx context.Context, provider *models.ModelProvider) error
	DeleteProvider(ctx context.Context, id uint) error

	CreateTool(ctx context.Context, tool *models.Tool) error
	GetTool(ctx context.Context, id uint) (*models.Tool, error)
	ListTools(ctx context.Context) ([]models.Tool, error)
	UpdateTool(ctx context.Context, tool *models.Tool) error
	DeleteTool(ctx context.Context, id uint) error

	GetAgent(ctx context.Context, id uint) (*models.Agent, error)
	AssignTool(ctx context.Context, agentID, toolID uint, config datatypes.JSON) error
	RevokeTool(ctx context.Context, agentID, toolID uint) error
}

// NewCatalog 创建提供商与工具目录服务。
func NewCatalog(store catalogStore, registry *tools.Registry) *Catalog {
	return &Catalog{store: store, registry: registry}
}

// --- Providers ---

// CreateProvider 注册一个新的提供商记录。
// 名称必须对应一个已注册的客户端实现。
func (c *Catalog) CreateProvider(ctx context.Context, provider *models.ModelProvider) error {
	if provider.Name == "" {
		return apperr.New(apperr.KindValidation, "provider name is required")
	}
	if !llm.Supported(provider.Name) {
		return apperr.Newf(apperr.KindValidation,
			"provider %s has no client implementation (supported: %v)", provider.Name, llm.Providers())
	}
	return c.store.CreateProvider(ctx, provider)
}

// GetProvider 返回指定提供商记录。
func (c *Catalog) GetProvider(ctx context.Context, id uint) (*models.ModelProvider, error) {
	return c.store.GetProvider(ctx, id)
}

// ListProviders 返回全部提供商记录。
func (c *Catalog) ListProviders(ctx context.Context) ([]models.ModelProvider, error) {
	return c.store.ListProviders(ctx)
}

// UpdateProvider 保存提供商记录。
func (c *Catalog) UpdateProvider(ctx context.Context, provider *models.ModelProvider) error {
	if !llm.Supported(provider.Name) {
		return apperr.Newf(apperr.KindValidation,
			"provider %s has no client implementation (supported: %v)", provider.Name, llm.Providers())
	}
	return c.store.UpdateProvider(ctx, provider)
}

// DeleteProvider 删除提供商记录。
func (c *Catalog) DeleteProvider(ctx context.Context, id uint) error {
	return c.store.DeleteProvider(ctx, id)
}

// --- Tools ---

// ToolView 是工具配置实体加上实时计算的可用性。
type ToolView struct {
	models.Tool
	IsAvailable bool `json:"is_available"`
}

// CreateTool 创建一个新的工具配置实体。
// tool_type 无需此刻就有实现，可用性在列出时计算。
func (c *Catalog) CreateTool(ctx context.Context, tool *models.Tool) error {
	if tool.Name == "" {
		return apperr.New(apperr.KindValidation, "tool name is required")
	}
	if tool.ToolType == "" {
		return apperr.New(apperr.KindValidation, "tool type is required")
	}
	return c.store.CreateTool(ctx, tool)
}

// GetTool 返回指定工具及其可用性。
func (c *Catalog) GetTool(ctx context.Context, id uint) (*ToolView, error) {
	tool, err := c.store.GetTool(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ToolView{Tool: *tool, IsAvailable: c.registry.Available(tool.ToolType)}, nil
}

// ListTools 返回全部工具及其可用性。
func (c *Catalog) ListTools(ctx context.Context) ([]ToolView, error) {
	records, err := c.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ToolView, 0, len(records))
	for _, record := range records {
		views = append(views, ToolView{
			Tool:        record,
			IsAvailable: c.registry.Available(record.ToolType),
		})
	}
	return views, nil
}

// UpdateTool 保存工具记录。
func (c *Catalog) UpdateTool(ctx context.Context, tool *models.Tool) error {
	return c.store.UpdateTool(ctx, tool)
}

// DeleteTool 删除工具记录。
func (c *Catalog) DeleteTool(ctx context.Context, id uint) error {
	return c.store.DeleteTool(ctx, id)
}

// --- Assignment ---

// AssignTool 授权 agent 使用工具，可携带配置覆盖。
func (c *Catalog) AssignTool(ctx context.Context, agentID, toolID uint, config datatypes.JSON) error {
	if _, err := c.store.GetAgent(ctx, agentID); err != nil {
		return err
	}
	if _, err := c.store.GetTool(ctx, toolID); err != nil {
		return err
	}
	return c.store.AssignTool(ctx, agentID, toolID, config)
}

// RevokeTool 撤销 agent 对工具的授权。
func (c *Catalog) RevokeTool(ctx context.Context, agentID, toolID uint) error {
	return c.store.RevokeTool(ctx, agentID, toolID)
}
