package store

import (
	"context"
	"errors"
	"time"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// --- Agent Management ---

// CreateAgent 在数据库中创建一个新的 agent 记录。
func (s *Store) CreateAgent(ctx context.Context, agent *models.Agent) error {
	if err := s.DB.WithContext(ctx).Create(agent).Error; err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to create agent", err)
	}
	return nil
}

// GetAgent 通过 ID 查找 agent，预加载其授权工具。
func (s *Store) GetAgent(ctx context.Context, id uint) (*models.Agent, error) {
	var agent models.Agent
	if err := s.DB.WithContext(ctx).Preload("Tools").First(&agent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "agent %d not found", id)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load agent", err)
	}
	return &agent, nil
}

// ListAgents 返回全部 agent 记录，预加载授权工具。
func (s *Store) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	if err := s.DB.WithContext(ctx).Preload("Tools").Order("id").Find(&agents).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list agents", err)
	}
	return agents, nil
}

// UpdateAgent 保存 agent 记录的全部字段。
func (s *Store) UpdateAgent(ctx context.Context, agent *models.Agent) error {
	if err := s.DB.WithContext(ctx).Save(agent).Error; err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to update agent", err)
	}
	return nil
}

// UpdateAgentStatus 更新 agent 的生命周期状态。
// 进入 active 状态时同时刷新 last_active。
func (s *Store) UpdateAgentStatus(ctx context.Context, id uint, status models.AgentStatus) error {
	updates := map[string]any{"status": status}
	if status == models.AgentStatusActive {
		now := time.Now()
		updates["last_active"] = &now
	}
	result := s.DB.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to update agent status", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Newf(apperr.KindNotFound, "agent %d not found", id)
	}
	return nil
}

// TouchAgent 刷新 agent 的 last_active 时间戳。
func (s *Store) TouchAgent(ctx context.Context, id uint) error {
	now := time.Now()
	return s.DB.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ?", id).Update("last_active", &now).Error
}

// DeleteAgent 删除 agent 记录及其工具关联。
func (s *Store) DeleteAgent(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("agent_id = ?", id).Delete(&models.AgentTool{}).Error; err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to delete tool assignments", err)
		}
		result := tx.Delete(&models.Agent{}, id)
		if result.Error != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to delete agent", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Newf(apperr.KindNotFound, "agent %d not found", id)
		}
		return nil
	})
}

// --- Tool Assignment ---

// AssignTool 授权 agent 使用指定工具，可携带配置覆盖。
// 重复授权会更新配置覆盖。
func (s *Store) AssignTool(ctx context.Context, agentID, toolID uint, config datatypes.JSON) error {
	if len(config) == 0 {
		config = datatypes.JSON([]byte("{}"))
	}
	assignment := models.AgentTool{AgentID: agentID, ToolID: toolID, Config: config}
	err := s.DB.WithContext(ctx).
		Where("agent_id = ? AND tool_id = ?", agentID, toolID).
		Assign(models.AgentTool{Config: config}).
		FirstOrCreate(&assignment).Error
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to assign tool", err)
	}
	return nil
}

// RevokeTool 撤销 agent 对指定工具的授权。
func (s *Store) RevokeTool(ctx context.Context, agentID, toolID uint) error {
	result := s.DB.WithContext(ctx).
		Where("agent_id = ? AND tool_id = ?", agentID, toolID).
		Delete(&models.AgentTool{})
	if result.Error != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to revoke tool", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Newf(apperr.KindNotFound, "agent %d has no assignment for tool %d", agentID, toolID)
	}
	return nil
}

// GetToolOverride 返回 (agent, tool) 的配置覆盖。
// 无覆盖时返回空 JSON 对象。
func (s *Store) GetToolOverride(ctx context.Context, agentID, toolID uint) (datatypes.JSON, error) {
	var assignment models.AgentTool
	err := s.DB.WithContext(ctx).
		Where("agent_id = ? AND tool_id = ?", agentID, toolID).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return datatypes.JSON([]byte("{}")), nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load tool override", err)
	}
	return assignment.Config, nil
}
