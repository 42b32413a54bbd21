package store

import (
	"context"
	"errors"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"gorm.io/gorm"
)

// --- Tool Management ---

// CreateTool 在数据库中创建一个新的工具配置实体。
func (s *Store) CreateTool(ctx context.Context, tool *models.Tool) error {
	if err := s.DB.WithContext(ctx).Create(tool).Error; err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to create tool", err)
	}
	return nil
}

// GetTool 通过 ID 查找工具。
func (s *Store) GetTool(ctx context.Context, id uint) (*models.Tool, error) {
	var tool models.Tool
	if err := s.DB.WithContext(ctx).First(&tool, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "tool %d not found", id)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load tool", err)
	}
	return &tool, nil
}

// GetToolByName 通过名称查找工具。
func (s *Store) GetToolByName(ctx context.Context, name string) (*models.Tool, error) {
	var tool models.Tool
	if err := s.DB.WithContext(ctx).Where("name = ?", name).First(&tool).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "tool %s not found", name)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load tool", err)
	}
	return &tool, nil
}

// ListTools 返回全部工具配置实体。
func (s *Store) ListTools(ctx context.Context) ([]models.Tool, error) {
	var tools []models.Tool
	if err := s.DB.WithContext(ctx).Order("name").Find(&tools).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list tools", err)
	}
	return tools, nil
}

// UpdateTool 保存工具记录的全部字段。
func (s *Store) UpdateTool(ctx context.Context, tool *models.Tool) error {
	if err := s.DB.WithContext(ctx).Save(tool).Error; err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to update tool", err)
	}
	return nil
}

// DeleteTool 删除工具记录及其所有授权关联。系统内建工具不可删除。
func (s *Store) DeleteTool(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tool models.Tool
		if err := tx.First(&tool, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Newf(apperr.KindNotFound, "tool %d not found", id)
			}
			return apperr.Wrap(apperr.KindInternal, "failed to load tool", err)
		}
		if tool.IsSystem {
			return apperr.Newf(apperr.KindStateConflict, "tool %s is a system tool and cannot be deleted", tool.Name)
		}
		if err := tx.Where("tool_id = ?", id).Delete(&models.AgentTool{}).Error; err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to delete tool assignments", err)
		}
		if err := tx.Delete(&tool).Error; err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to delete tool", err)
		}
		return nil
	})
}
