package store

import (
	"context"
	"errors"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"gorm.io/gorm"
)

// --- Provider Management ---

// CreateProvider 在数据库中创建一个新的提供商记录。
func (s *Store) CreateProvider(ctx context.Context, provider *models.ModelProvider) error {
	if err := s.DB.WithContext(ctx).Create(provider).Error; err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to create provider", err)
	}
	return nil
}

// GetProvider 通过 ID 查找提供商。
func (s *Store) GetProvider(ctx context.Context, id uint) (*models.ModelProvider, error) {
	var provider models.ModelProvider
	if err := s.DB.WithContext(ctx).First(&provider, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "provider %d not found", id)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load provider", err)
	}
	return &provider, nil
}

// GetByName 通过名称查找提供商。实现 llm.ProviderStore。
func (s *Store) GetByName(ctx context.Context, name string) (*models.ModelProvider, error) {
	var provider models.ModelProvider
	if err := s.DB.WithContext(ctx).Where("name = ?", name).First(&provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "provider %s not found", name)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load provider", err)
	}
	return &provider, nil
}

// ListProviders 返回全部提供商记录。
func (s *Store) ListProviders(ctx context.Context) ([]models.ModelProvider, error) {
	var providers []models.ModelProvider
	if err := s.DB.WithContext(ctx).Order("name").Find(&providers).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list providers", err)
	}
	return providers, nil
}

// UpdateProvider 保存提供商记录的全部字段。
func (s *Store) UpdateProvider(ctx context.Context, provider *models.ModelProvider) error {
	if err := s.DB.WithContext(ctx).Save(provider).Error; err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to update provider", err)
	}
	return nil
}

// DeleteProvider 删除提供商记录。
func (s *Store) DeleteProvider(ctx context.Context, id uint) error {
	result := s.DB.WithContext(ctx).Delete(&models.ModelProvider{}, id)
	if result.Error != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete provider", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Newf(apperr.KindNotFound, "provider %d not found", id)
	}
	return nil
}
