package store

import (
	"context"
	"fmt"
	"time"

	"Symposium/internal/models"
	"github.com/go-redis/redis/v8"
)

const (
	statusKeyPrefix = "task:status:"
	revokeKeyPrefix = "task:revoked:"
	statusTTL       = 24 * time.Hour
)

// StatusCache 在 Redis 中缓存任务状态，供状态轮询走快路径，
// 同时存放撤销标记供 worker 在执行前检查。
type StatusCache struct {
	rdb *redis.Client
}

// NewStatusCache 创建一个新的 StatusCache。
func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb}
}

// SetStatus 写入任务状态缓存。缓存失败不影响主流程，调用方可忽略错误。
func (c *StatusCache) SetStatus(ctx context.Context, taskID string, status models.TaskStatus) error {
	return c.rdb.Set(ctx, statusKeyPrefix+taskID, string(status), statusTTL).Err()
}

// GetStatus 读取任务状态缓存。缓存未命中时返回空字符串。
func (c *StatusCache) GetStatus(ctx context.Context, taskID string) (models.TaskStatus, error) {
	val, err := c.rdb.Get(ctx, statusKeyPrefix+taskID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取任务状态缓存失败: %w", err)
	}
	return models.TaskStatus(val), nil
}

// MarkRevoked 写入撤销标记。worker 在开始执行前检查该标记。
func (c *StatusCache) MarkRevoked(ctx context.Context, taskID string) error {
	return c.rdb.Set(ctx, revokeKeyPrefix+taskID, "1", statusTTL).Err()
}

// IsRevoked 检查任务是否已被撤销。
func (c *StatusCache) IsRevoked(ctx context.Context, taskID string) (bool, error) {
	val, err := c.rdb.Exists(ctx, revokeKeyPrefix+taskID).Result()
	if err != nil {
		return false, fmt.Errorf("读取任务撤销标记失败: %w", err)
	}
	return val > 0, nil
}
