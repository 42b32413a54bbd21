package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Symposium/internal/config"
	"Symposium/pkg/logger"

	"github.com/go-redis/redis/v8"
)

var (
	client  *redis.Client
	once    sync.Once
	initErr error
)

// GetClient 初始化并返回进程级单例的 Redis 客户端。
// 首次调用建立连接并 Ping 验证，之后的调用直接复用同一实例。
func GetClient(cfg *config.RedisConfig) (*redis.Client, error) {
	once.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = fmt.Errorf("无法连接到 Redis: %w", err)
			return
		}

		logger.New("database", "").Info("Redis connected: " + cfg.Address)
		client = rdb
	})

	return client, initErr
}

// Close 关闭单例连接。未初始化时为空操作。
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// HealthCheck 通过 Ping 检查连接是否仍然可用。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("Redis 客户端未初始化")
	}
	return client.Ping(ctx).Err()
}
