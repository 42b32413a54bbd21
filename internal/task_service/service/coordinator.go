package service

import (
	"context"
	"time"

	"Symposium/internal/models"
	"Symposium/internal/task_service/store"
	"Symposium/pkg/apperr"
	"Symposium/pkg/logger"
	"github.com/google/uuid"
)

// TaskPublisher 定义了任务投递的接口。
type TaskPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// StatusCache 定义了任务状态缓存与撤销标记的接口，
// 由 store.StatusCache 基于 Redis 实现。
type StatusCache interface {
	SetStatus(ctx context.Context, taskID string, status models.TaskStatus) error
	GetStatus(ctx context.Context, taskID string) (models.TaskStatus, error)
	MarkRevoked(ctx context.Context, taskID string) error
	IsRevoked(ctx context.Context, taskID string) (bool, error)
}

var _ StatusCache = (*store.StatusCache)(nil)

// Coordinator 负责后台任务的提交、状态查询和撤销。
// 任务记录落 MongoDB，状态走 Redis 快路径，执行侧通过 Kafka 解耦。
type Coordinator struct {
	store     store.TaskStore
	cache     StatusCache
	publisher TaskPublisher
	logger    *logger.Logger
}

// NewCoordinator 创建一个新的 Coordinator。
func NewCoordinator(ts store.TaskStore, cache StatusCache, publisher TaskPublisher, log *logger.Logger) *Coordinator {
	return &Coordinator{
		store:     ts,
		cache:     cache,
		publisher: publisher,
		logger:    log,
	}
}

// SubmitChatMessage 提交一条群聊消息的后台处理任务。
func (c *Coordinator) SubmitChatMessage(ctx context.Context, sessionID uint, content string, senderID *uint, metadata map[string]any) (*models.TaskRecord, error) {
	if content == "" {
		return nil, apperr.New(apperr.KindValidation, "message content is required")
	}
	payload := map[string]any{
		"session_id": sessionID,
		"content":    content,
	}
	if senderID != nil {
		payload["sender_id"] = *senderID
	}
	if metadata != nil {
		payload["metadata"] = metadata
	}
	return c.submit(ctx, models.TaskKindChatMessage, payload)
}

// SubmitCodeExecution 提交一个代码执行任务，由指定 agent 的授权工具执行。
func (c *Coordinator) SubmitCodeExecution(ctx context.Context, agentID uint, language, code string) (*models.TaskRecord, error) {
	if code == "" {
		return nil, apperr.New(apperr.KindValidation, "code is required")
	}
	payload := map[string]any{
		"agent_id": agentID,
		"language": language,
		"code":     code,
	}
	return c.submit(ctx, models.TaskKindCodeExecution, payload)
}

func (c *Coordinator) submit(ctx context.Context, kind models.TaskKind, payload map[string]any) (*models.TaskRecord, error) {
	task := &models.TaskRecord{
		ID:          uuid.New().String(),
		Kind:        kind,
		Status:      models.TaskStatusPending,
		Payload:     payload,
		SubmittedAt: time.Now(),
	}

	if err := c.store.Create(ctx, task); err != nil {
		c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to create task in store")
		return nil, err
	}
	if err := c.cache.SetStatus(ctx, task.ID, task.Status); err != nil {
		c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to cache task status")
	}

	if err := c.publisher.Publish(ctx, task.ID, task); err != nil {
		c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to publish task to Kafka")
		_ = c.store.UpdateStatus(ctx, task.ID, models.TaskStatusFailure, nil, "failed to publish task")
		_ = c.cache.SetStatus(ctx, task.ID, models.TaskStatusFailure)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to publish task", err)
	}

	c.logger.WithPayload(map[string]interface{}{"taskID": task.ID, "kind": kind}).Info("task submitted")
	return task, nil
}

// Status 查询任务状态。优先走 Redis 缓存，未命中时回源 MongoDB。
func (c *Coordinator) Status(ctx context.Context, taskID string) (models.TaskStatus, error) {
	status, err := c.cache.GetStatus(ctx, taskID)
	if err == nil && status != "" {
		return status, nil
	}
	task, err := c.store.GetByID(ctx, taskID)
	if err != nil {
		return "", err
	}
	return task.Status, nil
}

// Get 返回完整的任务记录。
func (c *Coordinator) Get(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	return c.store.GetByID(ctx, taskID)
}

// List 分页返回任务记录。
func (c *Coordinator) List(ctx context.Context, kind models.TaskKind, page, limit int) ([]*models.TaskRecord, error) {
	return c.store.List(ctx, kind, page, limit)
}

// Revoke 撤销一个尚未结束的任务。撤销是尽力而为的：
// 已经开始执行的任务不会被中断，只有 worker 在取出任务时
// 检查到撤销标记才会跳过执行。
func (c *Coordinator) Revoke(ctx context.Context, taskID string) error {
	task, err := c.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	switch task.Status {
	case models.TaskStatusSuccess, models.TaskStatusFailure, models.TaskStatusRevoked:
		return apperr.Newf(apperr.KindStateConflict, "任务 %s 已结束，无法撤销", taskID)
	}

	if err := c.cache.MarkRevoked(ctx, taskID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "写入撤销标记失败", err)
	}
	if err := c.store.UpdateStatus(ctx, taskID, models.TaskStatusRevoked, nil, ""); err != nil {
		return err
	}
	_ = c.cache.SetStatus(ctx, taskID, models.TaskStatusRevoked)
	c.logger.WithPayload(map[string]interface{}{"taskID": taskID}).Info("task revoked")
	return nil
}
