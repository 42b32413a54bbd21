package service

import (
	"context"
	"encoding/json"
	"fmt"

	chat "Symposium/internal/chat_service/service"
	"Symposium/internal/models"
	"Symposium/internal/task_service/store"
	"Symposium/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// ChatRunner 定义了群聊消息任务所需的编排能力。
type ChatRunner interface {
	ProcessMessage(ctx context.Context, sessionID uint, content string, senderID *uint, metadata map[string]any) ([]chat.AgentTurn, error)
}

// ToolRunner 定义了代码执行任务所需的工具调用能力。
type ToolRunner interface {
	ExecuteTool(ctx context.Context, agentID uint, toolName string, params map[string]any) (any, error)
}

// Worker 执行从 Kafka 取出的后台任务，并把结果写回任务存储。
// results 为空时不发布任务结果消息。
type Worker struct {
	store   store.TaskStore
	cache   StatusCache
	chats   ChatRunner
	tools   ToolRunner
	results TaskPublisher
	logger  *logger.Logger
}

// NewWorker 创建一个新的 Worker。
func NewWorker(ts store.TaskStore, cache StatusCache, chats ChatRunner, tools ToolRunner, results TaskPublisher, log *logger.Logger) *Worker {
	return &Worker{
		store:   ts,
		cache:   cache,
		chats:   chats,
		tools:   tools,
		results: results,
		logger:  log,
	}
}

// HandleMessage 处理一条 Kafka 任务消息。返回 nil 表示消息可以提交；
// 任务本身的失败会记录在任务记录里，不会让消息重新投递。
func (w *Worker) HandleMessage(msg kafka.Message) error {
	var task models.TaskRecord
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		w.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to unmarshal task from Kafka")
		return err
	}

	ctx := context.Background()

	revoked, err := w.cache.IsRevoked(ctx, task.ID)
	if err != nil {
		w.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to check revoke marker, executing anyway")
	}
	if revoked {
		w.logger.WithPayload(map[string]interface{}{"taskID": task.ID}).Info("skipping revoked task")
		return nil
	}

	w.setStatus(ctx, task.ID, models.TaskStatusStarted, nil, "")

	result, execErr := w.execute(ctx, &task)
	if execErr != nil {
		w.logger.WithError(models.ErrorInfo{Message: execErr.Error()}).WithPayload(map[string]interface{}{"taskID": task.ID}).Error("task execution failed")
		w.setStatus(ctx, task.ID, models.TaskStatusFailure, nil, execErr.Error())
		w.publishResult(ctx, task.ID, models.TaskStatusFailure, nil, execErr.Error())
		return nil
	}

	w.setStatus(ctx, task.ID, models.TaskStatusSuccess, result, "")
	w.publishResult(ctx, task.ID, models.TaskStatusSuccess, result, "")
	w.logger.WithPayload(map[string]interface{}{"taskID": task.ID}).Info("task completed")
	return nil
}

// publishResult 把终态结果发布到结果主题，供下游订阅方消费。
func (w *Worker) publishResult(ctx context.Context, taskID string, status models.TaskStatus, result any, errMsg string) {
	if w.results == nil {
		return
	}
	payload := map[string]any{
		"task_id": taskID,
		"status":  status,
	}
	if result != nil {
		payload["result"] = result
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	if err := w.results.Publish(ctx, taskID, payload); err != nil {
		w.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"taskID": taskID}).Warn("Failed to publish task result")
	}
}

func (w *Worker) execute(ctx context.Context, task *models.TaskRecord) (any, error) {
	switch task.Kind {
	case models.TaskKindChatMessage:
		sessionID, ok := payloadUint(task.Payload, "session_id")
		if !ok {
			return nil, fmt.Errorf("任务缺少 session_id")
		}
		content, _ := task.Payload["content"].(string)
		var senderID *uint
		if id, ok := payloadUint(task.Payload, "sender_id"); ok {
			senderID = &id
		}
		metadata, _ := task.Payload["metadata"].(map[string]any)
		return w.chats.ProcessMessage(ctx, sessionID, content, senderID, metadata)

	case models.TaskKindCodeExecution:
		agentID, ok := payloadUint(task.Payload, "agent_id")
		if !ok {
			return nil, fmt.Errorf("任务缺少 agent_id")
		}
		params := map[string]any{
			"language": task.Payload["language"],
			"code":     task.Payload["code"],
		}
		return w.tools.ExecuteTool(ctx, agentID, "code_execution", params)

	default:
		return nil, fmt.Errorf("未知的任务类型: %s", task.Kind)
	}
}

func (w *Worker) setStatus(ctx context.Context, taskID string, status models.TaskStatus, result any, errMsg string) {
	if err := w.store.UpdateStatus(ctx, taskID, status, result, errMsg); err != nil {
		w.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"taskID": taskID}).Error("Failed to update task in store")
	}
	if err := w.cache.SetStatus(ctx, taskID, status); err != nil {
		w.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to cache task status")
	}
}

// payloadUint 从 JSON 反序列化后的 payload 中取出数字字段。
// JSON 数字默认解码为 float64。
func payloadUint(payload map[string]any, key string) (uint, bool) {
	switch v := payload[key].(type) {
	case float64:
		return uint(v), true
	case int:
		return uint(v), true
	case uint:
		return v, true
	default:
		return 0, false
	}
}
