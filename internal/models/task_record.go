package models

import (
	"time"
)

// TaskStatus 定义了后台任务的几种可能状态
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusStarted TaskStatus = "started"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailure TaskStatus = "failure"
	TaskStatusRevoked TaskStatus = "revoked"
)

// TaskKind 定义了后台任务的类型。
type TaskKind string

const (
	TaskKindChatMessage   TaskKind = "chat_message"   // 群聊消息的后台处理
	TaskKindCodeExecution TaskKind = "code_execution" // 代码执行
)

// TaskRecord 代表一个持久化的后台任务记录
type TaskRecord struct {
	ID          string         `bson:"_id" json:"id"`                              // 任务唯一ID (UUID 字符串)
	Kind        TaskKind       `bson:"kind" json:"kind"`                           // 任务类型
	Status      TaskStatus     `bson:"status" json:"status"`                       // 任务当前状态
	Payload     map[string]any `bson:"payload" json:"payload,omitempty"`           // 任务的输入参数
	Result      any            `bson:"result,omitempty" json:"result,omitempty"`   // 任务成功后的输出结果
	Error       string         `bson:"error,omitempty" json:"error,omitempty"`     // 任务失败时的错误信息
	SubmittedAt time.Time      `bson:"submitted_at" json:"submitted_at"`           // 任务提交时间
	CompletedAt time.Time      `bson:"completed_at,omitempty" json:"completed_at"` // 任务完成时间
}
