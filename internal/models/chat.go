package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionStatus 定义了群聊会话的生命周期状态。
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"    // 会话进行中，可追加消息
	SessionCompleted SessionStatus = "completed" // 会话已结束，禁止任何追加与 agent 调用
)

// MessageType 定义了聊天消息的作者类型。
type MessageType string

const (
	MessageTypeUser   MessageType = "user"   // 人类用户发送
	MessageTypeAgent  MessageType = "agent"  // 某个 Agent 生成
	MessageTypeSystem MessageType = "system" // 系统事件（会话创建、结束等）
)

// ChatSession 代表一个群聊会话。
// 参与者集合与配置在创建时固定；status 流转只有 active → completed 一条路径。
type ChatSession struct {
	gorm.Model

	Name        string         `gorm:"index;size:100" json:"name"`
	Description string         `gorm:"size:500" json:"description"`
	Status      SessionStatus  `gorm:"type:varchar(20);default:'active';not null" json:"status"`
	Config      datatypes.JSON `json:"config"` // 自由格式配置，含 max_iterations 等轮次策略
	CompletedAt *time.Time     `json:"completed_at"`

	Participants []*Agent       `gorm:"many2many:chat_participants;" json:"participants,omitempty"`
	Messages     []*ChatMessage `gorm:"foreignKey:SessionID" json:"-"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 代表会话中的一条消息。
// AgentID 为空表示由人类用户发送。会话内按 CreatedAt 全序排列。
type ChatMessage struct {
	gorm.Model

	SessionID uint           `gorm:"index;not null" json:"session_id"`
	AgentID   *uint          `gorm:"index" json:"agent_id,omitempty"`
	Content   string         `gorm:"type:text" json:"content"`
	Type      MessageType    `gorm:"column:message_type;type:varchar(20);not null" json:"message_type"`
	Meta      datatypes.JSON `gorm:"column:metadata" json:"metadata"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
