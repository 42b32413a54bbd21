package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AgentStatus 定义了 Agent 配置实体的生命周期状态。
type AgentStatus string

const (
	AgentStatusInactive AgentStatus = "inactive" // 已创建但未激活
	AgentStatusActive   AgentStatus = "active"   // 存在运行时句柄，可处理消息
	AgentStatusError    AgentStatus = "error"    // 最近一次激活失败
)

// ModelConfig 是 Agent 的模型配置，存放于 model_config JSON 列中。
// Provider 与 ModelName 为必填项，激活前由 ModelManager 校验。
type ModelConfig struct {
	Provider    string   `json:"provider"`              // 提供商名称，引用 model_providers.name
	ModelName   string   `json:"model_name"`            // 模型标识
	Temperature *float32 `json:"temperature,omitempty"` // 采样温度
	MaxTokens   int      `json:"max_tokens,omitempty"`  // 生成内容长度上限
}

// Agent 代表系统中的一个可配置 AI 角色。
type Agent struct {
	gorm.Model

	Name         string         `gorm:"index;not null;size:100" json:"name"`
	Role         string         `gorm:"not null;size:100" json:"role"`
	Description  string         `gorm:"size:500" json:"description"`
	SystemPrompt string         `gorm:"type:text" json:"system_prompt"`
	ModelConfig  datatypes.JSON `gorm:"not null" json:"model_config"` // 序列化的 ModelConfig
	Status       AgentStatus    `gorm:"type:varchar(20);default:'inactive';not null" json:"status"`
	LastActive   *time.Time     `json:"last_active"`
	Meta         datatypes.JSON `gorm:"column:metadata" json:"metadata"` // 自由格式元数据

	// 多对多：Agent 可用的工具，连接表携带每个 (agent, tool) 的配置覆盖。
	Tools []*Tool `gorm:"many2many:agent_tools;" json:"tools,omitempty"`
}

func (Agent) TableName() string {
	return "agents"
}

// ParseModelConfig 反序列化 model_config 列。
func (a *Agent) ParseModelConfig() (*ModelConfig, error) {
	var mc ModelConfig
	if err := json.Unmarshal(a.ModelConfig, &mc); err != nil {
		return nil, err
	}
	return &mc, nil
}

// CanUseTool 检查该 Agent 是否被授权使用指定名称的工具。
func (a *Agent) CanUseTool(toolName string) bool {
	for _, t := range a.Tools {
		if t.Name == toolName {
			return true
		}
	}
	return false
}

// AgentTool 是 agents 与 tools 的连接表，携带每对 (agent, tool) 的配置覆盖。
// 执行工具时该覆盖会合并在工具 default_config 之上。
type AgentTool struct {
	AgentID uint           `gorm:"primaryKey"`
	ToolID  uint           `gorm:"primaryKey"`
	Config  datatypes.JSON `gorm:"not null;default:'{}'"`
}

func (AgentTool) TableName() string {
	return "agent_tools"
}
