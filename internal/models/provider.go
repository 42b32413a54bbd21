package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ModelProvider 代表一个已注册的 LLM 服务提供商。
// Agent 的 model_config 通过 provider 名称引用这里的记录；
// 凭证缺失或 is_active=false 的提供商会在 agent 激活阶段被拒绝，
// 而不是等到消息处理时才暴露。
type ModelProvider struct {
	gorm.Model

	Name            string         `gorm:"unique;not null;size:100" json:"name"` // 提供商标识，例如 "openai", "anthropic", "gemini", "groq", "ollama"
	APIKey          string         `gorm:"size:512" json:"-"`                    // API 密钥，json 中忽略
	BaseURL         string         `gorm:"size:512" json:"base_url"`             // 基准 URL，为空时使用提供商默认地址
	IsActive        bool           `gorm:"default:true" json:"is_active"`        // 是否可用
	SupportedModels datatypes.JSON `json:"supported_models"`                     // 支持的模型标识列表 (JSON 数组)
	Config          datatypes.JSON `json:"config"`                               // 提供商级别的附加配置
}

func (ModelProvider) TableName() string {
	return "model_providers"
}
