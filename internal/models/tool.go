package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tool 代表一个可供 Agent 调用的工具配置实体。
// tool_type 选择运行时实现；是否可用 (is_available) 不入库，
// 由工具注册表查询得出（tool_type 是否有已注册的构造函数）。
type Tool struct {
	gorm.Model

	Name          string         `gorm:"unique;not null;size:100" json:"name"`
	Description   string         `gorm:"size:500" json:"description"`
	ToolType      string         `gorm:"not null;size:50" json:"tool_type"`
	ConfigSchema  datatypes.JSON `gorm:"not null;default:'{\"type\":\"object\",\"properties\":{},\"required\":[]}'" json:"config_schema"` // 参数契约 (JSON Schema)
	DefaultConfig datatypes.JSON `gorm:"not null;default:'{}'" json:"default_config"`
	IsSystem      bool           `gorm:"not null;default:false" json:"is_system"`
	Meta          datatypes.JSON `gorm:"column:metadata" json:"metadata"`

	Agents []*Agent `gorm:"many2many:agent_tools;" json:"-"`
}

func (Tool) TableName() string {
	return "tools"
}
