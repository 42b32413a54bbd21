package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
	ListenAddr  string `yaml:"listenAddr"`  // HTTP 服务监听地址 (例如: ":8080")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// AuthConfig 用于配置 API 认证。
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`   // 是否启用 JWT 认证
	JwtSecret string `yaml:"jwtSecret"` // JWT 密钥
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address    string `yaml:"address"`    // MongoDB 服务器地址
	Username   string `yaml:"username"`   // 用户名
	Password   string `yaml:"password"`   // 密码
	Database   string `yaml:"database"`   // 数据库名称
	Collection string `yaml:"collection"` // 任务记录集合名称
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`     // Kafka Broker 地址列表
	TaskTopic   string   `yaml:"taskTopic"`   // 后台任务主题
	ResultTopic string   `yaml:"resultTopic"` // 任务结果主题
	GroupID     string   `yaml:"groupID"`     // 消费者组 ID
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	MySQL   MySQLConfig `yaml:"mysql"`   // MySQL 数据库配置
	Redis   RedisConfig `yaml:"redis"`   // Redis 数据库配置
	MongoDB MongoConfig `yaml:"mongodb"` // MongoDB 数据库配置
	Kafka   KafkaConfig `yaml:"kafka"`   // Kafka 消息队列配置
}

// LLMConfig 包含了模型生成调用的全局约束。
// 各提供商的凭证与模型列表存放在数据库的 model_providers 表中，
// 这里只配置与提供商无关的运行时参数。
type LLMConfig struct {
	GenerateTimeout int `yaml:"generateTimeout"` // 单次生成调用超时（秒），防止慢提供商拖垮整批 fan-out
	HistoryLimit    int `yaml:"historyLimit"`    // Agent 运行时保留的对话历史条数上限
}

// ToolsConfig 定义了内置工具的运行环境。
type ToolsConfig struct {
	WorkspaceRoot    string   `yaml:"workspaceRoot"`    // 文件系统/代码执行工具的根目录，所有路径都被限制在该目录内
	ExecTimeout      int      `yaml:"execTimeout"`      // 代码执行超时（秒）
	AllowedLanguages []string `yaml:"allowedLanguages"` // 允许执行的语言列表 (例如: "python", "go", "node")
	BrowserRemoteURL string   `yaml:"browserRemoteURL"` // 远程 Chrome 的 CDP 地址，为空时本地启动
	BrowserHeadless  bool     `yaml:"browserHeadless"`  // 本地启动 Chrome 时是否无头
}

// ChatConfig 定义了群聊编排的默认参数。
type ChatConfig struct {
	MaxIterations int `yaml:"maxIterations"` // 单次消息处理中 agent 回合数上限的默认值
}

// RateLimiterConfig 定义了提供商调用限流的配置。
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`  // 是否启用
	Rate     float64 `yaml:"rate"`     // 每秒生成的令牌数
	Capacity int     `yaml:"capacity"` // 令牌桶容量（突发上限）
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter RateLimiterConfig `yaml:"rateLimiter"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`        // 应用程序信息
	Auth       AuthConfig       `yaml:"auth"`       // 认证配置
	Logger     LoggerConfig     `yaml:"logger"`     // 日志记录器配置
	LLM        LLMConfig        `yaml:"llm"`        // 模型调用配置
	Tools      ToolsConfig      `yaml:"tools"`      // 工具配置
	Chat       ChatConfig       `yaml:"chat"`       // 群聊配置
	Databases  DatabaseConfigs  `yaml:"databases"`  // 数据库配置
	Middleware MiddlewareConfig `yaml:"middleware"` // 中间件配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取或解析失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	// 读取 YAML 文件内容。
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig
	// 将 YAML 内容解析到 cfg 结构体中。
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults 为未配置的字段填充合理的默认值。
func (c *AppConfig) applyDefaults() {
	if c.App.ListenAddr == "" {
		c.App.ListenAddr = ":8080"
	}
	if c.LLM.GenerateTimeout <= 0 {
		c.LLM.GenerateTimeout = 60
	}
	if c.LLM.HistoryLimit <= 0 {
		c.LLM.HistoryLimit = 40
	}
	if c.Tools.ExecTimeout <= 0 {
		c.Tools.ExecTimeout = 30
	}
	if c.Chat.MaxIterations <= 0 {
		c.Chat.MaxIterations = 10
	}
}
