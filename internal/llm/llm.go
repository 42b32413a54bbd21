package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
type LLM interface {
	GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error)
}

// ClientConfig 是构造一个 LLM 客户端所需的全部信息：
// 提供商记录中的凭证与地址，加上 agent 模型配置中的模型与采样参数。
type ClientConfig struct {
	Provider    string   // 提供商名称
	ModelName   string   // 模型标识
	APIKey      string   // API 密钥
	BaseURL     string   // 基准 URL，为空时使用提供商默认地址
	Temperature *float32 // 采样温度
	MaxTokens   int      // 生成内容长度上限
}

// Builder 根据配置构造一个 LLM 客户端。
type Builder func(ctx context.Context, cfg ClientConfig) (LLM, error)

var (
	buildersMu sync.RWMutex
	builders   = make(map[string]Builder)
)

// Register 将一个提供商变体注册到查找表中。
// 新增提供商只需在其文件的 init 中调用 Register，无需修改任何分发逻辑。
func Register(provider string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[provider] = b
}

// Supported 报告指定提供商是否有已注册的客户端实现。
func Supported(provider string) bool {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	_, ok := builders[provider]
	return ok
}

// Providers 返回所有已注册提供商的名称，按字典序排列。
func Providers() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
func NewClient(ctx context.Context, cfg ClientConfig) (LLM, error) {
	buildersMu.RLock()
	b, ok := builders[cfg.Provider]
	buildersMu.RUnlock()
	if !ok {
		return nil, apperr.Newf(apperr.KindValidation, "unsupported LLM provider: %s", cfg.Provider)
	}
	if cfg.ModelName == "" {
		return nil, apperr.Newf(apperr.KindValidation, "no model configured for provider %s", cfg.Provider)
	}
	return b(ctx, cfg)
}

// generationError 将提供商后端的任意失败（网络、认证、限流、响应异常）
// 统一包装为 generation 类错误，原始错误保留在包装链中，
// 提供商专有的异常形态不会越过本包边界。
func generationError(provider string, err error) error {
	return apperr.Wrap(apperr.KindGeneration, fmt.Sprintf("provider %s failed to generate content", provider), err)
}
