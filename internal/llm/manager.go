package llm

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"Symposium/pkg/logger"
	"Symposium/pkg/ratelimiter"
)

// ProviderStore 提供按名称查找提供商记录的能力。
// 由 agent_service 的存储层实现。
type ProviderStore interface {
	GetByName(ctx context.Context, name string) (*models.ModelProvider, error)
}

// activeModel 是一个 agent 的运行时模型句柄。
type activeModel struct {
	provider  string
	modelName string
	client    LLM
}

// ModelManager 维护 agent id 到运行时模型句柄的映射。
// 句柄只有两种状态：存在（可生成）与不存在（不可生成），
// 激活与清理分别是两个方向的一次性迁移，重复执行是幂等的。
type ModelManager struct {
	mu     sync.RWMutex
	active map[uint]*activeModel

	providers  ProviderStore
	genTimeout time.Duration

	// 每个提供商一个令牌桶，平滑出站调用。
	limiterMu sync.Mutex
	limiters  map[string]*ratelimiter.TokenBucket

	log *logger.Logger
}

// NewModelManager 创建一个新的 ModelManager。
// generateTimeout 是单次生成调用的超时上限，小于等于零时不限制。
func NewModelManager(providers ProviderStore, generateTimeout time.Duration) *ModelManager {
	return &ModelManager{
		active:     make(map[uint]*activeModel),
		providers:  providers,
		genTimeout: generateTimeout,
		limiters:   make(map[string]*ratelimiter.TokenBucket),
		log:        logger.New("model_manager", ""),
	}
}

// ValidateConfig 校验一份模型配置是否可用于激活。
// 校验不产生任何副作用，不创建句柄，可以重复调用。
// 依次检查：必填字段、提供商实现是否注册、提供商记录是否存在且启用、
// 凭证是否就绪（本地 ollama 不需要密钥）、模型是否在提供商声明的列表内。
func (m *ModelManager) ValidateConfig(ctx context.Context, mc *models.ModelConfig) error {
	if mc == nil {
		return apperr.New(apperr.KindValidation, "model config is required")
	}
	if mc.Provider == "" {
		return apperr.New(apperr.KindValidation, "model config missing provider")
	}
	if mc.ModelName == "" {
		return apperr.New(apperr.KindValidation, "model config missing model name")
	}
	if !Supported(mc.Provider) {
		return apperr.Newf(apperr.KindValidation, "unsupported LLM provider: %s", mc.Provider)
	}

	record, err := m.providers.GetByName(ctx, mc.Provider)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.Newf(apperr.KindValidation, "provider %s is not registered", mc.Provider)
		}
		return err
	}
	if !record.IsActive {
		return apperr.Newf(apperr.KindValidation, "provider %s is disabled", mc.Provider)
	}
	if record.APIKey == "" && mc.Provider != "ollama" {
		return apperr.Newf(apperr.KindValidation, "provider %s has no API key configured", mc.Provider)
	}

	// 提供商未声明模型列表时不限制模型选择。
	if len(record.SupportedModels) > 0 {
		var supported []string
		if err := json.Unmarshal(record.SupportedModels, &supported); err == nil && len(supported) > 0 {
			found := false
			for _, name := range supported {
				if name == mc.ModelName {
					found = true
					break
				}
			}
			if !found {
				return apperr.Newf(apperr.KindValidation, "model %s is not supported by provider %s", mc.ModelName, mc.Provider)
			}
		}
	}

	return nil
}

// InitializeModel 为指定 agent 创建运行时模型句柄。
// 已存在的句柄被整体替换，不存在部分初始化的中间状态。
func (m *ModelManager) InitializeModel(ctx context.Context, agentID uint, mc *models.ModelConfig) error {
	if err := m.ValidateConfig(ctx, mc); err != nil {
		return err
	}

	record, err := m.providers.GetByName(ctx, mc.Provider)
	if err != nil {
		return err
	}

	client, err := NewClient(ctx, ClientConfig{
		Provider:    mc.Provider,
		ModelName:   mc.ModelName,
		APIKey:      record.APIKey,
		BaseURL:     record.BaseURL,
		Temperature: mc.Temperature,
		MaxTokens:   mc.MaxTokens,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.active[agentID] = &activeModel{
		provider:  mc.Provider,
		modelName: mc.ModelName,
		client:    client,
	}
	m.mu.Unlock()

	m.log.WithPayload(map[string]interface{}{
		"agent_id": agentID,
		"provider": mc.Provider,
		"model":    mc.ModelName,
	}).Info("model initialized")
	return nil
}

// GenerateResponse 使用指定 agent 的运行时句柄生成一次响应。
// 句柄不存在时返回 not_found；提供商后端的失败以 generation 类错误返回。
func (m *ModelManager) GenerateResponse(ctx context.Context, agentID uint, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	m.mu.RLock()
	handle, ok := m.active[agentID]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "no active model for agent %d", agentID)
	}

	if m.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.genTimeout)
		defer cancel()
	}

	if err := m.waitForToken(ctx, handle.provider); err != nil {
		return nil, err
	}

	resp, err := handle.client.GenerateContent(ctx, req)
	if err != nil {
		m.log.WithPayload(map[string]interface{}{
			"agent_id": agentID,
			"provider": handle.provider,
			"model":    handle.modelName,
		}).Warn("generation failed: " + err.Error())
		return nil, err
	}
	return resp, nil
}

// CleanupModel 移除指定 agent 的运行时句柄。
// 句柄不存在时为空操作，重复清理是安全的。
func (m *ModelManager) CleanupModel(agentID uint) {
	m.mu.Lock()
	_, existed := m.active[agentID]
	delete(m.active, agentID)
	m.mu.Unlock()

	if existed {
		m.log.WithField("agent_id", agentID).Info("model cleaned up")
	}
}

// HasModel 报告指定 agent 是否存在运行时句柄。
func (m *ModelManager) HasModel(agentID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[agentID]
	return ok
}

// ActiveModels 返回当前持有句柄的 agent id 列表。
func (m *ModelManager) ActiveModels() []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}

// waitForToken 按提供商维度对出站调用限速。
// 桶空时小步等待直到拿到令牌或上下文取消。
func (m *ModelManager) waitForToken(ctx context.Context, provider string) error {
	m.limiterMu.Lock()
	bucket, ok := m.limiters[provider]
	if !ok {
		// 每个提供商默认每秒补充 5 个令牌，突发上限 10。
		bucket = ratelimiter.NewTokenBucket(5, 10)
		m.limiters[provider] = bucket
	}
	m.limiterMu.Unlock()

	for !bucket.Allow() {
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindGeneration, "generation canceled while waiting for rate limit", ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}
