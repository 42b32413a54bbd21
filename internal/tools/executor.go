package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"Symposium/pkg/logger"
	"github.com/kaptinlin/jsonschema"
)

// Executor 负责把工具配置实体变成一次实际的工具调用。
// 它合并默认配置与每个 (agent, tool) 的覆盖配置，
// 按工具声明的 JSON Schema 校验调用参数，然后委托给运行时实现。
// 执行中的业务失败体现为 Result，而不是 error。
type Executor struct {
	registry *Registry
	opts     Options
	log      *logger.Logger

	// 构造开销大的工具实例（浏览器等）按配置指纹缓存复用。
	mu        sync.Mutex
	instances map[string]Tool
}

// NewExecutor 创建一个工具执行器。
func NewExecutor(registry *Registry, opts Options) *Executor {
	return &Executor{
		registry:  registry,
		opts:      opts,
		log:       logger.New("tool_executor", ""),
		instances: make(map[string]Tool),
	}
}

// Execute 执行一次工具调用。
// override 是该 (agent, tool) 的配置覆盖，合并在工具默认配置之上；
// params 按工具的 config_schema 校验，不合法时返回 validation 类错误。
func (e *Executor) Execute(ctx context.Context, tool *models.Tool, override []byte, params map[string]any) (*Result, error) {
	if !e.registry.Available(tool.ToolType) {
		return nil, apperr.Newf(apperr.KindTool, "tool type %s has no registered implementation", tool.ToolType)
	}

	if err := e.validateParams(tool, params); err != nil {
		return nil, err
	}

	config, err := mergeConfig(tool.DefaultConfig, override)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTool, fmt.Sprintf("tool %s has malformed config", tool.Name), err)
	}

	instance, err := e.instance(tool.ToolType, config)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTool, fmt.Sprintf("failed to construct tool %s", tool.Name), err)
	}

	start := time.Now()
	result := instance.Execute(ctx, params)
	result.ElapsedMS = time.Since(start).Milliseconds()

	if !result.Success {
		e.log.WithPayload(map[string]interface{}{
			"tool":  tool.Name,
			"type":  tool.ToolType,
			"error": result.Error,
		}).Warn("tool execution failed")
	}
	return result, nil
}

// Close 释放所有缓存的工具实例持有的资源。
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for key, instance := range e.instances {
		if closer, isCloser := instance.(Closer); isCloser {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(e.instances, key)
	}
	return firstErr
}

// validateParams 按工具声明的 JSON Schema 校验调用参数。
func (e *Executor) validateParams(tool *models.Tool, params map[string]any) error {
	if len(tool.ConfigSchema) == 0 {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(tool.ConfigSchema))
	if err != nil {
		return apperr.Wrap(apperr.KindTool, fmt.Sprintf("tool %s has invalid schema", tool.Name), err)
	}
	if params == nil {
		params = map[string]any{}
	}
	result := schema.Validate(params)
	if !result.IsValid() {
		return apperr.Newf(apperr.KindValidation, "invalid parameters for tool %s: %v", tool.Name, result.Error())
	}
	return nil
}

// instance 返回指定类型与配置的工具实例，配置相同则复用缓存。
func (e *Executor) instance(toolType string, config map[string]any) (Tool, error) {
	key := instanceKey(toolType, config)

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, found := e.instances[key]; found {
		return cached, nil
	}

	instance, registered, err := e.registry.construct(toolType, e.opts, config)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, fmt.Errorf("tool type %s is not registered", toolType)
	}
	e.instances[key] = instance
	return instance, nil
}

// mergeConfig 将覆盖配置合并在默认配置之上，同名键以覆盖为准。
func mergeConfig(defaults, override []byte) (map[string]any, error) {
	merged := make(map[string]any)
	if len(defaults) > 0 {
		if err := json.Unmarshal(defaults, &merged); err != nil {
			return nil, fmt.Errorf("invalid default config: %w", err)
		}
	}
	if len(override) > 0 {
		var layer map[string]any
		if err := json.Unmarshal(override, &layer); err != nil {
			return nil, fmt.Errorf("invalid config override: %w", err)
		}
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged, nil
}

// instanceKey 生成工具实例缓存键：类型加配置指纹。
func instanceKey(toolType string, config map[string]any) string {
	data, _ := json.Marshal(config)
	sum := sha256.Sum256(data)
	return toolType + ":" + hex.EncodeToString(sum[:8])
}
