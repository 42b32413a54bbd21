package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
)

// Generator 为运行时提供模型生成能力，由 llm.ModelManager 实现。
type Generator interface {
	GenerateResponse(ctx context.Context, agentID uint, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)
}

// ToolExecutor 为运行时提供工具执行能力。
// 实现方负责查找工具记录、合并配置并实际执行；
// 运行时只做授权检查与历史记录。
type ToolExecutor interface {
	Execute(ctx context.Context, agentID uint, toolName string, params map[string]any) (any, error)
}

// Runtime 是一个已激活 agent 的运行时实例。
// 它持有 agent 的配置快照、运行上下文与有界对话历史，
// 同一实例上的操作由互斥锁串行化。
type Runtime struct {
	id           uint
	name         string
	role         string
	systemPrompt string

	// 授权工具名集合，按名称精确匹配。
	authorizedTools map[string]struct{}

	generator Generator
	executor  ToolExecutor

	mu          sync.Mutex
	runningCtx  map[string]any
	history     []models.Content
	historyKeep int
}

// NewRuntime 根据 agent 配置实体创建运行时实例。
// historyKeep 是保留的历史条目上限，超出时丢弃最旧的条目；
// 小于等于零时使用默认值 40。
func NewRuntime(a *models.Agent, generator Generator, executor ToolExecutor, historyKeep int) *Runtime {
	if historyKeep <= 0 {
		historyKeep = 40
	}
	authorized := make(map[string]struct{}, len(a.Tools))
	for _, t := range a.Tools {
		authorized[t.Name] = struct{}{}
	}
	return &Runtime{
		id:              a.ID,
		name:            a.Name,
		role:            a.Role,
		systemPrompt:    a.SystemPrompt,
		authorizedTools: authorized,
		generator:       generator,
		executor:        executor,
		runningCtx:      make(map[string]any),
		historyKeep:     historyKeep,
	}
}

// ID 返回该运行时对应的 agent id。
func (r *Runtime) ID() uint {
	return r.id
}

// Name 返回 agent 名称。
func (r *Runtime) Name() string {
	return r.name
}

// UpdateContext 将新的上下文键值合并进运行上下文。
// 同名键以最新写入为准。
func (r *Runtime) UpdateContext(updates map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range updates {
		r.runningCtx[k] = v
	}
}

// ContextSnapshot 返回运行上下文的浅拷贝。
func (r *Runtime) ContextSnapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[string]any, len(r.runningCtx))
	for k, v := range r.runningCtx {
		snapshot[k] = v
	}
	return snapshot
}

// ProcessMessage 处理一条入站消息并返回模型回复文本。
// 随消息携带的上下文先合并进运行上下文，再构造系统框架并调用模型；
// 消息与回复按序追加到有界历史中。
func (r *Runtime) ProcessMessage(ctx context.Context, message string, msgContext map[string]any) (string, error) {
	r.mu.Lock()
	for k, v := range msgContext {
		r.runningCtx[k] = v
	}
	req := &models.GenerateContentRequest{
		System:  r.systemFraming(),
		History: append([]models.Content(nil), r.history...),
		Content: []models.Content{models.TextContent(models.SpeakerUser, message)},
	}
	r.mu.Unlock()

	resp, err := r.generator.GenerateResponse(ctx, r.id, req)
	if err != nil {
		return "", err
	}
	reply := resp.Text()

	r.mu.Lock()
	r.appendHistory(models.TextContent(models.SpeakerUser, message))
	r.appendHistory(models.TextContent(models.SpeakerModel, reply))
	r.mu.Unlock()

	return reply, nil
}

// ExecuteTool 以该 agent 的身份执行一个工具。
// 名称不在授权集合中时返回 tool 类错误，不触碰执行器；
// 执行结果作为系统条目追加到历史，供后续轮次引用。
func (r *Runtime) ExecuteTool(ctx context.Context, toolName string, params map[string]any) (any, error) {
	r.mu.Lock()
	_, authorized := r.authorizedTools[toolName]
	r.mu.Unlock()
	if !authorized {
		return nil, apperr.Newf(apperr.KindTool, "agent %s is not authorized to use tool %s", r.name, toolName)
	}

	result, err := r.executor.Execute(ctx, r.id, toolName, params)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.appendHistory(models.TextContent(models.SpeakerSystem,
		fmt.Sprintf("[tool:%s] %s", toolName, formatToolResult(result))))
	r.mu.Unlock()

	return result, nil
}

// SetAuthorizedTools 替换授权工具名集合。
// agent 的工具授权变更后由管理器调用。
func (r *Runtime) SetAuthorizedTools(names []string) {
	authorized := make(map[string]struct{}, len(names))
	for _, name := range names {
		authorized[name] = struct{}{}
	}
	r.mu.Lock()
	r.authorizedTools = authorized
	r.mu.Unlock()
}

// systemFraming 构造每次生成调用的系统提示。
// 包含 agent 的名称、角色、系统提示与当前运行上下文的快照。
// 调用方必须持有 r.mu。
func (r *Runtime) systemFraming() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are %s, acting as %s.", r.name, r.role))
	if r.systemPrompt != "" {
		sb.WriteString("\n")
		sb.WriteString(r.systemPrompt)
	}
	if len(r.runningCtx) > 0 {
		if data, err := json.Marshal(r.runningCtx); err == nil {
			sb.WriteString("\nCurrent context: ")
			sb.Write(data)
		}
	}
	return sb.String()
}

// appendHistory 追加一条历史并裁剪到上限。
// 调用方必须持有 r.mu。
func (r *Runtime) appendHistory(c models.Content) {
	r.history = append(r.history, c)
	if len(r.history) > r.historyKeep {
		r.history = r.history[len(r.history)-r.historyKeep:]
	}
}

// formatToolResult 将工具结果渲染为历史条目文本。
func formatToolResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}
