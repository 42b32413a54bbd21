package service

import (
	"context"

	"Symposium/internal/agent"
	"Symposium/internal/agent_service/store"
	"Symposium/internal/llm"
	"Symposium/internal/models"
	"Symposium/internal/tools"
	"Symposium/pkg/apperr"
	"Symposium/pkg/logger"
)

// Manager 管理 agent 的配置实体与运行时实例之间的生命周期：
// 创建与更新只触碰数据库，激活为 agent 构建模型句柄与运行时，
// 停用与删除把两者一起拆除。
type Manager struct {
	store       *store.Store
	modelMgr    *llm.ModelManager
	registry    *agent.LocalRegistry
	runner      *toolRunner
	historyKeep int
	log         *logger.Logger
}

// NewManager 创建一个 agent 生命周期管理器。
// historyKeep 是每个运行时保留的对话历史上限。
func NewManager(s *store.Store, modelMgr *llm.ModelManager, registry *agent.LocalRegistry, executor *tools.Executor, historyKeep int) *Manager {
	return &Manager{
		store:       s,
		modelMgr:    modelMgr,
		registry:    registry,
		runner:      &toolRunner{store: s, executor: executor},
		historyKeep: historyKeep,
		log:         logger.New("agent_manager", ""),
	}
}

// Registry 返回运行时注册表，供编排器查询 agent 激活状态。
func (m *Manager) Registry() *agent.LocalRegistry {
	return m.registry
}

// CreateAgent 校验模型配置并创建 agent 记录，初始状态为 inactive。
// 校验失败时不产生任何记录。
func (m *Manager) CreateAgent(ctx context.Context, a *models.Agent) error {
	if a.Name == "" {
		return apperr.New(apperr.KindValidation, "agent name is required")
	}
	mc, err := a.ParseModelConfig()
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed model config", err)
	}
	if err := m.modelMgr.ValidateConfig(ctx, mc); err != nil {
		return err
	}
	a.Status = models.AgentStatusInactive
	return m.store.CreateAgent(ctx, a)
}

// GetAgent 返回指定 agent 的配置实体。
func (m *Manager) GetAgent(ctx context.Context, id uint) (*models.Agent, error) {
	return m.store.GetAgent(ctx, id)
}

// ListAgents 返回全部 agent 配置实体。
func (m *Manager) ListAgents(ctx context.Context) ([]models.Agent, error) {
	return m.store.ListAgents(ctx)
}

// UpdateAgent 校验并保存 agent 记录。
// agent 处于激活状态时，模型句柄与运行时按新配置重建。
func (m *Manager) UpdateAgent(ctx context.Context, a *models.Agent) error {
	mc, err := a.ParseModelConfig()
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed model config", err)
	}
	if err := m.modelMgr.ValidateConfig(ctx, mc); err != nil {
		return err
	}
	if err := m.store.UpdateAgent(ctx, a); err != nil {
		return err
	}

	if _, active := m.registry.Get(a.ID); active {
		return m.ActivateAgent(ctx, a.ID)
	}
	return nil
}

// DeleteAgent 停用并删除一个 agent。
func (m *Manager) DeleteAgent(ctx context.Context, id uint) error {
	if err := m.DeactivateAgent(ctx, id); err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	return m.store.DeleteAgent(ctx, id)
}

// ActivateAgent 为 agent 创建模型句柄与运行时实例。
// 重复激活会按当前配置整体重建。激活失败时状态置为 error 并返回原因。
func (m *Manager) ActivateAgent(ctx context.Context, id uint) error {
	a, err := m.store.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	mc, err := a.ParseModelConfig()
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed model config", err)
	}

	if err := m.modelMgr.InitializeModel(ctx, a.ID, mc); err != nil {
		if statusErr := m.store.UpdateAgentStatus(ctx, a.ID, models.AgentStatusError); statusErr != nil {
			m.log.WithField("agent_id", a.ID).Error("failed to mark agent as errored: " + statusErr.Error())
		}
		return err
	}

	rt := agent.NewRuntime(a, m.modelMgr, m.runner, m.historyKeep)
	m.registry.Register(rt)

	if err := m.store.UpdateAgentStatus(ctx, a.ID, models.AgentStatusActive); err != nil {
		return err
	}
	m.log.WithPayload(map[string]interface{}{
		"agent_id": a.ID,
		"name":     a.Name,
	}).Info("agent activated")
	return nil
}

// DeactivateAgent 拆除 agent 的运行时实例与模型句柄。
// agent 未激活时仅确保状态回到 inactive，重复停用是安全的。
func (m *Manager) DeactivateAgent(ctx context.Context, id uint) error {
	m.modelMgr.CleanupModel(id)
	m.registry.Remove(id)
	if err := m.store.UpdateAgentStatus(ctx, id, models.AgentStatusInactive); err != nil {
		return err
	}
	m.log.WithField("agent_id", id).Info("agent deactivated")
	return nil
}

// ResumeActiveAgents 在进程启动时为数据库中标记为激活的 agent 重建运行时。
// 单个 agent 激活失败不会中断恢复，其状态会被置为 error。
func (m *Manager) ResumeActiveAgents(ctx context.Context) error {
	agents, err := m.store.ListAgents(ctx)
	if err != nil {
		return err
	}
	for _, a := range agents {
		if a.Status != models.AgentStatusActive {
			continue
		}
		if err := m.ActivateAgent(ctx, a.ID); err != nil {
			m.log.WithField("agent_id", a.ID).Error("failed to resume agent: " + err.Error())
		}
	}
	return nil
}

// ProcessMessage 将一条消息交给指定 agent 的运行时处理。
// agent 未激活时返回 state_conflict。
func (m *Manager) ProcessMessage(ctx context.Context, agentID uint, message string, msgContext map[string]any) (string, error) {
	rt, active := m.registry.Get(agentID)
	if !active {
		return "", apperr.Newf(apperr.KindStateConflict, "agent %d is not active", agentID)
	}
	reply, err := rt.ProcessMessage(ctx, message, msgContext)
	if err != nil {
		return "", err
	}
	if touchErr := m.store.TouchAgent(ctx, agentID); touchErr != nil {
		m.log.WithField("agent_id", agentID).Warn("failed to refresh last_active: " + touchErr.Error())
	}
	return reply, nil
}

// ExecuteTool 以指定 agent 的身份执行一个工具。
// agent 未激活时返回 state_conflict，授权检查由运行时完成。
func (m *Manager) ExecuteTool(ctx context.Context, agentID uint, toolName string, params map[string]any) (any, error) {
	rt, active := m.registry.Get(agentID)
	if !active {
		return nil, apperr.Newf(apperr.KindStateConflict, "agent %d is not active", agentID)
	}
	return rt.ExecuteTool(ctx, toolName, params)
}

// RefreshAgentTools 按最新的授权记录刷新激活中 agent 的工具集合。
// agent 未激活时为空操作。工具授权变更后由 API 层调用。
func (m *Manager) RefreshAgentTools(ctx context.Context, agentID uint) error {
	rt, active := m.registry.Get(agentID)
	if !active {
		return nil
	}
	a, err := m.store.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(a.Tools))
	for _, t := range a.Tools {
		names = append(names, t.Name)
	}
	rt.SetAuthorizedTools(names)
	return nil
}

// toolRunner 把运行时的工具调用落到存储与执行器上：
// 按名称解析工具记录，取出该 (agent, tool) 的配置覆盖，再委托执行。
type toolRunner struct {
	store    *store.Store
	executor *tools.Executor
}

func (t *toolRunner) Execute(ctx context.Context, agentID uint, toolName string, params map[string]any) (any, error) {
	tool, err := t.store.GetToolByName(ctx, toolName)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Newf(apperr.KindTool, "tool %s does not exist", toolName)
		}
		return nil, err
	}
	override, err := t.store.GetToolOverride(ctx, agentID, tool.ID)
	if err != nil {
		return nil, err
	}
	result, err := t.executor.Execute(ctx, tool, override, params)
	if err != nil {
		return nil, err
	}
	return result, nil
}

var _ agent.ToolExecutor = (*toolRunner)(nil)
