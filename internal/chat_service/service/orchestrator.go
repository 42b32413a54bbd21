package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"Symposium/internal/chat_service/store"
	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"Symposium/pkg/logger"
	"gorm.io/datatypes"
)

// AgentInvoker 为编排器提供按 agent 生成回复的能力，
// 由 agent 域的 Manager 实现。
type AgentInvoker interface {
	ProcessMessage(ctx context.Context, agentID uint, message string, msgContext map[string]any) (string, error)
}

// SessionStore 定义了编排器所需的会话持久化能力，
// 由 chat 域的 store.Store 实现。
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.ChatSession, participants []*models.Agent, initial []models.ChatMessage) error
	GetSession(ctx context.Context, id uint) (*models.ChatSession, error)
	ListSessionsByStatus(ctx context.Context, status models.SessionStatus) ([]models.ChatSession, error)
	CompleteSession(ctx context.Context, id uint) error
	AppendMessage(ctx context.Context, message *models.ChatMessage) error
	AppendMessages(ctx context.Context, messages []*models.ChatMessage) error
	History(ctx context.Context, sessionID uint, limit int) ([]models.ChatMessage, error)
	AddParticipant(ctx context.Context, session *models.ChatSession, agent *models.Agent) error
	RemoveParticipant(ctx context.Context, session *models.ChatSession, agent *models.Agent) error
	GetAgent(ctx context.Context, id uint) (*models.Agent, error)
}

var _ SessionStore = (*store.Store)(nil)

// AgentTurn 是一次扇出中单个参与者的结果条目。
// 每个被邀请发言的参与者恰好产生一条，成功或失败单独标记。
type AgentTurn struct {
	AgentID   uint   `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Success   bool   `json:"success"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	MessageID uint   `json:"message_id,omitempty"`
}

// liveSession 是一个会话的内存状态。
// 互斥锁保证同一会话的消息处理串行执行（单写者），
// 不同会话之间完全并行。
type liveSession struct {
	mu           sync.Mutex
	status       models.SessionStatus
	participants []uint // 创建时固定的参与者迭代顺序
	config       datatypes.JSON
}

// Orchestrator 驱动多 agent 群聊会话：
// 维护会话的内存状态，向参与者扇出消息，
// 并按固定的参与者顺序持久化与返回结果。
type Orchestrator struct {
	store  SessionStore
	agents AgentInvoker

	mu       sync.RWMutex
	sessions map[uint]*liveSession

	maxRounds int
	log       *logger.Logger
}

// NewOrchestrator 创建一个群聊编排器。
// maxRounds 是多轮讨论的轮次上限，小于等于零时默认 10。
func NewOrchestrator(s SessionStore, agents AgentInvoker, maxRounds int) *Orchestrator {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	return &Orchestrator{
		store:     s,
		agents:    agents,
		sessions:  make(map[uint]*liveSession),
		maxRounds: maxRounds,
		log:       logger.New("chat_orchestrator", ""),
	}
}

// CreateChat 创建一个新会话：校验参与者、在一个事务中持久化
// 会话与参与者，并安装 active 状态的内存条目。
// 持久化失败时不留下任何内存状态。
func (o *Orchestrator) CreateChat(ctx context.Context, name, description string, agentIDs []uint, config map[string]any) (*models.ChatSession, error) {
	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "session name is required")
	}
	if len(agentIDs) == 0 {
		return nil, apperr.New(apperr.KindValidation, "session requires at least one participant")
	}

	participants := make([]*models.Agent, 0, len(agentIDs))
	for _, id := range agentIDs {
		a, err := o.store.GetAgent(ctx, id)
		if err != nil {
			return nil, err
		}
		participants = append(participants, a)
	}

	session := &models.ChatSession{
		Name:        name,
		Description: description,
		Status:      models.SessionActive,
	}
	if config != nil {
		data, err := json.Marshal(config)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed session config", err)
		}
		session.Config = datatypes.JSON(data)
	}

	names := make([]string, len(participants))
	for i, p := range participants {
		names[i] = p.Name
	}
	opening := []models.ChatMessage{{
		Type:    models.MessageTypeSystem,
		Content: fmt.Sprintf("session started with participants: %s", strings.Join(names, ", ")),
	}}

	if err := o.store.CreateSession(ctx, session, participants, opening); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.sessions[session.ID] = &liveSession{
		status:       models.SessionActive,
		participants: append([]uint(nil), agentIDs...),
		config:       session.Config,
	}
	o.mu.Unlock()

	o.log.WithPayload(map[string]interface{}{
		"session_id":   session.ID,
		"participants": agentIDs,
	}).Info("chat session created")
	return session, nil
}

// ResumeSessions 在启动时把持久化的 active 会话装回内存。
// 参与者迭代顺序按 agent id 升序重建。
func (o *Orchestrator) ResumeSessions(ctx context.Context) error {
	sessions, err := o.store.ListSessionsByStatus(ctx, models.SessionActive)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range sessions {
		session := &sessions[i]
		ids := make([]uint, 0, len(session.Participants))
		for _, p := range session.Participants {
			ids = append(ids, p.ID)
		}
		sortIDs(ids)
		o.sessions[session.ID] = &liveSession{
			status:       models.SessionActive,
			participants: ids,
			config:       session.Config,
		}
	}
	return nil
}

// live 返回会话的内存状态。
func (o *Orchestrator) live(sessionID uint) (*liveSession, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ls, found := o.sessions[sessionID]
	return ls, found
}

// ProcessMessage 处理会话中的一条消息。
// 先持久化发送方的消息，再向除发送者外的每个参与者扇出；
// 生成并行进行，但结果按创建会话时固定的参与者顺序持久化与返回。
// 单个参与者的失败不阻止其他参与者，也不回滚已持久化的消息；
// 失败作为该参与者的条目报告。
func (o *Orchestrator) ProcessMessage(ctx context.Context, sessionID uint, content string, senderID *uint, metadata map[string]any) ([]AgentTurn, error) {
	if content == "" {
		return nil, apperr.New(apperr.KindValidation, "message content is required")
	}

	ls, found := o.live(sessionID)
	if !found {
		return nil, apperr.Newf(apperr.KindNotFound, "session %d not found or not active", sessionID)
	}

	// 同一会话的消息处理串行执行。
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.status != models.SessionActive {
		return nil, apperr.Newf(apperr.KindStateConflict, "session %d is completed", sessionID)
	}

	// 先持久化入站消息；扇出失败也不回滚它。
	inbound := &models.ChatMessage{
		SessionID: sessionID,
		AgentID:   senderID,
		Content:   content,
		Type:      models.MessageTypeUser,
	}
	if senderID != nil {
		inbound.Type = models.MessageTypeAgent
	}
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			inbound.Meta = datatypes.JSON(data)
		}
	}
	if err := o.store.AppendMessage(ctx, inbound); err != nil {
		return nil, err
	}

	turns := o.fanOut(ctx, ls, sessionID, content, senderID)

	// 成功的回复按参与者顺序在同一事务中持久化。
	var batch []*models.ChatMessage
	for i := range turns {
		if !turns[i].Success {
			continue
		}
		agentID := turns[i].AgentID
		message := &models.ChatMessage{
			SessionID: sessionID,
			AgentID:   &agentID,
			Content:   turns[i].Content,
			Type:      models.MessageTypeAgent,
		}
		batch = append(batch, message)
	}
	if err := o.store.AppendMessages(ctx, batch); err != nil {
		return nil, err
	}
	// 回填持久化后的消息 id。
	batchIdx := 0
	for i := range turns {
		if turns[i].Success {
			turns[i].MessageID = batch[batchIdx].ID
			batchIdx++
		}
	}

	return turns, nil
}

// fanOut 并行邀请除发送者以外的每个参与者发言，
// 结果按参与者迭代顺序排列，与完成顺序无关。
// 调用方必须持有会话锁。
func (o *Orchestrator) fanOut(ctx context.Context, ls *liveSession, sessionID uint, content string, senderID *uint) []AgentTurn {
	var invited []uint
	for _, id := range ls.participants {
		if senderID != nil && id == *senderID {
			continue
		}
		invited = append(invited, id)
	}

	msgContext := map[string]any{
		"session_id": sessionID,
	}
	if len(ls.config) > 0 {
		var cfg map[string]any
		if err := json.Unmarshal(ls.config, &cfg); err == nil {
			msgContext["chat_config"] = cfg
		}
	}

	turns := make([]AgentTurn, len(invited))
	var wg sync.WaitGroup
	for i, agentID := range invited {
		wg.Add(1)
		go func(slot int, id uint) {
			defer wg.Done()
			turns[slot].AgentID = id
			if a, err := o.store.GetAgent(ctx, id); err == nil {
				turns[slot].AgentName = a.Name
			}
			reply, err := o.agents.ProcessMessage(ctx, id, content, msgContext)
			if err != nil {
				turns[slot].Success = false
				turns[slot].Error = err.Error()
				o.log.WithPayload(map[string]interface{}{
					"session_id": sessionID,
					"agent_id":   id,
				}).Warn("participant turn failed: " + err.Error())
				return
			}
			turns[slot].Success = true
			turns[slot].Content = reply
		}(i, agentID)
	}
	wg.Wait()
	return turns
}

// EndChat 结束一个会话：持久化状态迁移为 completed 并记录完成时间，
// 内存状态同步翻转。之后对该会话的 ProcessMessage 必然失败。
func (o *Orchestrator) EndChat(ctx context.Context, sessionID uint) error {
	ls, found := o.live(sessionID)
	if !found {
		return apperr.Newf(apperr.KindNotFound, "session %d not found or not active", sessionID)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.status != models.SessionActive {
		return apperr.Newf(apperr.KindStateConflict, "session %d is already completed", sessionID)
	}

	if err := o.store.CompleteSession(ctx, sessionID); err != nil {
		return err
	}
	ls.status = models.SessionCompleted

	closing := &models.ChatMessage{
		SessionID: sessionID,
		Type:      models.MessageTypeSystem,
		Content:   "session completed",
	}
	if err := o.store.AppendMessage(ctx, closing); err != nil {
		o.log.WithField("session_id", sessionID).Warn("failed to write closing message: " + err.Error())
	}

	o.log.WithField("session_id", sessionID).Info("chat session completed")
	return nil
}

// GetChatHistory 返回会话消息，按创建时间降序。
// limit 大于零时截断；会话没有任何消息时返回 not_found。
func (o *Orchestrator) GetChatHistory(ctx context.Context, sessionID uint, limit int) ([]models.ChatMessage, error) {
	return o.store.History(ctx, sessionID, limit)
}

// GetSession 返回会话的持久化记录。
func (o *Orchestrator) GetSession(ctx context.Context, sessionID uint) (*models.ChatSession, error) {
	return o.store.GetSession(ctx, sessionID)
}

// AddParticipant 把一个 agent 加入活跃会话，并写入一条系统消息。
func (o *Orchestrator) AddParticipant(ctx context.Context, sessionID, agentID uint) error {
	ls, found := o.live(sessionID)
	if !found {
		return apperr.Newf(apperr.KindNotFound, "session %d not found or not active", sessionID)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.status != models.SessionActive {
		return apperr.Newf(apperr.KindStateConflict, "session %d is completed", sessionID)
	}
	for _, id := range ls.participants {
		if id == agentID {
			return apperr.Newf(apperr.KindStateConflict, "agent %d is already a participant", agentID)
		}
	}

	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	a, err := o.store.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	if err := o.store.AddParticipant(ctx, session, a); err != nil {
		return err
	}
	ls.participants = append(ls.participants, agentID)

	joined := &models.ChatMessage{
		SessionID: sessionID,
		Type:      models.MessageTypeSystem,
		Content:   fmt.Sprintf("%s joined the session", a.Name),
	}
	return o.store.AppendMessage(ctx, joined)
}

// RemoveParticipant 把一个 agent 移出活跃会话，并写入一条系统消息。
func (o *Orchestrator) RemoveParticipant(ctx context.Context, sessionID, agentID uint) error {
	ls, found := o.live(sessionID)
	if !found {
		return apperr.Newf(apperr.KindNotFound, "session %d not found or not active", sessionID)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.status != models.SessionActive {
		return apperr.Newf(apperr.KindStateConflict, "session %d is completed", sessionID)
	}

	index := -1
	for i, id := range ls.participants {
		if id == agentID {
			index = i
			break
		}
	}
	if index < 0 {
		return apperr.Newf(apperr.KindNotFound, "agent %d is not a participant of session %d", agentID, sessionID)
	}

	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	a, err := o.store.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	if err := o.store.RemoveParticipant(ctx, session, a); err != nil {
		return err
	}
	ls.participants = append(ls.participants[:index], ls.participants[index+1:]...)

	left := &models.ChatMessage{
		SessionID: sessionID,
		Type:      models.MessageTypeSystem,
		Content:   fmt.Sprintf("%s left the session", a.Name),
	}
	return o.store.AppendMessage(ctx, left)
}

// RunDiscussion 围绕一个主题驱动多轮讨论。
// 第一轮把主题扇出给全部参与者，之后每一轮把上一轮的发言
// 汇总后再次扇出，轮次受配置上限约束。会话配置中的
// max_iterations 优先于全局上限。返回每一轮的结果。
func (o *Orchestrator) RunDiscussion(ctx context.Context, sessionID uint, topic string, rounds int) ([][]AgentTurn, error) {
	if rounds <= 0 {
		rounds = 1
	}
	if rounds > o.maxRounds {
		rounds = o.maxRounds
	}
	if ls, found := o.live(sessionID); found && len(ls.config) > 0 {
		var cfg map[string]any
		if err := json.Unmarshal(ls.config, &cfg); err == nil {
			if v, ok := cfg["max_iterations"].(float64); ok && v > 0 && rounds > int(v) {
				rounds = int(v)
			}
		}
	}

	var allRounds [][]AgentTurn
	prompt := topic
	for round := 0; round < rounds; round++ {
		turns, err := o.ProcessMessage(ctx, sessionID, prompt, nil, map[string]any{"round": round + 1})
		if err != nil {
			return allRounds, err
		}
		allRounds = append(allRounds, turns)

		// 汇总本轮发言作为下一轮的输入；没有任何成功发言时提前结束。
		var sb strings.Builder
		successes := 0
		for _, turn := range turns {
			if !turn.Success {
				continue
			}
			successes++
			sb.WriteString(fmt.Sprintf("%s: %s\n", turn.AgentName, turn.Content))
		}
		if successes == 0 {
			break
		}
		prompt = fmt.Sprintf("Previous round of discussion:\n%sContinue the discussion on: %s", sb.String(), topic)
	}
	return allRounds, nil
}

// sortIDs 对 agent id 做原地升序排序。
func sortIDs(ids []uint) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
