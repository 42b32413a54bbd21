package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
)

// fakeSessionStore 是内存版的会话存储，消息按追加顺序编号。
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uint]*models.ChatSession
	messages []models.ChatMessage
	agents   map[uint]*models.Agent
	nextID   uint
}

func newFakeSessionStore(agents ...*models.Agent) *fakeSessionStore {
	s := &fakeSessionStore{
		sessions: make(map[uint]*models.ChatSession),
		agents:   make(map[uint]*models.Agent),
		nextID:   1,
	}
	for _, a := range agents {
		s.agents[a.ID] = a
	}
	return s
}

func (s *fakeSessionStore) CreateSession(_ context.Context, session *models.ChatSession, participants []*models.Agent, initial []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.ID = s.nextID
	s.nextID++
	session.Participants = participants
	s.sessions[session.ID] = session
	for _, msg := range initial {
		msg.SessionID = session.ID
		msg.ID = s.nextID
		s.nextID++
		s.messages = append(s.messages, msg)
	}
	return nil
}

func (s *fakeSessionStore) GetSession(_ context.Context, id uint) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, found := s.sessions[id]
	if !found {
		return nil, apperr.Newf(apperr.KindNotFound, "会话 %d 不存在", id)
	}
	return session, nil
}

func (s *fakeSessionStore) ListSessionsByStatus(_ context.Context, status models.SessionStatus) ([]models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatSession
	for _, session := range s.sessions {
		if session.Status == status {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) CompleteSession(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, found := s.sessions[id]
	if !found {
		return apperr.Newf(apperr.KindNotFound, "会话 %d 不存在", id)
	}
	if session.Status != models.SessionActive {
		return apperr.Newf(apperr.KindStateConflict, "会话 %d 已结束", id)
	}
	session.Status = models.SessionCompleted
	now := time.Now()
	session.CompletedAt = &now
	return nil
}

func (s *fakeSessionStore) AppendMessage(_ context.Context, message *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	message.ID = s.nextID
	s.nextID++
	s.messages = append(s.messages, *message)
	return nil
}

func (s *fakeSessionStore) AppendMessages(_ context.Context, messages []*models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range messages {
		message.ID = s.nextID
		s.nextID++
		s.messages = append(s.messages, *message)
	}
	return nil
}

func (s *fakeSessionStore) History(_ context.Context, sessionID uint, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].SessionID != sessionID {
			continue
		}
		out = append(out, s.messages[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, apperr.Newf(apperr.KindNotFound, "会话 %d 没有任何消息", sessionID)
	}
	return out, nil
}

func (s *fakeSessionStore) AddParticipant(_ context.Context, session *models.ChatSession, agent *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Participants = append(session.Participants, agent)
	return nil
}

func (s *fakeSessionStore) RemoveParticipant(_ context.Context, session *models.ChatSession, agent *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range session.Participants {
		if p.ID == agent.ID {
			session.Participants = append(session.Participants[:i], session.Participants[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeSessionStore) GetAgent(_ context.Context, id uint) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, found := s.agents[id]
	if !found {
		return nil, apperr.Newf(apperr.KindNotFound, "agent %d 不存在", id)
	}
	return a, nil
}

func (s *fakeSessionStore) messagesOf(sessionID uint, msgType models.MessageType) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID && m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// fakeInvoker 按 agent id 返回固定回复，可配置延迟与失败。
type fakeInvoker struct {
	mu       sync.Mutex
	delays   map[uint]time.Duration
	failures map[uint]error
	calls    []uint
}

func (f *fakeInvoker) ProcessMessage(_ context.Context, agentID uint, message string, _ map[string]any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, agentID)
	delay := f.delays[agentID]
	failure := f.failures[agentID]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failure != nil {
		return "", failure
	}
	return fmt.Sprintf("reply-%d", agentID), nil
}

func testAgent(id uint, name string) *models.Agent {
	a := &models.Agent{Name: name, Role: "participant"}
	a.ID = id
	return a
}

func newTestOrchestrator(invoker *fakeInvoker) (*Orchestrator, *fakeSessionStore) {
	store := newFakeSessionStore(
		testAgent(1, "alpha"),
		testAgent(2, "beta"),
		testAgent(3, "gamma"),
	)
	return NewOrchestrator(store, invoker, 5), store
}

func mustCreateChat(t *testing.T, o *Orchestrator, agents []uint) *models.ChatSession {
	t.Helper()
	session, err := o.CreateChat(context.Background(), "test chat", "", agents, nil)
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	return session
}

func TestCreateChatValidation(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeInvoker{})
	ctx := context.Background()

	if _, err := o.CreateChat(ctx, "", "", []uint{1}, nil); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for empty name, got %v", err)
	}
	if _, err := o.CreateChat(ctx, "x", "", nil, nil); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for no participants, got %v", err)
	}
	if _, err := o.CreateChat(ctx, "x", "", []uint{99}, nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not_found for unknown participant, got %v", err)
	}
}

func TestProcessMessageResultOrder(t *testing.T) {
	// 回复延迟与参与者顺序相反：最后一个参与者最快完成。
	invoker := &fakeInvoker{delays: map[uint]time.Duration{
		1: 60 * time.Millisecond,
		2: 30 * time.Millisecond,
		3: 0,
	}}
	o, _ := newTestOrchestrator(invoker)
	session := mustCreateChat(t, o, []uint{1, 2, 3})

	turns, err := o.ProcessMessage(context.Background(), session.ID, "hello", nil, nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(turns))
	}
	// 结果顺序跟随参与者顺序，与完成顺序无关。
	for i, wantID := range []uint{1, 2, 3} {
		if turns[i].AgentID != wantID {
			t.Errorf("turn[%d].AgentID = %d, want %d", i, turns[i].AgentID, wantID)
		}
	}
}

func TestProcessMessageExcludesSender(t *testing.T) {
	invoker := &fakeInvoker{}
	o, _ := newTestOrchestrator(invoker)
	session := mustCreateChat(t, o, []uint{1, 2, 3})

	sender := uint(2)
	turns, err := o.ProcessMessage(context.Background(), session.ID, "from beta", &sender, nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	for _, turn := range turns {
		if turn.AgentID == sender {
			t.Error("Sender must not be invited to respond")
		}
	}
	for _, called := range invoker.calls {
		if called == sender {
			t.Error("Sender agent was invoked")
		}
	}
}

func TestProcessMessagePartialFailure(t *testing.T) {
	invoker := &fakeInvoker{failures: map[uint]error{
		2: fmt.Errorf("model backend unavailable"),
	}}
	o, store := newTestOrchestrator(invoker)
	session := mustCreateChat(t, o, []uint{1, 2, 3})

	turns, err := o.ProcessMessage(context.Background(), session.ID, "hello", nil, nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	var failed, succeeded int
	for _, turn := range turns {
		if turn.Success {
			succeeded++
			if turn.MessageID == 0 {
				t.Error("Successful turn missing persisted message id")
			}
		} else {
			failed++
			if turn.AgentID != 2 {
				t.Errorf("Unexpected failing agent %d", turn.AgentID)
			}
			if turn.Error == "" {
				t.Error("Failed turn missing error detail")
			}
		}
	}
	if succeeded != 2 || failed != 1 {
		t.Fatalf("Expected 2 successes and 1 failure, got %d/%d", succeeded, failed)
	}

	// 成功的回复入库，失败的不入库；入站用户消息保留。
	if got := len(store.messagesOf(session.ID, models.MessageTypeAgent)); got != 2 {
		t.Errorf("Expected 2 persisted agent messages, got %d", got)
	}
	if got := len(store.messagesOf(session.ID, models.MessageTypeUser)); got != 1 {
		t.Errorf("Expected 1 persisted user message, got %d", got)
	}
}

func TestUserMessagePersistsUserAndAgentRows(t *testing.T) {
	o, store := newTestOrchestrator(&fakeInvoker{})
	session := mustCreateChat(t, o, []uint{1, 2})

	if _, err := o.ProcessMessage(context.Background(), session.ID, "hi all", nil, nil); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	if got := len(store.messagesOf(session.ID, models.MessageTypeUser)); got != 1 {
		t.Errorf("Expected 1 user message, got %d", got)
	}
	if got := len(store.messagesOf(session.ID, models.MessageTypeAgent)); got != 2 {
		t.Errorf("Expected 2 agent messages, got %d", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeInvoker{})
	session := mustCreateChat(t, o, []uint{1, 2})
	ctx := context.Background()

	if err := o.EndChat(ctx, session.ID); err != nil {
		t.Fatalf("EndChat() error = %v", err)
	}

	// 已结束会话拒绝消息与重复结束。
	if _, err := o.ProcessMessage(ctx, session.ID, "too late", nil, nil); !apperr.Is(err, apperr.KindStateConflict) {
		t.Errorf("Expected state conflict after completion, got %v", err)
	}
	if err := o.EndChat(ctx, session.ID); !apperr.Is(err, apperr.KindStateConflict) {
		t.Errorf("Expected state conflict on double end, got %v", err)
	}
	if err := o.AddParticipant(ctx, session.ID, 3); !apperr.Is(err, apperr.KindStateConflict) {
		t.Errorf("Expected state conflict adding participant to ended session, got %v", err)
	}
}

func TestProcessMessageUnknownSession(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeInvoker{})
	if _, err := o.ProcessMessage(context.Background(), 404, "hi", nil, nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not_found for unknown session, got %v", err)
	}
}

func TestAddRemoveParticipant(t *testing.T) {
	invoker := &fakeInvoker{}
	o, _ := newTestOrchestrator(invoker)
	session := mustCreateChat(t, o, []uint{1, 2})
	ctx := context.Background()

	if err := o.AddParticipant(ctx, session.ID, 3); err != nil {
		t.Fatalf("AddParticipant() error = %v", err)
	}
	if err := o.AddParticipant(ctx, session.ID, 3); !apperr.Is(err, apperr.KindStateConflict) {
		t.Errorf("Expected conflict on duplicate participant, got %v", err)
	}

	turns, err := o.ProcessMessage(ctx, session.ID, "hello", nil, nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("Expected new participant to be invited, got %d turns", len(turns))
	}

	if err := o.RemoveParticipant(ctx, session.ID, 1); err != nil {
		t.Fatalf("RemoveParticipant() error = %v", err)
	}
	if err := o.RemoveParticipant(ctx, session.ID, 1); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not_found removing absent participant, got %v", err)
	}

	turns, err = o.ProcessMessage(ctx, session.ID, "again", nil, nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns after removal, got %d", len(turns))
	}
}

func TestRunDiscussion(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeInvoker{})
	session := mustCreateChat(t, o, []uint{1, 2})

	rounds, err := o.RunDiscussion(context.Background(), session.ID, "testing strategies", 3)
	if err != nil {
		t.Fatalf("RunDiscussion() error = %v", err)
	}
	if len(rounds) != 3 {
		t.Fatalf("Expected 3 rounds, got %d", len(rounds))
	}
	for i, turns := range rounds {
		if len(turns) != 2 {
			t.Errorf("round %d: expected 2 turns, got %d", i+1, len(turns))
		}
	}
}

func TestRunDiscussionRoundCap(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeInvoker{})
	session := mustCreateChat(t, o, []uint{1})

	// maxRounds 为 5，请求 50 轮会被截断。
	rounds, err := o.RunDiscussion(context.Background(), session.ID, "topic", 50)
	if err != nil {
		t.Fatalf("RunDiscussion() error = %v", err)
	}
	if len(rounds) != 5 {
		t.Fatalf("Expected rounds capped at 5, got %d", len(rounds))
	}
}

func TestRunDiscussionSessionConfigCap(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeInvoker{})
	session, err := o.CreateChat(context.Background(), "capped chat", "", []uint{1},
		map[string]any{"max_iterations": 2})
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	// 会话配置的 max_iterations 比全局上限更严格。
	rounds, err := o.RunDiscussion(context.Background(), session.ID, "topic", 4)
	if err != nil {
		t.Fatalf("RunDiscussion() error = %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("Expected rounds capped at 2 by session config, got %d", len(rounds))
	}
}

func TestRunDiscussionStopsWhenAllFail(t *testing.T) {
	invoker := &fakeInvoker{failures: map[uint]error{
		1: fmt.Errorf("down"),
		2: fmt.Errorf("down"),
	}}
	o, _ := newTestOrchestrator(invoker)
	session := mustCreateChat(t, o, []uint{1, 2})

	rounds, err := o.RunDiscussion(context.Background(), session.ID, "topic", 4)
	if err != nil {
		t.Fatalf("RunDiscussion() error = %v", err)
	}
	if len(rounds) != 1 {
		t.Fatalf("Expected early stop after one failed round, got %d rounds", len(rounds))
	}
}

func TestResumeSessions(t *testing.T) {
	invoker := &fakeInvoker{}
	o, store := newTestOrchestrator(invoker)
	session := mustCreateChat(t, o, []uint{2, 1})

	// 新进程共享同一存储，但没有内存状态。
	restarted := NewOrchestrator(store, invoker, 5)
	if _, err := restarted.ProcessMessage(context.Background(), session.ID, "hi", nil, nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Expected not_found before resume, got %v", err)
	}

	if err := restarted.ResumeSessions(context.Background()); err != nil {
		t.Fatalf("ResumeSessions() error = %v", err)
	}
	turns, err := restarted.ProcessMessage(context.Background(), session.ID, "hi", nil, nil)
	if err != nil {
		t.Fatalf("ProcessMessage() after resume error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns after resume, got %d", len(turns))
	}
	// 恢复后的参与者顺序按 agent id 升序。
	if turns[0].AgentID != 1 || turns[1].AgentID != 2 {
		t.Errorf("Expected resumed order [1 2], got [%d %d]", turns[0].AgentID, turns[1].AgentID)
	}
}
