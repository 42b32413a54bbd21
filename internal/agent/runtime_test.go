package agent

import (
	"context"
	"strings"
	"testing"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
)

type fakeGenerator struct {
	lastReq *models.GenerateContentRequest
	reply   string
	err     error
}

func (g *fakeGenerator) GenerateResponse(_ context.Context, _ uint, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	return &models.GenerateContentResponse{
		Content: []models.Content{models.TextContent(models.SpeakerModel, g.reply)},
	}, nil
}

type fakeToolExecutor struct {
	called bool
	result any
}

func (e *fakeToolExecutor) Execute(_ context.Context, _ uint, _ string, _ map[string]any) (any, error) {
	e.called = true
	return e.result, nil
}

func newTestAgent(tools ...string) *models.Agent {
	a := &models.Agent{
		Name:         "researcher",
		Role:         "research assistant",
		SystemPrompt: "Answer concisely.",
	}
	a.ID = 7
	for _, name := range tools {
		a.Tools = append(a.Tools, &models.Tool{Name: name})
	}
	return a
}

func TestRuntimeProcessMessage(t *testing.T) {
	gen := &fakeGenerator{reply: "hello from the model"}
	rt := NewRuntime(newTestAgent(), gen, &fakeToolExecutor{}, 10)

	reply, err := rt.ProcessMessage(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if reply != "hello from the model" {
		t.Errorf("Expected model reply, got %q", reply)
	}

	if !strings.Contains(gen.lastReq.System, "You are researcher, acting as research assistant.") {
		t.Errorf("System framing missing identity: %q", gen.lastReq.System)
	}
	if !strings.Contains(gen.lastReq.System, "Answer concisely.") {
		t.Errorf("System framing missing system prompt: %q", gen.lastReq.System)
	}

	// 第二次调用时历史应包含上一轮的用户消息与模型回复。
	if _, err := rt.ProcessMessage(context.Background(), "again", nil); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if len(gen.lastReq.History) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(gen.lastReq.History))
	}
	if gen.lastReq.History[0].Role != models.SpeakerUser || gen.lastReq.History[1].Role != models.SpeakerModel {
		t.Errorf("Unexpected history roles: %v, %v", gen.lastReq.History[0].Role, gen.lastReq.History[1].Role)
	}
}

func TestRuntimeContextMerge(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	rt := NewRuntime(newTestAgent(), gen, &fakeToolExecutor{}, 10)

	rt.UpdateContext(map[string]any{"topic": "golang", "round": 1})
	if _, err := rt.ProcessMessage(context.Background(), "hi", map[string]any{"round": 2}); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	snapshot := rt.ContextSnapshot()
	if snapshot["topic"] != "golang" {
		t.Errorf("Expected topic to survive merge, got %v", snapshot["topic"])
	}
	// 同名键以最新写入为准。
	if snapshot["round"] != 2 {
		t.Errorf("Expected round to be overwritten to 2, got %v", snapshot["round"])
	}
	if !strings.Contains(gen.lastReq.System, "Current context:") {
		t.Errorf("System framing missing context snapshot: %q", gen.lastReq.System)
	}
}

func TestRuntimeHistoryBound(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	rt := NewRuntime(newTestAgent(), gen, &fakeToolExecutor{}, 4)

	for i := 0; i < 10; i++ {
		if _, err := rt.ProcessMessage(context.Background(), "msg", nil); err != nil {
			t.Fatalf("ProcessMessage() error = %v", err)
		}
	}

	rt.mu.Lock()
	got := len(rt.history)
	rt.mu.Unlock()
	if got != 4 {
		t.Errorf("Expected history trimmed to 4 entries, got %d", got)
	}
}

func TestRuntimeExecuteToolUnauthorized(t *testing.T) {
	exec := &fakeToolExecutor{result: "should not run"}
	rt := NewRuntime(newTestAgent("filesystem"), &fakeGenerator{}, exec, 10)

	_, err := rt.ExecuteTool(context.Background(), "code_execution", nil)
	if err == nil {
		t.Fatal("Expected error for unauthorized tool, got nil")
	}
	if !apperr.Is(err, apperr.KindTool) {
		t.Errorf("Expected tool error kind, got %v", apperr.KindOf(err))
	}
	if exec.called {
		t.Error("Executor must not be touched for unauthorized tools")
	}
}

func TestRuntimeExecuteToolAuthorized(t *testing.T) {
	exec := &fakeToolExecutor{result: map[string]any{"stdout": "42"}}
	rt := NewRuntime(newTestAgent("code_execution"), &fakeGenerator{}, exec, 10)

	result, err := rt.ExecuteTool(context.Background(), "code_execution", map[string]any{"code": "print(42)"})
	if err != nil {
		t.Fatalf("ExecuteTool() error = %v", err)
	}
	if !exec.called {
		t.Fatal("Expected executor to be called")
	}
	if result == nil {
		t.Fatal("Expected non-nil result")
	}

	// 工具结果作为系统条目进入历史。
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.history) != 1 || rt.history[0].Role != models.SpeakerSystem {
		t.Fatalf("Expected one system history entry, got %v", rt.history)
	}
	if !strings.Contains(rt.history[0].Parts[0].Text, "[tool:code_execution]") {
		t.Errorf("History entry missing tool tag: %q", rt.history[0].Parts[0].Text)
	}
}

func TestRuntimeSetAuthorizedTools(t *testing.T) {
	exec := &fakeToolExecutor{result: "ok"}
	rt := NewRuntime(newTestAgent(), &fakeGenerator{}, exec, 10)

	if _, err := rt.ExecuteTool(context.Background(), "validation", nil); err == nil {
		t.Fatal("Expected unauthorized error before grant")
	}

	rt.SetAuthorizedTools([]string{"validation"})
	if _, err := rt.ExecuteTool(context.Background(), "validation", nil); err != nil {
		t.Fatalf("ExecuteTool() after grant error = %v", err)
	}

	rt.SetAuthorizedTools(nil)
	if _, err := rt.ExecuteTool(context.Background(), "validation", nil); err == nil {
		t.Fatal("Expected unauthorized error after revoke")
	}
}
