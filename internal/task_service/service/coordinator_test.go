package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"Symposium/pkg/logger"
)

type fakeTaskStore struct {
	mu      sync.Mutex
	records map[string]*models.TaskRecord
	gets    int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{records: make(map[string]*models.TaskRecord)}
}

func (s *fakeTaskStore) Create(_ context.Context, task *models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.records[task.ID] = &copied
	return nil
}

func (s *fakeTaskStore) GetByID(_ context.Context, id string) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	task, found := s.records[id]
	if !found {
		return nil, apperr.Newf(apperr.KindNotFound, "任务 %s 不存在", id)
	}
	copied := *task
	return &copied, nil
}

func (s *fakeTaskStore) List(_ context.Context, kind models.TaskKind, _, _ int) ([]*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TaskRecord
	for _, task := range s.records {
		if kind == "" || task.Kind == kind {
			copied := *task
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) UpdateStatus(_ context.Context, id string, status models.TaskStatus, result any, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, found := s.records[id]
	if !found {
		return apperr.Newf(apperr.KindNotFound, "任务 %s 不存在", id)
	}
	task.Status = status
	if result != nil {
		task.Result = result
	}
	if errMsg != "" {
		task.Error = errMsg
	}
	return nil
}

type fakeStatusCache struct {
	mu       sync.Mutex
	statuses map[string]models.TaskStatus
	revoked  map[string]bool
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{
		statuses: make(map[string]models.TaskStatus),
		revoked:  make(map[string]bool),
	}
}

func (c *fakeStatusCache) SetStatus(_ context.Context, taskID string, status models.TaskStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[taskID] = status
	return nil
}

func (c *fakeStatusCache) GetStatus(_ context.Context, taskID string) (models.TaskStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses[taskID], nil
}

func (c *fakeStatusCache) MarkRevoked(_ context.Context, taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[taskID] = true
	return nil
}

func (c *fakeStatusCache) IsRevoked(_ context.Context, taskID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked[taskID], nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, key string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, key)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newTestCoordinator(pub *fakePublisher) (*Coordinator, *fakeTaskStore, *fakeStatusCache) {
	ts := newFakeTaskStore()
	cache := newFakeStatusCache()
	return NewCoordinator(ts, cache, pub, logger.New("test", "")), ts, cache
}

func TestSubmitChatMessage(t *testing.T) {
	pub := &fakePublisher{}
	coordinator, ts, cache := newTestCoordinator(pub)

	task, err := coordinator.SubmitChatMessage(context.Background(), 7, "hello", nil, nil)
	if err != nil {
		t.Fatalf("SubmitChatMessage() error = %v", err)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Expected pending status, got %s", task.Status)
	}
	if task.Kind != models.TaskKindChatMessage {
		t.Errorf("Expected chat_message kind, got %s", task.Kind)
	}

	stored, err := ts.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Task not persisted: %v", err)
	}
	if stored.Payload["session_id"] != uint(7) {
		t.Errorf("Unexpected payload: %v", stored.Payload)
	}
	if len(pub.published) != 1 || pub.published[0] != task.ID {
		t.Errorf("Expected task published with its id as key, got %v", pub.published)
	}
	if status, _ := cache.GetStatus(context.Background(), task.ID); status != models.TaskStatusPending {
		t.Errorf("Expected cached pending status, got %s", status)
	}
}

func TestSubmitValidation(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(&fakePublisher{})
	ctx := context.Background()

	if _, err := coordinator.SubmitChatMessage(ctx, 1, "", nil, nil); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for empty content, got %v", err)
	}
	if _, err := coordinator.SubmitCodeExecution(ctx, 1, "python", ""); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for empty code, got %v", err)
	}
}

func TestSubmitPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: fmt.Errorf("broker unreachable")}
	coordinator, ts, _ := newTestCoordinator(pub)

	_, err := coordinator.SubmitChatMessage(context.Background(), 1, "hi", nil, nil)
	if err == nil {
		t.Fatal("Expected error when publish fails")
	}

	// 记录保留并标记为失败。
	tasks, _ := ts.List(context.Background(), "", 1, 10)
	if len(tasks) != 1 || tasks[0].Status != models.TaskStatusFailure {
		t.Errorf("Expected one failed record, got %v", tasks)
	}
}

func TestStatusPrefersCache(t *testing.T) {
	coordinator, ts, cache := newTestCoordinator(&fakePublisher{})
	task, err := coordinator.SubmitChatMessage(context.Background(), 1, "hi", nil, nil)
	if err != nil {
		t.Fatalf("SubmitChatMessage() error = %v", err)
	}

	cache.SetStatus(context.Background(), task.ID, models.TaskStatusStarted)
	before := ts.gets

	status, err := coordinator.Status(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != models.TaskStatusStarted {
		t.Errorf("Expected cached status started, got %s", status)
	}
	if ts.gets != before {
		t.Error("Cache hit must not touch the store")
	}
}

func TestStatusFallsBackToStore(t *testing.T) {
	coordinator, _, cache := newTestCoordinator(&fakePublisher{})
	task, err := coordinator.SubmitChatMessage(context.Background(), 1, "hi", nil, nil)
	if err != nil {
		t.Fatalf("SubmitChatMessage() error = %v", err)
	}

	// 清空缓存模拟过期。
	delete(cache.statuses, task.ID)
	status, err := coordinator.Status(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != models.TaskStatusPending {
		t.Errorf("Expected store status pending, got %s", status)
	}
}

func TestRevoke(t *testing.T) {
	coordinator, ts, cache := newTestCoordinator(&fakePublisher{})
	ctx := context.Background()
	task, err := coordinator.SubmitChatMessage(ctx, 1, "hi", nil, nil)
	if err != nil {
		t.Fatalf("SubmitChatMessage() error = %v", err)
	}

	if err := coordinator.Revoke(ctx, task.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if revoked, _ := cache.IsRevoked(ctx, task.ID); !revoked {
		t.Error("Expected revoke marker")
	}
	stored, _ := ts.GetByID(ctx, task.ID)
	if stored.Status != models.TaskStatusRevoked {
		t.Errorf("Expected revoked status, got %s", stored.Status)
	}

	// 已开始执行的任务仍然可以撤销（尽力而为）。
	started, err := coordinator.SubmitChatMessage(ctx, 1, "hi again", nil, nil)
	if err != nil {
		t.Fatalf("SubmitChatMessage() error = %v", err)
	}
	if err := ts.UpdateStatus(ctx, started.ID, models.TaskStatusStarted, nil, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := coordinator.Revoke(ctx, started.ID); err != nil {
		t.Fatalf("Revoke() on started task error = %v", err)
	}
	stored, _ = ts.GetByID(ctx, started.ID)
	if stored.Status != models.TaskStatusRevoked {
		t.Errorf("Expected revoked status for started task, got %s", stored.Status)
	}

	// 已结束的任务不可再撤销。
	if err := coordinator.Revoke(ctx, task.ID); !apperr.Is(err, apperr.KindStateConflict) {
		t.Errorf("Expected state conflict on double revoke, got %v", err)
	}
	if err := coordinator.Revoke(ctx, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not_found for unknown task, got %v", err)
	}
}
