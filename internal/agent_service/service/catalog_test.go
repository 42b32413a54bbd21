package service

import (
	"context"
	"testing"

	"Symposium/internal/models"
	"Symposium/internal/tools"
	"Symposium/pkg/apperr"
	"gorm.io/datatypes"
)

// fakeCatalogStore 是内存版的目录存储。
type fakeCatalogStore struct {
	providers   map[uint]*models.ModelProvider
	tools       map[uint]*models.Tool
	agents      map[uint]*models.Agent
	assignments map[[2]uint]datatypes.JSON
	nextID      uint
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{
		providers:   make(map[uint]*models.ModelProvider),
		tools:       make(map[uint]*models.Tool),
		agents:      make(map[uint]*models.Agent),
		assignments: make(map[[2]uint]datatypes.JSON),
		nextID:      1,
	}
}

func (s *fakeCatalogStore) CreateProvider(_ context.Context, provider *models.ModelProvider) error {
	provider.ID = s.nextID
	s.nextID++
	s.providers[provider.ID] = provider
	return nil
}

func (s *fakeCatalogStore) GetProvider(_ context.Context, id uint) (*models.ModelProvider, error) {
	p, found := s.providers[id]
	if !found {
		return nil, apperr.Newf(apperr.KindNotFound, "提供商 %d 不存在", id)
	}
	return p, nil
}

func (s *fakeCatalogStore) ListProviders(_ context.Context) ([]models.ModelProvider, error) {
	var out []models.ModelProvider
	for _, p := range s.providers {
		out = append(out, *p)
	}
	return out, nil
}

func (s *fakeCatalogStore) UpdateProvider(_ context.Context, provider *models.ModelProvider) error {
	s.providers[provider.ID] = provider
	return nil
}

func (s *fakeCatalogStore) DeleteProvider(_ context.Context, id uint) error {
	delete(s.providers, id)
	return nil
}

func (s *fakeCatalogStore) CreateTool(_ context.Context, tool *models.Tool) error {
	tool.ID = s.nextID
	s.nextID++
	s.tools[tool.ID] = tool
	return nil
}

func (s *fakeCatalogStore) GetTool(_ context.Context, id uint) (*models.Tool, error) {
	tool, found := s.tools[id]
	if !found {
		return nil, apperr.Newf(apperr.KindNotFound, "工具 %d 不存在", id)
	}
	return tool, nil
}

func (s *fakeCatalogStore) ListTools(_ context.Context) ([]models.Tool, error) {
	var out []models.Tool
	for _, tool := range s.tools {
		out = append(out, *tool)
	}
	return out, nil
}

func (s *fakeCatalogStore) UpdateTool(_ context.Context, tool *models.Tool) error {
	s.tools[tool.ID] = tool
	return nil
}

func (s *fakeCatalogStore) DeleteTool(_ context.Context, id uint) error {
	delete(s.tools, id)
	return nil
}

func (s *fakeCatalogStore) GetAgent(_ context.Context, id uint) (*models.Agent, error) {
	a, found := s.agents[id]
	if !found {
		return nil, apperr.Newf(apperr.KindNotFound, "agent %d 不存在", id)
	}
	return a, nil
}

func (s *fakeCatalogStore) AssignTool(_ context.Context, agentID, toolID uint, config datatypes.JSON) error {
	s.assignments[[2]uint{agentID, toolID}] = config
	return nil
}

func (s *fakeCatalogStore) RevokeTool(_ context.Context, agentID, toolID uint) error {
	delete(s.assignments, [2]uint{agentID, toolID})
	return nil
}

func newTestCatalog() (*Catalog, *fakeCatalogStore) {
	store := newFakeCatalogStore()
	return NewCatalog(store, tools.NewDefaultRegistry()), store
}

func TestCreateProviderRequiresImplementation(t *testing.T) {
	catalog, _ := newTestCatalog()
	ctx := context.Background()

	err := catalog.CreateProvider(ctx, &models.ModelProvider{Name: "made-up"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Expected validation error for unknown implementation, got %v", err)
	}

	if err := catalog.CreateProvider(ctx, &models.ModelProvider{Name: "openai", APIKey: "k"}); err != nil {
		t.Fatalf("CreateProvider() error = %v", err)
	}
	if err := catalog.CreateProvider(ctx, &models.ModelProvider{}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for empty name, got %v", err)
	}
}

func TestToolViewAvailability(t *testing.T) {
	catalog, _ := newTestCatalog()
	ctx := context.Background()

	if err := catalog.CreateTool(ctx, &models.Tool{Name: "runner", ToolType: tools.TypeCodeExecution}); err != nil {
		t.Fatalf("CreateTool() error = %v", err)
	}
	if err := catalog.CreateTool(ctx, &models.Tool{Name: "quantum", ToolType: "quantum_annealer"}); err != nil {
		t.Fatalf("CreateTool() error = %v", err)
	}

	views, err := catalog.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	byName := make(map[string]bool, len(views))
	for _, view := range views {
		byName[view.Name] = view.IsAvailable
	}
	if !byName["runner"] {
		t.Error("Expected code_execution tool to be available")
	}
	// 类型没有注册实现的工具可以存在，但标记为不可用。
	if byName["quantum"] {
		t.Error("Expected unimplemented tool type to be unavailable")
	}
}

func TestCreateToolValidation(t *testing.T) {
	catalog, _ := newTestCatalog()
	ctx := context.Background()

	if err := catalog.CreateTool(ctx, &models.Tool{ToolType: "x"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for missing name, got %v", err)
	}
	if err := catalog.CreateTool(ctx, &models.Tool{Name: "x"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error for missing type, got %v", err)
	}
}

func TestAssignToolChecksExistence(t *testing.T) {
	catalog, store := newTestCatalog()
	ctx := context.Background()

	agent := &models.Agent{Name: "alpha"}
	agent.ID = 1
	store.agents[1] = agent
	tool := &models.Tool{Name: "runner", ToolType: tools.TypeCodeExecution}
	tool.ID = 2
	store.tools[2] = tool

	if err := catalog.AssignTool(ctx, 99, 2, nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not_found for unknown agent, got %v", err)
	}
	if err := catalog.AssignTool(ctx, 1, 99, nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not_found for unknown tool, got %v", err)
	}

	if err := catalog.AssignTool(ctx, 1, 2, datatypes.JSON(`{"depth":3}`)); err != nil {
		t.Fatalf("AssignTool() error = %v", err)
	}
	if _, found := store.assignments[[2]uint{1, 2}]; !found {
		t.Error("Expected assignment to be recorded")
	}

	if err := catalog.RevokeTool(ctx, 1, 2); err != nil {
		t.Fatalf("RevokeTool() error = %v", err)
	}
	if _, found := store.assignments[[2]uint{1, 2}]; found {
		t.Error("Expected assignment to be removed")
	}
}
