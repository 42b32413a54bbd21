package tools

import (
	"context"
	"testing"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"gorm.io/datatypes"
)

// configProbe 把收到的构造配置回显出来，用于验证配置合并。
type configProbe struct {
	config map[string]any
}

func (p *configProbe) Type() string { return "probe" }

func (p *configProbe) Execute(_ context.Context, _ map[string]any) *Result {
	return ok(p.config)
}

func newProbeExecutor() *Executor {
	registry := NewRegistry()
	registry.Register("probe", func(_ Options, config map[string]any) (Tool, error) {
		return &configProbe{config: config}, nil
	})
	return NewExecutor(registry, Options{})
}

func probeTool(schema string) *models.Tool {
	tool := &models.Tool{
		Name:          "probe",
		ToolType:      "probe",
		DefaultConfig: datatypes.JSON(`{"mode": "fast", "depth": 1}`),
	}
	if schema != "" {
		tool.ConfigSchema = datatypes.JSON(schema)
	}
	return tool
}

func TestExecutorUnregisteredType(t *testing.T) {
	executor := NewExecutor(NewRegistry(), Options{})
	tool := &models.Tool{Name: "ghost", ToolType: "ghost"}

	_, err := executor.Execute(context.Background(), tool, nil, nil)
	if !apperr.Is(err, apperr.KindTool) {
		t.Fatalf("Expected tool error for unregistered type, got %v", err)
	}
}

func TestExecutorParamValidation(t *testing.T) {
	executor := newProbeExecutor()
	schema := `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`
	tool := probeTool(schema)

	_, err := executor.Execute(context.Background(), tool, nil, map[string]any{"other": 1})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Expected validation error for missing required param, got %v", err)
	}

	result, err := executor.Execute(context.Background(), tool, nil, map[string]any{"query": "ok"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Errorf("Expected success, got %q", result.Error)
	}
}

func TestExecutorConfigMerge(t *testing.T) {
	executor := newProbeExecutor()
	tool := probeTool("")
	override := []byte(`{"depth": 5, "verbose": true}`)

	result, err := executor.Execute(context.Background(), tool, override, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	config, _ := result.Output.(map[string]any)
	if config["mode"] != "fast" {
		t.Errorf("Expected default mode to survive, got %v", config["mode"])
	}
	// 同名键以覆盖为准。
	if config["depth"] != float64(5) {
		t.Errorf("Expected depth overridden to 5, got %v", config["depth"])
	}
	if config["verbose"] != true {
		t.Errorf("Expected override-only key, got %v", config["verbose"])
	}
}

func TestExecutorInstanceReuse(t *testing.T) {
	registry := NewRegistry()
	constructed := 0
	registry.Register("count", func(_ Options, _ map[string]any) (Tool, error) {
		constructed++
		return &echoTool{}, nil
	})
	executor := NewExecutor(registry, Options{})
	tool := &models.Tool{Name: "count", ToolType: "count", DefaultConfig: datatypes.JSON(`{"a":1}`)}

	for i := 0; i < 3; i++ {
		if _, err := executor.Execute(context.Background(), tool, nil, nil); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	if constructed != 1 {
		t.Errorf("Expected instance reuse, constructed %d times", constructed)
	}

	// 配置不同则构造新实例。
	if _, err := executor.Execute(context.Background(), tool, []byte(`{"a":2}`), nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if constructed != 2 {
		t.Errorf("Expected new instance for changed config, constructed %d times", constructed)
	}
}
