package tools

import (
	"context"
	"testing"
)

func TestValidationTool(t *testing.T) {
	tool, err := NewValidation(Options{}, nil)
	if err != nil {
		t.Fatalf("NewValidation() error = %v", err)
	}

	tests := []struct {
		name      string
		format    string
		content   string
		wantValid bool
	}{
		{"valid go", "go", "package main\n\nfunc main() {}\n", true},
		{"invalid go", "go", "package main\n\nfunc {", false},
		{"valid json", "json", `{"a": [1, 2, 3]}`, true},
		{"invalid json", "json", `{"a": [1, 2,}`, false},
		{"valid yaml", "yaml", "a: 1\nb:\n  - x\n  - y\n", true},
		{"invalid yaml", "yaml", "a: [1, 2\nb: }", false},
	}
	for _, tt := range tests {
		result := tool.Execute(context.Background(), map[string]any{
			"format":  tt.format,
			"content": tt.content,
		})
		if !result.Success {
			t.Errorf("%s: expected result value, got failure %q", tt.name, result.Error)
			continue
		}
		output, isMap := result.Output.(map[string]any)
		if !isMap {
			t.Errorf("%s: unexpected output type %T", tt.name, result.Output)
			continue
		}
		if output["valid"] != tt.wantValid {
			t.Errorf("%s: valid = %v, want %v (detail: %v)", tt.name, output["valid"], tt.wantValid, output["detail"])
		}
	}
}

func TestValidationToolBadInput(t *testing.T) {
	tool, _ := NewValidation(Options{}, nil)

	if result := tool.Execute(context.Background(), map[string]any{"content": "x"}); result.Success {
		t.Error("Expected failure for missing format")
	}
	if result := tool.Execute(context.Background(), map[string]any{"format": "toml", "content": "x"}); result.Success {
		t.Error("Expected failure for unsupported format")
	}
}
