package llm

import (
	"context"
	"testing"

	"Symposium/pkg/apperr"
)

func TestSupportedProviders(t *testing.T) {
	for _, provider := range []string{"openai", "anthropic", "gemini", "groq", "ollama"} {
		if !Supported(provider) {
			t.Errorf("Expected provider %s to be registered", provider)
		}
	}
	if Supported("unknown") {
		t.Error("Expected provider unknown to be unregistered")
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{Provider: "unknown", ModelName: "m"})
	if err == nil {
		t.Fatal("Expected error for unknown provider")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation kind, got %v", apperr.KindOf(err))
	}
}

func TestNewClientMissingModel(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{Provider: "stub"})
	if err == nil {
		t.Fatal("Expected error for missing model name")
	}
}

func TestProvidersSorted(t *testing.T) {
	names := Providers()
	if len(names) == 0 {
		t.Fatal("Expected at least one registered provider")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Provider list not sorted: %v", names)
			break
		}
	}
}
