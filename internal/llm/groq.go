package llm

import (
	"context"
)

// groqDefaultBaseURL 是 Groq 的 OpenAI 兼容端点。
const groqDefaultBaseURL = "https://api.groq.com/openai/v1"

func init() {
	Register("groq", func(_ context.Context, cfg ClientConfig) (LLM, error) {
		return NewGroq(cfg)
	})
}

// NewGroq 创建一个新的 Groq 客户端。
// Groq 暴露与 OpenAI 兼容的 chat-completion API，
// 因此直接复用 OpenAI 客户端并替换基准 URL。
func NewGroq(cfg ClientConfig) (*OpenAI, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = groqDefaultBaseURL
	}
	cfg.Provider = "groq"
	return NewOpenAI(cfg)
}
