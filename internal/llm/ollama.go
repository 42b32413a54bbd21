package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"Symposium/internal/models"
	olla "github.com/ollama/ollama/api"
)

func init() {
	Register("ollama", func(_ context.Context, cfg ClientConfig) (LLM, error) {
		return NewOllama(cfg)
	})
}

// Ollama 是一个用于 Ollama API 的 LLM 客户端。
// 本地推理服务不需要 API 密钥。
type Ollama struct {
	client      *olla.Client // Ollama 客户端实例。
	model       string       // 要使用的模型名称。
	temperature *float32     // 采样温度。
	maxTokens   int          // 生成长度上限。
}

// NewOllama 创建一个新的 Ollama 客户端。
// 如果 BaseURL 为空，则默认为 "http://localhost:11434"。
func NewOllama(cfg ClientConfig) (*Ollama, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	// 将字符串 URL 转换为 *url.URL。
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	// 创建一个带有超时设置的 HTTP 客户端。
	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &Ollama{
		client:      olla.NewClient(parsedURL, hc),
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// GenerateContent 使用 Ollama Chat API 生成内容。
func (o *Ollama) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	var result *olla.ChatResponse

	// 调用 Ollama 客户端的 Chat 方法生成内容。
	err := o.client.Chat(ctx, &olla.ChatRequest{
		Model:    o.model,
		Messages: o.toOllamaMessages(req),
		Stream:   &[]bool{false}[0], // 设置为非流式传输。
		Options:  o.options(),
	}, func(resp olla.ChatResponse) error {
		result = &resp
		return nil
	})

	if err != nil {
		return nil, generationError("ollama", err)
	}
	if result == nil {
		return nil, generationError("ollama", fmt.Errorf("no response returned"))
	}

	return o.toGenerateContentResponse(result), nil
}

// GenerateContentStream 使用 Ollama Chat API 以流式方式生成内容。
func (o *Ollama) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	respChan := make(chan *models.GenerateContentResponse)

	// 启动一个 goroutine 来处理流式响应。
	go func() {
		defer close(respChan)

		_ = o.client.Chat(ctx, &olla.ChatRequest{
			Model:    o.model,
			Messages: o.toOllamaMessages(req),
			Stream:   &[]bool{true}[0], // 设置为流式传输。
			Options:  o.options(),
		}, func(resp olla.ChatResponse) error {
			respChan <- o.toGenerateContentResponse(&resp)
			return nil
		})
	}()

	return respChan, nil
}

// options 构造 Ollama 请求的采样参数。
func (o *Ollama) options() map[string]any {
	opts := make(map[string]any)
	if o.temperature != nil {
		opts["temperature"] = *o.temperature
	}
	if o.maxTokens > 0 {
		opts["num_predict"] = o.maxTokens
	}
	return opts
}

// toOllamaMessages 将内部请求转换为 Ollama 消息序列。
// 系统提示在前，历史次之，本轮内容最后。
func (o *Ollama) toOllamaMessages(req *models.GenerateContentRequest) []olla.Message {
	var messages []olla.Message
	if req.System != "" {
		messages = append(messages, olla.Message{Role: "system", Content: req.System})
	}

	appendContent := func(content models.Content) {
		var text string
		for _, part := range content.Parts {
			text += part.Text
		}
		role := "user"
		switch content.Role {
		case models.SpeakerModel:
			role = "assistant"
		case models.SpeakerSystem:
			role = "system"
		}
		messages = append(messages, olla.Message{Role: role, Content: text})
	}

	for _, content := range req.History {
		appendContent(content)
	}
	for _, content := range req.Content {
		appendContent(content)
	}
	return messages
}

// toGenerateContentResponse 将 Ollama ChatResponse 转换为内部 GenerateContentResponse 结构体。
func (o *Ollama) toGenerateContentResponse(resp *olla.ChatResponse) *models.GenerateContentResponse {
	return &models.GenerateContentResponse{
		Content:      []models.Content{models.TextContent(models.SpeakerModel, resp.Message.Content)},
		CreateTime:   resp.CreatedAt,
		ModelVersion: resp.Model,
	}
}
