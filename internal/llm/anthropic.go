package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"Symposium/internal/models"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"
	anthropicDefaultTokens  = 1024
)

func init() {
	Register("anthropic", func(_ context.Context, cfg ClientConfig) (LLM, error) {
		return NewAnthropic(cfg)
	})
}

// Anthropic 是一个用于 Anthropic Messages API 的 LLM 客户端。
type Anthropic struct {
	client      *http.Client // HTTP 客户端实例。
	model       string       // 要使用的模型名称。
	apiKey      string       // Anthropic API 密钥。
	baseURL     string       // Anthropic API 的基准 URL。
	temperature *float32     // 采样温度。
	maxTokens   int          // 生成长度上限。
}

// NewAnthropic 创建一个新的 Anthropic 客户端。
// 如果 BaseURL 为空，则默认为官方端点。
func NewAnthropic(cfg ClientConfig) (*Anthropic, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &Anthropic{
		client:      &http.Client{},
		model:       cfg.ModelName,
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// anthropicMessage 是 Messages API 中的单条消息。
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicRequest 是 Messages API 的请求体。
type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

// anthropicResponse 是 Messages API 的响应体。
type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateContent 使用 Anthropic Messages API 生成内容。
func (a *Anthropic) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {

	// 将内部请求转换为 Anthropic 格式。
	body, err := json.Marshal(a.toAnthropicRequest(req))
	if err != nil {
		return nil, generationError("anthropic", fmt.Errorf("failed to marshal request: %w", err))
	}

	// 创建 HTTP 请求。
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, generationError("anthropic", fmt.Errorf("failed to create request: %w", err))
	}

	// 设置请求头。
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	// 发送请求。
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, generationError("anthropic", fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	// 解码响应。
	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, generationError("anthropic", fmt.Errorf("failed to decode response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		if apiResp.Error != nil {
			return nil, generationError("anthropic", fmt.Errorf("%s: %s", apiResp.Error.Type, apiResp.Error.Message))
		}
		return nil, generationError("anthropic", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	// 检查是否返回了生成文本。
	if len(apiResp.Content) == 0 {
		return nil, generationError("anthropic", fmt.Errorf("no content returned"))
	}

	return a.toGenerateContentResponse(&apiResp), nil
}

// GenerateContentStream 尚未为 Anthropic 实现。
func (a *Anthropic) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	return nil, generationError("anthropic", fmt.Errorf("streaming not yet implemented for Anthropic"))
}

// toAnthropicRequest 将我们的内部请求格式转换为 Anthropic 格式。
// 历史消息置于本轮内容之前，system 角色消息并入系统提示。
func (a *Anthropic) toAnthropicRequest(req *models.GenerateContentRequest) anthropicRequest {
	system := req.System
	var messages []anthropicMessage

	appendContent := func(content models.Content) {
		var text string
		for _, part := range content.Parts {
			text += part.Text
		}
		if content.Role == models.SpeakerSystem {
			if system != "" {
				system += "\n"
			}
			system += text
			return
		}
		role := "user"
		if content.Role == models.SpeakerModel {
			role = "assistant"
		}
		messages = append(messages, anthropicMessage{Role: role, Content: text})
	}

	for _, content := range req.History {
		appendContent(content)
	}
	for _, content := range req.Content {
		appendContent(content)
	}

	// Messages API 要求显式的 max_tokens。
	maxTokens := a.maxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultTokens
	}

	return anthropicRequest{
		Model:       a.model,
		System:      system,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: a.temperature,
	}
}

// toGenerateContentResponse 将 Anthropic 响应转换为我们的内部格式。
func (a *Anthropic) toGenerateContentResponse(resp *anthropicResponse) *models.GenerateContentResponse {
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return &models.GenerateContentResponse{
		Content:      []models.Content{models.TextContent(models.SpeakerModel, text)},
		CreateTime:   time.Now(),
		ResponseID:   resp.ID,
		ModelVersion: resp.Model,
	}
}
