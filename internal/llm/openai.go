package llm

import (
	"context"

	"Symposium/internal/models"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

func init() {
	Register("openai", func(_ context.Context, cfg ClientConfig) (LLM, error) {
		return NewOpenAI(cfg)
	})
}

// OpenAI 是一个用于 OpenAI 风格 chat-completion API 的 LLM 客户端。
type OpenAI struct {
	client      *openai.Client // OpenAI 客户端实例。
	model       string         // 要使用的模型名称。
	temperature *float32       // 采样温度。
	maxTokens   int            // 生成长度上限。
	provider    string         // 错误归属用的提供商名称。
}

// NewOpenAI 创建一个新的 OpenAI 客户端。
func NewOpenAI(cfg ClientConfig) (*OpenAI, error) {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(conf),
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		provider:    provider,
	}, nil
}

// GenerateContent 使用 OpenAI API 生成内容。
func (o *OpenAI) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.toOpenAIRequest(req))
	if err != nil {
		return nil, generationError(o.provider, err)
	}

	return o.toGenerateContentResponse(&resp), nil
}

// GenerateContentStream 使用 OpenAI API 以流式方式生成内容。
func (o *OpenAI) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, o.toOpenAIRequest(req))
	if err != nil {
		return nil, generationError(o.provider, err)
	}

	respChan := make(chan *models.GenerateContentResponse)

	go func() {
		defer close(respChan)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				return
			}
			respChan <- o.toGenerateContentResponseStream(&resp)
		}
	}()

	return respChan, nil
}

// toOpenAIRequest 将我们的内部请求格式转换为 OpenAI 格式。
// 历史轮次在新消息之前，系统提示（若有）在最前。
func (o *OpenAI) toOpenAIRequest(req *models.GenerateContentRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, content := range req.History {
		messages = append(messages, toOpenAIMessage(content))
	}
	for _, content := range req.Content {
		messages = append(messages, toOpenAIMessage(content))
	}

	out := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}
	if o.temperature != nil {
		out.Temperature = o.temperature
	}
	if o.maxTokens > 0 {
		out.MaxTokens = o.maxTokens
	}
	return out
}

// toOpenAIMessage 将内部 Content 转为一条 OpenAI 消息，文本部分拼接。
func toOpenAIMessage(content models.Content) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	switch content.Role {
	case models.SpeakerModel:
		role = openai.ChatMessageRoleAssistant
	case models.SpeakerSystem:
		role = openai.ChatMessageRoleSystem
	}
	var text string
	for _, part := range content.Parts {
		text += part.Text
	}
	return openai.ChatCompletionMessage{Role: role, Content: text}
}

// toGenerateContentResponse 将 OpenAI 响应转换为我们的内部格式。
func (o *OpenAI) toGenerateContentResponse(resp *openai.ChatCompletionResponse) *models.GenerateContentResponse {
	var content []models.Content
	for _, choice := range resp.Choices {
		content = append(content, models.TextContent(models.SpeakerModel, choice.Message.Content))
	}

	return &models.GenerateContentResponse{
		Content:      content,
		ResponseID:   resp.ID,
		ModelVersion: resp.Model,
	}
}

// toGenerateContentResponseStream 将 OpenAI 流式响应转换为我们的内部格式。
func (o *OpenAI) toGenerateContentResponseStream(resp *openai.ChatCompletionStreamResponse) *models.GenerateContentResponse {
	var content []models.Content
	for _, choice := range resp.Choices {
		content = append(content, models.TextContent(models.SpeakerModel, choice.Delta.Content))
	}

	return &models.GenerateContentResponse{
		Content:      content,
		ResponseID:   resp.ID,
		ModelVersion: resp.Model,
	}
}
