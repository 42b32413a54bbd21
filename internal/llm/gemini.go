package llm

import (
	"context"
	"errors"
	"fmt"

	"Symposium/internal/models"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

func init() {
	Register("gemini", func(ctx context.Context, cfg ClientConfig) (LLM, error) {
		return NewGemini(ctx, cfg)
	})
}

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
// 每次调用都基于请求中携带的历史构造一个全新的聊天会话，
// 客户端本身不保存任何对话状态。
type Gemini struct {
	client      *genai.Client // GenAI 客户端实例。
	model       string        // 要使用的 Gemini 模型名称。
	temperature *float32      // 采样温度。
	maxTokens   int           // 生成长度上限。
}

// NewGemini 创建一个新的 Gemini 客户端。
//
// 参数:
//
//	ctx: 上下文，用于控制客户端的生命周期。
//	cfg: 客户端配置，包含模型名称、API 密钥与采样参数。
//
// 返回值:
//
//	*Gemini: 新创建的 Gemini 客户端实例。
//	error: 如果无法创建 GenAI 客户端，则返回错误。
func NewGemini(ctx context.Context, cfg ClientConfig) (*Gemini, error) {
	// 使用 API 密钥创建 GenAI 客户端。
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// session 根据请求构造生成模型与一次性聊天会话。
func (g *Gemini) session(req *models.GenerateContentRequest) *genai.ChatSession {
	generativeModel := g.client.GenerativeModel(g.model)
	if req.System != "" {
		generativeModel.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if g.temperature != nil {
		generativeModel.SetTemperature(*g.temperature)
	}
	if g.maxTokens > 0 {
		generativeModel.SetMaxOutputTokens(int32(g.maxTokens))
	}

	chatSession := generativeModel.StartChat()
	chatSession.History = toGenaiHistory(req.History)
	return chatSession
}

// GenerateContent 向 Gemini API 发送请求并返回响应。
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	// 将内部内容格式转换为 GenAI 部分，并发送消息。
	resp, err := g.session(req).SendMessage(ctx, toGenaiParts(req.Content)...)
	if err != nil {
		return nil, generationError("gemini", err)
	}
	return fromGenaiResponse(resp), nil
}

// GenerateContentStream 向 Gemini API 发送请求并返回响应通道。
func (g *Gemini) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	ch := make(chan *models.GenerateContentResponse)
	iter := g.session(req).SendMessageStream(ctx, toGenaiParts(req.Content)...)

	// 启动一个 goroutine 来处理流式响应。
	go func() {
		defer close(ch)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				return
			}
			ch <- fromGenaiResponse(resp)
		}
	}()

	return ch, nil
}

// toGenaiHistory 将内部历史转换为 GenAI 聊天历史。
func toGenaiHistory(history []models.Content) []*genai.Content {
	var out []*genai.Content
	for _, c := range history {
		role := "user"
		if c.Role == models.SpeakerModel {
			role = "model"
		}
		out = append(out, &genai.Content{
			Parts: toGenaiParts([]models.Content{c}),
			Role:  role,
		})
	}
	return out
}

// toGenaiParts 将内部 Content 结构体转换为 GenAI Part 切片。
func toGenaiParts(content []models.Content) []genai.Part {
	var parts []genai.Part
	// 遍历内部 Content，将其中的部分转换为对应的 GenAI Part。
	for _, c := range content {
		for _, p := range c.Parts {
			if p.Text != "" {
				parts = append(parts, genai.Text(p.Text))
			} else if p.InlineData != nil {
				parts = append(parts, genai.Blob{
					MIMEType: p.InlineData.MIMEType,
					Data:     p.InlineData.Data,
				})
			} else if p.FunctionResponse != nil {
				parts = append(parts, genai.FunctionResponse{
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				})
			}
			// FunctionCall 通常是从模型接收的，客户端不会在请求中发送。
		}
	}
	return parts
}

// fromGenaiResponse 将 GenAI GenerateContentResponse 转换为内部 GenerateContentResponse 结构体。
func fromGenaiResponse(resp *genai.GenerateContentResponse) *models.GenerateContentResponse {
	if resp == nil {
		return nil
	}
	var content []models.Content
	// 遍历 GenAI 响应中的候选者，并将其内容转换为内部 Content 结构体。
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			content = append(content, fromGenaiContent(cand.Content))
		}
	}
	return &models.GenerateContentResponse{
		Content: content,
	}
}

// fromGenaiContent 将 GenAI Content 结构体转换为内部 Content 结构体。
func fromGenaiContent(content *genai.Content) models.Content {
	var parts []*models.Part
	for _, p := range content.Parts {
		parts = append(parts, fromGenaiPart(p))
	}
	role := models.SpeakerModel
	if content.Role == "user" {
		role = models.SpeakerUser
	}
	return models.Content{
		Parts: parts,
		Role:  role,
	}
}

// fromGenaiPart 将 GenAI Part 接口转换为内部 Part 结构体。
func fromGenaiPart(part genai.Part) *models.Part {
	// 根据 GenAI Part 的具体类型进行转换。
	switch v := part.(type) {
	case genai.Text:
		return &models.Part{Text: string(v)}
	case genai.Blob:
		return &models.Part{
			InlineData: &models.Blob{
				MIMEType: v.MIMEType,
				Data:     v.Data,
			},
		}
	case genai.FunctionCall:
		return &models.Part{
			FunctionCall: &models.FunctionCall{
				Name: v.Name,
				Args: v.Args,
			},
		}
	case genai.FunctionResponse:
		return &models.Part{
			FunctionResponse: &models.FunctionResponse{
				Name:     v.Name,
				Response: v.Response,
			},
		}
	default:
		return &models.Part{Text: fmt.Sprintf("%v", v)}
	}
}
