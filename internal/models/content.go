package models

import "time"

// SpeakerRole 定义了消息发送者的角色。
type SpeakerRole string

const (
	SpeakerUser   SpeakerRole = "user"   // 用户角色。
	SpeakerModel  SpeakerRole = "model"  // 模型角色。
	SpeakerSystem SpeakerRole = "system" // 系统角色，用于系统提示与工具结果。
)

// Content 包含了构成单个消息的多个部分。
type Content struct {
	// 可选。构成单个消息的部分列表。
	Parts []*Part `json:"parts,omitempty"`
	// 可选。内容的生产者。
	Role SpeakerRole `json:"role,omitempty"`
}

// GenerateContentRequest 定义了生成内容的请求结构。
// History 是可选的前序对话轮次，按时间顺序排列，在发送给提供商时被置于新消息之前。
type GenerateContentRequest struct {
	System  string    `json:"system,omitempty"`  // 系统级提示（agent 框架信息）。
	History []Content `json:"history,omitempty"` // 前序对话历史。
	Content []Content `json:"content,omitempty"` // 本轮请求的内容列表。
}

// GenerateContentResponse 定义了生成内容的响应结构。
type GenerateContentResponse struct {
	Content      []Content `json:"content,omitempty"`      // 响应的内容列表。
	CreateTime   time.Time `json:"createTime,omitempty"`   // 响应创建时间。
	ResponseID   string    `json:"responseId,omitempty"`   // 响应ID。
	ModelVersion string    `json:"modelVersion,omitempty"` // 模型版本。
}

// Text 提取响应中首个候选的全部文本部分并拼接返回。
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	var out string
	for _, p := range r.Content[0].Parts {
		out += p.Text
	}
	return out
}

// Part 定义了消息的单个部分，可以包含文本、内联数据或函数调用信息。
type Part struct {
	// 可选。内联字节数据。
	InlineData *Blob `json:"inlineData,omitempty"`
	// 可选。从模型返回的预测 [FunctionCall]。
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
	// 可选。[FunctionCall] 的结果输出，用作模型的上下文。
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	// 可选。文本部分（可以是代码）。
	Text string `json:"text,omitempty"`
}

// TextContent 构造一个只包含文本的 Content。
func TextContent(role SpeakerRole, text string) Content {
	return Content{
		Role:  role,
		Parts: []*Part{{Text: text}},
	}
}

// Blob 包含了内联的二进制数据。
type Blob struct {
	// 必填。原始字节数据。
	Data []byte `json:"data,omitempty"`
	// 必填。源数据的 IANA 标准 MIME 类型。
	MIMEType string `json:"mimeType,omitempty"`
}

// FunctionCall 包含了模型预测的函数调用信息。
type FunctionCall struct {
	// 可选。JSON 对象格式的函数参数和值。
	Args map[string]any `json:"args,omitempty"`
	// 必填。要调用的函数名称。
	Name string `json:"name,omitempty"`
}

// FunctionResponse 包含了函数调用的结果输出。
type FunctionResponse struct {
	// 必填。函数名称，与 [FunctionCall.Name] 匹配。
	Name string `json:"name,omitempty"`
	// 必填。JSON 对象格式的函数响应。
	Response map[string]any `json:"response,omitempty"`
}
