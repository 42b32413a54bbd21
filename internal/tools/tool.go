package tools

import "context"

// Tool 定义了所有运行时工具实现必须满足的接口。
type Tool interface {
	// Type 返回工具实现的类型标识，与工具配置实体的 tool_type 对应。
	Type() string
	// Execute 执行一次工具调用。执行中的业务失败记录在 Result 中返回，
	// 只有基础设施层面的问题才作为 error 返回。
	Execute(ctx context.Context, params map[string]any) *Result
}

// Closer 由持有外部资源（浏览器会话等）的工具实现。
type Closer interface {
	Close() error
}

// Result 是一次工具调用的结果。失败同样是一个正常的结果值，
// Success 为 false 且 Error 描述原因。
type Result struct {
	Success   bool   `json:"success"`
	Output    any    `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// ok 构造一个成功结果。
func ok(output any) *Result {
	return &Result{Success: true, Output: output}
}

// fail 构造一个失败结果。
func fail(message string) *Result {
	return &Result{Success: false, Error: message}
}
