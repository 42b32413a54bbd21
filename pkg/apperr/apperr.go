package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 是错误的稳定分类标签，随错误一路传递到 API 边界，
// 在那里映射为 HTTP 状态码。
type Kind string

const (
	KindValidation    Kind = "validation"     // 配置或请求参数非法
	KindNotFound      Kind = "not_found"      // 引用的 agent/session/tool/provider 不存在或未激活
	KindGeneration    Kind = "generation"     // 模型后端调用失败（网络、认证、限流、响应异常）
	KindTool          Kind = "tool"           // 工具查找或执行失败
	KindStateConflict Kind = "state_conflict" // 操作与对象当前状态冲突（例如向已结束会话发消息）
	KindInternal      Kind = "internal"       // 其他内部错误
)

// Error 携带分类标签与人类可读消息，并包装原始错误。
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建一个不包装其他错误的分类错误。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf 创建一个带格式化消息的分类错误。
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 将底层错误包装为分类错误，原始错误可用 errors.Unwrap 取回。
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf 提取错误的分类标签；非分类错误返回 KindInternal。
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于指定分类。
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus 将错误分类映射为 HTTP 状态码，供 gin 边界使用。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict:
		return http.StatusConflict
	case KindGeneration, KindTool:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
