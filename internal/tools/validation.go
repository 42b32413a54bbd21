package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"

	"gopkg.in/yaml.v3"
)

// TypeValidation 是语法校验工具的类型标识。
const TypeValidation = "validation"

// Validation 校验一段内容是否是语法合法的 Go、JSON 或 YAML。
// 校验失败是正常的结果值而不是错误。
type Validation struct{}

// NewValidation 创建语法校验工具。
func NewValidation(_ Options, _ map[string]any) (Tool, error) {
	return &Validation{}, nil
}

func (v *Validation) Type() string {
	return TypeValidation
}

// Execute 校验 params 中的内容。
// params: format (go|json|yaml), content。
func (v *Validation) Execute(_ context.Context, params map[string]any) *Result {
	format, _ := params["format"].(string)
	content, _ := params["content"].(string)
	if format == "" {
		return fail("missing required parameter: format")
	}
	if content == "" {
		return fail("missing required parameter: content")
	}

	var checkErr error
	switch format {
	case "go":
		fset := token.NewFileSet()
		_, checkErr = parser.ParseFile(fset, "input.go", content, parser.AllErrors)
	case "json":
		var value any
		checkErr = json.Unmarshal([]byte(content), &value)
	case "yaml":
		var value any
		checkErr = yaml.Unmarshal([]byte(content), &value)
	default:
		return fail(fmt.Sprintf("unsupported format: %s", format))
	}

	if checkErr != nil {
		return ok(map[string]any{
			"format": format,
			"valid":  false,
			"detail": checkErr.Error(),
		})
	}
	return ok(map[string]any{
		"format": format,
		"valid":  true,
	})
}
