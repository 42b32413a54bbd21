package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TypeCodeExecution 是代码执行工具的类型标识。
const TypeCodeExecution = "code_execution"

// 各语言的源文件扩展名与解释器命令。
var languageRunners = map[string]struct {
	ext  string
	cmd  string
	args []string
}{
	"python": {ext: ".py", cmd: "python3"},
	"bash":   {ext: ".sh", cmd: "bash"},
	"node":   {ext: ".js", cmd: "node"},
	"go":     {ext: ".go", cmd: "go", args: []string{"run"}},
}

// CodeExecution 在工作区内的临时文件中执行一段代码。
// 源码写入工作区下的临时目录，由对应解释器在超时限制内运行，
// 标准输出、标准错误与退出码作为结果返回。
type CodeExecution struct {
	workspaceRoot string
	timeout       time.Duration
	allowed       map[string]struct{}
}

// NewCodeExecution 创建代码执行工具。
// 配置未声明 allowed_languages 时使用环境配置中的语言列表，
// 两者都为空时允许全部已知语言。
func NewCodeExecution(opts Options, config map[string]any) (Tool, error) {
	if opts.WorkspaceRoot == "" {
		return nil, fmt.Errorf("code execution requires a workspace root")
	}
	timeout := opts.ExecTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	languages := opts.AllowedLanguages
	if raw, found := config["allowed_languages"]; found {
		if items, isList := raw.([]any); isList {
			languages = languages[:0]
			for _, item := range items {
				if name, isString := item.(string); isString {
					languages = append(languages, name)
				}
			}
		}
	}
	allowed := make(map[string]struct{}, len(languages))
	for _, name := range languages {
		allowed[name] = struct{}{}
	}
	if len(allowed) == 0 {
		for name := range languageRunners {
			allowed[name] = struct{}{}
		}
	}

	return &CodeExecution{
		workspaceRoot: opts.WorkspaceRoot,
		timeout:       timeout,
		allowed:       allowed,
	}, nil
}

func (c *CodeExecution) Type() string {
	return TypeCodeExecution
}

// Execute 运行 params 中的代码。
// params: language (必填), code (必填)。
func (c *CodeExecution) Execute(ctx context.Context, params map[string]any) *Result {
	language, _ := params["language"].(string)
	code, _ := params["code"].(string)
	if language == "" {
		return fail("missing required parameter: language")
	}
	if code == "" {
		return fail("missing required parameter: code")
	}

	runner, known := languageRunners[language]
	if !known {
		return fail(fmt.Sprintf("unknown language: %s", language))
	}
	if _, isAllowed := c.allowed[language]; !isAllowed {
		return fail(fmt.Sprintf("language not allowed: %s", language))
	}

	// 源码写入工作区下的一次性目录，运行结束后清理。
	runDir := filepath.Join(c.workspaceRoot, ".runs", uuid.NewString())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fail(fmt.Sprintf("failed to create run directory: %v", err))
	}
	defer os.RemoveAll(runDir)

	srcPath := filepath.Join(runDir, "main"+runner.ext)
	if err := os.WriteFile(srcPath, []byte(code), 0o644); err != nil {
		return fail(fmt.Sprintf("failed to write source file: %v", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string(nil), runner.args...), srcPath)
	cmd := exec.CommandContext(runCtx, runner.cmd, args...)
	cmd.Dir = runDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, isExit := err.(*exec.ExitError); isExit {
			exitCode = exitErr.ExitCode()
		} else if runCtx.Err() == context.DeadlineExceeded {
			return fail(fmt.Sprintf("execution timed out after %s", c.timeout))
		} else {
			return fail(fmt.Sprintf("failed to run %s: %v", runner.cmd, err))
		}
	}

	result := ok(map[string]any{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	})
	if exitCode != 0 {
		result.Success = false
		result.Error = fmt.Sprintf("process exited with code %d", exitCode)
	}
	return result
}
