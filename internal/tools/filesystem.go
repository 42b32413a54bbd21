package tools

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"
)

// TypeFilesystem 是文件系统工具的类型标识。
const TypeFilesystem = "filesystem"

// 单次读取的文件大小上限。
const maxReadBytes = 1 << 20

// Filesystem 提供受限于工作区根目录的文件操作。
// 所有路径先解析为绝对路径并校验在根目录之下，
// 符号链接解析后的真实路径同样必须在根目录内。
type Filesystem struct {
	root string
}

// NewFilesystem 创建文件系统工具。
func NewFilesystem(opts Options, config map[string]any) (Tool, error) {
	root := opts.WorkspaceRoot
	if raw, found := config["root"]; found {
		if value, isString := raw.(string); isString && value != "" {
			root = value
		}
	}
	if root == "" {
		return nil, fmt.Errorf("filesystem tool requires a workspace root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace root: %w", err)
	}
	return &Filesystem{root: abs}, nil
}

func (f *Filesystem) Type() string {
	return TypeFilesystem
}

// Execute 执行一次文件操作。
// params: operation (read|write|list|search|info|delete), path,
// 以及按操作需要的 content / pattern。
func (f *Filesystem) Execute(ctx context.Context, params map[string]any) *Result {
	operation, _ := params["operation"].(string)
	path, _ := params["path"].(string)
	if operation == "" {
		return fail("missing required parameter: operation")
	}
	if path == "" {
		path = "."
	}

	validPath, err := f.validatePath(path)
	if err != nil {
		return fail(err.Error())
	}

	switch operation {
	case "read":
		return f.read(validPath)
	case "write":
		content, _ := params["content"].(string)
		return f.write(validPath, content)
	case "list":
		return f.list(validPath)
	case "search":
		pattern, _ := params["pattern"].(string)
		if pattern == "" {
			return fail("missing required parameter: pattern")
		}
		return f.search(ctx, validPath, pattern)
	case "info":
		return f.info(validPath)
	case "delete":
		return f.delete(validPath)
	default:
		return fail(fmt.Sprintf("unknown operation: %s", operation))
	}
}

// validatePath 将请求路径解析到工作区内并校验边界。
// 相对路径相对于工作区根目录解释。
func (f *Filesystem) validatePath(requested string) (string, error) {
	path := requested
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if !f.inRoot(abs) {
		return "", fmt.Errorf("access denied - path outside workspace: %s", requested)
	}

	// 处理符号链接：已存在的路径按真实路径再校验一次。
	// 路径尚不存在时（例如 write 的目标），向上找到最近的
	// 已存在祖先，解析其真实路径并校验，缺失的部分按词法拼回
	// （abs 已经过 Clean，剩余部分不含 ".."）。
	realPath, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		ancestor := abs
		var missing []string
		for {
			missing = append(missing, filepath.Base(ancestor))
			next := filepath.Dir(ancestor)
			if next == ancestor {
				return "", fmt.Errorf("invalid path: %s", requested)
			}
			ancestor = next
			if _, statErr := os.Lstat(ancestor); statErr == nil {
				break
			} else if !os.IsNotExist(statErr) {
				return "", statErr
			}
		}
		realAncestor, err := filepath.EvalSymlinks(ancestor)
		if err != nil {
			return "", err
		}
		if !f.inRoot(realAncestor) {
			return "", fmt.Errorf("access denied - parent directory outside workspace")
		}
		rebuilt := realAncestor
		for i := len(missing) - 1; i >= 0; i-- {
			rebuilt = filepath.Join(rebuilt, missing[i])
		}
		return rebuilt, nil
	}
	if !f.inRoot(realPath) {
		return "", fmt.Errorf("access denied - symlink target outside workspace")
	}
	return realPath, nil
}

// inRoot 检查绝对路径是否位于工作区根目录之下。
// 结尾加分隔符避免前缀误匹配（/ws/foo 不应匹配 /ws/foobar）。
func (f *Filesystem) inRoot(abs string) bool {
	if abs == f.root {
		return true
	}
	return strings.HasPrefix(abs, f.root+string(filepath.Separator))
}

func (f *Filesystem) read(path string) *Result {
	info, err := os.Stat(path)
	if err != nil {
		return fail(fmt.Sprintf("failed to stat file: %v", err))
	}
	if info.IsDir() {
		return fail("path is a directory, use operation list")
	}
	if info.Size() > maxReadBytes {
		return fail(fmt.Sprintf("file too large: %d bytes (limit %d)", info.Size(), maxReadBytes))
	}

	mimeType := detectMimeType(path)
	if !isTextMime(mimeType) {
		return fail(fmt.Sprintf("refusing to read non-text file (%s)", mimeType))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Sprintf("failed to read file: %v", err))
	}
	return ok(map[string]any{
		"path":      path,
		"content":   string(data),
		"mime_type": mimeType,
		"size":      info.Size(),
	})
}

func (f *Filesystem) write(path, content string) *Result {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(fmt.Sprintf("failed to create parent directory: %v", err))
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fail(fmt.Sprintf("failed to write file: %v", err))
	}
	return ok(map[string]any{
		"path":    path,
		"written": len(content),
	})
}

func (f *Filesystem) list(path string) *Result {
	entries, err := os.ReadDir(path)
	if err != nil {
		return fail(fmt.Sprintf("failed to list directory: %v", err))
	}
	listing := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"name":   entry.Name(),
			"is_dir": entry.IsDir(),
		}
		if info, err := entry.Info(); err == nil {
			item["size"] = info.Size()
		}
		listing = append(listing, item)
	}
	return ok(map[string]any{
		"path":    path,
		"entries": listing,
	})
}

// search 在目录树中按 glob 模式匹配文件名。
func (f *Filesystem) search(ctx context.Context, root, pattern string) *Result {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return fail(fmt.Sprintf("invalid pattern: %v", err))
	}

	var matches []string
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // 跳过无法访问的条目
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !f.inRoot(path) {
			return nil
		}
		if matcher.Match(info.Name()) {
			matches = append(matches, path)
		}
		return nil
	})
	if walkErr != nil {
		return fail(fmt.Sprintf("search aborted: %v", walkErr))
	}
	return ok(map[string]any{
		"pattern": pattern,
		"matches": matches,
		"count":   len(matches),
	})
}

func (f *Filesystem) info(path string) *Result {
	stat, err := os.Stat(path)
	if err != nil {
		return fail(fmt.Sprintf("failed to stat path: %v", err))
	}

	payload := map[string]any{
		"path":        path,
		"size":        stat.Size(),
		"is_dir":      stat.IsDir(),
		"permissions": fmt.Sprintf("%o", stat.Mode().Perm()),
		"modified":    stat.ModTime().Format(time.RFC3339),
	}

	if !stat.IsDir() {
		payload["mime_type"] = detectMimeType(path)
	}

	// times 提供访问时间与（平台支持时的）创建时间。
	if spec, err := times.Stat(path); err == nil {
		payload["accessed"] = spec.AccessTime().Format(time.RFC3339)
		if spec.HasBirthTime() {
			payload["created"] = spec.BirthTime().Format(time.RFC3339)
		}
	}
	return ok(payload)
}

func (f *Filesystem) delete(path string) *Result {
	if path == f.root {
		return fail("refusing to delete workspace root")
	}
	if err := os.RemoveAll(path); err != nil {
		return fail(fmt.Sprintf("failed to delete: %v", err))
	}
	return ok(map[string]any{"path": path, "deleted": true})
}

// detectMimeType 尝试确定文件的 MIME 类型。
func detectMimeType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		// 无法读取文件时回退到基于扩展名的检测。
		if ext := filepath.Ext(path); ext != "" {
			if byExt := mime.TypeByExtension(ext); byExt != "" {
				return byExt
			}
		}
		return "application/octet-stream"
	}
	return mtype.String()
}

// isTextMime 根据 MIME 类型判断文件是否可以作为文本读取。
func isTextMime(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch {
	case strings.HasPrefix(mimeType, "application/json"),
		strings.HasPrefix(mimeType, "application/xml"),
		strings.HasPrefix(mimeType, "application/javascript"),
		strings.HasPrefix(mimeType, "application/x-yaml"),
		strings.HasPrefix(mimeType, "application/yaml"),
		strings.HasPrefix(mimeType, "application/toml"):
		return true
	}
	return strings.Contains(mimeType, "+json") ||
		strings.Contains(mimeType, "+xml") ||
		strings.Contains(mimeType, "+yaml")
}
