package tools

import (
	"sort"
	"sync"
	"time"
)

// Options 是工具构造时的环境配置，来自应用配置的 tools 段。
type Options struct {
	WorkspaceRoot    string        // 文件与代码执行的根目录，所有路径被限制在其下
	ExecTimeout      time.Duration // 单次代码执行的超时上限
	AllowedLanguages []string      // 代码执行允许的语言
	BrowserRemoteURL string        // 远程浏览器的 CDP WebSocket 地址，为空时本地启动
	BrowserHeadless  bool          // 本地启动浏览器时是否无头
}

// Constructor 根据环境配置与合并后的工具配置构造一个工具实例。
type Constructor func(opts Options, config map[string]any) (Tool, error)

// Registry 维护 tool_type 到构造函数的查找表。
// 一个 tool_type 是否可用完全由表中是否存在对应条目决定，
// 可用性不落库，新增工具实现只需注册构造函数。
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry 创建一个空的工具注册表。
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// NewDefaultRegistry 创建一个注册了全部内建工具的注册表。
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeCodeExecution, NewCodeExecution)
	r.Register(TypeFilesystem, NewFilesystem)
	r.Register(TypeValidation, NewValidation)
	r.Register(TypeVisualInspection, NewVisualInspection)
	return r
}

// Register 注册一个 tool_type 的构造函数，覆盖同名条目。
func (r *Registry) Register(toolType string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[toolType] = c
}

// Available 报告指定 tool_type 是否有已注册的实现。
func (r *Registry) Available(toolType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.constructors[toolType]
	return found
}

// Types 返回所有已注册的 tool_type，按字典序排列。
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// construct 查找并调用 tool_type 的构造函数。
func (r *Registry) construct(toolType string, opts Options, config map[string]any) (Tool, bool, error) {
	r.mu.RLock()
	c, found := r.constructors[toolType]
	r.mu.RUnlock()
	if !found {
		return nil, false, nil
	}
	tool, err := c(opts, config)
	return tool, true, err
}
