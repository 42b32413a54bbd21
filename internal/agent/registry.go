package agent

import "sync"

// LocalRegistry 在内存中存储和管理已激活 agent 的运行时实例。
// 键是 agent 的数据库 id。
type LocalRegistry struct {
	runtimes map[uint]*Runtime
	mutex    sync.RWMutex
}

// NewLocalRegistry 创建一个新的本地注册表实例。
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{
		runtimes: make(map[uint]*Runtime),
	}
}

// Register 将一个运行时实例添加到注册表，替换同 id 的旧实例。
func (r *LocalRegistry) Register(rt *Runtime) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.runtimes[rt.ID()] = rt
}

// Get 根据 agent id 检索运行时实例。
func (r *LocalRegistry) Get(agentID uint) (*Runtime, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	rt, found := r.runtimes[agentID]
	return rt, found
}

// Remove 从注册表移除指定 agent 的运行时实例。
// 实例不存在时为空操作。
func (r *LocalRegistry) Remove(agentID uint) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.runtimes, agentID)
}

// ActiveIDs 返回所有已注册 agent 的 id 列表。
func (r *LocalRegistry) ActiveIDs() []uint {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	ids := make([]uint, 0, len(r.runtimes))
	for id := range r.runtimes {
		ids = append(ids, id)
	}
	return ids
}
