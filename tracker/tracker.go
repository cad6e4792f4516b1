package tracker

import (
	"context"
	"sync"
	"time"
)

// Instance 运行中任务的句柄：执行上下文、取消函数与启动时间。
type Instance struct {
	JobID     string
	Ctx       context.Context
	Cancel    context.CancelFunc
	StartedAt time.Time
}

// Manager 运行中任务句柄跟踪器；句柄数量即活跃 worker 数。
type Manager struct {
	mu      sync.RWMutex
	running map[string]*Instance
}

// NewManager 构造。
func NewManager() *Manager { return &Manager{running: map[string]*Instance{}} }

// Start 注册句柄，ctx 派生自 parent。同一ID重复注册返回 nil。
func (m *Manager) Start(parent context.Context, id string) *Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[id]; ok {
		return nil
	}
	ctx, cancel := context.WithCancel(parent)
	ins := &Instance{JobID: id, Ctx: ctx, Cancel: cancel, StartedAt: time.Now()}
	m.running[id] = ins
	return ins
}

// Stop 取消并移除句柄；句柄不存在时返回 false。
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ins, ok := m.running[id]; ok {
		ins.Cancel()
		delete(m.running, id)
		return true
	}
	return false
}

// Get 查询句柄。
func (m *Manager) Get(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ins, ok := m.running[id]
	return ins, ok
}

// Len 返回当前句柄数。
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.running)
}

// ListIDs 返回当前运行任务ID集合。
func (m *Manager) ListIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	return ids
}

// CancelAll 取消全部句柄的上下文（不移除，句柄由各自 worker 退出时 Stop）。
func (m *Manager) CancelAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ins := range m.running {
		ins.Cancel()
	}
}
