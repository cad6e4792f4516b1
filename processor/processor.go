package processor

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Payload 处理器输出，原样写入产物。
// 若包含非空 "error" 字段，视为失败。
type Payload = map[string]any

// ErrorKey 结果中的显式错误标记字段。
const ErrorKey = "error"

// Reporter 进度上报回调；可调用任意次，百分比允许乱序。
type Reporter func(percentage int, message string, extra map[string]any)

// WorkFunc 处理器函数：执行实际的抽取任务。
// ctx 在进程关闭或任务超时时取消，处理器可以选择是否响应。
type WorkFunc func(ctx context.Context, jobID string, report Reporter, input any) (Payload, error)

// ErrNotFound 处理器不存在错误。
var ErrNotFound = errors.New("processor not found")

// Catalog 按任务类型注册处理器。
type Catalog struct {
	mu    sync.RWMutex
	funcs map[string]WorkFunc
}

// NewCatalog 创建空目录。
func NewCatalog() *Catalog { return &Catalog{funcs: map[string]WorkFunc{}} }

// Register 注册处理器，同名覆盖。
func (c *Catalog) Register(kind string, fn WorkFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[kind] = fn
}

// Get 获取处理器。
func (c *Catalog) Get(kind string) (WorkFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[kind]
	return fn, ok
}

// Kinds 返回已注册类型（有序）。
func (c *Catalog) Kinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.funcs))
	for k := range c.funcs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ErrorMarker 返回 payload 中的显式错误标记。
func ErrorMarker(p Payload) (string, bool) {
	if p == nil {
		return "", false
	}
	switch v := p[ErrorKey].(type) {
	case string:
		return v, v != ""
	case error:
		return v.Error(), true
	default:
		return "", false
	}
}
