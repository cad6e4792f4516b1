package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity 活跃 worker 数已达上限，稍后重试。
	ErrCapacity = errors.New("scheduler: concurrency limit reached")
	// ErrNotQueued 任务不存在或已启动/已终结。
	ErrNotQueued = errors.New("scheduler: job is not queued")
	// ErrStopped 调度器已停止。
	ErrStopped = errors.New("scheduler: launcher stopped")
)

// RejectedError 启动被拒绝。Reason 为上面的哨兵错误之一，可用 errors.Is 判断。
type RejectedError struct {
	JobID  string
	Reason error
	Active int // 拒绝时的活跃 worker 数
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("start %s rejected: %v (active=%d)", e.JobID, e.Reason, e.Active)
}

func (e *RejectedError) Unwrap() error { return e.Reason }
