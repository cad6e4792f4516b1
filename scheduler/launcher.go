package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mengeric/extractjob-go/artifact"
	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/logging"
	"github.com/mengeric/extractjob-go/processor"
	"github.com/mengeric/extractjob-go/tracker"
)

// DefaultItemCountKeys 从结果中读取条目数时依次尝试的字段。
var DefaultItemCountKeys = []string{"count", "total_items", "total_reactions", "total_comments"}

// Launcher 准入控制与 worker 派发。
// 活跃 worker 句柄的计数、检查与增减都在 mu 内完成，
// 因此并发 Start 不会突破 maxConcurrent。
type Launcher struct {
	reg   *job.Registry
	store artifact.Store
	trk   *tracker.Manager

	maxConcurrent int
	retention     time.Duration
	jobTimeout    time.Duration
	countKeys     []string
	log           logging.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	base    context.Context
	cancel  context.CancelFunc
}

// LauncherOption Launcher 可选项。
type LauncherOption func(*Launcher)

// WithMaxConcurrent 并发上限，默认 5。
func WithMaxConcurrent(n int) LauncherOption { return func(l *Launcher) { l.maxConcurrent = n } }

// WithRetention 结果保留时长，用于计算下载过期时间，默认 24h。
func WithRetention(d time.Duration) LauncherOption { return func(l *Launcher) { l.retention = d } }

// WithJobTimeout 单任务最长运行时间；超时后任务记为失败并释放名额。0 表示不限时。
func WithJobTimeout(d time.Duration) LauncherOption { return func(l *Launcher) { l.jobTimeout = d } }

// WithItemCountKeys 覆盖条目数字段。
func WithItemCountKeys(keys ...string) LauncherOption {
	return func(l *Launcher) { l.countKeys = keys }
}

// WithLogger 注入日志器。
func WithLogger(lg logging.Logger) LauncherOption { return func(l *Launcher) { l.log = lg } }

// NewLauncher 创建 Launcher。
func NewLauncher(reg *job.Registry, store artifact.Store, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		reg:           reg,
		store:         store,
		trk:           tracker.NewManager(),
		maxConcurrent: 5,
		retention:     24 * time.Hour,
		countKeys:     DefaultItemCountKeys,
	}
	for _, fn := range opts {
		fn(l)
	}
	if l.maxConcurrent <= 0 {
		l.maxConcurrent = 1
	}
	if l.log == nil {
		l.log = logging.L()
	}
	l.base, l.cancel = context.WithCancel(context.Background())
	return l
}

// Start 启动一个 queued 任务。
// 返回 nil 表示已受理；否则返回 *RejectedError（ErrCapacity / ErrNotQueued / ErrStopped）。
func (l *Launcher) Start(id string, fn processor.WorkFunc, input any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := l.trk.Len()
	if l.stopped {
		return &RejectedError{JobID: id, Reason: ErrStopped, Active: active}
	}
	// 未知或已启动的任务先于名额检查拒绝
	if j, ok := l.reg.Get(id); !ok || j.Status != job.StatusQueued {
		return &RejectedError{JobID: id, Reason: ErrNotQueued, Active: active}
	}
	if active >= l.maxConcurrent {
		return &RejectedError{JobID: id, Reason: ErrCapacity, Active: active}
	}
	// 与并发 Cancel 竞争时以此为准
	if !l.reg.TransitionToRunning(id) {
		return &RejectedError{JobID: id, Reason: ErrNotQueued, Active: active}
	}
	ins := l.trk.Start(l.base, id)
	l.wg.Add(1)
	go l.run(ins, fn, input)
	return nil
}

// ActiveCount 当前活跃 worker 数。
func (l *Launcher) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trk.Len()
}

// MaxConcurrent 并发上限。
func (l *Launcher) MaxConcurrent() int { return l.maxConcurrent }

// AvailableSlots 剩余名额。
func (l *Launcher) AvailableSlots() int {
	n := l.maxConcurrent - l.ActiveCount()
	if n < 0 {
		return 0
	}
	return n
}

// Stop 拒绝新任务，取消所有 worker 的上下文并等待其退出。
// ctx 到期时返回 ctx.Err()，此时仍可能有处理器在收尾。
func (l *Launcher) Stop(ctx context.Context) error {
	l.mu.Lock()
	l.stopped = true
	l.trk.CancelAll()
	l.mu.Unlock()
	l.cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		l.log.Warn(ctx, "launcher stop timed out", "active", l.ActiveCount())
		return ctx.Err()
	}
}

// release 归还名额。
func (l *Launcher) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trk.Stop(id)
}
