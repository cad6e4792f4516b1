package job

import (
	"maps"
	"sync"
	"time"
)

// 进度消息。
const (
	MsgQueued    = "queued"
	MsgStarted   = "started"
	MsgCompleted = "completed successfully"
	MsgFailed    = "failed: "
)

// Registry 任务登记表：任务ID -> 任务记录，拥有全部状态迁移。
// 一把互斥锁覆盖整张表，每个操作都是原子的；锁内不做任何 I/O。
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

// RegistryOption Registry 可选项。
type RegistryOption func(*Registry)

// WithClock 替换时间源（测试用）。
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry 创建空登记表。
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{jobs: map[string]*Job{}, now: time.Now}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

// Create 登记一个 queued 任务并返回其ID。创建阶段没有数量限制。
func (r *Registry) Create(kind, subject string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	id := NewID(kind, now)
	for r.jobs[id] != nil {
		id = NewID(kind, now)
	}
	r.jobs[id] = &Job{
		ID:        id,
		Kind:      kind,
		Subject:   subject,
		Status:    StatusQueued,
		CreatedAt: now,
		Progress:  Progress{Percentage: 0, Message: MsgQueued, UpdatedAt: now},
	}
	return id
}

// TransitionToRunning queued -> running；任务不存在或不是 queued 时返回 false。
func (r *Registry) TransitionToRunning(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != StatusQueued {
		return false
	}
	now := r.now()
	j.Status = StatusRunning
	j.StartedAt = &now
	j.Progress = Progress{Percentage: 0, Message: MsgStarted, UpdatedAt: r.stamp(j)}
	return true
}

// UpdateProgress 合并进度快照，不改变状态。任务不存在或已终结时忽略。
func (r *Registry) UpdateProgress(id string, percentage int, message string, extra map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status.Terminal() {
		return
	}
	j.Progress.Percentage = clamp(percentage)
	j.Progress.Message = message
	j.Progress.UpdatedAt = r.stamp(j)
	if len(extra) > 0 {
		if j.Progress.Extra == nil {
			j.Progress.Extra = make(map[string]any, len(extra))
		}
		maps.Copy(j.Progress.Extra, extra)
	}
}

// Complete running -> completed，保存结果摘要与产物引用。
// 任务不存在或不是 running 时忽略。
func (r *Registry) Complete(id string, result Result, artifactRef string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != StatusRunning {
		return
	}
	now := r.now()
	res := result
	res.Summary = maps.Clone(result.Summary)
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.Result = &res
	j.ArtifactRef = artifactRef
	j.Progress.Percentage = 100
	j.Progress.Message = MsgCompleted
	j.Progress.UpdatedAt = r.stamp(j)
}

// Fail running -> failed，记录错误信息。保留最后一次上报的百分比。
// 任务不存在或不是 running 时忽略。
func (r *Registry) Fail(id string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != StatusRunning {
		return
	}
	now := r.now()
	j.Status = StatusFailed
	j.CompletedAt = &now
	j.ErrorMessage = message
	j.Progress.Message = MsgFailed + message
	j.Progress.UpdatedAt = r.stamp(j)
}

// Cancel queued -> cancelled，并记录 CompletedAt 以便清理；其他状态返回 false。
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != StatusQueued {
		return false
	}
	now := r.now()
	j.Status = StatusCancelled
	j.CompletedAt = &now
	j.Progress.Message = string(StatusCancelled)
	j.Progress.UpdatedAt = r.stamp(j)
	return true
}

// Get 返回任务快照。
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.clone(), true
}

// Summary 返回总数、运行中数量与各状态计数。
func (r *Registry) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Summary{Total: len(r.jobs), ByStatus: map[Status]int{}}
	for _, j := range r.jobs {
		s.ByStatus[j.Status]++
	}
	s.Active = s.ByStatus[StatusRunning]
	return s
}

// Expired 返回 CompletedAt 早于 cutoff 的终态任务快照。
func (r *Registry) Expired(cutoff time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Job
	for _, j := range r.jobs {
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			out = append(out, j.clone())
		}
	}
	return out
}

// Remove 删除任务记录，仅供清理器使用。
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// stamp 返回单调不减的进度时间。调用方需持有锁。
func (r *Registry) stamp(j *Job) time.Time {
	now := r.now()
	if now.Before(j.Progress.UpdatedAt) {
		return j.Progress.UpdatedAt
	}
	return now
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
