// Package job 定义任务记录及其线程安全的登记表（Registry）。
//
// 状态机：
//
//	queued --start--> running --success--> completed
//	queued --start--> running --failure--> failed
//	queued --cancel-------------------> cancelled
//
// completed/failed/cancelled 为终态，不再迁移。
package job

import (
	"maps"
	"time"
)

// Status 任务状态。
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Statuses 全部状态，按生命周期顺序。
var Statuses = []Status{StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}

// Terminal 是否为终态。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Progress 进度快照。Extra 存放处理器自行上报的附加字段（页码、条数等）。
type Progress struct {
	Percentage int            `json:"percentage"`
	Message    string         `json:"message"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Result 成功任务的结果摘要。
type Result struct {
	ItemCount     int            `json:"total_items"`
	ArtifactBytes int64          `json:"file_bytes"`
	ArtifactSize  string         `json:"file_size"`
	ExpiresAt     time.Time      `json:"download_expires_at"`
	PersistError  string         `json:"persist_error,omitempty"` // 结果落盘失败原因（不影响 completed 状态）
	Summary       map[string]any `json:"summary,omitempty"`
}

// Job 任务记录。Registry 对外只返回副本。
type Job struct {
	ID           string     `json:"job_id"`
	Kind         string     `json:"job_type"`
	Subject      string     `json:"subject"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Progress     Progress   `json:"progress"`
	Result       *Result    `json:"result,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ArtifactRef  string     `json:"-"`
}

// clone 深拷贝，避免调用方拿到共享的 map/指针。
func (j *Job) clone() Job {
	cp := *j
	cp.StartedAt = cloneTime(j.StartedAt)
	cp.CompletedAt = cloneTime(j.CompletedAt)
	cp.Progress.Extra = maps.Clone(j.Progress.Extra)
	if j.Result != nil {
		r := *j.Result
		r.Summary = maps.Clone(j.Result.Summary)
		cp.Result = &r
	}
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Summary 登记表统计。
type Summary struct {
	Total    int            `json:"total_jobs"`
	Active   int            `json:"active_jobs"`
	ByStatus map[Status]int `json:"jobs_by_status"`
}
