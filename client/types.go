package client

import (
	"time"

	"github.com/mengeric/extractjob-go/job"
)

// SubmitRequest 提交任务请求体。
type SubmitRequest struct {
	Subject string         `json:"subject"`
	Params  map[string]any `json:"params,omitempty"`
}

// SubmitResponse 提交成功响应。
type SubmitResponse struct {
	JobID     string     `json:"job_id"`
	Status    job.Status `json:"status"`
	CreatedAt string     `json:"created_at"`
	Message   string     `json:"message"`
}

// ErrorBody 服务端错误响应。
type ErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	ActiveJobs int    `json:"active_jobs"`
	RetryAfter int    `json:"retry_after"`
}

// Summary /jobs 总览。
type Summary struct {
	Total          int                `json:"total_jobs"`
	Active         int                `json:"active_jobs"`
	MaxConcurrent  int                `json:"max_concurrent_jobs"`
	AvailableSlots int                `json:"available_slots"`
	ByStatus       map[job.Status]int `json:"jobs_by_status"`
}

// Health /health 响应中客户端关心的字段。
type Health struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	ActiveJobs     int       `json:"active_jobs"`
	AvailableSlots int       `json:"available_slots"`
	SystemLoad     string    `json:"system_load"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
}
