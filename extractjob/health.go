package extractjob

import (
	"context"
	"time"

	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/metrics"
)

// Summary 任务总览。
type Summary struct {
	Total          int                `json:"total_jobs"`
	Active         int                `json:"active_jobs"`
	MaxConcurrent  int                `json:"max_concurrent_jobs"`
	AvailableSlots int                `json:"available_slots"`
	ByStatus       map[job.Status]int `json:"jobs_by_status"`
}

// Health 健康检查结果。
type Health struct {
	Status         string               `json:"status"`
	Timestamp      time.Time            `json:"timestamp"`
	ActiveJobs     int                  `json:"active_jobs"`
	MaxConcurrent  int                  `json:"max_concurrent_jobs"`
	AvailableSlots int                  `json:"available_slots"`
	SystemLoad     string               `json:"system_load"`
	UptimeSeconds  int64                `json:"uptime_seconds"`
	Uptime         string               `json:"uptime"`
	System         metrics.SystemMetric `json:"system"`
}

// Summary 返回任务总数、运行数、剩余名额与各状态计数。
func (e *Engine) Summary() Summary {
	s := e.reg.Summary()
	return Summary{
		Total:          s.Total,
		Active:         s.Active,
		MaxConcurrent:  e.launcher.MaxConcurrent(),
		AvailableSlots: e.launcher.AvailableSlots(),
		ByStatus:       s.ByStatus,
	}
}

// Health 返回负载等级、运行时长与主机指标。
func (e *Engine) Health(ctx context.Context) Health {
	active := e.launcher.ActiveCount()
	max := e.launcher.MaxConcurrent()
	up := time.Since(e.started)
	return Health{
		Status:         "healthy",
		Timestamp:      time.Now(),
		ActiveJobs:     active,
		MaxConcurrent:  max,
		AvailableSlots: e.launcher.AvailableSlots(),
		SystemLoad:     metrics.LoadLevel(active, max),
		UptimeSeconds:  int64(up.Seconds()),
		Uptime:         up.Round(time.Second).String(),
		System:         e.collect(ctx, e.diskPath()),
	}
}
