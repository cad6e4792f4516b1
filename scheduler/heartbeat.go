package scheduler

import (
	"context"
	"time"

	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/logging"
	"github.com/mengeric/extractjob-go/metrics"
)

// Beat 一次心跳快照。
type Beat struct {
	Time      time.Time
	Summary   job.Summary
	Active    int
	Available int
	Running   []string
	System    metrics.SystemMetric
}

// Heartbeat 周期性记录调度器与主机状态。
type Heartbeat struct {
	l        *Launcher
	diskPath string
	interval time.Duration
	log      logging.Logger
	collect  func(ctx context.Context, path string) metrics.SystemMetric
}

// NewHeartbeat 构造。diskPath 为需要关注磁盘占用的结果目录。
func NewHeartbeat(l *Launcher, diskPath string, interval time.Duration, lg logging.Logger) *Heartbeat {
	if lg == nil {
		lg = logging.L()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Heartbeat{l: l, diskPath: diskPath, interval: interval, log: lg, collect: metrics.CollectSystemMetric}
}

// Start 启动心跳。
func (h *Heartbeat) Start(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b := h.Beat(ctx)
				h.log.Info(ctx, "heartbeat",
					"total", b.Summary.Total,
					"active", b.Active,
					"available", b.Available,
					"running", b.Running,
					"load", metrics.LoadLevel(b.Active, h.l.MaxConcurrent()),
					"cpu_load", b.System.CPULoad,
					"disk_usage", b.System.DiskUsageRatio,
					"score", b.System.Score,
				)
			}
		}
	}()
}

// Beat 采集一次快照。
func (h *Heartbeat) Beat(ctx context.Context) Beat {
	return Beat{
		Time:      time.Now(),
		Summary:   h.l.reg.Summary(),
		Active:    h.l.ActiveCount(),
		Available: h.l.AvailableSlots(),
		Running:   h.l.trk.ListIDs(),
		System:    h.collect(ctx, h.diskPath),
	}
}
