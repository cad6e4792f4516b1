package metrics

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemMetric 主机与进程指标。
type SystemMetric struct {
	CPULoad        float64 `json:"cpu_load"`
	CPUProcessors  int     `json:"cpu_processors"`
	DiskTotalGB    float64 `json:"disk_total_gb"`
	DiskUsedGB     float64 `json:"disk_used_gb"`
	DiskUsageRatio float64 `json:"disk_usage"`
	MemTotalGB     float64 `json:"mem_total_gb"`
	ProcUsedMemGB  float64 `json:"proc_used_mem_gb"`
	ProcMemUsage   float64 `json:"proc_mem_usage"`
	Goroutines     int     `json:"goroutines"`
	Score          float64 `json:"score"`
}

const gb = 1024 * 1024 * 1024

// CollectSystemMetric 采集系统/进程指标；path 为结果目录所在磁盘（空则为 /）。
// 任一项采集失败只会让该项为 0。
func CollectSystemMetric(ctx context.Context, path string) SystemMetric {
	var out SystemMetric
	if path == "" {
		path = "/"
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		out.CPULoad = avg.Load1
	}
	out.CPUProcessors = runtime.NumCPU()
	out.Goroutines = runtime.NumGoroutine()
	if du, err := disk.UsageWithContext(ctx, path); err == nil && du.Total > 0 {
		out.DiskTotalGB = float64(du.Total) / gb
		out.DiskUsedGB = float64(du.Used) / gb
		out.DiskUsageRatio = du.UsedPercent / 100.0
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm.Total > 0 {
		out.MemTotalGB = float64(vm.Total) / gb
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if pm, err := p.MemoryInfoWithContext(ctx); err == nil && pm != nil {
			out.ProcUsedMemGB = float64(pm.RSS) / gb
			if out.MemTotalGB > 0 {
				out.ProcMemUsage = out.ProcUsedMemGB / out.MemTotalGB
			}
		}
	}
	score := 100.0
	if out.CPULoad > 0 {
		score -= out.CPULoad * 5
	}
	if out.DiskUsageRatio > 0 {
		score -= out.DiskUsageRatio * 20
	}
	if out.ProcMemUsage > 0 {
		score -= out.ProcMemUsage * 30
	}
	if score < 0 {
		score = 0
	}
	out.Score = score
	return out
}

// 负载等级。
const (
	LoadIdle     = "idle"
	LoadLight    = "light"
	LoadModerate = "moderate"
	LoadHeavy    = "heavy"
)

// LoadLevel 按活跃任务占并发上限的比例给出负载等级。
func LoadLevel(active, max int) string {
	switch {
	case active <= 0:
		return LoadIdle
	case max <= 0:
		return LoadHeavy
	case float64(active) < float64(max)*0.5:
		return LoadLight
	case float64(active) < float64(max)*0.8:
		return LoadModerate
	default:
		return LoadHeavy
	}
}
