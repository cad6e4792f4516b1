package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mengeric/extractjob-go/artifact"
	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/logging"
)

// Sweeper 周期性清理超过保留窗口的终态任务及其产物。
type Sweeper struct {
	reg       *job.Registry
	store     artifact.Store
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	log       logging.Logger
}

// SweeperOption Sweeper 可选项。
type SweeperOption func(*Sweeper)

// WithSweepInterval 清理周期，默认 1h。
func WithSweepInterval(d time.Duration) SweeperOption { return func(s *Sweeper) { s.interval = d } }

// WithSweepRetention 保留窗口，默认 24h。
func WithSweepRetention(d time.Duration) SweeperOption { return func(s *Sweeper) { s.retention = d } }

// WithSweepClock 替换时间源（测试用）。
func WithSweepClock(now func() time.Time) SweeperOption { return func(s *Sweeper) { s.now = now } }

// WithSweepLogger 注入日志器。
func WithSweepLogger(lg logging.Logger) SweeperOption { return func(s *Sweeper) { s.log = lg } }

// NewSweeper 构造。
func NewSweeper(reg *job.Registry, store artifact.Store, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{reg: reg, store: store, interval: time.Hour, retention: 24 * time.Hour, now: time.Now}
	for _, fn := range opts {
		fn(s)
	}
	if s.interval <= 0 {
		s.interval = time.Hour
	}
	if s.log == nil {
		s.log = logging.L()
	}
	return s
}

// Start 启动清理任务：立即清理一轮，之后按周期执行，ctx 结束时退出。
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *Sweeper) tick(ctx context.Context) {
	if n, err := s.sweep(ctx); err != nil {
		s.log.Warn(ctx, "sweep finished with errors", "removed", n, "err", err)
	} else if n > 0 {
		s.log.Info(ctx, "sweep removed expired jobs", "removed", n)
	}
}

// SweepOnce 执行一轮清理，返回删除的任务数。
// 产物删除失败只记录日志，不中断本轮；该任务保留到下一轮重试。返回的 error 汇总了这些失败。
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) { return s.sweep(ctx) }

func (s *Sweeper) sweep(ctx context.Context) (removed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panic: %v", r)
			s.log.Error(ctx, "sweep panic recovered", "err", r)
		}
	}()

	cutoff := s.now().Add(-s.retention)
	var errs []error
	for _, j := range s.reg.Expired(cutoff) {
		if j.ArtifactRef != "" {
			if derr := s.store.Delete(ctx, j.ArtifactRef); derr != nil {
				errs = append(errs, fmt.Errorf("delete artifact of %s: %w", j.ID, derr))
				s.log.Warn(logging.WithJob(ctx, j.ID), "delete artifact failed, retry next sweep", "ref", j.ArtifactRef, "err", derr)
				continue
			}
		}
		s.reg.Remove(j.ID)
		removed++
	}
	return removed, errors.Join(errs...)
}
