// Package extractjob 是任务编排引擎的门面：登记表、准入控制、后台清理、心跳与 HTTP 接口。
package extractjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mengeric/extractjob-go/artifact"
	"github.com/mengeric/extractjob-go/config"
	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/logging"
	"github.com/mengeric/extractjob-go/metrics"
	"github.com/mengeric/extractjob-go/processor"
	"github.com/mengeric/extractjob-go/scheduler"
)

// ErrUnknownKind 目录中没有该任务类型的处理器。
var ErrUnknownKind = errors.New("extractjob: unknown job kind")

// Engine 组件主对象。
// 说明：所有状态迁移由 job.Registry 完成，并发上限由 scheduler.Launcher 把守；
// Engine 只负责组装与对外暴露。
type Engine struct {
	cfg     config.Config
	reg     *job.Registry
	store   artifact.Store
	catalog *processor.Catalog
	log     logging.Logger

	launcher  *scheduler.Launcher
	sweeper   *scheduler.Sweeper
	heartbeat *scheduler.Heartbeat
	echo      *echo.Echo

	closeStore func() error
	closeOnce  sync.Once
	started    time.Time
	collect    func(ctx context.Context, path string) metrics.SystemMetric

	addrMu  sync.RWMutex
	listen  string
	boundTo string
}

// New 创建 Engine。
// 功能：按可选项组装登记表、产物存储、调度器、清理器与心跳，并注册 HTTP 路由。
// 参数：
//   - opts：WithConfig / WithStore / WithCatalog / WithLogger / WithAddr；
//
// 返回：
//   - *Engine：可直接调用 Submit 等方法，或通过 Run 启动后台任务与 HTTP 服务；
//   - error：配置非法或存储无法打开。
func New(opts ...Option) (*Engine, error) {
	ec := &engineConfig{}
	for _, fn := range opts {
		fn(ec)
	}
	ec.withDefaults()
	if err := ec.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		cfg:        ec.cfg,
		reg:        job.NewRegistry(),
		store:      ec.store,
		catalog:    ec.catalog,
		log:        ec.log,
		closeStore: func() error { return nil },
		started:    time.Now(),
		collect:    metrics.CollectSystemMetric,
		listen:     ec.addr,
	}
	if e.store == nil {
		s, closeFn, err := openStore(ec.cfg)
		if err != nil {
			return nil, err
		}
		e.store, e.closeStore = s, closeFn
	}

	e.launcher = scheduler.NewLauncher(e.reg, e.store,
		scheduler.WithMaxConcurrent(ec.cfg.MaxConcurrentJobs),
		scheduler.WithRetention(ec.cfg.CleanupAfter),
		scheduler.WithJobTimeout(ec.cfg.JobTimeout),
		scheduler.WithLogger(e.log),
	)
	e.sweeper = scheduler.NewSweeper(e.reg, e.store,
		scheduler.WithSweepInterval(ec.cfg.SweepInterval),
		scheduler.WithSweepRetention(ec.cfg.CleanupAfter),
		scheduler.WithSweepLogger(e.log),
	)
	e.heartbeat = scheduler.NewHeartbeat(e.launcher, e.diskPath(), ec.cfg.HeartbeatInterval, e.log)
	e.echo = e.newEcho()
	return e, nil
}

// Config 返回生效配置。
func (e *Engine) Config() config.Config { return e.cfg }

// Store 返回产物存储。
func (e *Engine) Store() artifact.Store { return e.store }

// CreateJob 登记一个 queued 任务并返回其ID。
func (e *Engine) CreateJob(kind, subject string) string {
	id := e.reg.Create(kind, subject)
	e.log.Debug(logging.WithJob(context.Background(), id), "job created", "kind", kind)
	return id
}

// StartJob 尝试启动 queued 任务。名额已满返回 scheduler.ErrCapacity，
// 任务不存在或不是 queued 返回 scheduler.ErrNotQueued（均可用 errors.Is 判断）。
func (e *Engine) StartJob(ctx context.Context, id string, fn processor.WorkFunc, input any) error {
	err := e.launcher.Start(id, fn, input)
	if err != nil {
		e.log.Warn(logging.WithJob(ctx, id), "job start rejected", "err", err)
	}
	return err
}

// Submit 按任务类型创建并启动任务。
// 启动被拒绝时该任务会被取消，不会遗留在 queued 状态；返回的 ID 仍可用于查询。
func (e *Engine) Submit(ctx context.Context, kind, subject string, input any) (string, error) {
	fn, ok := e.catalog.Get(kind)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	id := e.CreateJob(kind, subject)
	if err := e.StartJob(ctx, id, fn, input); err != nil {
		e.reg.Cancel(id)
		return id, err
	}
	return id, nil
}

// GetStatus 返回任务快照。
func (e *Engine) GetStatus(id string) (job.Job, bool) { return e.reg.Get(id) }

// GetArtifactLocation 仅当任务已完成且产物仍存在时返回其引用。
func (e *Engine) GetArtifactLocation(ctx context.Context, id string) (string, bool) {
	j, ok := e.reg.Get(id)
	if !ok || j.Status != job.StatusCompleted || j.ArtifactRef == "" {
		return "", false
	}
	if !e.store.Exists(ctx, j.ArtifactRef) {
		return "", false
	}
	return j.ArtifactRef, true
}

// CancelJob 取消 queued 任务；运行中或已终结的任务返回 false。
func (e *Engine) CancelJob(id string) bool { return e.reg.Cancel(id) }

// ActiveCount 当前运行中的任务数。
func (e *Engine) ActiveCount() int { return e.launcher.ActiveCount() }

// Kinds 返回已注册的任务类型。
func (e *Engine) Kinds() []string { return e.catalog.Kinds() }

// Stop 拒绝新任务，等待 worker 退出并释放存储。
func (e *Engine) Stop(ctx context.Context) error {
	err := e.launcher.Stop(ctx)
	e.closeOnce.Do(func() {
		if cerr := e.closeStore(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	})
	return err
}

func (e *Engine) diskPath() string {
	if e.cfg.Storage.Driver == "file" {
		return e.cfg.Storage.ResultsDir
	}
	return ""
}
