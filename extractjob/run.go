package extractjob

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// shutdownTimeout 关闭 HTTP 服务与等待 worker 的最长时间。
const shutdownTimeout = 30 * time.Second

// Run 启动清理器、心跳与 HTTP 服务，阻塞直到 ctx 结束或服务出错。
// 功能：
// 1) 先监听地址并记录实际端口（支持 :0）；
// 2) 启动清理与心跳的周期任务；
// 3) ctx.Done 后依次关闭 HTTP 服务、停止调度器并释放存储。
func (e *Engine) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listen)
	if err != nil {
		e.log.Errorf(ctx, "listen failed: addr=%s err=%v", e.listen, err)
		return err
	}
	e.addrMu.Lock()
	e.boundTo = ln.Addr().String()
	e.addrMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	srv := &http.Server{Handler: e.echo, ReadHeaderTimeout: 10 * time.Second}

	e.sweeper.Start(gctx)
	e.heartbeat.Start(gctx)
	e.log.Info(ctx, "engine started", "addr", e.Addr(), "max_concurrent", e.launcher.MaxConcurrent(), "kinds", e.Kinds())

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := errors.Join(srv.Shutdown(sctx), e.Stop(sctx))
		e.log.Info(context.Background(), "engine stopped", "err", err)
		return err
	})
	return g.Wait()
}

// Addr 返回 HTTP 服务的实际监听地址（Run 之前为空）。
func (e *Engine) Addr() string {
	e.addrMu.RLock()
	defer e.addrMu.RUnlock()
	return e.boundTo
}

// Handler 返回 HTTP 处理器，便于宿主自行挂载。
func (e *Engine) Handler() http.Handler { return e.echo }
