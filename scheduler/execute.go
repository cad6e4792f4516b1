package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/mengeric/extractjob-go/artifact"
	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/logging"
	"github.com/mengeric/extractjob-go/processor"
	"github.com/mengeric/extractjob-go/tracker"
)

// MsgStarting worker 启动后的首条进度。
const MsgStarting = "starting"

type outcome struct {
	payload processor.Payload
	err     error
}

// run 在独立 goroutine 中执行任务：上报进度、调用处理器、判定结果并提交终态。
// 无论从哪条路径退出，名额都只归还一次。
func (l *Launcher) run(ins *tracker.Instance, fn processor.WorkFunc, input any) {
	defer l.wg.Done()
	id := ins.JobID
	var once sync.Once
	release := func() { once.Do(func() { l.release(id) }) }
	defer release()

	ctx := logging.WithJob(ins.Ctx, id)
	l.reg.UpdateProgress(id, 10, MsgStarting, nil)
	l.log.Info(ctx, "job started")

	if l.jobTimeout <= 0 {
		l.finish(ctx, id, l.invoke(ctx, id, fn, input))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, l.jobTimeout)
	defer cancel()
	timer := time.NewTimer(l.jobTimeout)
	defer timer.Stop()

	done := make(chan outcome, 1)
	go func() { done <- l.invoke(ctx, id, fn, input) }()

	select {
	case out := <-done:
		l.finish(ctx, id, out)
	case <-timer.C:
		// 处理器可能仍在运行；其迟到的结果会被丢弃。
		msg := fmt.Sprintf("job timed out after %s", l.jobTimeout)
		l.reg.Fail(id, msg)
		l.log.Error(ctx, "job timed out", "timeout", l.jobTimeout)
	}
}

// invoke 调用处理器，panic 转为错误。
func (l *Launcher) invoke(ctx context.Context, id string, fn processor.WorkFunc, input any) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	report := func(percentage int, message string, extra map[string]any) {
		l.reg.UpdateProgress(id, percentage, message, extra)
	}
	p, err := fn(ctx, id, report, input)
	return outcome{payload: p, err: err}
}

// finish 判定结果并提交终态。
func (l *Launcher) finish(ctx context.Context, id string, out outcome) {
	if out.err != nil {
		l.reg.Fail(id, out.err.Error())
		l.log.Warn(ctx, "job failed", "err", out.err)
		return
	}
	if msg, ok := processor.ErrorMarker(out.payload); ok {
		l.reg.Fail(id, msg)
		l.log.Warn(ctx, "job failed", "err", msg)
		return
	}
	payload := out.payload
	if payload == nil {
		payload = processor.Payload{}
	}

	res := job.Result{
		ItemCount: itemCount(payload, l.countKeys),
		ExpiresAt: time.Now().Add(l.retention),
		Summary:   summarize(payload),
	}
	// 关闭流程中也要把已完成的结果落盘。
	wctx := context.WithoutCancel(ctx)
	ref, err := l.store.Write(wctx, id, payload)
	if err != nil {
		res.ArtifactSize = artifact.UnknownSize
		res.PersistError = err.Error()
		ref = ""
		l.log.Error(ctx, "persist result failed", "err", err)
	} else {
		if n, err := l.store.Size(wctx, ref); err == nil {
			res.ArtifactBytes = n
		}
		res.ArtifactSize = artifact.HumanSize(wctx, l.store, ref)
	}
	l.reg.Complete(id, res, ref)
	l.log.Info(ctx, "job completed", "items", res.ItemCount, "size", res.ArtifactSize)
}

// itemCount 取第一个存在的数量字段；都没有时退回 items 列表长度。
func itemCount(p processor.Payload, keys []string) int {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if n, ok := toInt(v); ok {
				return n
			}
		}
	}
	if v, ok := p["items"]; ok && v != nil {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return rv.Len()
		}
	}
	return 0
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// summarize 复制结果中的非列表字段作为摘要。
func summarize(p processor.Payload) map[string]any {
	out := map[string]any{}
	for k, v := range p {
		if k == processor.ErrorKey || v == nil {
			continue
		}
		switch reflect.ValueOf(v).Kind() {
		case reflect.Slice, reflect.Array, reflect.Func, reflect.Chan:
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
