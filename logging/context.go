package logging

import (
	"context"
	"log/slog"
)

// ctxKey 用于在 Context 中存放任务ID，避免与外部键冲突。
type ctxKey string

var ctxKeyJobID ctxKey = "extractjob_job_id"

// WithJob 将任务ID写入 Context，之后经该 Context 输出的日志都会带上 job_id。
func WithJob(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ctxKeyJobID, jobID)
}

// JobFromContext 尝试从上下文中提取任务ID。
func JobFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(ctxKeyJobID).(string)
	return id, ok && id != ""
}

// jobHandler 在记录上追加 job_id 属性。
type jobHandler struct{ slog.Handler }

func (h jobHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := JobFromContext(ctx); ok {
		r.AddAttrs(slog.String("job_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h jobHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return jobHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h jobHandler) WithGroup(name string) slog.Handler {
	return jobHandler{Handler: h.Handler.WithGroup(name)}
}
