package client

import (
	"context"
	"time"

	"github.com/mengeric/extractjob-go/job"
)

// Wait 轮询任务直到进入终态或 ctx 结束。
// interval<=0 时默认 2s；查询出错立即返回。
func Wait(ctx context.Context, api API, id string, interval time.Duration) (job.Job, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		j, err := api.Status(ctx, id)
		if err != nil {
			return j, err
		}
		if j.Status.Terminal() {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SubmitWithRetry 提交任务；遇到名额已满时按服务端建议（或 backoff）等待后重试，最多 attempts 次。
func SubmitWithRetry(ctx context.Context, api API, kind string, req SubmitRequest, attempts int, backoff time.Duration) (SubmitResponse, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var (
		resp SubmitResponse
		err  error
	)
	for i := 0; i < attempts; i++ {
		resp, err = api.Submit(ctx, kind, req)
		if err == nil || !IsCapacity(err) || i == attempts-1 {
			return resp, err
		}
		wait := backoff
		if wait <= 0 {
			wait = RetryAfter(err)
		}
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(wait):
		}
	}
	return resp, err
}
