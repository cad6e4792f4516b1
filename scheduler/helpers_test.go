package scheduler

import (
	"context"
	"time"

	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/logging"
	"github.com/mengeric/extractjob-go/processor"
)

// waitFor 轮询直到 cond 成立或超时。
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func statusOf(reg *job.Registry, id string) job.Status {
	j, _ := reg.Get(id)
	return j.Status
}

// gate 返回一个阻塞直到 release 被关闭的处理器。
func gate(release <-chan struct{}, payload processor.Payload) processor.WorkFunc {
	return func(ctx context.Context, jobID string, report processor.Reporter, input any) (processor.Payload, error) {
		<-release
		return payload, nil
	}
}

func quietLogger() logging.Logger { return logging.Nop() }
