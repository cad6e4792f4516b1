package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mengeric/extractjob-go/artifact"
	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/mocks"
	"github.com/mengeric/extractjob-go/processor"
	"github.com/mengeric/extractjob-go/storage/memstore"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/mock/gomock"
)

func TestLauncher_Capacity(t *testing.T) {
	Convey("max=2: third start is rejected until a slot frees", t, func() {
		reg := job.NewRegistry()
		l := NewLauncher(reg, memstore.New(), WithMaxConcurrent(2), WithLogger(quietLogger()))
		relA, relB, relC := make(chan struct{}), make(chan struct{}), make(chan struct{})
		a, b, c := reg.Create("reactions", "a"), reg.Create("reactions", "b"), reg.Create("reactions", "c")

		So(l.Start(a, gate(relA, processor.Payload{"count": 1}), nil), ShouldBeNil)
		So(l.Start(b, gate(relB, processor.Payload{"count": 2}), nil), ShouldBeNil)
		So(statusOf(reg, a), ShouldEqual, job.StatusRunning)
		So(statusOf(reg, b), ShouldEqual, job.StatusRunning)

		err := l.Start(c, gate(relC, nil), nil)
		So(errors.Is(err, ErrCapacity), ShouldBeTrue)
		var rej *RejectedError
		So(errors.As(err, &rej), ShouldBeTrue)
		So(rej.Active, ShouldEqual, 2)
		So(statusOf(reg, c), ShouldEqual, job.StatusQueued)
		So(l.AvailableSlots(), ShouldEqual, 0)

		close(relA)
		So(waitFor(func() bool { return l.ActiveCount() == 1 }), ShouldBeTrue)
		So(statusOf(reg, a), ShouldEqual, job.StatusCompleted)

		So(l.Start(c, gate(relC, nil), nil), ShouldBeNil)
		close(relB)
		close(relC)
		So(l.Stop(context.Background()), ShouldBeNil)
		So(l.ActiveCount(), ShouldEqual, 0)
	})
}

func TestLauncher_DoubleStart(t *testing.T) {
	Convey("starting the same job twice runs it once", t, func() {
		reg := job.NewRegistry()
		l := NewLauncher(reg, memstore.New(), WithLogger(quietLogger()))
		var runs atomic.Int32
		release := make(chan struct{})
		fn := func(ctx context.Context, id string, report processor.Reporter, in any) (processor.Payload, error) {
			runs.Add(1)
			<-release
			return nil, nil
		}
		id := reg.Create("comments", "x")
		So(l.Start(id, fn, nil), ShouldBeNil)
		So(errors.Is(l.Start(id, fn, nil), ErrNotQueued), ShouldBeTrue)
		So(errors.Is(l.Start("missing", fn, nil), ErrNotQueued), ShouldBeTrue)

		// 运行中不可取消
		So(reg.Cancel(id), ShouldBeFalse)
		close(release)
		So(waitFor(func() bool { return statusOf(reg, id) == job.StatusCompleted }), ShouldBeTrue)
		So(errors.Is(l.Start(id, fn, nil), ErrNotQueued), ShouldBeTrue)
		So(int(runs.Load()), ShouldEqual, 1)

		cancelled := reg.Create("comments", "y")
		So(reg.Cancel(cancelled), ShouldBeTrue)
		So(errors.Is(l.Start(cancelled, fn, nil), ErrNotQueued), ShouldBeTrue)
		j, _ := reg.Get(cancelled)
		So(j.Result, ShouldBeNil)
		So(j.ErrorMessage, ShouldEqual, "")
	})
}

func TestLauncher_NotQueuedBeforeCapacity(t *testing.T) {
	Convey("with a single slot taken, bad ids are still NOT_QUEUED", t, func() {
		reg := job.NewRegistry()
		l := NewLauncher(reg, memstore.New(), WithMaxConcurrent(1), WithLogger(quietLogger()))
		release := make(chan struct{})
		defer func() {
			close(release)
			_ = l.Stop(context.Background())
		}()

		id := reg.Create("comments", "x")
		So(l.Start(id, gate(release, nil), nil), ShouldBeNil)

		err := l.Start(id, gate(release, nil), nil)
		So(errors.Is(err, ErrNotQueued), ShouldBeTrue)
		So(errors.Is(err, ErrCapacity), ShouldBeFalse)
		So(errors.Is(l.Start("nope", gate(release, nil), nil), ErrNotQueued), ShouldBeTrue)

		cancelled := reg.Create("comments", "y")
		So(reg.Cancel(cancelled), ShouldBeTrue)
		So(errors.Is(l.Start(cancelled, gate(release, nil), nil), ErrNotQueued), ShouldBeTrue)

		queued := reg.Create("comments", "z")
		So(errors.Is(l.Start(queued, gate(release, nil), nil), ErrCapacity), ShouldBeTrue)
		So(statusOf(reg, queued), ShouldEqual, job.StatusQueued)
	})
}

func TestLauncher_Outcomes(t *testing.T) {
	Convey("Given a launcher backed by an in-memory store", t, func() {
		reg := job.NewRegistry()
		store := memstore.New()
		l := NewLauncher(reg, store, WithRetention(time.Hour), WithLogger(quietLogger()))
		defer l.Stop(context.Background())

		Convey("a failure keeps the last progress and records the message", func() {
			id := reg.Create("reactions", "d")
			fn := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
				report(40, "halfway", map[string]any{"current_page": 2})
				return nil, errors.New("network timeout")
			}
			So(l.Start(id, fn, nil), ShouldBeNil)
			So(waitFor(func() bool { return statusOf(reg, id) == job.StatusFailed }), ShouldBeTrue)
			j, _ := reg.Get(id)
			So(j.ErrorMessage, ShouldEqual, "network timeout")
			So(j.Progress.Percentage, ShouldEqual, 40)
			So(j.Progress.Extra["current_page"], ShouldEqual, 2)
			So(j.Result, ShouldBeNil)
			So(j.ArtifactRef, ShouldEqual, "")
			So(waitFor(func() bool { return l.ActiveCount() == 0 }), ShouldBeTrue)
		})

		Convey("a payload round trips through the artifact", func() {
			id := reg.Create("reactions", "e")
			fn := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
				return processor.Payload{"count": 7}, nil
			}
			So(l.Start(id, fn, nil), ShouldBeNil)
			So(waitFor(func() bool { return statusOf(reg, id) == job.StatusCompleted }), ShouldBeTrue)
			j, _ := reg.Get(id)
			So(j.Result.ItemCount, ShouldEqual, 7)
			So(j.Result.ArtifactBytes, ShouldBeGreaterThan, 0)
			So(j.Result.ArtifactSize, ShouldNotEqual, artifact.UnknownSize)
			So(j.Result.ExpiresAt.After(time.Now().Add(50*time.Minute)), ShouldBeTrue)
			So(j.Progress.Percentage, ShouldEqual, 100)
			So(store.Exists(context.Background(), j.ArtifactRef), ShouldBeTrue)

			a, err := store.Read(context.Background(), j.ArtifactRef)
			So(err, ShouldBeNil)
			So(a.JobInfo.JobID, ShouldEqual, id)
			var got map[string]any
			So(a.Decode(&got), ShouldBeNil)
			So(got["count"], ShouldEqual, 7.0)
		})

		Convey("an error marker in the payload fails the job", func() {
			id := reg.Create("comments", "m")
			fn := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
				return processor.Payload{"error": "failed to load cookies", "comments": []any{}}, nil
			}
			So(l.Start(id, fn, nil), ShouldBeNil)
			So(waitFor(func() bool { return statusOf(reg, id) == job.StatusFailed }), ShouldBeTrue)
			j, _ := reg.Get(id)
			So(j.ErrorMessage, ShouldEqual, "failed to load cookies")
			So(store.Len(), ShouldEqual, 0)
		})

		Convey("a panic is contained and the slot released", func() {
			id := reg.Create("comments", "p")
			fn := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
				panic("nil cursor")
			}
			So(l.Start(id, fn, nil), ShouldBeNil)
			So(waitFor(func() bool { return statusOf(reg, id) == job.StatusFailed }), ShouldBeTrue)
			j, _ := reg.Get(id)
			So(j.ErrorMessage, ShouldEqual, "panic: nil cursor")
			So(waitFor(func() bool { return l.ActiveCount() == 0 }), ShouldBeTrue)
		})

		Convey("input is passed through and summary fields are kept", func() {
			id := reg.Create("reactions", "s")
			fn := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
				return processor.Payload{"total_reactions": in, "pages_scraped": 3, "reactions": []any{1, 2}}, nil
			}
			So(l.Start(id, fn, 12), ShouldBeNil)
			So(waitFor(func() bool { return statusOf(reg, id) == job.StatusCompleted }), ShouldBeTrue)
			j, _ := reg.Get(id)
			So(j.Result.ItemCount, ShouldEqual, 12)
			So(j.Result.Summary["pages_scraped"], ShouldEqual, 3)
			_, hasList := j.Result.Summary["reactions"]
			So(hasList, ShouldBeFalse)
		})
	})
}

func TestLauncher_PersistFailure(t *testing.T) {
	Convey("a storage failure still completes the job with degraded metadata", t, func() {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		store := mocks.NewMockStore(ctrl)
		store.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))

		reg := job.NewRegistry()
		l := NewLauncher(reg, store, WithLogger(quietLogger()))
		id := reg.Create("reactions", "x")
		fn := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
			return processor.Payload{"count": 3}, nil
		}
		So(l.Start(id, fn, nil), ShouldBeNil)
		So(l.Stop(context.Background()), ShouldBeNil)

		j, _ := reg.Get(id)
		So(j.Status, ShouldEqual, job.StatusCompleted)
		So(j.ArtifactRef, ShouldEqual, "")
		So(j.Result.ItemCount, ShouldEqual, 3)
		So(j.Result.ArtifactBytes, ShouldEqual, 0)
		So(j.Result.ArtifactSize, ShouldEqual, artifact.UnknownSize)
		So(j.Result.PersistError, ShouldEqual, "disk full")
	})
}

func TestLauncher_Timeout(t *testing.T) {
	Convey("a job that overruns its deadline is failed and its slot released", t, func() {
		reg := job.NewRegistry()
		store := memstore.New()
		l := NewLauncher(reg, store, WithMaxConcurrent(1), WithJobTimeout(50*time.Millisecond), WithLogger(quietLogger()))
		stuck := make(chan struct{})
		defer close(stuck)
		fn := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
			<-stuck // 不响应 ctx
			return processor.Payload{"count": 1}, nil
		}
		id := reg.Create("reactions", "slow")
		So(l.Start(id, fn, nil), ShouldBeNil)
		So(waitFor(func() bool { return statusOf(reg, id) == job.StatusFailed }), ShouldBeTrue)
		j, _ := reg.Get(id)
		So(j.ErrorMessage, ShouldEqual, "job timed out after 50ms")
		So(waitFor(func() bool { return l.ActiveCount() == 0 }), ShouldBeTrue)

		next := reg.Create("reactions", "next")
		quick := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
			return processor.Payload{"count": 2}, nil
		}
		So(l.Start(next, quick, nil), ShouldBeNil)
		So(waitFor(func() bool { return statusOf(reg, next) == job.StatusCompleted }), ShouldBeTrue)
		So(store.Len(), ShouldEqual, 1)
	})
}

func TestLauncher_CeilingUnderLoad(t *testing.T) {
	Convey("concurrent starts never exceed the ceiling", t, func() {
		const max = 3
		reg := job.NewRegistry()
		l := NewLauncher(reg, memstore.New(), WithMaxConcurrent(max), WithLogger(quietLogger()))
		var inFlight, peak atomic.Int32
		fn := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			if s := reg.Summary(); s.Active > max {
				peak.Store(100)
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return processor.Payload{"count": 1}, nil
		}

		var wg sync.WaitGroup
		var accepted atomic.Int32
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := reg.Create("load", "")
				for {
					err := l.Start(id, fn, nil)
					if err == nil {
						accepted.Add(1)
						return
					}
					if !errors.Is(err, ErrCapacity) {
						return
					}
					time.Sleep(time.Millisecond)
				}
			}()
		}
		wg.Wait()
		So(l.Stop(context.Background()), ShouldBeNil)
		So(int(accepted.Load()), ShouldEqual, 40)
		So(int(peak.Load()), ShouldBeLessThanOrEqualTo, max)
		So(reg.Summary().ByStatus[job.StatusCompleted], ShouldEqual, 40)
	})
}

func TestLauncher_Stop(t *testing.T) {
	Convey("stop cancels worker contexts and rejects new jobs", t, func() {
		reg := job.NewRegistry()
		l := NewLauncher(reg, memstore.New(), WithLogger(quietLogger()))
		fn := func(ctx context.Context, jid string, report processor.Reporter, in any) (processor.Payload, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		id := reg.Create("reactions", "x")
		So(l.Start(id, fn, nil), ShouldBeNil)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		So(l.Stop(ctx), ShouldBeNil)
		So(statusOf(reg, id), ShouldEqual, job.StatusFailed)

		other := reg.Create("reactions", "y")
		So(errors.Is(l.Start(other, fn, nil), ErrStopped), ShouldBeTrue)
		So(statusOf(reg, other), ShouldEqual, job.StatusQueued)
	})
}
