package memstore

import (
	"context"
	"testing"

	"github.com/mengeric/extractjob-go/artifact"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemStore(t *testing.T) {
	Convey("memstore satisfies artifact.Store semantics", t, func() {
		ctx := context.Background()
		var s artifact.Store = New()
		ref, err := s.Write(ctx, "j1", map[string]any{"count": 1})
		So(err, ShouldBeNil)
		So(s.Exists(ctx, ref), ShouldBeTrue)
		n, err := s.Size(ctx, ref)
		So(err, ShouldBeNil)
		So(n, ShouldBeGreaterThan, 0)
		a, err := s.Read(ctx, ref)
		So(err, ShouldBeNil)
		So(a.JobInfo.JobID, ShouldEqual, "j1")
		So(s.Delete(ctx, ref), ShouldBeNil)
		So(s.Delete(ctx, ref), ShouldBeNil)
		So(s.Exists(ctx, ref), ShouldBeFalse)
		_, err = s.Size(ctx, ref)
		So(err, ShouldEqual, artifact.ErrNotFound)
	})
}
