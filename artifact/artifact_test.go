package artifact

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type sizeOnly struct {
	Store
	n   int64
	err error
}

func (s sizeOnly) Size(ctx context.Context, ref string) (int64, error) { return s.n, s.err }

func TestMarshal(t *testing.T) {
	Convey("payload round trips verbatim", t, func() {
		info := Info{JobID: "j1", WrittenAt: time.Unix(1700000000, 0).UTC(), APIVersion: "v1"}
		b, err := Marshal(info, map[string]any{"count": 7, "name": "تفاعل <b>"})
		So(err, ShouldBeNil)
		So(string(b), ShouldContainSubstring, "تفاعل <b>")

		a, err := Unmarshal(b)
		So(err, ShouldBeNil)
		So(a.JobInfo.JobID, ShouldEqual, "j1")
		var got struct {
			Count int    `json:"count"`
			Name  string `json:"name"`
		}
		So(a.Decode(&got), ShouldBeNil)
		So(got.Count, ShouldEqual, 7)
		So(got.Name, ShouldEqual, "تفاعل <b>")
	})
}

func TestHumanSize(t *testing.T) {
	Convey("human readable size", t, func() {
		ctx := context.Background()
		So(HumanSize(ctx, sizeOnly{n: 512}, "r"), ShouldEqual, "512 B")
		So(HumanSize(ctx, sizeOnly{n: 1536}, "r"), ShouldEqual, "1.5 KiB")
		So(HumanSize(ctx, sizeOnly{err: ErrNotFound}, "r"), ShouldEqual, UnknownSize)
		So(HumanSize(ctx, sizeOnly{n: 1}, ""), ShouldEqual, UnknownSize)
	})
}
