package metrics

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCollectSystemMetric(t *testing.T) {
	Convey("collect metrics should not panic and be in range", t, func() {
		m := CollectSystemMetric(context.Background(), t.TempDir())
		So(m.CPUProcessors, ShouldBeGreaterThanOrEqualTo, 1)
		So(m.Goroutines, ShouldBeGreaterThanOrEqualTo, 1)
		So(m.Score, ShouldBeGreaterThanOrEqualTo, 0)
		So(m.Score, ShouldBeLessThanOrEqualTo, 100)
	})
}

func TestLoadLevel(t *testing.T) {
	Convey("load level thresholds", t, func() {
		So(LoadLevel(0, 5), ShouldEqual, LoadIdle)
		So(LoadLevel(2, 5), ShouldEqual, LoadLight)
		So(LoadLevel(3, 5), ShouldEqual, LoadModerate)
		So(LoadLevel(4, 5), ShouldEqual, LoadHeavy)
		So(LoadLevel(5, 5), ShouldEqual, LoadHeavy)
	})
}
