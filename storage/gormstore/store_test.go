package gormstore

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mengeric/extractjob-go/artifact"
	. "github.com/smartystreets/goconvey/convey"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestGormStore(t *testing.T) {
	Convey("gorm store persists artifacts in the artifacts table", t, func() {
		ctx := context.Background()
		s := New(openDB(t), "v1")

		ref, err := s.Write(ctx, "reactions_20260101_000000_0badf00d", map[string]any{"count": 7})
		So(err, ShouldBeNil)
		So(ref, ShouldEqual, "db:reactions_20260101_000000_0badf00d")
		So(s.Exists(ctx, ref), ShouldBeTrue)

		a, err := s.Read(ctx, ref)
		So(err, ShouldBeNil)
		So(a.JobInfo.APIVersion, ShouldEqual, "v1")
		var got map[string]int
		So(a.Decode(&got), ShouldBeNil)
		So(got["count"], ShouldEqual, 7)

		// 覆盖写入
		_, err = s.Write(ctx, "reactions_20260101_000000_0badf00d", map[string]any{"count": 8})
		So(err, ShouldBeNil)
		a, _ = s.Read(ctx, ref)
		So(a.Decode(&got), ShouldBeNil)
		So(got["count"], ShouldEqual, 8)

		n, err := s.Size(ctx, ref)
		So(err, ShouldBeNil)
		So(n, ShouldBeGreaterThan, 0)

		So(s.Delete(ctx, ref), ShouldBeNil)
		So(s.Delete(ctx, ref), ShouldBeNil)
		So(s.Exists(ctx, ref), ShouldBeFalse)
		_, err = s.Read(ctx, ref)
		So(err, ShouldEqual, artifact.ErrNotFound)
		_, err = s.Size(ctx, "not-a-db-ref")
		So(err, ShouldEqual, artifact.ErrNotFound)
	})
}
