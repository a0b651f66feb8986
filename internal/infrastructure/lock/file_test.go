package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/oraexport/internal/domain"
)

func TestFileLocker(t *testing.T) {
	Convey("Given a FileLocker", t, func() {
		tempDir, err := os.MkdirTemp("", "lock_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		locker, err := NewFile(filepath.Join(tempDir, "locks"))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When the lock is free", func() {
			release, err := locker.Acquire(ctx, "ORCL1")

			Convey("It should be taken and create the lock file", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(locker.Path("ORCL1"))
				So(statErr, ShouldBeNil)
				So(release(), ShouldBeNil)
			})
		})

		Convey("When another run already holds the lock", func() {
			release, err := locker.Acquire(ctx, "ORCL1")
			So(err, ShouldBeNil)
			defer release()

			_, err = locker.Acquire(ctx, "ORCL1")

			Convey("It should fail with ErrLocked", func() {
				So(errors.Is(err, domain.ErrLocked), ShouldBeTrue)
			})

			Convey("It should not block other containers", func() {
				other, err := locker.Acquire(ctx, "ORCL2")
				So(err, ShouldBeNil)
				So(other(), ShouldBeNil)
			})
		})

		Convey("When the lock is released", func() {
			release, err := locker.Acquire(ctx, "ORCL1")
			So(err, ShouldBeNil)
			So(release(), ShouldBeNil)

			Convey("It should be available again", func() {
				again, err := locker.Acquire(ctx, "ORCL1")
				So(err, ShouldBeNil)
				So(again(), ShouldBeNil)
			})
		})
	})

	Convey("Given the Nop locker", t, func() {
		release, err := Nop{}.Acquire(context.Background(), "ORCL1")

		Convey("It should always succeed", func() {
			So(err, ShouldBeNil)
			So(release(), ShouldBeNil)
		})
	})

	Convey("Given a redis lock key", t, func() {
		So(lockKey("ORCL1"), ShouldEqual, "oraexport:lock:ORCL1")
	})
}
