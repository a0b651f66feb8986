package storage

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRemoteNaming(t *testing.T) {
	Convey("Given remote object naming", t, func() {
		Convey("S3 keys should live under the trimmed prefix", func() {
			s := &S3Storage{prefix: "oracle/prod"}
			So(s.key("ORCL1_full_export_20261019_033000_01.dmp"), ShouldEqual, "oracle/prod/ORCL1_full_export_20261019_033000_01.dmp")

			bare := &S3Storage{}
			So(bare.key("x.log"), ShouldEqual, "x.log")
		})

		Convey("Drive query literals should escape quotes and backslashes", func() {
			So(escapeQuery(`it's`), ShouldEqual, `it\'s`)
			So(escapeQuery(`a\b`), ShouldEqual, `a\\b`)
		})
	})
}
