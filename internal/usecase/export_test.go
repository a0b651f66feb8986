package usecase

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/oraexport/internal/domain"
	"github.com/semmidev/oraexport/internal/infrastructure/logger"
)

func TestParameters(t *testing.T) {
	Convey("Given an export job", t, func() {
		exp := NewExport(newFakeDB(nil), &fakeEngine{}, &fakeArchiver{}, ExportSettings{DirectoryObject: "ORAEXPORT_DIR"}, logger.NewNop())
		rc := testRunContext(pluggableTarget(), "/u01/export")

		Convey("When the scope lists schemas", func() {
			rc.Scope, _ = domain.NewScope([]string{"hr", "scott"}, nil)
			rc.Parallelism = 2
			job := exp.Job(rc)
			params := Parameters(job, "U/P@SALESPDB", ExportSettings{Compression: "all", Consistent: true})

			Convey("It should name the files after the schemas", func() {
				So(job.DumpFile, ShouldEqual, "SALESPDB_HR-SCOTT_export_20261019_033000_%U.dmp")
				So(job.ParFile, ShouldEqual, "/u01/export/SALESPDB_HR-SCOTT_export_20261019_033000.par")
			})

			Convey("It should render the schema list and options", func() {
				So(params, ShouldContain, "SCHEMAS=HR,SCOTT")
				So(params, ShouldContain, "PARALLEL=2")
				So(params, ShouldContain, "COMPRESSION=ALL")
				So(params, ShouldContain, "FLASHBACK_TIME=SYSTIMESTAMP")
				So(params, ShouldNotContain, "FULL=Y")
				So(params[0], ShouldEqual, "USERID=U/P@SALESPDB")
			})
		})

		Convey("When the scope lists tables", func() {
			rc.Scope, _ = domain.NewScope(nil, []string{"hr.employees", "HR.DEPARTMENTS"})
			params := Parameters(exp.Job(rc), "x", ExportSettings{})

			Convey("It should render qualified names and no optional settings", func() {
				So(params, ShouldContain, "TABLES=HR.EMPLOYEES,HR.DEPARTMENTS")
				So(strings.Join(params, "\n"), ShouldNotContainSubstring, "COMPRESSION")
				So(strings.Join(params, "\n"), ShouldNotContainSubstring, "FLASHBACK")
			})
		})
	})
}

func TestUserID(t *testing.T) {
	Convey("Given both target kinds", t, func() {
		cred := &domain.Credential{Account: "EXPDP_EPHEMERAL", Password: "Ab1cD2_eF3gH4"}

		Convey("A container target should always use OS authentication", func() {
			So(userID(testRunContext(containerTarget(), "/tmp"), cred), ShouldEqual, `"/ as sysdba"`)
		})

		Convey("A pluggable target should log in over its alias", func() {
			So(userID(testRunContext(pluggableTarget(), "/tmp"), cred), ShouldEqual, "EXPDP_EPHEMERAL/Ab1cD2_eF3gH4@SALESPDB")
		})
	})
}

func TestPrepareDirectory(t *testing.T) {
	Convey("Given an export runner", t, func() {
		ctx := context.Background()
		db := newFakeDB(nil)
		exp := NewExport(db, &fakeEngine{}, &fakeArchiver{}, ExportSettings{DirectoryObject: "ORAEXPORT_DIR"}, logger.NewNop())

		Convey("When the work directory is usable", func() {
			dir, err := os.MkdirTemp("", "oraexport_dir")
			So(err, ShouldBeNil)
			defer os.RemoveAll(dir)

			err = exp.PrepareDirectory(ctx, testRunContext(pluggableTarget(), dir+"/dumps"))

			Convey("It should create it and point the directory object at it", func() {
				So(err, ShouldBeNil)
				info, err := os.Stat(dir + "/dumps")
				So(err, ShouldBeNil)
				So(info.IsDir(), ShouldBeTrue)
				So(db.executed("CREATE OR REPLACE DIRECTORY ORAEXPORT_DIR AS '"+dir+"/dumps'"), ShouldEqual, 1)
			})
		})

		Convey("When the work directory contains a quote", func() {
			err := exp.PrepareDirectory(ctx, testRunContext(pluggableTarget(), "/tmp/it's"))

			Convey("It should be rejected before any SQL", func() {
				var verr *domain.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				So(db.sessions, ShouldBeEmpty)
			})
		})

		Convey("When the work directory is relative", func() {
			err := exp.PrepareDirectory(ctx, testRunContext(pluggableTarget(), "dumps"))

			Convey("It should be rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
