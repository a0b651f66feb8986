package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExportScope(t *testing.T) {
	Convey("Given scope lists from the command line", t, func() {
		Convey("When both lists are empty", func() {
			scope, err := NewScope(nil, []string{" ", ""})

			Convey("It should be a full export", func() {
				So(err, ShouldBeNil)
				So(scope.Kind(), ShouldEqual, ScopeFull)
				So(scope.Descriptor(), ShouldEqual, "full")
			})
		})

		Convey("When schemas are given", func() {
			scope, err := NewScope([]string{"hr", "Scott", "HR"}, nil)

			Convey("They should be upper-cased and deduplicated in order", func() {
				So(err, ShouldBeNil)
				So(scope.Kind(), ShouldEqual, ScopeSchemas)
				So(scope.Schemas(), ShouldResemble, []string{"HR", "SCOTT"})
				So(scope.Descriptor(), ShouldEqual, "HR-SCOTT")
				So(scope.String(), ShouldEqual, "schemas=HR-SCOTT")
			})
		})

		Convey("When tables are given", func() {
			scope, err := NewScope(nil, []string{"hr.employees", "HR.EMPLOYEES", "sales.orders"})

			Convey("They should be qualified, upper-cased and deduplicated", func() {
				So(err, ShouldBeNil)
				So(scope.Kind(), ShouldEqual, ScopeTables)
				So(scope.Tables(), ShouldResemble, []QualifiedTable{{"HR", "EMPLOYEES"}, {"SALES", "ORDERS"}})
				So(scope.Descriptor(), ShouldEqual, "HR.EMPLOYEES-SALES.ORDERS")
			})
		})

		Convey("When a long table list is given", func() {
			var tables []string
			for i := 0; i < 40; i++ {
				tables = append(tables, fmt.Sprintf("sales.order_lines_archive_%02d", i))
			}
			scope, err := NewScope(nil, tables)
			So(err, ShouldBeNil)
			other, _ := NewScope(nil, tables[:39])

			Convey("The descriptor should be shortened to a bounded, distinct form", func() {
				d := scope.Descriptor()
				So(len(d), ShouldBeLessThanOrEqualTo, maxDescriptor)
				So(d, ShouldStartWith, "SALES.ORDER_LINES_ARCHIVE_00-n40-")
				So(other.Descriptor(), ShouldNotEqual, d)
				So(scope.Descriptor(), ShouldEqual, d)
			})
		})

		Convey("When both lists are given", func() {
			_, err := NewScope([]string{"hr"}, []string{"hr.employees"})

			Convey("It should be rejected", func() {
				var ve *ValidationError
				So(errors.As(err, &ve), ShouldBeTrue)
				So(ve.Field, ShouldEqual, "scope")
			})
		})

		Convey("When a table is not schema qualified", func() {
			_, err := NewScope(nil, []string{"employees"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "schema.table")
		})

		Convey("When a name carries SQL", func() {
			_, err := NewScope([]string{"hr'; DROP USER sys--"}, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("The accessor slices should be copies", func() {
			scope, _ := NewScope([]string{"hr"}, nil)
			scope.Schemas()[0] = "X"
			So(scope.Schemas()[0], ShouldEqual, "HR")
		})
	})
}

func TestExportTarget(t *testing.T) {
	Convey("Given target names", t, func() {
		Convey("A container target should use OS authentication", func() {
			target, err := NewContainerTarget("orcl1")
			So(err, ShouldBeNil)
			So(target.ID, ShouldEqual, "ORCL1")
			So(target.Pluggable(), ShouldBeFalse)
			So(target.InstanceSID(), ShouldEqual, "ORCL1")
			So(target.Auth, ShouldEqual, AuthOS)
			So(target.String(), ShouldEqual, "ORCL1")
		})

		Convey("A pluggable target should use the network alias of its PDB", func() {
			target, err := NewPluggableTarget("cdb1", "salespdb", "")
			So(err, ShouldBeNil)
			So(target.ID, ShouldEqual, "SALESPDB")
			So(target.Container, ShouldEqual, "CDB1")
			So(target.InstanceSID(), ShouldEqual, "CDB1")
			So(target.Alias, ShouldEqual, "salespdb")
			So(target.Auth, ShouldEqual, AuthNetwork)
			So(target.Auth.String(), ShouldEqual, "network")
			So(target.String(), ShouldEqual, "CDB1/SALESPDB")
		})

		Convey("A pluggable target without its container should be rejected", func() {
			_, err := NewPluggableTarget("", "salespdb", "")
			So(err, ShouldNotBeNil)
		})

		Convey("A malformed alias should be rejected", func() {
			_, err := NewPluggableTarget("cdb1", "salespdb", "sales pdb")
			So(err, ShouldNotBeNil)
		})

		Convey("Identifiers should allow only alphanumerics and underscore", func() {
			So(ValidateIdentifier("schema", "HR_2"), ShouldBeNil)
			So(ValidateIdentifier("schema", ""), ShouldNotBeNil)
			So(ValidateIdentifier("schema", "HR$"), ShouldNotBeNil)
			So(ValidateIdentifier("schema", strings.Repeat("A", 129)), ShouldNotBeNil)
		})
	})
}

func TestParallelism(t *testing.T) {
	Convey("Given parallelism values", t, func() {
		So(ValidateParallelism(1), ShouldBeNil)
		So(ValidateParallelism(10), ShouldBeNil)

		err := ValidateParallelism(15)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "valid range is 1-10")
		So(ValidateParallelism(0), ShouldNotBeNil)
	})
}

func TestDatabaseState(t *testing.T) {
	Convey("Given values read from the dynamic views", t, func() {
		So(ParseRole(" physical_standby "), ShouldEqual, RolePhysicalStandby)
		So(ParseRole("PRIMARY"), ShouldEqual, RolePrimary)
		So(ParsePdbOpenMode("read write"), ShouldEqual, PdbReadWrite)

		So(StatusOpen.Usable(), ShouldBeTrue)
		So(StatusMounted.Usable(), ShouldBeTrue)
		So(OpenStatus("STARTED").Usable(), ShouldBeFalse)
		So(PdbReadOnly.Usable(), ShouldBeTrue)
		So(PdbOpenMode("MIGRATE").Usable(), ShouldBeFalse)
	})
}

func TestRunContext(t *testing.T) {
	Convey("Given a run context for a pluggable target", t, func() {
		target, _ := NewPluggableTarget("CDB1", "SALESPDB", "")
		scope, _ := NewScope([]string{"hr"}, nil)
		rc := RunContext{
			Instance:  Instance{SID: "CDB1", Home: "/u01/home"},
			Target:    target,
			Scope:     scope,
			TNSAdmin:  "/etc/tns",
			StartedAt: time.Date(2026, 10, 19, 3, 30, 5, 0, time.Local),
		}

		Convey("The base name should carry target, scope and timestamp", func() {
			So(rc.BaseName(), ShouldEqual, "SALESPDB_HR_export_20261019_033005")
		})

		Convey("The local session should switch into the PDB", func() {
			So(rc.LocalSession().Container, ShouldEqual, "SALESPDB")
			So(rc.RootSession().Container, ShouldBeEmpty)
		})

		Convey("The artifact names should fit the file name limit", func() {
			So(rc.ValidateNames(), ShouldBeNil)

			long, _ := NewContainerTarget(strings.Repeat("A", 128))
			many := make([]string, 60)
			for i := range many {
				many[i] = fmt.Sprintf("%s.T%d", strings.Repeat("S", 100), i)
			}
			wide, _ := NewScope(nil, many)
			big := RunContext{Target: long, Scope: wide, StartedAt: rc.StartedAt}
			So(len(big.BaseName()), ShouldBeLessThan, MaxFileName)
			So(big.ValidateNames(), ShouldBeNil)
		})

		Convey("The network session should log in over the alias", func() {
			s := rc.NetworkSession(&Credential{Account: "EXPDP_EPHEMERAL", Password: "pw"})
			So(s.Login.Alias, ShouldEqual, "SALESPDB")
			So(s.Login.User, ShouldEqual, "EXPDP_EPHEMERAL")
			So(s.TNSAdmin, ShouldEqual, "/etc/tns")
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given domain errors", t, func() {
		Convey("A wrapped topology error should be matched by reason", func() {
			err := fmt.Errorf("inspect: %w", &TopologyError{Reason: ReasonStandby, Target: "ORCL1", Detail: "PHYSICAL STANDBY"})
			So(IsTopologyReason(err, ReasonStandby), ShouldBeTrue)
			So(IsTopologyReason(err, ReasonNotOpen), ShouldBeFalse)
			So(err.Error(), ShouldContainSubstring, "[ORCL1] database is a physical standby")
		})

		Convey("Missing objects should all be listed", func() {
			err := &MissingObjectsError{Kind: "schema", Names: []string{"HR", "SCOTT"}}
			So(err.Error(), ShouldEqual, "2 schema(s) not found: HR, SCOTT")
		})

		Convey("Long script output should be truncated", func() {
			err := &ExecError{ExitCode: 1, Output: strings.Repeat("x", 600)}
			So(err.Error(), ShouldEndWith, "...")
		})

		Convey("A credential should never print its password", func() {
			c := &Credential{Account: "EXPDP_EPHEMERAL", Password: "Secret_123", CreatedAt: time.Now()}
			So(c.String(), ShouldNotContainSubstring, "Secret_123")
		})
	})
}
