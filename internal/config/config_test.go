package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/pflag"
)

func writeConfig(dir, body string) string {
	path := filepath.Join(dir, "config.yaml")
	So(os.WriteFile(path, []byte(body), 0644), ShouldBeNil)
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given the config loader", t, func() {
		tempDir, err := os.MkdirTemp("", "config_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		Convey("When the file sets only a few keys", func() {
			path := writeConfig(tempDir, `
export:
  work_dir: /backup/expdp
  parallelism: 6
credential:
  grant_dba: true
upload_targets:
  - type: s3
    enabled: true
    bucket: dumps
  - type: gdrive
    enabled: false
`)
			cfg, err := Load(path, nil)

			Convey("It should merge them over the defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Export.WorkDir, ShouldEqual, "/backup/expdp")
				So(cfg.Export.Parallelism, ShouldEqual, 6)
				So(cfg.Export.DirectoryObject, ShouldEqual, "ORAEXPORT_DIR")
				So(cfg.Credential.GrantDBA, ShouldBeTrue)
				So(cfg.Credential.Account, ShouldEqual, "EXPDP_EPHEMERAL")
				So(cfg.Credential.AccountAttempts, ShouldEqual, 3)
				So(cfg.SQL.Driver, ShouldEqual, "sqlplus")
				So(cfg.Lock.Backend, ShouldEqual, "file")
				So(cfg.Retention.Days, ShouldEqual, 7)
			})

			Convey("It should return only enabled upload targets", func() {
				So(err, ShouldBeNil)
				targets := cfg.GetEnabledUploadTargets()
				So(len(targets), ShouldEqual, 1)
				So(targets[0].Type, ShouldEqual, "s3")
			})
		})

		Convey("When parallelism is out of range", func() {
			path := writeConfig(tempDir, "export:\n  parallelism: 15\n")
			cfg, err := Load(path, nil)

			Convey("It should reject the config", func() {
				So(cfg, ShouldBeNil)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "valid range is 1-10")
			})
		})

		Convey("When the sql driver is unknown", func() {
			path := writeConfig(tempDir, "sql:\n  driver: odbc\n")
			_, err := Load(path, nil)

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "sql.driver")
			})
		})

		Convey("When email is enabled without recipients", func() {
			path := writeConfig(tempDir, "notify:\n  email:\n    enabled: true\n    smtp_host: mail.local\n    from: dba@local\n")
			_, err := Load(path, nil)

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "recipients")
			})
		})

		Convey("When the redis lock TTL is too short to renew", func() {
			path := writeConfig(tempDir, "lock:\n  backend: redis\n  redis:\n    addr: localhost:6379\n    ttl: 1s\n")
			_, err := Load(path, nil)

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "lock.redis.ttl")
			})
		})

		Convey("When the directory object name would break the SQL", func() {
			path := writeConfig(tempDir, "export:\n  directory_object: \"DIR'; DROP\"\n")
			_, err := Load(path, nil)

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "export.directory_object")
			})
		})

		Convey("When an explicit config file does not exist", func() {
			_, err := Load(filepath.Join(tempDir, "missing.yaml"), nil)

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to read config")
			})
		})

		Convey("When command line flags are bound", func() {
			path := writeConfig(tempDir, "export:\n  work_dir: /from/file\noracle:\n  tns_admin: /etc/tns\n")
			fs := pflag.NewFlagSet("oraexport", pflag.ContinueOnError)
			fs.StringP("dir", "d", "", "")
			fs.StringP("tns-admin", "t", "", "")
			fs.BoolP("compress", "z", false, "")
			So(fs.Parse([]string{"-d", "/from/flag", "-z"}), ShouldBeNil)

			cfg, err := Load(path, fs)

			Convey("A flag that was given should win over the file", func() {
				So(err, ShouldBeNil)
				So(cfg.Export.WorkDir, ShouldEqual, "/from/flag")
				So(cfg.Export.Compress, ShouldBeTrue)
			})

			Convey("A flag that was not given should leave the file value", func() {
				So(cfg.Oracle.TNSAdmin, ShouldEqual, "/etc/tns")
			})
		})

		Convey("When no config path is given", func() {
			cfg, err := Load("", nil)

			Convey("It should run on defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Oracle.Oratab, ShouldEqual, "/etc/oratab")
				So(cfg.Export.Parallelism, ShouldEqual, 4)
			})
		})
	})
}
