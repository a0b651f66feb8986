package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given the Logger package", t, func() {
		Convey("New function", func() {
			Convey("When creating a logger with console output only", func() {
				logger, err := New("info", "")

				Convey("It should create a logger successfully", func() {
					So(err, ShouldBeNil)
					So(logger, ShouldNotBeNil)
					So(func() { logger.Infof("[%s] test", "ORCL1") }, ShouldNotPanic)
				})
			})

			Convey("When creating a logger with a log file", func() {
				tempDir, err := os.MkdirTemp("", "logger_test")
				So(err, ShouldBeNil)
				defer os.RemoveAll(tempDir)

				logFile := filepath.Join(tempDir, "nested", "oraexport.log")
				logger, err := New("debug", logFile)

				Convey("It should create the directory and write JSON lines", func() {
					So(err, ShouldBeNil)
					logger.WithRun("run-1", "ORCL1").Debugw("export started", "scope", "full")
					logger.Close()

					content, err := os.ReadFile(logFile)
					So(err, ShouldBeNil)
					So(string(content), ShouldContainSubstring, `"run_id":"run-1"`)
					So(string(content), ShouldContainSubstring, `"target":"ORCL1"`)
					So(string(content), ShouldContainSubstring, `"msg":"export started"`)
				})
			})

			Convey("When creating a logger with an invalid log level", func() {
				var console bytes.Buffer
				logger, err := newWithConsole("invalid", "", &console)

				Convey("It should default to Info level", func() {
					So(err, ShouldBeNil)
					logger.Debug("hidden")
					logger.Info("shown")
					_ = logger.Sync()
					So(console.String(), ShouldContainSubstring, "shown")
					So(console.String(), ShouldNotContainSubstring, "hidden")
				})
			})

			Convey("When the log directory cannot be created", func() {
				logger, err := New("info", "/proc/oraexport/test.log")

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to create log directory")
					So(logger, ShouldBeNil)
				})
			})
		})

		Convey("NewNop", func() {
			logger := NewNop()

			Convey("It should swallow everything", func() {
				So(func() { logger.Errorf("boom %d", 1); logger.Close() }, ShouldNotPanic)
			})
		})
	})
}
