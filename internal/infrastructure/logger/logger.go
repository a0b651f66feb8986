package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*zap.SugaredLogger
	file io.Closer
}

// New logs human readable lines to stdout and, when logFile is set, JSON
// lines to a rotated file. Operators read stdout; the file is the audit
// trail that retention cleanup prunes.
func New(logLevel, logFile string) (*Logger, error) {
	return newWithConsole(logLevel, logFile, os.Stdout)
}

func newWithConsole(logLevel, logFile string, console io.Writer) (*Logger, error) {
	if logFile != "" {
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(console), level)

	if logFile == "" {
		return &Logger{SugaredLogger: build(consoleCore)}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     90,
		Compress:   true,
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)

	return &Logger{
		SugaredLogger: build(zapcore.NewTee(consoleCore, fileCore)),
		file:          rotator,
	}, nil
}

func build(core zapcore.Core) *zap.SugaredLogger {
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).Sugar()
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// WithRun tags every entry with the run id and target so that interleaved
// runs in daemon mode can be told apart in the JSON log.
func (l *Logger) WithRun(runID, target string) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With("run_id", runID, "target", target),
		file:          l.file,
	}
}

func (l *Logger) Close() {
	_ = l.Sync()
	if l.file != nil {
		_ = l.file.Close()
	}
}
