package domain

import (
	"context"
	"fmt"
	"time"
)

const (
	MinParallelism     = 1
	MaxParallelism     = 10
	DefaultParallelism = 4
)

func ValidateParallelism(n int) error {
	if n < MinParallelism || n > MaxParallelism {
		return &ValidationError{
			Field: "parallel",
			Msg:   fmt.Sprintf("parallelism %d is out of range: valid range is %d-%d", n, MinParallelism, MaxParallelism),
		}
	}
	return nil
}

// ExportJob is one invocation of the export engine.
type ExportJob struct {
	BaseName    string
	DumpFile    string
	LogFile     string
	ParFile     string
	Directory   string
	WorkDir     string
	Parallelism int
	Compress    bool
	Scope       ExportScope
	StartedAt   time.Time
}

type JobResult struct {
	ExitCode        int
	DumpFilePattern string
	LogFilePattern  string
	Files           []string
	Archive         string
	Duration        time.Duration
}

func (r *JobResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// Artifacts are the files that should be copied offsite: the archive when one
// was produced, otherwise the raw dumps and log.
func (r *JobResult) Artifacts() []string {
	if r == nil {
		return nil
	}
	if r.Archive != "" {
		return []string{r.Archive}
	}
	return r.Files
}

// Archiver bundles files into one compressed archive.
type Archiver interface {
	Bundle(destPath string, files []string) error
}

type Storage interface {
	Upload(ctx context.Context, localPath string, remoteName string) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, remoteName string) error
	GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error)
}

type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Locker provides the per-container mutual exclusion that keeps two runs from
// provisioning the same fixed-name account at once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func() error, err error)
}
