package usecase

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/semmidev/oraexport/internal/domain"
)

type RunStatus string

const (
	StatusSucceeded RunStatus = "SUCCEEDED"
	StatusJobFailed RunStatus = "JOB FAILED"
	StatusAborted   RunStatus = "ABORTED"
)

// Report is the outcome of one orchestration, sent to the notifiers and
// logged at the end of the run.
type Report struct {
	RunID     string
	Target    string
	Scope     string
	Status    RunStatus
	Job       *domain.JobResult
	Err       error
	StartedAt time.Time
	Duration  time.Duration
	Uploaded  int
	Warnings  []string
}

func newReport(rc domain.RunContext) *Report {
	return &Report{
		RunID:     rc.RunID,
		Target:    rc.Target.String(),
		Scope:     rc.Scope.String(),
		StartedAt: rc.StartedAt,
	}
}

func (r *Report) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// settle fixes Status from the fatal error and job result.
func (r *Report) settle(err error, now time.Time) {
	r.Err = err
	r.Duration = now.Sub(r.StartedAt)
	switch {
	case err != nil:
		r.Status = StatusAborted
	case r.Job.Succeeded():
		r.Status = StatusSucceeded
	default:
		r.Status = StatusJobFailed
	}
}

func (r *Report) Subject() string {
	return fmt.Sprintf("[oraexport] %s export %s", r.Target, r.Status)
}

func (r *Report) Body() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Target:    %s\n", r.Target)
	fmt.Fprintf(&b, "Scope:     %s\n", r.Scope)
	fmt.Fprintf(&b, "Status:    %s\n", r.Status)
	fmt.Fprintf(&b, "Run ID:    %s\n", r.RunID)
	fmt.Fprintf(&b, "Started:   %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration:  %s\n", r.Duration.Round(time.Second))

	if r.Err != nil {
		fmt.Fprintf(&b, "Error:     %v\n", r.Err)
	}
	if r.Job != nil {
		fmt.Fprintf(&b, "Exit code: %d\n", r.Job.ExitCode)
		fmt.Fprintf(&b, "Dump file: %s\n", r.Job.DumpFilePattern)
		fmt.Fprintf(&b, "Log file:  %s\n", r.Job.LogFilePattern)
		if r.Job.Archive != "" {
			fmt.Fprintf(&b, "Archive:   %s\n", filepath.Base(r.Job.Archive))
		}
		if len(r.Job.Files) > 0 && r.Job.Archive == "" {
			b.WriteString("Files:\n")
			for _, f := range r.Job.Files {
				fmt.Fprintf(&b, "  %s\n", filepath.Base(f))
			}
		}
		if r.Uploaded > 0 {
			fmt.Fprintf(&b, "Offsite:   %d target(s)\n", r.Uploaded)
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}
	return b.String()
}
