package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"

	"github.com/semmidev/oraexport/internal/domain"
)

// Expdp drives the Data Pump export client. All job parameters, including
// USERID, come from the parameter file; nothing sensitive is on argv.
type Expdp struct {
	output io.Writer
}

// NewExpdp streams the client's progress output to out (nil discards it).
func NewExpdp(out io.Writer) *Expdp {
	if out == nil {
		out = io.Discard
	}
	return &Expdp{output: out}
}

func (e *Expdp) Binary(inst domain.Instance) string {
	return filepath.Join(inst.Home, "bin", "expdp")
}

// Export returns the exit status verbatim. The error is set only when the
// client could not be started at all.
func (e *Expdp) Export(ctx context.Context, inst domain.Instance, tnsAdmin, parFile string) (int, error) {
	cmd := exec.CommandContext(ctx, e.Binary(inst), "parfile="+parFile)
	cmd.Env = oracleEnv(inst, tnsAdmin)
	cmd.Stdout = e.output
	cmd.Stderr = e.output

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("expdp failed to start: %w", err)
	}
	return 0, nil
}
