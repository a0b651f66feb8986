package usecase

import (
	"context"
	"strings"

	"github.com/semmidev/oraexport/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type UploadTarget struct {
	Name    string
	Storage domain.Storage
}

// query runs script and returns its non-blank output lines. A script that
// ran but exited nonzero is an *ExecError.
func query(ctx context.Context, sql domain.SQLExecutor, session domain.Session, script ...string) ([]string, error) {
	res, err := sql.Run(ctx, session, domain.Script(script))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &domain.ExecError{ExitCode: res.ExitCode, Output: res.Output}
	}
	return lines(res.Output), nil
}

func execute(ctx context.Context, sql domain.SQLExecutor, session domain.Session, script ...string) error {
	_, err := query(ctx, sql, session, script...)
	return err
}

func lines(output string) []string {
	var out []string
	for _, l := range strings.Split(output, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// quoteList renders names as a SQL IN list. Callers pass identifiers that
// already passed domain.ValidateIdentifier.
func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, ", ")
}
