package database

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/semmidev/oraexport/internal/domain"
)

const sqlplusSettings = "SET HEADING OFF FEEDBACK OFF PAGESIZE 0 VERIFY OFF ECHO OFF TAB OFF TRIMOUT ON TRIMSPOOL ON LINESIZE 32767"

// SQLPlus runs scripts through `sqlplus -S -L /nolog`. The CONNECT, and with
// it any password, travels on stdin so it never shows up in the process list.
type SQLPlus struct{}

func NewSQLPlus() *SQLPlus {
	return &SQLPlus{}
}

func (s *SQLPlus) Binary(inst domain.Instance) string {
	return filepath.Join(inst.Home, "bin", "sqlplus")
}

func (s *SQLPlus) Run(ctx context.Context, session domain.Session, script domain.Script) (domain.Result, error) {
	cmd := exec.CommandContext(ctx, s.Binary(session.Instance), "-S", "-L", "/nolog")
	cmd.Env = oracleEnv(session.Instance, session.TNSAdmin)
	cmd.Stdin = strings.NewReader(RenderScript(session, script))

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return domain.Result{}, fmt.Errorf("sqlplus failed to start: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}
	// The shell keeps only the low byte of a status, so an ORA line is
	// trusted over a zero exit.
	if exitCode == 0 && oraLine.MatchString(output) {
		exitCode = 1
	}

	result := domain.Result{Output: output, ExitCode: exitCode}
	if cerr := classify(output); cerr != nil {
		return result, cerr
	}
	return result, nil
}

// RenderScript builds the stdin for one sqlplus invocation.
func RenderScript(session domain.Session, script domain.Script) string {
	var b strings.Builder

	b.WriteString("WHENEVER OSERROR EXIT FAILURE\n")
	if session.Login != nil {
		fmt.Fprintf(&b, "CONNECT \"%s\"/\"%s\"@%s\n", session.Login.User, session.Login.Password, session.Login.Alias)
	} else {
		b.WriteString("CONNECT / AS SYSDBA\n")
	}
	b.WriteString("WHENEVER SQLERROR EXIT FAILURE\n")
	b.WriteString(sqlplusSettings + "\n")

	if session.Login == nil && session.Container != "" {
		fmt.Fprintf(&b, "ALTER SESSION SET CONTAINER = %s;\n", session.Container)
	}
	for _, stmt := range script {
		stmt = normalize(stmt)
		if stmt == "" {
			continue
		}
		b.WriteString(stmt)
		if isPLSQL(stmt) {
			b.WriteString("\n/\n")
		} else {
			b.WriteString(";\n")
		}
	}
	b.WriteString("EXIT\n")

	return b.String()
}

// normalize strips the statement terminator from SQL but keeps the final
// "END;" of an anonymous PL/SQL block, which is part of the block itself.
func normalize(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if isPLSQL(stmt) {
		stmt = strings.TrimRight(stmt, "/ \n\t")
		if !strings.HasSuffix(stmt, ";") {
			stmt += ";"
		}
		return stmt
	}
	return strings.TrimSpace(strings.TrimRight(stmt, ";"))
}

func isPLSQL(stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	return strings.HasPrefix(upper, "BEGIN") || strings.HasPrefix(upper, "DECLARE")
}
