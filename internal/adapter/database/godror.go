package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "github.com/godror/godror" // Register database/sql driver

	"github.com/semmidev/oraexport/internal/domain"
)

// Godror runs scripts over OCI through database/sql instead of forking
// sqlplus. Bequeath (OS-authenticated) connections read ORACLE_SID and
// ORACLE_HOME from the process environment, so those are set per call under
// a mutex and put back when the call returns.
type Godror struct {
	mu sync.Mutex
}

func NewGodror() *Godror {
	return &Godror{}
}

func (g *Godror) Run(ctx context.Context, session domain.Session, script domain.Script) (domain.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	restore, err := setProcessEnv(session)
	if err != nil {
		return domain.Result{}, err
	}
	defer restore()

	db, err := sql.Open("godror", DSN(session))
	if err != nil {
		return domain.Result{}, fmt.Errorf("godror open: %w", err)
	}
	defer db.Close()

	// One physical session, so that ALTER SESSION SET CONTAINER sticks.
	conn, err := db.Conn(ctx)
	if err != nil {
		if cerr := classify(err.Error()); cerr != nil {
			return domain.Result{}, cerr
		}
		return domain.Result{}, fmt.Errorf("godror connect: %w", err)
	}
	defer conn.Close()

	if session.Login == nil && session.Container != "" {
		if _, err := conn.ExecContext(ctx, "ALTER SESSION SET CONTAINER = "+session.Container); err != nil {
			return domain.Result{Output: err.Error(), ExitCode: 1}, nil
		}
	}

	var out strings.Builder
	for _, stmt := range script {
		stmt = normalize(stmt)
		if stmt == "" {
			continue
		}

		if isQuery(stmt) {
			err = queryLines(ctx, conn, stmt, &out)
		} else {
			_, err = conn.ExecContext(ctx, stmt)
		}
		if err != nil {
			out.WriteString(err.Error())
			output := strings.TrimSpace(out.String())
			if cerr := classify(output); cerr != nil {
				return domain.Result{Output: output, ExitCode: 1}, cerr
			}
			return domain.Result{Output: output, ExitCode: 1}, nil
		}
	}

	return domain.Result{Output: strings.TrimSpace(out.String())}, nil
}

func queryLines(ctx context.Context, conn *sql.Conn, query string, out *strings.Builder) error {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	values := make([]sql.NullString, len(cols))
	dest := make([]interface{}, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = v.String
		}
		out.WriteString(strings.Join(fields, " "))
		out.WriteString("\n")
	}
	return rows.Err()
}

// DSN renders the godror logfmt connection string. Passwords come from the
// generator, which only emits [A-Za-z0-9_], so quoting is safe.
func DSN(session domain.Session) string {
	if session.Login != nil {
		return fmt.Sprintf(`user="%s" password="%s" connectString="%s"`,
			session.Login.User, session.Login.Password, session.Login.Alias)
	}
	return "oracle://?sysdba=1"
}

// setProcessEnv points the process environment at session's instance. The
// returned func puts every touched variable back, unsetting those that were
// absent. An empty TNS admin clears TNS_ADMIN for the call.
func setProcessEnv(session domain.Session) (func(), error) {
	vars := map[string]string{
		"ORACLE_SID":  session.Instance.SID,
		"ORACLE_HOME": session.Instance.Home,
		"TNS_ADMIN":   session.TNSAdmin,
	}

	type saved struct {
		value string
		ok    bool
	}
	previous := make(map[string]saved, len(vars))
	restore := func() {
		for k, p := range previous {
			if p.ok {
				os.Setenv(k, p.value)
			} else {
				os.Unsetenv(k)
			}
		}
	}

	for k, v := range vars {
		old, ok := os.LookupEnv(k)
		previous[k] = saved{value: old, ok: ok}

		var err error
		if v == "" {
			err = os.Unsetenv(k)
		} else {
			err = os.Setenv(k, v)
		}
		if err != nil {
			restore()
			return nil, fmt.Errorf("failed to set env variable %s: %w", k, err)
		}
	}
	return restore, nil
}

func isQuery(stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}
