package domain

import "context"

// Login is a password login over a SQL*Net alias.
type Login struct {
	User     string
	Password string
	Alias    string
}

// Session describes where a script runs. A nil Login means the local
// OS-authenticated sysdba session; Container, when set, switches that session
// into the named pluggable database first.
type Session struct {
	Instance  Instance
	Container string
	Login     *Login
	TNSAdmin  string
}

// Script is an ordered list of SQL statements without trailing terminators.
type Script []string

type Result struct {
	Output   string
	ExitCode int
}

// SQLExecutor runs one script synchronously. It never retries. The returned
// error is reserved for failures to establish the session or start the
// client; a script that ran and failed is reported through ExitCode.
type SQLExecutor interface {
	Run(ctx context.Context, session Session, script Script) (Result, error)
}

// ExportEngine runs the bulk export tool against a parameter file and returns
// its exit status verbatim.
type ExportEngine interface {
	Export(ctx context.Context, instance Instance, tnsAdmin, parFile string) (int, error)
	Binary(instance Instance) string
}
