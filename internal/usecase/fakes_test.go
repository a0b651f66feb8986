package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/oraexport/internal/domain"
)

// fakeDB answers the handful of statements the use cases issue, against an
// in-memory picture of one container.
type fakeDB struct {
	mu sync.Mutex

	status string
	role   string
	pdbs   map[string]string
	users  map[string]bool
	tables map[string]bool
	// aliasAtRoot rejects every network login, which is what a root-routed
	// alias does to an account that only exists inside the PDB.
	aliasAtRoot bool
	seedVisible bool
	failGrant   bool
	failDrop    bool
	skipCreate  bool
	sessionErr  error

	sessions []domain.Session
	stmts    []string
	events   *[]string
}

func newFakeDB(events *[]string) *fakeDB {
	return &fakeDB{
		status: "OPEN",
		role:   "PRIMARY",
		pdbs:   map[string]string{"PDB$SEED": "READ ONLY", "SALESPDB": "READ WRITE"},
		users:  map[string]bool{"SYS": true, "HR": true, "SCOTT": true},
		tables: map[string]bool{"HR.EMPLOYEES": true, "HR.DEPARTMENTS": true},
		events: events,
	}
}

var (
	pdbModeRe   = regexp.MustCompile(`open_mode FROM v\$pdbs WHERE name = '(\w+)'`)
	userEqRe    = regexp.MustCompile(`FROM dba_users WHERE username = '(\w+)'`)
	quotedRe    = regexp.MustCompile(`'(\w+)'`)
	tablePredRe = regexp.MustCompile(`owner = '(\w+)' AND table_name = '(\w+)'`)
	createRe    = regexp.MustCompile(`CREATE USER (\w+) IDENTIFIED BY`)
	dropRe      = regexp.MustCompile(`DROP USER (\w+) CASCADE`)
)

func (f *fakeDB) event(e string) {
	if f.events != nil {
		*f.events = append(*f.events, e)
	}
}

func (f *fakeDB) Run(ctx context.Context, session domain.Session, script domain.Script) (domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sessions = append(f.sessions, session)
	if f.sessionErr != nil {
		return domain.Result{ExitCode: 1}, f.sessionErr
	}
	if f.aliasAtRoot && session.Login != nil {
		out := "ORA-01017: invalid username/password; logon denied"
		return domain.Result{Output: out, ExitCode: 1}, fmt.Errorf("%w: %s", domain.ErrAuthenticationFailed, out)
	}

	var out []string
	for _, stmt := range script {
		f.stmts = append(f.stmts, stmt)

		switch {
		case strings.Contains(stmt, "FROM v$instance"):
			out = append(out, f.status)
		case strings.Contains(stmt, "FROM v$database"):
			out = append(out, f.role)
		case strings.Contains(stmt, "COUNT(*) FROM v$pdbs"):
			if f.seedVisible {
				out = append(out, "1")
			} else {
				out = append(out, "0")
			}
		case pdbModeRe.MatchString(stmt):
			name := pdbModeRe.FindStringSubmatch(stmt)[1]
			if mode, ok := f.pdbs[name]; ok {
				out = append(out, mode)
			}
		case stmt == listPdbsSQL:
			for name := range f.pdbs {
				out = append(out, name)
			}
		case strings.HasPrefix(stmt, "CREATE OR REPLACE DIRECTORY"):
			f.event("directory")
		case createRe.MatchString(stmt):
			f.event("provision")
			if !f.skipCreate {
				f.users[createRe.FindStringSubmatch(stmt)[1]] = true
			}
		case dropRe.MatchString(stmt):
			f.event("revoke")
			if f.failDrop {
				return domain.Result{Output: "ORA-01940: cannot drop a user that is currently connected", ExitCode: 1940}, nil
			}
			delete(f.users, dropRe.FindStringSubmatch(stmt)[1])
		case strings.HasPrefix(stmt, "GRANT") || strings.HasPrefix(stmt, "ALTER USER"):
			if f.failGrant {
				return domain.Result{Output: "ORA-01919: role 'DATAPUMP_EXP_FULL_DATABASE' does not exist", ExitCode: 1919}, nil
			}
		case userEqRe.MatchString(stmt):
			if name := userEqRe.FindStringSubmatch(stmt)[1]; f.users[name] {
				out = append(out, name)
			}
		case strings.Contains(stmt, "FROM dba_users WHERE username IN"):
			for _, m := range quotedRe.FindAllStringSubmatch(stmt, -1) {
				if f.users[m[1]] {
					out = append(out, m[1])
				}
			}
		case strings.Contains(stmt, "FROM dba_tables"):
			for _, m := range tablePredRe.FindAllStringSubmatch(stmt, -1) {
				if name := m[1] + "." + m[2]; f.tables[name] {
					out = append(out, name)
				}
			}
		}
	}
	return domain.Result{Output: strings.Join(out, "\n")}, nil
}

func (f *fakeDB) executed(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.stmts {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

// fakeEngine records the parameter file and drops two dumps and a log next
// to it.
type fakeEngine struct {
	code    int
	calls   int
	par     string
	parMode os.FileMode
	events  *[]string
}

func (e *fakeEngine) Binary(inst domain.Instance) string {
	return filepath.Join(inst.Home, "bin", "expdp")
}

func (e *fakeEngine) Export(ctx context.Context, inst domain.Instance, tnsAdmin, parFile string) (int, error) {
	e.calls++
	if e.events != nil {
		*e.events = append(*e.events, "export")
	}
	raw, err := os.ReadFile(parFile)
	if err != nil {
		return -1, err
	}
	e.par = string(raw)
	if info, err := os.Stat(parFile); err == nil {
		e.parMode = info.Mode().Perm()
	}

	dir := filepath.Dir(parFile)
	base := strings.TrimSuffix(filepath.Base(parFile), ".par")
	for _, name := range []string{base + "_01.dmp", base + "_02.dmp", base + ".log"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(strings.Repeat("x", 4096)), 0640); err != nil {
			return -1, err
		}
	}
	return e.code, nil
}

type fakeArchiver struct {
	err   error
	dest  string
	files []string
}

func (a *fakeArchiver) Bundle(dest string, files []string) error {
	a.dest, a.files = dest, files
	if a.err != nil {
		return a.err
	}
	return os.WriteFile(dest, []byte("archive"), 0640)
}

type fakeNotifier struct {
	subjects []string
	bodies   []string
}

func (n *fakeNotifier) Notify(ctx context.Context, subject, body string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

type fakeLocker struct {
	held map[string]bool
}

func (l *fakeLocker) Acquire(ctx context.Context, key string) (func() error, error) {
	if l.held[key] {
		return nil, domain.ErrLocked
	}
	l.held[key] = true
	return func() error {
		delete(l.held, key)
		return nil
	}, nil
}

type fakeDirectory map[string]domain.Instance

func (d fakeDirectory) Resolve(sid string) (domain.Instance, error) {
	if inst, ok := d[strings.ToUpper(sid)]; ok {
		return inst, nil
	}
	return domain.Instance{}, &domain.InstanceNotFoundError{SID: sid}
}

func (d fakeDirectory) ListRegistered() ([]string, error) {
	var out []string
	for sid := range d {
		out = append(out, sid)
	}
	return out, nil
}

type fakeProcesses map[string]bool

func (p fakeProcesses) Running(ctx context.Context) (map[string]bool, error) {
	return p, nil
}

type fakeStorage struct {
	mu       sync.Mutex
	files    map[string]time.Time
	uploaded []string
	failOn   string
}

func (s *fakeStorage) Upload(ctx context.Context, localPath, remoteName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && strings.Contains(remoteName, s.failOn) {
		return os.ErrPermission
	}
	s.uploaded = append(s.uploaded, remoteName)
	return nil
}

func (s *fakeStorage) List(ctx context.Context) ([]string, error) {
	var out []string
	for name := range s.files {
		out = append(out, name)
	}
	return out, nil
}

func (s *fakeStorage) Delete(ctx context.Context, remoteName string) error {
	delete(s.files, remoteName)
	return nil
}

func (s *fakeStorage) GetOldFiles(ctx context.Context, cutoff time.Time) ([]string, error) {
	var out []string
	for name, mod := range s.files {
		if mod.Before(cutoff) {
			out = append(out, name)
		}
	}
	return out, nil
}

// stubBinary points at a fixed path whatever the instance.
type stubBinary string

func (b stubBinary) Binary(domain.Instance) string { return string(b) }

var testStart = time.Date(2026, 10, 19, 3, 30, 0, 0, time.Local)

func testRunContext(target domain.ExportTarget, workDir string) domain.RunContext {
	return domain.RunContext{
		RunID:       "test-run",
		Instance:    domain.Instance{SID: target.InstanceSID(), Home: "/u01/app/oracle/product/19c"},
		Target:      target,
		Scope:       domain.FullScope(),
		Parallelism: domain.DefaultParallelism,
		WorkDir:     workDir,
		StartedAt:   testStart,
	}
}

func containerTarget() domain.ExportTarget {
	t, _ := domain.NewContainerTarget("ORCL1")
	return t
}

func pluggableTarget() domain.ExportTarget {
	t, _ := domain.NewPluggableTarget("CDB1", "SALESPDB", "")
	return t
}
