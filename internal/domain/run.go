package domain

import (
	"fmt"
	"time"
)

// RunContext is built once per orchestration and handed to every component.
// Nothing in it changes after construction.
type RunContext struct {
	RunID       string
	Instance    Instance
	Target      ExportTarget
	Scope       ExportScope
	Parallelism int
	WorkDir     string
	TNSAdmin    string
	SkipChecks  bool
	Notify      bool
	Compress    bool
	StartedAt   time.Time
}

func (rc RunContext) Timestamp() string {
	return rc.StartedAt.Format("20060102_150405")
}

// BaseName is the common stem of the dump, log and archive names:
// <target>_<scope>_export_<timestamp>.
func (rc RunContext) BaseName() string {
	return fmt.Sprintf("%s_%s_export_%s", rc.Target.ID, rc.Scope.Descriptor(), rc.Timestamp())
}

// MaxFileName is the longest file name the work directory accepts.
const MaxFileName = 255

// longestSuffix covers "_NN.dmp" and ".tar.gz".
const longestSuffix = 7

// ValidateNames rejects a run whose artifact names would not fit in the work
// directory. It runs before any database contact.
func (rc RunContext) ValidateNames() error {
	if n := len(rc.BaseName()) + longestSuffix; n > MaxFileName {
		return &ValidationError{
			Field: "scope",
			Msg:   fmt.Sprintf("export file name would be %d bytes, limit is %d", n, MaxFileName),
		}
	}
	return nil
}

// LocalSession is the OS-authenticated session on the hosting instance,
// switched into the pluggable database for pluggable targets.
func (rc RunContext) LocalSession() Session {
	s := rc.RootSession()
	if rc.Target.Pluggable() {
		s.Container = rc.Target.ID
	}
	return s
}

// RootSession is the OS-authenticated session in the root container.
func (rc RunContext) RootSession() Session {
	return Session{Instance: rc.Instance, TNSAdmin: rc.TNSAdmin}
}

// NetworkSession logs in over the target alias with cred.
func (rc RunContext) NetworkSession(cred *Credential) Session {
	return Session{
		Instance: rc.Instance,
		Login:    cred.Login(rc.Target.Alias),
		TNSAdmin: rc.TNSAdmin,
	}
}
