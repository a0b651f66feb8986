package database

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/semmidev/oraexport/internal/domain"
)

var oracleEnvKeys = []string{"ORACLE_SID", "ORACLE_HOME", "TNS_ADMIN", "LD_LIBRARY_PATH", "TWO_TASK", "ORACLE_PDB_SID"}

// oracleEnv is the child process environment for one instance. The parent
// environment is never modified; stale ORACLE_* values inherited from the
// caller are dropped.
func oracleEnv(inst domain.Instance, tnsAdmin string) []string {
	var env []string
	for _, kv := range os.Environ() {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if isOracleKey(key) || key == "PATH" {
			continue
		}
		env = append(env, kv)
	}

	env = append(env,
		"ORACLE_SID="+inst.SID,
		"ORACLE_HOME="+inst.Home,
		"LD_LIBRARY_PATH="+filepath.Join(inst.Home, "lib"),
		"PATH="+filepath.Join(inst.Home, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"),
	)
	if tnsAdmin != "" {
		env = append(env, "TNS_ADMIN="+tnsAdmin)
	}
	return env
}

func isOracleKey(key string) bool {
	for _, k := range oracleEnvKeys {
		if k == key {
			return true
		}
	}
	return false
}

var (
	authCodes = []string{"ORA-01017", "ORA-01031", "ORA-28000", "ORA-01045", "ORA-28009"}
	netCodes  = []string{"ORA-12154", "ORA-12514", "ORA-12541", "ORA-12170", "ORA-12505", "ORA-12543"}
	// SP2-0640 / SP2-0641: statements attempted after a failed CONNECT.
	notConnected = regexp.MustCompile(`SP2-064[01]`)
	oraLine      = regexp.MustCompile(`(?m)^.*ORA-\d{5}.*$`)
)

// classify maps client output to the session-level sentinel errors. Any other
// failure is left to the caller through the exit status.
func classify(output string) error {
	for _, code := range authCodes {
		if strings.Contains(output, code) {
			return fmt.Errorf("%w: %s", domain.ErrAuthenticationFailed, firstORA(output, code))
		}
	}
	for _, code := range netCodes {
		if strings.Contains(output, code) {
			return fmt.Errorf("%w: %s", domain.ErrUnreachable, firstORA(output, code))
		}
	}
	if notConnected.MatchString(output) {
		return fmt.Errorf("%w: not connected", domain.ErrAuthenticationFailed)
	}
	return nil
}

func firstORA(output, code string) string {
	for _, line := range oraLine.FindAllString(output, -1) {
		if strings.Contains(line, code) {
			return strings.TrimSpace(line)
		}
	}
	return code
}
