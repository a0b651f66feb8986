package instance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const pmonPrefix = "ora_pmon_"

// ProcScanner finds running instances by their ora_pmon_<SID> background
// process, the same thing `ps -ef | grep pmon` shows.
type ProcScanner struct {
	root string
}

func NewProcScanner(root string) *ProcScanner {
	if root == "" {
		root = "/proc"
	}
	return &ProcScanner{root: root}
}

func (p *ProcScanner) Running(ctx context.Context) (map[string]bool, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.root, err)
	}

	running := make(map[string]bool)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || !isPID(entry.Name()) {
			continue
		}
		// Processes can exit between ReadDir and ReadFile.
		raw, err := os.ReadFile(filepath.Join(p.root, entry.Name(), "cmdline"))
		if err != nil {
			continue
		}
		if sid, ok := pmonSID(raw); ok {
			running[strings.ToUpper(sid)] = true
		}
	}
	return running, nil
}

func pmonSID(cmdline []byte) (string, bool) {
	argv0 := string(cmdline)
	if i := strings.IndexByte(argv0, 0); i >= 0 {
		argv0 = argv0[:i]
	}
	argv0 = strings.TrimSpace(argv0)
	if !strings.HasPrefix(argv0, pmonPrefix) {
		return "", false
	}
	sid := strings.TrimPrefix(argv0, pmonPrefix)
	return sid, sid != ""
}

func isPID(name string) bool {
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return name != ""
}
