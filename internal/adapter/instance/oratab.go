package instance

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/semmidev/oraexport/internal/domain"
)

// Oratab reads the colon-delimited sid:home:startup registry. The file is
// re-read on every call so that a run always sees the current registry.
type Oratab struct {
	path string
}

func NewOratab(path string) *Oratab {
	return &Oratab{path: path}
}

func (o *Oratab) Resolve(sid string) (domain.Instance, error) {
	entries, err := o.load()
	if err != nil {
		return domain.Instance{}, err
	}
	inst, ok := entries[strings.ToUpper(sid)]
	if !ok {
		return domain.Instance{}, &domain.InstanceNotFoundError{SID: sid}
	}
	return inst, nil
}

func (o *Oratab) ListRegistered() ([]string, error) {
	entries, err := o.load()
	if err != nil {
		return nil, err
	}
	return sortedKeys(entries), nil
}

func (o *Oratab) load() (map[string]domain.Instance, error) {
	file, err := os.Open(o.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open oratab: %w", err)
	}
	defer file.Close()

	entries, err := Parse(bufio.NewScanner(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.path, err)
	}
	return entries, nil
}

// Parse builds the registry from oratab lines. Comments, blank lines, ASM
// and agent entries (leading '+' or '-') and the '*' wildcard are skipped.
// An empty result or a SID listed twice is an error: with two homes for one
// SID there is no safe way to pick the binaries.
func Parse(scanner *bufio.Scanner) (map[string]domain.Instance, error) {
	entries := make(map[string]domain.Instance)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) < 2 {
			continue
		}
		sid := strings.TrimSpace(fields[0])
		home := strings.TrimSpace(fields[1])
		if sid == "" || home == "" || sid == "*" || strings.HasPrefix(sid, "+") || strings.HasPrefix(sid, "-") {
			continue
		}

		key := strings.ToUpper(sid)
		if _, dup := entries[key]; dup {
			return nil, &domain.DuplicateEntryError{SID: sid}
		}
		entries[key] = domain.Instance{SID: sid, Home: home}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read oratab: %w", err)
	}

	if len(entries) == 0 {
		return nil, domain.ErrRegistryEmpty
	}
	return entries, nil
}

// Static is a fixed registry for tests and for hosts without an oratab.
type Static struct {
	entries map[string]domain.Instance
}

func NewStatic(instances ...domain.Instance) *Static {
	entries := make(map[string]domain.Instance, len(instances))
	for _, inst := range instances {
		entries[strings.ToUpper(inst.SID)] = inst
	}
	return &Static{entries: entries}
}

func (s *Static) Resolve(sid string) (domain.Instance, error) {
	if len(s.entries) == 0 {
		return domain.Instance{}, domain.ErrRegistryEmpty
	}
	inst, ok := s.entries[strings.ToUpper(sid)]
	if !ok {
		return domain.Instance{}, &domain.InstanceNotFoundError{SID: sid}
	}
	return inst, nil
}

func (s *Static) ListRegistered() ([]string, error) {
	if len(s.entries) == 0 {
		return nil, domain.ErrRegistryEmpty
	}
	return sortedKeys(s.entries), nil
}

func sortedKeys(m map[string]domain.Instance) []string {
	keys := make([]string, 0, len(m))
	for _, inst := range m {
		keys = append(keys, inst.SID)
	}
	sort.Strings(keys)
	return keys
}
