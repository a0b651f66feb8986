package domain

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// maxDescriptor bounds the scope part of file names. Longer lists are
// shortened to their first entry, the entry count and a digest of the
// full list.
const maxDescriptor = 64

type ScopeKind int

const (
	ScopeFull ScopeKind = iota
	ScopeSchemas
	ScopeTables
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeSchemas:
		return "schemas"
	case ScopeTables:
		return "tables"
	default:
		return "full"
	}
}

// QualifiedTable is a schema.table pair, both upper case.
type QualifiedTable struct {
	Schema string
	Table  string
}

func (q QualifiedTable) String() string {
	return q.Schema + "." + q.Table
}

// ExportScope holds exactly one of the three export granularities. The zero
// value is a full export. Build it with NewScope so that the mutual exclusion
// of schema and table lists is enforced.
type ExportScope struct {
	kind    ScopeKind
	schemas []string
	tables  []QualifiedTable
}

func FullScope() ExportScope {
	return ExportScope{kind: ScopeFull}
}

// NewScope picks the variant from the lists given on the command line. Both
// lists populated is rejected; both empty means full.
func NewScope(schemas, tables []string) (ExportScope, error) {
	schemas = compact(schemas)
	tables = compact(tables)

	switch {
	case len(schemas) > 0 && len(tables) > 0:
		return ExportScope{}, &ValidationError{Field: "scope", Msg: "schema list and table list are mutually exclusive"}
	case len(schemas) > 0:
		out := make([]string, 0, len(schemas))
		for _, s := range schemas {
			if err := ValidateIdentifier("schema", s); err != nil {
				return ExportScope{}, err
			}
			out = appendUnique(out, strings.ToUpper(s))
		}
		return ExportScope{kind: ScopeSchemas, schemas: out}, nil
	case len(tables) > 0:
		out := make([]QualifiedTable, 0, len(tables))
		seen := make(map[string]bool)
		for _, t := range tables {
			q, err := ParseQualifiedTable(t)
			if err != nil {
				return ExportScope{}, err
			}
			if !seen[q.String()] {
				seen[q.String()] = true
				out = append(out, q)
			}
		}
		return ExportScope{kind: ScopeTables, tables: out}, nil
	default:
		return FullScope(), nil
	}
}

func ParseQualifiedTable(s string) (QualifiedTable, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 2 {
		return QualifiedTable{}, &ValidationError{Field: "tables", Msg: fmt.Sprintf("table %q must be given as schema.table", s)}
	}
	if err := ValidateIdentifier("schema", parts[0]); err != nil {
		return QualifiedTable{}, err
	}
	if err := ValidateIdentifier("table", parts[1]); err != nil {
		return QualifiedTable{}, err
	}
	return QualifiedTable{Schema: strings.ToUpper(parts[0]), Table: strings.ToUpper(parts[1])}, nil
}

func (s ExportScope) Kind() ScopeKind { return s.kind }

func (s ExportScope) Schemas() []string {
	return append([]string(nil), s.schemas...)
}

func (s ExportScope) Tables() []QualifiedTable {
	return append([]QualifiedTable(nil), s.tables...)
}

// Descriptor is the scope part of dump and log file names.
func (s ExportScope) Descriptor() string {
	var names []string
	switch s.kind {
	case ScopeSchemas:
		names = s.schemas
	case ScopeTables:
		names = make([]string, len(s.tables))
		for i, t := range s.tables {
			names[i] = t.String()
		}
	default:
		return "full"
	}

	full := strings.Join(names, "-")
	if len(full) <= maxDescriptor {
		return full
	}
	head := names[0]
	if len(head) > maxDescriptor/2 {
		head = head[:maxDescriptor/2]
	}
	sum := sha256.Sum256([]byte(full))
	return fmt.Sprintf("%s-n%d-%x", head, len(names), sum[:4])
}

func (s ExportScope) String() string {
	if s.kind == ScopeFull {
		return "full"
	}
	return s.kind.String() + "=" + s.Descriptor()
}

func compact(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}
