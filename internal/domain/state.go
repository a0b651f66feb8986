package domain

import "strings"

type OpenStatus string

const (
	StatusOpen    OpenStatus = "OPEN"
	StatusMounted OpenStatus = "MOUNTED"
)

type Role string

const (
	RolePrimary         Role = "PRIMARY"
	RolePhysicalStandby Role = "PHYSICAL STANDBY"
)

type PdbOpenMode string

const (
	PdbMounted   PdbOpenMode = "MOUNTED"
	PdbReadWrite PdbOpenMode = "READ WRITE"
	PdbReadOnly  PdbOpenMode = "READ ONLY"
)

// DatabaseState is a point-in-time snapshot. It is fetched fresh for every
// run and never cached.
type DatabaseState struct {
	Open    OpenStatus
	Role    Role
	PdbMode PdbOpenMode
}

// ParseRole normalises the v$database.database_role text, which may come
// back with underscores depending on how the output was post-processed.
func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " ")))
}

func ParsePdbOpenMode(s string) PdbOpenMode {
	return PdbOpenMode(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " ")))
}

func (s OpenStatus) Usable() bool {
	return s == StatusOpen || s == StatusMounted
}

func (m PdbOpenMode) Usable() bool {
	return m == PdbMounted || m == PdbReadWrite || m == PdbReadOnly
}
