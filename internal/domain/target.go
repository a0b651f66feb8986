package domain

import (
	"fmt"
	"regexp"
	"strings"
)

type AuthMode int

const (
	// AuthOS is the local OS-authenticated "/ as sysdba" session.
	AuthOS AuthMode = iota
	// AuthNetwork logs in over SQL*Net with the ephemeral credential.
	AuthNetwork
)

func (m AuthMode) String() string {
	if m == AuthNetwork {
		return "network"
	}
	return "os"
}

// ExportTarget is the database the export runs against. Container is set only
// for pluggable targets.
type ExportTarget struct {
	ID        string
	Container string
	Auth      AuthMode
	Alias     string
}

// NewContainerTarget builds a target for a non-pluggable database or a whole
// container.
func NewContainerTarget(sid string) (ExportTarget, error) {
	if err := ValidateIdentifier("database", sid); err != nil {
		return ExportTarget{}, err
	}
	return ExportTarget{ID: strings.ToUpper(sid), Auth: AuthOS}, nil
}

// NewPluggableTarget builds a target for pdb inside container, reached over
// the network alias. An empty alias defaults to the pdb name.
func NewPluggableTarget(container, pdb, alias string) (ExportTarget, error) {
	if container == "" {
		return ExportTarget{}, &ValidationError{Field: "cdb", Msg: "a pluggable database requires its container"}
	}
	if err := ValidateIdentifier("container", container); err != nil {
		return ExportTarget{}, err
	}
	if err := ValidateIdentifier("pluggable database", pdb); err != nil {
		return ExportTarget{}, err
	}
	if alias == "" {
		alias = pdb
	}
	if !aliasPattern.MatchString(alias) {
		return ExportTarget{}, &ValidationError{Field: "alias", Msg: fmt.Sprintf("invalid network alias %q", alias)}
	}
	return ExportTarget{
		ID:        strings.ToUpper(pdb),
		Container: strings.ToUpper(container),
		Auth:      AuthNetwork,
		Alias:     alias,
	}, nil
}

func (t ExportTarget) Pluggable() bool {
	return t.Container != ""
}

// InstanceSID is the SID of the instance that hosts the target.
func (t ExportTarget) InstanceSID() string {
	if t.Pluggable() {
		return t.Container
	}
	return t.ID
}

func (t ExportTarget) String() string {
	if t.Pluggable() {
		return t.Container + "/" + t.ID
	}
	return t.ID
}

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	aliasPattern      = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)
)

// ValidateIdentifier rejects anything that is not plain alphanumeric plus
// underscore. Names are interpolated into SQL text, so this is the only
// barrier against injection.
func ValidateIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) || len(name) > 128 {
		return &ValidationError{Field: kind, Msg: fmt.Sprintf("invalid %s name %q", kind, name)}
	}
	return nil
}
