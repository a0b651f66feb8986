package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRegistryEmpty        = errors.New("instance registry has no usable entries")
	ErrAuthenticationFailed = errors.New("privileged session could not be established")
	ErrUnreachable          = errors.New("network alias unreachable")
	ErrBinaryMissing        = errors.New("required Oracle binary missing")
	ErrNotRunning           = errors.New("instance is not running")
	ErrPasswordPolicy       = errors.New("password generator exhausted its retry ceiling")
	ErrAccountVerification  = errors.New("ephemeral account could not be verified")
	ErrLocked               = errors.New("another export run holds the lock for this container")
)

type DuplicateEntryError struct {
	SID string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("instance %s is registered more than once", e.SID)
}

type InstanceNotFoundError struct {
	SID string
}

func (e *InstanceNotFoundError) Error() string {
	return fmt.Sprintf("instance %s is not registered", e.SID)
}

// ValidationError covers bad command line or configuration input. It is
// always raised before any database contact.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

type TopologyReason string

const (
	ReasonNotOpen     TopologyReason = "not-open"
	ReasonStandby     TopologyReason = "standby"
	ReasonNonPrimary  TopologyReason = "non-primary"
	ReasonPdbNotFound TopologyReason = "pdb-not-found"
	ReasonPdbNotReady TopologyReason = "pdb-not-ready"
	ReasonAliasAtRoot TopologyReason = "alias-at-root"
)

// TopologyError is a policy violation found while inspecting the target.
// Each reason carries its own operator-facing message.
type TopologyError struct {
	Reason TopologyReason
	Target string
	Detail string
}

func (e *TopologyError) Error() string {
	var msg string
	switch e.Reason {
	case ReasonNotOpen:
		msg = "database is not open or mounted"
	case ReasonStandby:
		msg = "database is a physical standby; standbys are never exported"
	case ReasonNonPrimary:
		msg = "database role is not PRIMARY"
	case ReasonPdbNotFound:
		msg = "pluggable database is not enumerable inside the container"
	case ReasonPdbNotReady:
		msg = "pluggable database is not in a usable open mode"
	case ReasonAliasAtRoot:
		msg = "network alias resolves to the root container instead of the pluggable database"
	default:
		msg = "topology check failed"
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return fmt.Sprintf("[%s] %s", e.Target, msg)
}

func IsTopologyReason(err error, reason TopologyReason) bool {
	var te *TopologyError
	return errors.As(err, &te) && te.Reason == reason
}

// MissingObjectsError lists every requested schema or table that was not
// found in one precheck pass.
type MissingObjectsError struct {
	Kind  string
	Names []string
}

func (e *MissingObjectsError) Error() string {
	return fmt.Sprintf("%d %s(s) not found: %s", len(e.Names), e.Kind, strings.Join(e.Names, ", "))
}

// ExecError is a SQL script that ran but exited nonzero.
type ExecError struct {
	ExitCode int
	Output   string
}

func (e *ExecError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 512 {
		out = out[:512] + "..."
	}
	return fmt.Sprintf("sql script exited with status %d: %s", e.ExitCode, out)
}
