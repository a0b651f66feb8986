package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/semmidev/oraexport/internal/domain"
)

// Topology decides whether a target may be exported. Every query runs fresh;
// nothing is cached between runs.
type Topology struct {
	sql    domain.SQLExecutor
	logger Logger
}

func NewTopology(sql domain.SQLExecutor, logger Logger) *Topology {
	return &Topology{sql: sql, logger: logger}
}

type inspectState int

const (
	stateOpenCheck inspectState = iota
	stateRoleCheck
	statePdbConsistency
	statePdbStateCheck
	stateProceed
)

func (s inspectState) String() string {
	switch s {
	case stateOpenCheck:
		return "open-check"
	case stateRoleCheck:
		return "role-check"
	case statePdbConsistency:
		return "pdb-consistency"
	case statePdbStateCheck:
		return "pdb-state-check"
	default:
		return "proceed"
	}
}

// Inspect walks OpenCheck -> RoleCheck -> [PdbConsistency -> PdbStateCheck]
// -> Proceed. The pluggable states are entered only for pluggable targets.
// Any failed check aborts with a *TopologyError.
func (t *Topology) Inspect(ctx context.Context, rc domain.RunContext) (domain.DatabaseState, error) {
	var st domain.DatabaseState
	state := stateOpenCheck

	for state != stateProceed {
		next, err := t.step(ctx, rc, state, &st)
		if err != nil {
			return st, err
		}
		t.logger.Infof("[%s] Topology %s passed", rc.Target, state)
		state = next
	}
	return st, nil
}

func (t *Topology) step(ctx context.Context, rc domain.RunContext, state inspectState, st *domain.DatabaseState) (inspectState, error) {
	switch state {
	case stateOpenCheck:
		open, err := t.CheckOpenState(ctx, rc)
		if err != nil {
			return state, err
		}
		st.Open = open
		return stateRoleCheck, nil

	case stateRoleCheck:
		role, err := t.CheckRole(ctx, rc)
		if err != nil {
			return state, err
		}
		st.Role = role
		if rc.Target.Pluggable() {
			return statePdbConsistency, nil
		}
		return stateProceed, nil

	case statePdbConsistency:
		if err := t.CheckPdbConsistency(ctx, rc); err != nil {
			return state, err
		}
		return statePdbStateCheck, nil

	case statePdbStateCheck:
		mode, err := t.CheckPdbState(ctx, rc)
		if err != nil {
			return state, err
		}
		st.PdbMode = mode
		return stateProceed, nil
	}
	return stateProceed, nil
}

// CheckOpenState accepts OPEN or MOUNTED on the hosting instance.
func (t *Topology) CheckOpenState(ctx context.Context, rc domain.RunContext) (domain.OpenStatus, error) {
	out, err := query(ctx, t.sql, rc.RootSession(), instanceStatusSQL)
	if err != nil {
		return "", fmt.Errorf("query instance status: %w", err)
	}
	status := domain.OpenStatus(first(out))
	if !status.Usable() {
		return status, &domain.TopologyError{Reason: domain.ReasonNotOpen, Target: rc.Target.String(), Detail: "status " + quoted(string(status))}
	}
	return status, nil
}

// CheckRole aborts for every role other than PRIMARY; a physical standby gets
// its own reason.
func (t *Topology) CheckRole(ctx context.Context, rc domain.RunContext) (domain.Role, error) {
	out, err := query(ctx, t.sql, rc.RootSession(), databaseRoleSQL)
	if err != nil {
		return "", fmt.Errorf("query database role: %w", err)
	}
	role := domain.ParseRole(first(out))
	switch role {
	case domain.RolePrimary:
		return role, nil
	case domain.RolePhysicalStandby:
		return role, &domain.TopologyError{Reason: domain.ReasonStandby, Target: rc.Target.String()}
	default:
		return role, &domain.TopologyError{Reason: domain.ReasonNonPrimary, Target: rc.Target.String(), Detail: "role " + quoted(string(role))}
	}
}

// CheckPdbConsistency confirms the target is enumerable in v$pdbs of its
// container.
func (t *Topology) CheckPdbConsistency(ctx context.Context, rc domain.RunContext) error {
	out, err := query(ctx, t.sql, rc.RootSession(), listPdbsSQL)
	if err != nil {
		return fmt.Errorf("list pluggable databases: %w", err)
	}
	for _, name := range out {
		if name == rc.Target.ID {
			return nil
		}
	}
	return &domain.TopologyError{
		Reason: domain.ReasonPdbNotFound,
		Target: rc.Target.String(),
		Detail: fmt.Sprintf("%d pluggable database(s) in %s", len(out), rc.Target.Container),
	}
}

func (t *Topology) CheckPdbState(ctx context.Context, rc domain.RunContext) (domain.PdbOpenMode, error) {
	out, err := query(ctx, t.sql, rc.RootSession(), fmt.Sprintf(pdbOpenModeSQL, rc.Target.ID))
	if err != nil {
		return "", fmt.Errorf("query pluggable open mode: %w", err)
	}
	mode := domain.ParsePdbOpenMode(first(out))
	if !mode.Usable() {
		return mode, &domain.TopologyError{Reason: domain.ReasonPdbNotReady, Target: rc.Target.String(), Detail: "open mode " + quoted(string(mode))}
	}
	return mode, nil
}

// CheckAliasLevel logs in over the target alias with cred and fails when the
// seed is visible, which only happens in the root container. The account is
// local to the PDB, so a rejected login means the alias reached another
// container.
func (t *Topology) CheckAliasLevel(ctx context.Context, rc domain.RunContext, cred *domain.Credential) error {
	out, err := query(ctx, t.sql, rc.NetworkSession(cred), seedVisibleSQL)
	if errors.Is(err, domain.ErrAuthenticationFailed) {
		return &domain.TopologyError{
			Reason: domain.ReasonAliasAtRoot,
			Target: rc.Target.String(),
			Detail: "ephemeral account cannot log in over alias " + rc.Target.Alias,
		}
	}
	if err != nil {
		return fmt.Errorf("check alias %s: %w", rc.Target.Alias, err)
	}
	n, err := strconv.Atoi(first(out))
	if err != nil {
		return fmt.Errorf("check alias %s: unexpected output %q", rc.Target.Alias, first(out))
	}
	if n > 0 {
		return &domain.TopologyError{Reason: domain.ReasonAliasAtRoot, Target: rc.Target.String(), Detail: "alias " + rc.Target.Alias}
	}
	return nil
}

func first(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func quoted(s string) string {
	if s == "" {
		return "<empty>"
	}
	return strconv.Quote(s)
}
