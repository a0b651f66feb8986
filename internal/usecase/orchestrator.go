package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/oraexport/internal/domain"
)

// Request is one export invocation as given on the command line, merged
// with configuration defaults.
type Request struct {
	RunID       string
	CDB         string
	PDB         string
	Schemas     []string
	Tables      []string
	Parallelism int
	WorkDir     string
	TNSAdmin    string
	SkipChecks  bool
	Notify      bool
	Compress    bool
}

// BinaryLocator reports where a client binary lives for an instance.
type BinaryLocator interface {
	Binary(instance domain.Instance) string
}

type Components struct {
	Directory domain.InstanceDirectory
	// Processes may be nil, which skips the running-instance check.
	Processes domain.ProcessLister
	Binaries  []BinaryLocator
	Locker    domain.Locker
	Topology  *Topology
	Creds     *Credentials
	Precheck  *Precheck
	Export    *Export
	Offsite   *Offsite
	Cleanup   *Cleanup
	Notifier  domain.Notifier
	// NotifyOnSuccess also reports successful runs; failures are always
	// reported when notification is on.
	NotifyOnSuccess bool
}

// Orchestrator sequences one export run: validation, environment, lock,
// topology, credential, precheck, job, teardown, report.
type Orchestrator struct {
	c      Components
	logger Logger
	now    func() time.Time
}

func NewOrchestrator(c Components, logger Logger) *Orchestrator {
	return &Orchestrator{c: c, logger: logger, now: time.Now}
}

// NewRunContext validates req and resolves the hosting instance. Nothing here
// touches the database.
func (o *Orchestrator) NewRunContext(req Request) (domain.RunContext, error) {
	if err := domain.ValidateParallelism(req.Parallelism); err != nil {
		return domain.RunContext{}, err
	}
	scope, err := domain.NewScope(req.Schemas, req.Tables)
	if err != nil {
		return domain.RunContext{}, err
	}

	var target domain.ExportTarget
	switch {
	case req.CDB == "":
		return domain.RunContext{}, &domain.ValidationError{Field: "cdb", Msg: "a container or database name is required"}
	case req.PDB != "":
		target, err = domain.NewPluggableTarget(req.CDB, req.PDB, "")
	default:
		target, err = domain.NewContainerTarget(req.CDB)
	}
	if err != nil {
		return domain.RunContext{}, err
	}

	inst, err := o.c.Directory.Resolve(target.InstanceSID())
	if err != nil {
		return domain.RunContext{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	rc := domain.RunContext{
		RunID:       runID,
		Instance:    inst,
		Target:      target,
		Scope:       scope,
		Parallelism: req.Parallelism,
		WorkDir:     req.WorkDir,
		TNSAdmin:    req.TNSAdmin,
		SkipChecks:  req.SkipChecks,
		Notify:      req.Notify,
		Compress:    req.Compress,
		StartedAt:   o.now(),
	}
	if err := rc.ValidateNames(); err != nil {
		return domain.RunContext{}, err
	}
	return rc, nil
}

// Execute runs req end to end. The error is set for every fatal condition; a
// job that ran and failed is reported in the Report with a nil error.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Report, error) {
	rc, err := o.NewRunContext(req)
	if err != nil {
		o.logger.Errorf("Invalid request: %v", err)
		return &Report{Status: StatusAborted, Err: err}, err
	}
	return o.Run(ctx, rc)
}

// Run executes an already validated run context.
func (o *Orchestrator) Run(ctx context.Context, rc domain.RunContext) (report *Report, err error) {
	report = newReport(rc)
	o.logger.Infof("[%s] Starting export run %s (scope %s, parallel %d)", rc.Target, rc.RunID, rc.Scope, rc.Parallelism)

	defer func() {
		report.settle(err, o.now())
		o.finish(ctx, rc, report)
	}()

	if err = o.checkEnvironment(ctx, rc); err != nil {
		return report, err
	}

	release, err := o.c.Locker.Acquire(ctx, rc.Target.InstanceSID())
	if err != nil {
		return report, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			o.logger.Warnf("[%s] Failed to release run lock: %v", rc.Target, rerr)
		}
	}()

	state, err := o.c.Topology.Inspect(ctx, rc)
	if err != nil {
		return report, err
	}
	o.logger.Infof("[%s] Database %s, role %s", rc.Target, state.Open, state.Role)

	if err = o.c.Export.PrepareDirectory(ctx, rc); err != nil {
		return report, err
	}

	var cred *domain.Credential
	if rc.Target.Pluggable() {
		// Revoke runs on every path from here on, including a provisioning
		// failure that left a partial account behind.
		defer func() {
			if terr := o.teardown(ctx, rc, report); terr != nil && err == nil {
				err = terr
			}
		}()

		if cred, err = o.c.Creds.Provision(ctx, rc); err != nil {
			return report, err
		}
		if err = o.c.Topology.CheckAliasLevel(ctx, rc, cred); err != nil {
			return report, err
		}
	}

	if rc.SkipChecks {
		o.logger.Warnf("[%s] Existence checks skipped", rc.Target)
	} else if err = o.c.Precheck.Verify(ctx, rc); err != nil {
		return report, err
	}

	report.Job, err = o.c.Export.Run(ctx, rc, cred)
	if err != nil {
		return report, err
	}

	if report.Job.Succeeded() && o.c.Offsite != nil {
		report.Uploaded = o.c.Offsite.Copy(ctx, rc.Target.String(), report.Job.Artifacts())
	}
	return report, nil
}

func (o *Orchestrator) checkEnvironment(ctx context.Context, rc domain.RunContext) error {
	for _, b := range o.c.Binaries {
		path := b.Binary(rc.Instance)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Mode()&0111 == 0 {
			return fmt.Errorf("%w: %s", domain.ErrBinaryMissing, path)
		}
	}

	if o.c.Processes == nil {
		return nil
	}
	running, err := o.c.Processes.Running(ctx)
	if err != nil {
		return fmt.Errorf("list running instances: %w", err)
	}
	if !running[strings.ToUpper(rc.Instance.SID)] {
		return fmt.Errorf("%w: %s", domain.ErrNotRunning, rc.Instance.SID)
	}
	return nil
}

// teardown drops the ephemeral account and confirms it is gone. It runs on a
// context detached from cancellation so an interrupted run still cleans up.
func (o *Orchestrator) teardown(ctx context.Context, rc domain.RunContext, report *Report) error {
	ctx = context.WithoutCancel(ctx)

	if err := o.c.Creds.Revoke(ctx, rc); err != nil {
		o.logger.Errorf("[%s] Failed to drop ephemeral account: %v", rc.Target, err)
		report.warn("ephemeral account drop failed: %v", err)
		return err
	}

	exists, err := o.c.Creds.Exists(ctx, rc)
	switch {
	case err != nil:
		o.logger.Warnf("[%s] Could not confirm ephemeral account removal: %v", rc.Target, err)
		report.warn("ephemeral account removal not confirmed: %v", err)
	case exists:
		o.logger.Errorf("[%s] Ephemeral account still present after drop", rc.Target)
		report.warn("ephemeral account still present after drop")
		return errors.New("ephemeral account still present after drop")
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, rc domain.RunContext, report *Report) {
	switch report.Status {
	case StatusSucceeded:
		o.logger.Infof("[%s] Export run %s succeeded in %s", rc.Target, rc.RunID, report.Duration.Round(time.Second))
	case StatusJobFailed:
		o.logger.Errorf("[%s] Export run %s finished with a failed job (exit code %d)", rc.Target, rc.RunID, report.Job.ExitCode)
	default:
		o.logger.Errorf("[%s] Export run %s aborted: %v", rc.Target, rc.RunID, report.Err)
	}

	if report.Job != nil && o.c.Cleanup != nil {
		if err := o.c.Cleanup.Execute(ctx); err != nil {
			o.logger.Warnf("[%s] Retention cleanup failed: %v", rc.Target, err)
		}
	}

	if !rc.Notify || o.c.Notifier == nil {
		return
	}
	if report.Status == StatusSucceeded && !o.c.NotifyOnSuccess {
		return
	}
	if err := o.c.Notifier.Notify(context.WithoutCancel(ctx), report.Subject(), report.Body()); err != nil {
		o.logger.Errorf("[%s] Failed to send notification: %v", rc.Target, err)
	}
}
