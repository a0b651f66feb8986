package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/semmidev/oraexport/internal/adapter/compressor"
	"github.com/semmidev/oraexport/internal/adapter/database"
	"github.com/semmidev/oraexport/internal/adapter/instance"
	"github.com/semmidev/oraexport/internal/adapter/notifier"
	"github.com/semmidev/oraexport/internal/adapter/storage"
	"github.com/semmidev/oraexport/internal/config"
	"github.com/semmidev/oraexport/internal/domain"
	"github.com/semmidev/oraexport/internal/infrastructure/lock"
	"github.com/semmidev/oraexport/internal/infrastructure/logger"
	"github.com/semmidev/oraexport/internal/infrastructure/scheduler"
	"github.com/semmidev/oraexport/internal/usecase"
)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	directory     domain.InstanceDirectory
	processes     domain.ProcessLister
	sql           domain.SQLExecutor
	engine        *database.Expdp
	binaries      []usecase.BinaryLocator
	locker        domain.Locker
	closeLocker   func() error
	uploadTargets []usecase.UploadTarget
	notifier      domain.Notifier
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &App{
		config:    cfg,
		logger:    log,
		directory: instance.NewOratab(cfg.Oracle.Oratab),
		engine:    database.NewExpdp(os.Stdout),
	}
	a.binaries = []usecase.BinaryLocator{a.engine}

	switch cfg.SQL.Driver {
	case "godror":
		a.sql = database.NewGodror()
	default:
		sqlplus := database.NewSQLPlus()
		a.sql = sqlplus
		a.binaries = append(a.binaries, sqlplus)
	}
	log.Infof("SQL driver: %s", cfg.SQL.Driver)

	if cfg.Oracle.CheckRunning {
		a.processes = instance.NewProcScanner(cfg.Oracle.ProcRoot)
	}

	if err := a.initializeLocker(); err != nil {
		log.Close()
		return nil, err
	}

	a.uploadTargets = initializeUploadTargets(ctx, cfg, log)
	a.notifier = initializeNotifiers(cfg, log)

	return a, nil
}

func (a *App) initializeLocker() error {
	switch a.config.Lock.Backend {
	case "redis":
		rl, err := lock.NewRedis(a.config.Lock.Redis.Addr, a.config.Lock.Redis.Password, a.config.Lock.Redis.DB, a.config.Lock.Redis.TTL)
		if err != nil {
			return fmt.Errorf("failed to initialize redis lock: %w", err)
		}
		a.locker, a.closeLocker = rl, rl.Close
		a.logger.Infof("✓ Run lock: redis (%s)", a.config.Lock.Redis.Addr)
	case "none":
		a.locker = lock.Nop{}
		a.logger.Warnf("Run lock disabled; concurrent runs against one container are not prevented")
	default:
		fl, err := lock.NewFile(a.config.Lock.Dir)
		if err != nil {
			return fmt.Errorf("failed to initialize file lock: %w", err)
		}
		a.locker = fl
	}
	return nil
}

func initializeUploadTargets(ctx context.Context, cfg *config.Config, log *logger.Logger) []usecase.UploadTarget {
	var targets []usecase.UploadTarget

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.Storage
		var err error

		switch targetCfg.Type {
		case "gdrive":
			stor, err = storage.NewGDrive(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			log.Infof("✓ Google Drive copy enabled")

		case "s3":
			stor, err = storage.NewS3(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			log.Infof("✓ AWS S3 copy enabled (bucket: %s)", targetCfg.Bucket)

		case "local":
			stor, err = storage.NewLocal(targetCfg.Path)
			if err != nil {
				log.Errorf("Failed to initialize local mirror: %v", err)
				continue
			}
			log.Infof("✓ Local mirror enabled (%s)", targetCfg.Path)

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, usecase.UploadTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets
}

func initializeNotifiers(cfg *config.Config, log *logger.Logger) domain.Notifier {
	if !cfg.Notify.Enabled {
		return nil
	}

	var channels notifier.Multi
	if cfg.Notify.Email.Enabled {
		n, err := notifier.NewEmail(cfg.Notify.Email)
		if err != nil {
			log.Errorf("Failed to initialize email notifier: %v", err)
		} else {
			channels = append(channels, n)
			log.Infof("✓ Email notification enabled (%d recipient(s))", len(cfg.Notify.Email.Recipients))
		}
	}
	if cfg.Notify.Telegram.Enabled {
		n, err := notifier.NewTelegram(cfg.Notify.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize Telegram notifier: %v", err)
		} else {
			channels = append(channels, n)
			log.Infof("✓ Telegram notification enabled")
		}
	}

	if len(channels) == 0 {
		return nil
	}
	return channels
}

// orchestrator builds the use case graph around a run-scoped logger.
func (a *App) orchestrator(log usecase.Logger, workDir string) *usecase.Orchestrator {
	cfg := a.config
	policy := usecase.DefaultPasswordPolicy
	policy.MaxAttempts = cfg.Credential.PasswordAttempts

	return usecase.NewOrchestrator(usecase.Components{
		Directory: a.directory,
		Processes: a.processes,
		Binaries:  a.binaries,
		Locker:    a.locker,
		Topology:  usecase.NewTopology(a.sql, log),
		Creds: usecase.NewCredentials(a.sql, rand.Reader, usecase.CredentialSettings{
			Account:           cfg.Credential.Account,
			Directory:         cfg.Export.DirectoryObject,
			DefaultTablespace: cfg.Credential.DefaultTablespace,
			GrantDBA:          cfg.Credential.GrantDBA,
			AccountAttempts:   cfg.Credential.AccountAttempts,
			Policy:            policy,
		}, log),
		Precheck: usecase.NewPrecheck(a.sql, log),
		Export: usecase.NewExport(a.sql, a.engine, compressor.NewTarGzip(), usecase.ExportSettings{
			DirectoryObject: cfg.Export.DirectoryObject,
			Compression:     cfg.Export.Compression,
			Consistent:      cfg.Export.Consistent,
		}, log),
		Offsite:         usecase.NewOffsite(a.uploadTargets, log),
		Cleanup:         a.cleanup(log, workDir),
		Notifier:        a.notifier,
		NotifyOnSuccess: a.config.Notify.OnSuccess,
	}, log)
}

// cleanup sweeps the work directory, the rotated run logs and every offsite
// target. Only export artifacts and rotated log backups are ever removed.
// Nothing is created here, so a request rejected later leaves no trace.
func (a *App) cleanup(log usecase.Logger, workDir string) *usecase.Cleanup {
	targets := []usecase.RetentionTarget{{
		UploadTarget: usecase.UploadTarget{Name: "work dir", Storage: storage.OpenLocal(workDir)},
		Match:        usecase.IsArtifact,
	}}

	if logFile := a.config.App.LogFile; logFile != "" {
		logDir := a.config.Retention.LogDir
		if logDir == "" {
			logDir = filepath.Dir(logFile)
		}
		stem := strings.TrimSuffix(filepath.Base(logFile), filepath.Ext(logFile))
		targets = append(targets, usecase.RetentionTarget{
			UploadTarget: usecase.UploadTarget{Name: "log dir", Storage: storage.OpenLocal(logDir)},
			Match: func(name string) bool {
				return strings.HasPrefix(name, stem+"-")
			},
		})
	}

	for _, t := range a.uploadTargets {
		targets = append(targets, usecase.RetentionTarget{UploadTarget: t, Match: usecase.IsArtifact})
	}

	return usecase.NewCleanup(targets, log, a.config.Retention.Days)
}

// Request merges the command line request with configuration defaults.
// Parallelism is taken as given so that an explicit out-of-range value is
// rejected rather than replaced.
func (a *App) Request(req usecase.Request) usecase.Request {
	if req.WorkDir == "" {
		req.WorkDir = a.config.Export.WorkDir
	}
	if req.TNSAdmin == "" {
		req.TNSAdmin = a.config.Oracle.TNSAdmin
	}
	req.Compress = req.Compress || a.config.Export.Compress
	req.Notify = req.Notify && a.config.Notify.Enabled
	return req
}

// RunOnce executes one export. The error is set only for fatal conditions.
func (a *App) RunOnce(ctx context.Context, req usecase.Request) (*usecase.Report, error) {
	req = a.Request(req)
	req.RunID = uuid.NewString()

	target := req.CDB
	if req.PDB != "" {
		target += "/" + req.PDB
	}
	log := a.logger.WithRun(req.RunID, strings.ToUpper(target))

	return a.orchestrator(log, req.WorkDir).Execute(ctx, req)
}

// RunScheduled repeats req on spec, plus the standalone retention sweep, until
// ctx is cancelled.
func (a *App) RunScheduled(ctx context.Context, req usecase.Request, spec string) error {
	sched := scheduler.New(ctx, a.logger)

	if err := sched.AddJob("export", spec, func(ctx context.Context) error {
		_, err := a.RunOnce(ctx, req)
		return err
	}); err != nil {
		return fmt.Errorf("failed to schedule export: %w", err)
	}

	cleanup := a.cleanup(a.logger, a.Request(req).WorkDir)
	if err := sched.AddJob("cleanup", a.config.Retention.Schedule, cleanup.Execute); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	sched.Start()
	a.logger.Infof("Scheduler started: export %q, cleanup %q", spec, a.config.Retention.Schedule)
	a.logger.Infof("Offsite destinations: %d target(s)", len(a.uploadTargets))

	<-ctx.Done()
	sched.Stop()
	return nil
}

// ListInstances prints the registered SIDs and whether each is running.
func (a *App) ListInstances(ctx context.Context, w io.Writer) error {
	sids, err := a.directory.ListRegistered()
	if err != nil {
		return err
	}

	var running map[string]bool
	if a.processes != nil {
		if running, err = a.processes.Running(ctx); err != nil {
			a.logger.Warnf("Could not scan running instances: %v", err)
		}
	}
	for _, sid := range sids {
		inst, err := a.directory.Resolve(sid)
		if err != nil {
			return err
		}
		state := "unknown"
		if running != nil {
			state = "down"
			if running[strings.ToUpper(sid)] {
				state = "up"
			}
		}
		fmt.Fprintf(w, "%-12s %-6s %s\n", inst.SID, state, inst.Home)
	}
	return nil
}

func (a *App) Shutdown() {
	if a.closeLocker != nil {
		if err := a.closeLocker(); err != nil {
			a.logger.Warnf("Failed to close lock backend: %v", err)
		}
	}
	a.logger.Close()
}
