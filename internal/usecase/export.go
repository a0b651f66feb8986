package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/semmidev/oraexport/internal/domain"
)

type ExportSettings struct {
	DirectoryObject string
	// Compression is passed through as COMPRESSION= when set.
	Compression string
	// Consistent adds FLASHBACK_TIME=SYSTIMESTAMP.
	Consistent bool
}

// Export runs one Data Pump job and classifies it by exit status alone.
type Export struct {
	sql      domain.SQLExecutor
	engine   domain.ExportEngine
	archiver domain.Archiver
	logger   Logger
	settings ExportSettings
	now      func() time.Time
}

func NewExport(
	sql domain.SQLExecutor,
	engine domain.ExportEngine,
	archiver domain.Archiver,
	settings ExportSettings,
	logger Logger,
) *Export {
	return &Export{
		sql:      sql,
		engine:   engine,
		archiver: archiver,
		logger:   logger,
		settings: settings,
		now:      time.Now,
	}
}

// PrepareDirectory creates the work directory and points the directory
// object at it, inside the target container.
func (e *Export) PrepareDirectory(ctx context.Context, rc domain.RunContext) error {
	if !filepath.IsAbs(rc.WorkDir) || strings.ContainsAny(rc.WorkDir, "'\"\n") {
		return &domain.ValidationError{Field: "dir", Msg: fmt.Sprintf("work directory %q must be an absolute path without quotes", rc.WorkDir)}
	}
	if err := domain.ValidateIdentifier("directory object", e.settings.DirectoryObject); err != nil {
		return err
	}
	if err := os.MkdirAll(rc.WorkDir, 0750); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	stmt := fmt.Sprintf(createDirectory, e.settings.DirectoryObject, rc.WorkDir)
	if err := execute(ctx, e.sql, rc.LocalSession(), stmt); err != nil {
		return fmt.Errorf("create directory object %s: %w", e.settings.DirectoryObject, err)
	}
	e.logger.Infof("[%s] Directory %s -> %s", rc.Target, e.settings.DirectoryObject, rc.WorkDir)
	return nil
}

func (e *Export) Job(rc domain.RunContext) domain.ExportJob {
	base := rc.BaseName()
	return domain.ExportJob{
		BaseName:    base,
		DumpFile:    base + "_%U.dmp",
		LogFile:     base + ".log",
		ParFile:     filepath.Join(rc.WorkDir, base+".par"),
		Directory:   e.settings.DirectoryObject,
		WorkDir:     rc.WorkDir,
		Parallelism: rc.Parallelism,
		Compress:    rc.Compress,
		Scope:       rc.Scope,
		StartedAt:   rc.StartedAt,
	}
}

// Parameters renders the parameter file lines for job.
func Parameters(job domain.ExportJob, userID string, settings ExportSettings) []string {
	params := []string{
		"USERID=" + userID,
		"DIRECTORY=" + job.Directory,
		"DUMPFILE=" + job.DumpFile,
		"LOGFILE=" + job.LogFile,
	}

	switch job.Scope.Kind() {
	case domain.ScopeSchemas:
		params = append(params, "SCHEMAS="+strings.Join(job.Scope.Schemas(), ","))
	case domain.ScopeTables:
		tables := job.Scope.Tables()
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = t.String()
		}
		params = append(params, "TABLES="+strings.Join(names, ","))
	default:
		params = append(params, "FULL=Y")
	}

	params = append(params, fmt.Sprintf("PARALLEL=%d", job.Parallelism))
	if settings.Compression != "" {
		params = append(params, "COMPRESSION="+strings.ToUpper(settings.Compression))
	}
	if settings.Consistent {
		params = append(params, "FLASHBACK_TIME=SYSTIMESTAMP")
	}
	return params
}

// userID is the OS-authenticated sysdba login for non-pluggable targets and
// the ephemeral account over the alias otherwise.
func userID(rc domain.RunContext, cred *domain.Credential) string {
	if cred == nil || !rc.Target.Pluggable() {
		return `"/ as sysdba"`
	}
	return fmt.Sprintf("%s/%s@%s", cred.Account, cred.Password, rc.Target.Alias)
}

// Run writes the parameter file, runs the engine and collects what it
// produced. Only a failure to prepare the job is returned as an error; a
// nonzero engine status is reported in the result.
func (e *Export) Run(ctx context.Context, rc domain.RunContext, cred *domain.Credential) (*domain.JobResult, error) {
	job := e.Job(rc)

	if err := writeParFile(job.ParFile, Parameters(job, userID(rc, cred), e.settings)); err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(job.ParFile); err != nil && !os.IsNotExist(err) {
			e.logger.Errorf("[%s] Failed to remove parameter file %s: %v", rc.Target, job.ParFile, err)
		}
	}()

	e.logger.Infof("[%s] Starting export %s (scope %s, parallel %d)", rc.Target, job.BaseName, job.Scope, job.Parallelism)

	start := e.now()
	code, err := e.engine.Export(ctx, rc.Instance, rc.TNSAdmin, job.ParFile)
	if err != nil {
		e.logger.Errorf("[%s] Export engine did not run: %v", rc.Target, err)
	}

	result := &domain.JobResult{
		ExitCode:        code,
		DumpFilePattern: job.DumpFile,
		LogFilePattern:  job.LogFile,
		Duration:        e.now().Sub(start),
	}
	result.Files = collectFiles(job)

	if result.Succeeded() {
		e.logger.Infof("[%s] Export completed in %s: %d file(s)", rc.Target, result.Duration.Round(time.Second), len(result.Files))
	} else {
		e.logger.Errorf("[%s] Export failed with exit code %d, see %s", rc.Target, code, filepath.Join(job.WorkDir, job.LogFile))
	}

	if job.Compress && len(result.Files) > 0 {
		e.archive(rc, job, result)
	}
	return result, nil
}

// archive never changes the job classification; on failure the raw files
// stay in place.
func (e *Export) archive(rc domain.RunContext, job domain.ExportJob, result *domain.JobResult) {
	dest := filepath.Join(job.WorkDir, job.BaseName+".tar.gz")

	e.logger.Infof("[%s] Archiving %d file(s)...", rc.Target, len(result.Files))
	if err := e.archiver.Bundle(dest, result.Files); err != nil {
		e.logger.Errorf("[%s] Archive failed, keeping raw files: %v", rc.Target, err)
		os.Remove(dest)
		return
	}

	var original int64
	for _, f := range result.Files {
		if info, err := os.Stat(f); err == nil {
			original += info.Size()
		}
		if err := os.Remove(f); err != nil {
			e.logger.Warnf("[%s] Failed to remove %s after archiving: %v", rc.Target, f, err)
		}
	}
	result.Archive = dest

	if info, err := os.Stat(dest); err == nil && original > 0 {
		e.logger.Infof("[%s] Archive complete, size: %.2f MB (%.1f%% of original)",
			rc.Target, float64(info.Size())/(1024*1024), float64(info.Size())/float64(original)*100)
	}
}

func writeParFile(path string, params []string) error {
	content := strings.Join(params, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("write parameter file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("chmod parameter file: %w", err)
	}
	return nil
}

func collectFiles(job domain.ExportJob) []string {
	files, _ := filepath.Glob(filepath.Join(job.WorkDir, job.BaseName+"_*.dmp"))
	sort.Strings(files)
	logPath := filepath.Join(job.WorkDir, job.LogFile)
	if _, err := os.Stat(logPath); err == nil {
		files = append(files, logPath)
	}
	return files
}
