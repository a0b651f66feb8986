package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// RetentionTarget is a storage swept by Cleanup. Match selects the names the
// sweep may touch; everything else in the storage is left alone.
type RetentionTarget struct {
	UploadTarget
	Match func(name string) bool
}

var artifactPattern = regexp.MustCompile(`_export_\d{8}_\d{6}(_\d+)?\.(dmp|log|par|tar\.gz)$`)

// IsArtifact reports whether name is a dump, log, parameter file or archive
// produced by an export run.
func IsArtifact(name string) bool {
	return artifactPattern.MatchString(name)
}

type Cleanup struct {
	targets       []RetentionTarget
	logger        Logger
	retentionDays int
	now           func() time.Time
}

func NewCleanup(
	targets []RetentionTarget,
	logger Logger,
	retentionDays int,
) *Cleanup {
	return &Cleanup{
		targets:       targets,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

func (uc *Cleanup) Execute(ctx context.Context) error {
	if uc.retentionDays <= 0 {
		uc.logger.Infof("Retention disabled, skipping cleanup")
		return nil
	}
	uc.logger.Infof("Starting cleanup, retention: %d days", uc.retentionDays)

	cutoff := uc.now().AddDate(0, 0, -uc.retentionDays)

	var wg sync.WaitGroup
	for _, target := range uc.targets {
		wg.Add(1)
		go func(t RetentionTarget) {
			defer wg.Done()

			if err := uc.cleanupTarget(ctx, t, cutoff); err != nil {
				uc.logger.Errorf("Cleanup failed for %s: %v", t.Name, err)
			}
		}(target)
	}
	wg.Wait()

	uc.logger.Infof("Cleanup completed")
	return nil
}

func (uc *Cleanup) cleanupTarget(ctx context.Context, target RetentionTarget, cutoff time.Time) error {
	files, err := uc.expired(ctx, target, cutoff)
	if err != nil {
		return err
	}

	deleted := 0
	for _, filename := range files {
		uc.logger.Infof("Deleting expired file from %s: %s", target.Name, filename)

		if err := target.Storage.Delete(ctx, filename); err != nil {
			uc.logger.Errorf("Failed to delete %s from %s: %v", filename, target.Name, err)
		} else {
			deleted++
		}
	}

	uc.logger.Infof("Deleted %d expired file(s) from %s", deleted, target.Name)
	return nil
}

// expired keys on the timestamp embedded in the name and falls back to the
// storage's own modification time for names that carry none.
func (uc *Cleanup) expired(ctx context.Context, target RetentionTarget, cutoff time.Time) ([]string, error) {
	files, err := target.Storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	var byModTime map[string]bool
	old := make([]string, 0)
	for _, filename := range files {
		if target.Match != nil && !target.Match(filename) {
			continue
		}

		if timestamp, err := extractTimestamp(filename); err == nil {
			if timestamp.Before(cutoff) {
				old = append(old, filename)
			}
			continue
		}

		if byModTime == nil {
			byModTime = make(map[string]bool)
			names, err := target.Storage.GetOldFiles(ctx, cutoff)
			if err != nil {
				uc.logger.Warnf("Could not read modification times from %s: %v", target.Name, err)
			}
			for _, n := range names {
				byModTime[n] = true
			}
		}
		if byModTime[filename] {
			old = append(old, filename)
		}
	}

	return old, nil
}

var timestampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)

func extractTimestamp(filename string) (time.Time, error) {
	matches := timestampPattern.FindStringSubmatch(filename)

	if len(matches) < 3 {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
	}

	return time.ParseInLocation("20060102_150405", matches[1]+"_"+matches[2], time.Local)
}
