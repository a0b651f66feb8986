package usecase

import (
	"context"
	"path/filepath"
	"sync"
)

// Offsite copies finished artifacts to every enabled upload target. Targets
// run concurrently; a failing target never affects the others or the run.
type Offsite struct {
	targets []UploadTarget
	logger  Logger
}

func NewOffsite(targets []UploadTarget, logger Logger) *Offsite {
	return &Offsite{targets: targets, logger: logger}
}

// Copy returns the number of targets that received every artifact.
func (uc *Offsite) Copy(ctx context.Context, label string, files []string) int {
	if len(uc.targets) == 0 || len(files) == 0 {
		return 0
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, target := range uc.targets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			uc.logger.Infof("[%s] Uploading %d file(s) to %s...", label, len(files), t.Name)
			for _, f := range files {
				if err := t.Storage.Upload(ctx, f, filepath.Base(f)); err != nil {
					uc.logger.Errorf("[%s] Failed to upload %s to %s: %v", label, filepath.Base(f), t.Name, err)
					return
				}
			}
			uc.logger.Infof("[%s] Successfully uploaded to %s", label, t.Name)

			mu.Lock()
			ok++
			mu.Unlock()
		}(target)
	}
	wg.Wait()
	return ok
}
