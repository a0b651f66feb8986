package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Scheduler runs named jobs on six-field cron specs. A job that is still
// running when its next tick arrives is skipped rather than stacked, so an
// export that overruns its window never overlaps itself.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger Logger
}

func New(ctx context.Context, logger Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		logger: logger,
	}
}

func (s *Scheduler) AddJob(name, spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Infof("=== Triggered scheduled %s ===", name)
		if err := job(s.ctx); err != nil {
			s.logger.Errorf("Scheduled %s failed: %v", name, err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
