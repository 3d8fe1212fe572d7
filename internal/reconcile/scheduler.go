package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/job-portal/job-portal-server/internal/logging"
)

const runTimeout = 5 * time.Minute

// Scheduler runs Recount on a cron schedule. Specs use the six-field form
// with seconds, e.g. "0 0 3 * * *".
type Scheduler struct {
	cron      *cron.Cron
	recounter *Recounter
}

func NewScheduler(spec string, recounter *Recounter) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		recounter: recounter,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid recount schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logging.FromContext(context.Background()).Info("reconcile.scheduler", "recount scheduler started")
}

// Stop prevents further runs and waits for a running recount to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if _, err := s.recounter.Recount(ctx); err != nil {
		logging.FromContext(ctx).Error("reconcile.recount", err)
	}
}
