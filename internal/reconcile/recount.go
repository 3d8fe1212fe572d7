// Package reconcile repairs the denormalized applicationCount on jobs.
package reconcile

import (
	"context"
	"errors"

	"github.com/job-portal/job-portal-server/internal/apperr"
	"github.com/job-portal/job-portal-server/internal/jobs"
	"github.com/job-portal/job-portal-server/internal/logging"
)

const maxAttempts = 5

var errCounterBusy = errors.New("applicationCount kept changing")

// ApplicationCounter counts stored applications for one job.
type ApplicationCounter interface {
	CountForJob(ctx context.Context, jobID string) (int64, error)
}

type Report struct {
	Jobs    int `json:"jobs"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type Recounter struct {
	jobs *jobs.Repo
	apps ApplicationCounter
}

func NewRecounter(jobRepo *jobs.Repo, apps ApplicationCounter) *Recounter {
	return &Recounter{jobs: jobRepo, apps: apps}
}

// Recount sets every job's applicationCount to the number of applications
// that reference it. Jobs whose counter already matches are not written.
func (r *Recounter) Recount(ctx context.Context) (*Report, error) {
	logger := logging.FromContext(ctx)

	all, err := r.jobs.List(ctx, "")
	if err != nil {
		return nil, err
	}

	report := &Report{Jobs: len(all)}
	for _, doc := range all {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		updated, err := r.recountJob(ctx, doc.ID())
		if errors.Is(err, errCounterBusy) {
			logger.Warnf("reconcile.recount", "job_id=%s skipped: %v", doc.ID(), err)
			report.Skipped++
			continue
		}
		if err != nil {
			return report, err
		}
		if updated {
			report.Updated++
		}
	}

	logger.Infof("reconcile.recount", "jobs=%d updated=%d skipped=%d", report.Jobs, report.Updated, report.Skipped)
	return report, nil
}

// recountJob reads the counter before tallying, then writes only if the
// counter still holds what was read. An application created in between moves
// the counter through its increment, and the job is tallied again.
func (r *Recounter) recountJob(ctx context.Context, id string) (bool, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		doc, err := r.jobs.Get(ctx, id)
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		expected := doc[jobs.FieldApplicationCount]

		want, err := r.apps.CountForJob(ctx, id)
		if err != nil {
			return false, err
		}
		if current, ok := jobs.ApplicationCount(doc); ok && current == want {
			return false, nil
		}

		ok, err := r.jobs.SetApplicationCountIf(ctx, id, expected, want)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, errCounterBusy
}
