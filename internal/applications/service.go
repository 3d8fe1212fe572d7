package applications

import (
	"context"
	"errors"

	"github.com/job-portal/job-portal-server/internal/apperr"
	"github.com/job-portal/job-portal-server/internal/auth"
	"github.com/job-portal/job-portal-server/internal/docstore"
	"github.com/job-portal/job-portal-server/internal/events"
	"github.com/job-portal/job-portal-server/internal/jobs"
	"github.com/job-portal/job-portal-server/internal/logging"
)

type Options struct {
	// RequireJob rejects applications whose job_id does not name an existing
	// job. When false, dangling references are stored and the counter step is
	// skipped.
	RequireJob bool
}

type Service struct {
	col       docstore.Collection
	jobs      *jobs.Repo
	publisher events.Publisher
	opts      Options
}

func NewService(store docstore.Store, jobRepo *jobs.Repo, publisher events.Publisher, opts Options) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		col:       store.Collection(Collection),
		jobs:      jobRepo,
		publisher: publisher,
		opts:      opts,
	}
}

// Create stores the application, then bumps applicationCount on the job it
// references. The two writes are independent: if the counter update fails
// the application stays stored and the insert acknowledgement is returned.
func (s *Service) Create(ctx context.Context, payload docstore.Document) (*docstore.InsertResult, error) {
	logger := logging.FromContext(ctx)
	jobID, hasJob := JobID(payload)

	if s.opts.RequireJob {
		if !hasJob {
			return nil, apperr.Unprocessable("job_id is required")
		}
		if _, err := s.jobs.Get(ctx, jobID); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return nil, apperr.Unprocessable("job_id does not reference an existing job")
			}
			return nil, err
		}
	}

	res, err := s.col.InsertOne(ctx, payload)
	if errors.Is(err, docstore.ErrConflict) {
		return nil, apperr.Wrap(apperr.KindInvalid, "application id already exists", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to create application", err)
	}

	if hasJob {
		matched, err := s.jobs.IncrementApplicationCount(ctx, jobID)
		switch {
		case err != nil:
			logger.Errorf("applications.create", "application_id=%s job_id=%s counter update failed: %v", res.InsertedID, jobID, err)
		case !matched:
			logger.Warnf("applications.create", "application_id=%s job_id=%s job not found, counter not updated", res.InsertedID, jobID)
		}
	}

	s.publish(ctx, events.Event{Type: events.ApplicationCreated, ApplicationID: res.InsertedID, JobID: jobID})
	return res, nil
}

// ListByApplicant returns the applications submitted by email, each enriched
// with the title, company and logo of its job. Only the applicant may list
// their own applications.
func (s *Service) ListByApplicant(ctx context.Context, email string, requester *auth.Identity) ([]docstore.Document, error) {
	if requester == nil || requester.Email != email {
		return nil, apperr.Forbidden("Forbidden access")
	}

	apps, err := s.col.Find(ctx, docstore.Filter{FieldApplicantEmail: email})
	if err != nil {
		return nil, apperr.Internal("failed to list applications", err)
	}

	// one job lookup per application
	for _, app := range apps {
		jobID, ok := JobID(app)
		if !ok {
			continue
		}
		doc, err := s.jobs.Get(ctx, jobID)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		app[FieldJobTitle] = doc[jobs.FieldTitle]
		app[FieldCompanyName] = doc[jobs.FieldCompany]
		app[FieldCompanyLogo] = doc[jobs.FieldCompanyLogo]
	}
	return apps, nil
}

func (s *Service) ListByJob(ctx context.Context, jobID string) ([]docstore.Document, error) {
	apps, err := s.col.Find(ctx, docstore.Filter{FieldJobID: jobID})
	if err != nil {
		return nil, apperr.Internal("failed to list applications", err)
	}
	return apps, nil
}

func (s *Service) Get(ctx context.Context, id string) (docstore.Document, error) {
	doc, err := s.col.FindOne(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, "application not found", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to get application", err)
	}
	return doc, nil
}

// UpdateStatus sets only the status field. Unknown ids are not created.
func (s *Service) UpdateStatus(ctx context.Context, id string, status interface{}) (*docstore.UpdateResult, error) {
	res, err := s.col.UpdateOne(ctx, id, docstore.Document{FieldStatus: status}, docstore.Update)
	if err != nil {
		return nil, apperr.Internal("failed to update application", err)
	}
	if res.MatchedCount > 0 {
		label, _ := status.(string)
		s.publish(ctx, events.Event{Type: events.ApplicationStatusChanged, ApplicationID: id, Status: label})
	}
	return res, nil
}

// Delete removes the application. The job's applicationCount is left as is.
func (s *Service) Delete(ctx context.Context, id string) (*docstore.DeleteResult, error) {
	res, err := s.col.DeleteOne(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to delete application", err)
	}
	if res.DeletedCount > 0 {
		s.publish(ctx, events.Event{Type: events.ApplicationDeleted, ApplicationID: id})
	}
	return res, nil
}

// CountForJob returns how many stored applications reference jobID.
func (s *Service) CountForJob(ctx context.Context, jobID string) (int64, error) {
	apps, err := s.ListByJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	return int64(len(apps)), nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warnf("applications.publish", "type=%s application_id=%s error=%v", ev.Type, ev.ApplicationID, err)
	}
}
