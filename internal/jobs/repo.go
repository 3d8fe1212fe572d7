package jobs

import (
	"context"
	"errors"

	"github.com/job-portal/job-portal-server/internal/apperr"
	"github.com/job-portal/job-portal-server/internal/docstore"
)

type Repo struct {
	col docstore.Collection
}

func NewRepo(store docstore.Store) *Repo {
	return &Repo{col: store.Collection(Collection)}
}

// List returns every job, or only the jobs posted by hrEmail when set.
func (r *Repo) List(ctx context.Context, hrEmail string) ([]docstore.Document, error) {
	filter := docstore.Filter{}
	if hrEmail != "" {
		filter[FieldHREmail] = hrEmail
	}
	docs, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("failed to list jobs", err)
	}
	return docs, nil
}

func (r *Repo) Get(ctx context.Context, id string) (docstore.Document, error) {
	doc, err := r.col.FindOne(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, "job not found", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to get job", err)
	}
	return doc, nil
}

// Create stores payload as submitted.
func (r *Repo) Create(ctx context.Context, payload docstore.Document) (*docstore.InsertResult, error) {
	res, err := r.col.InsertOne(ctx, payload)
	if errors.Is(err, docstore.ErrConflict) {
		return nil, apperr.Wrap(apperr.KindInvalid, "job id already exists", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to create job", err)
	}
	return res, nil
}

// ReplaceFields sets every replaceable field from payload on the job. Fields
// missing from payload are set to null. With docstore.UpsertCreate an unknown
// id creates a new job under that id.
func (r *Repo) ReplaceFields(ctx context.Context, id string, payload docstore.Document, mode docstore.UpdateMode) (*docstore.UpdateResult, error) {
	set := make(docstore.Document, len(ReplaceableFields))
	for _, f := range ReplaceableFields {
		set[f] = payload[f]
	}
	res, err := r.col.UpdateOne(ctx, id, set, mode)
	if err != nil {
		return nil, apperr.Internal("failed to update job", err)
	}
	return res, nil
}

func (r *Repo) Delete(ctx context.Context, id string) (*docstore.DeleteResult, error) {
	res, err := r.col.DeleteOne(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to delete job", err)
	}
	return res, nil
}

// IncrementApplicationCount adds one to the job's applicationCount and
// reports whether the job exists.
func (r *Repo) IncrementApplicationCount(ctx context.Context, id string) (bool, error) {
	res, err := r.col.Increment(ctx, id, FieldApplicationCount, 1)
	if err != nil {
		return false, apperr.Internal("failed to update application count", err)
	}
	return res.MatchedCount > 0, nil
}

// SetApplicationCountIf overwrites the counter with n only while it still
// holds expected (nil for absent). It reports false when the job is gone or
// the counter moved, so concurrent increments are never overwritten.
func (r *Repo) SetApplicationCountIf(ctx context.Context, id string, expected interface{}, n int64) (bool, error) {
	res, err := r.col.UpdateIf(ctx, id, FieldApplicationCount, expected, docstore.Document{FieldApplicationCount: n})
	if err != nil {
		return false, apperr.Internal("failed to set application count", err)
	}
	return res.MatchedCount > 0, nil
}
