package applications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/job-portal/job-portal-server/internal/apperr"
	"github.com/job-portal/job-portal-server/internal/auth"
	"github.com/job-portal/job-portal-server/internal/docstore"
	"github.com/job-portal/job-portal-server/internal/events"
	"github.com/job-portal/job-portal-server/internal/jobs"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// brokenCounterStore fails every Increment on the jobs collection.
type brokenCounterStore struct {
	docstore.Store
}

func (s brokenCounterStore) Collection(name string) docstore.Collection {
	col := s.Store.Collection(name)
	if name == jobs.Collection {
		return brokenCounter{Collection: col}
	}
	return col
}

type brokenCounter struct {
	docstore.Collection
}

func (brokenCounter) Increment(context.Context, string, string, int64) (*docstore.UpdateResult, error) {
	return nil, errors.New("connection reset")
}

type fixture struct {
	store docstore.Store
	jobs  *jobs.Repo
	svc   *Service
	pub   *recordingPublisher
}

func setupService(t *testing.T, opts Options) *fixture {
	t.Helper()
	return setupServiceWithStore(t, docstore.NewMemoryStore(), opts)
}

func setupServiceWithStore(t *testing.T, store docstore.Store, opts Options) *fixture {
	t.Helper()
	pub := &recordingPublisher{}
	jobRepo := jobs.NewRepo(store)
	return &fixture{
		store: store,
		jobs:  jobRepo,
		svc:   NewService(store, jobRepo, pub, opts),
		pub:   pub,
	}
}

func (f *fixture) createJob(t *testing.T, doc docstore.Document) string {
	t.Helper()
	res, err := f.jobs.Create(context.Background(), doc)
	require.NoError(t, err)
	return res.InsertedID
}

func (f *fixture) applicationCount(t *testing.T, jobID string) interface{} {
	t.Helper()
	doc, err := f.jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	return doc[jobs.FieldApplicationCount]
}

func TestService_CreateIncrementsApplicationCount(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})
	jobID := f.createJob(t, docstore.Document{"title": "Engineer", "applicationCount": 2})

	res, err := f.svc.Create(ctx, docstore.Document{"job_id": jobID, "applicant_email": "b@x.com"})
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
	require.NotEmpty(t, res.InsertedID)

	assert.Equal(t, float64(3), f.applicationCount(t, jobID))
	assert.Equal(t, []string{events.ApplicationCreated}, f.pub.types())
}

func TestService_CreateStartsAbsentCounterAtOne(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})
	jobID := f.createJob(t, docstore.Document{"title": "Engineer"})

	_, err := f.svc.Create(ctx, docstore.Document{"job_id": jobID})
	require.NoError(t, err)
	assert.Equal(t, float64(1), f.applicationCount(t, jobID))
}

func TestService_CreateWithUnknownJobStillStores(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})

	res, err := f.svc.Create(ctx, docstore.Document{"job_id": "nope", "applicant_email": "b@x.com"})
	require.NoError(t, err)

	doc, err := f.svc.Get(ctx, res.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, "nope", doc["job_id"])

	all, err := f.jobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all, "counter step must not create a job")
}

func TestService_CreateWithoutStringJobIDSkipsCounter(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})
	jobID := f.createJob(t, docstore.Document{"title": "Engineer"})

	_, err := f.svc.Create(ctx, docstore.Document{"job_id": 42})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, docstore.Document{"applicant_email": "b@x.com"})
	require.NoError(t, err)

	assert.Nil(t, f.applicationCount(t, jobID))
}

func TestService_CounterFailureKeepsInsert(t *testing.T) {
	ctx := context.Background()
	f := setupServiceWithStore(t, brokenCounterStore{Store: docstore.NewMemoryStore()}, Options{})
	jobID := f.createJob(t, docstore.Document{"title": "Engineer"})

	res, err := f.svc.Create(ctx, docstore.Document{"job_id": jobID})
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)

	_, err = f.svc.Get(ctx, res.InsertedID)
	require.NoError(t, err)
	assert.Nil(t, f.applicationCount(t, jobID))
}

func TestService_RequireJob(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{RequireJob: true})

	_, err := f.svc.Create(ctx, docstore.Document{"job_id": "nope"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnprocessable, apperr.KindOf(err))

	_, err = f.svc.Create(ctx, docstore.Document{"applicant_email": "b@x.com"})
	assert.Equal(t, apperr.KindUnprocessable, apperr.KindOf(err))

	jobID := f.createJob(t, docstore.Document{"title": "Engineer"})
	_, err = f.svc.Create(ctx, docstore.Document{"job_id": jobID})
	require.NoError(t, err)
	assert.Equal(t, float64(1), f.applicationCount(t, jobID))

	apps, err := f.svc.ListByJob(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestService_ConcurrentCreatesCountEveryApplication(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})
	jobID := f.createJob(t, docstore.Document{"title": "Engineer"})

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, docstore.Document{"job_id": jobID})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(n), f.applicationCount(t, jobID))
}

func TestService_ListByApplicantEnriches(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})
	jobID := f.createJob(t, docstore.Document{"title": "Engineer", "company": "Acme", "company_logo": "l.png"})

	_, err := f.svc.Create(ctx, docstore.Document{"job_id": jobID, "applicant_email": "b@x.com"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, docstore.Document{"job_id": "gone", "applicant_email": "b@x.com"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, docstore.Document{"job_id": jobID, "applicant_email": "c@x.com"})
	require.NoError(t, err)

	me := &auth.Identity{Email: "b@x.com"}
	apps, err := f.svc.ListByApplicant(ctx, "b@x.com", me)
	require.NoError(t, err)
	require.Len(t, apps, 2)

	assert.Equal(t, "Engineer", apps[0]["job_title"])
	assert.Equal(t, "Acme", apps[0]["company_name"])
	assert.Equal(t, "l.png", apps[0]["company_logo"])

	_, enriched := apps[1]["job_title"]
	assert.False(t, enriched, "applications of missing jobs are returned as stored")

	// enrichment is read-only
	stored, err := f.svc.Get(ctx, apps[0].ID())
	require.NoError(t, err)
	_, persisted := stored["job_title"]
	assert.False(t, persisted)

	again, err := f.svc.ListByApplicant(ctx, "b@x.com", me)
	require.NoError(t, err)
	assert.Equal(t, apps, again)
}

func TestService_ListByApplicantRejectsOtherEmails(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})

	_, err := f.svc.ListByApplicant(ctx, "a@x.com", &auth.Identity{Email: "b@x.com"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, "Forbidden access", apperr.MessageOf(err))

	_, err = f.svc.ListByApplicant(ctx, "", &auth.Identity{Email: "b@x.com"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.ListByApplicant(ctx, "a@x.com", nil)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})

	ins, err := f.svc.Create(ctx, docstore.Document{"job_id": "j1", "status": "pending", "applicant_email": "b@x.com"})
	require.NoError(t, err)

	res, err := f.svc.UpdateStatus(ctx, ins.InsertedID, "hired")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.MatchedCount)
	assert.Equal(t, int64(1), res.ModifiedCount)

	doc, err := f.svc.Get(ctx, ins.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, "hired", doc["status"])
	assert.Equal(t, "b@x.com", doc["applicant_email"])

	res, err = f.svc.UpdateStatus(ctx, "missing", "hired")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.MatchedCount)
	assert.Nil(t, res.UpsertedID)

	_, err = f.svc.Get(ctx, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	assert.Equal(t, []string{events.ApplicationCreated, events.ApplicationStatusChanged}, f.pub.types())
}

func TestService_DeleteLeavesCounter(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})
	jobID := f.createJob(t, docstore.Document{"title": "Engineer"})

	ins, err := f.svc.Create(ctx, docstore.Document{"job_id": jobID})
	require.NoError(t, err)

	res, err := f.svc.Delete(ctx, ins.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedCount)

	res, err = f.svc.Delete(ctx, ins.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.DeletedCount)

	assert.Equal(t, float64(1), f.applicationCount(t, jobID))
	assert.Equal(t, []string{events.ApplicationCreated, events.ApplicationDeleted}, f.pub.types())
}

func TestService_CountForJob(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, Options{})

	for _, jobID := range []interface{}{"j1", "j2", "j1", 7} {
		_, err := f.svc.Create(ctx, docstore.Document{"job_id": jobID})
		require.NoError(t, err)
	}

	for jobID, want := range map[string]int64{"j1": 2, "j2": 1, "j3": 0} {
		n, err := f.svc.CountForJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, want, n, jobID)
	}
}
