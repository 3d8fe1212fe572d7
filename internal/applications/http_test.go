package applications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/job-portal/job-portal-server/internal/auth"
	"github.com/job-portal/job-portal-server/internal/docstore"
	"github.com/job-portal/job-portal-server/internal/events"
	"github.com/job-portal/job-portal-server/internal/jobs"
)

type testServer struct {
	router *gin.Engine
	tokens *auth.TokenService
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := docstore.NewMemoryStore()
	jobRepo := jobs.NewRepo(store)
	tokens := auth.NewTokenService("test-secret", time.Hour)
	cookies := auth.CookieConfig{}

	router := gin.New()
	auth.NewHandler(tokens, cookies).Register(router)
	jobs.Register(router, jobRepo)
	Register(router, NewService(store, jobRepo, events.Nop{}, Options{}), auth.RequireToken(tokens, cookies))
	return &testServer{router: router, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

// login obtains a session cookie through POST /jwt.
func (s *testServer) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/jwt", `{"email":"`+email+`"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.DefaultCookieName {
			return &http.Cookie{Name: c.Name, Value: c.Value}
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst))
}

func TestApplicationRoutes_ApplyAndList(t *testing.T) {
	s := setupRouter(t)

	rr := s.do(t, http.MethodPost, "/jobs", `{"title":"Engineer","company":"Acme","company_logo":"l.png","applicationCount":0}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var job docstore.InsertResult
	decodeBody(t, rr, &job)

	rr = s.do(t, http.MethodPost, "/applications", `{"job_id":"`+job.InsertedID+`","applicant_email":"b@x.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var app docstore.InsertResult
	decodeBody(t, rr, &app)
	assert.True(t, app.Acknowledged)

	rr = s.do(t, http.MethodGet, "/jobs/"+job.InsertedID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stored map[string]interface{}
	decodeBody(t, rr, &stored)
	assert.Equal(t, float64(1), stored["applicationCount"])

	cookie := s.login(t, "b@x.com")
	rr = s.do(t, http.MethodGet, "/applications?email=b@x.com", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{
		"_id":"`+app.InsertedID+`",
		"job_id":"`+job.InsertedID+`",
		"applicant_email":"b@x.com",
		"job_title":"Engineer",
		"company_name":"Acme",
		"company_logo":"l.png"
	}]`, rr.Body.String())
}

func TestApplicationRoutes_Guard(t *testing.T) {
	s := setupRouter(t)

	rr := s.do(t, http.MethodGet, "/applications?email=b@x.com", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"message":"Unauthorized"`)

	bad := &http.Cookie{Name: auth.DefaultCookieName, Value: "not-a-jwt"}
	rr = s.do(t, http.MethodGet, "/applications?email=b@x.com", "", bad)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	other, _, err := auth.NewTokenService("other-secret", time.Hour).Issue(map[string]interface{}{"email": "b@x.com"})
	require.NoError(t, err)
	rr = s.do(t, http.MethodGet, "/applications?email=b@x.com", "", &http.Cookie{Name: auth.DefaultCookieName, Value: other})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	cookie := s.login(t, "b@x.com")
	rr = s.do(t, http.MethodGet, "/applications?email=a@x.com", "", cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), `"message":"Forbidden access"`)

	rr = s.do(t, http.MethodGet, "/applications", "", cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodGet, "/applications?email=b@x.com", "", cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
}

func TestApplicationRoutes_TokenStillValidAfterLogout(t *testing.T) {
	s := setupRouter(t)
	cookie := s.login(t, "b@x.com")

	rr := s.do(t, http.MethodPost, "/logout", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	// logout only clears the browser cookie; a replayed token verifies until exp
	rr = s.do(t, http.MethodGet, "/applications?email=b@x.com", "", cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestApplicationRoutes_GetUpdateDelete(t *testing.T) {
	s := setupRouter(t)

	rr := s.do(t, http.MethodPost, "/applications", `{"job_id":"j1","status":"pending"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var app docstore.InsertResult
	decodeBody(t, rr, &app)

	rr = s.do(t, http.MethodGet, "/applications/"+app.InsertedID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"_id":"`+app.InsertedID+`","job_id":"j1","status":"pending"}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/applications/jobs/j1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var byJob []map[string]interface{}
	decodeBody(t, rr, &byJob)
	require.Len(t, byJob, 1)
	assert.Equal(t, app.InsertedID, byJob[0]["_id"])

	rr = s.do(t, http.MethodPatch, "/applications/"+app.InsertedID, `{"status":"hired","job_id":"other"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var upd docstore.UpdateResult
	decodeBody(t, rr, &upd)
	assert.Equal(t, int64(1), upd.ModifiedCount)

	rr = s.do(t, http.MethodGet, "/applications/"+app.InsertedID, "")
	assert.JSONEq(t, `{"_id":"`+app.InsertedID+`","job_id":"j1","status":"hired"}`, rr.Body.String())

	rr = s.do(t, http.MethodPatch, "/applications/missing", `{"status":"hired"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"acknowledged":true,"matchedCount":0,"modifiedCount":0,"upsertedCount":0,"upsertedId":null}`, rr.Body.String())

	rr = s.do(t, http.MethodDelete, "/applications/"+app.InsertedID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"acknowledged":true,"deletedCount":1}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/applications/"+app.InsertedID, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", rr.Body.String())
}

func TestApplicationRoutes_MalformedBody(t *testing.T) {
	s := setupRouter(t)

	rr := s.do(t, http.MethodPost, "/applications", `{"job_id":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPatch, "/applications/x", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
