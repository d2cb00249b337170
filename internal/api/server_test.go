package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"grant-intake/internal/common/database"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"
	"grant-intake/internal/search"
	"grant-intake/internal/store"
	"grant-intake/internal/wizard"
	"grant-intake/internal/wizard/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type testServer struct {
	*httptest.Server
	gateway  *store.Memory
	sessions *Sessions
}

type fakeSearcher struct {
	query search.Query
}

func (f *fakeSearcher) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	f.query = q
	return &search.Result{
		TotalHits: 1,
		Hits: []search.Hit{{
			Score:    1.2,
			Document: models.SubmissionDocument{ApplicationID: "app-1", Slug: "kibera-youth-app1"},
		}},
	}, nil
}

func newTestServer(t *testing.T, searcher Searcher) *testServer {
	t.Helper()
	gw := store.NewMemory()
	log := logger.NewTestLogger(t)
	sessions := NewSessions(wizard.Options{
		Gateway:  gw,
		Logger:   log,
		Debounce: time.Hour,
	}, time.Hour, log)

	cfg := Config{
		Sessions:       sessions,
		Gateway:        gw,
		RequestTimeout: 5 * time.Second,
		Logger:         log,
		Dependencies:   map[string]database.Pinger{},
	}
	if searcher != nil {
		cfg.Search = searcher
	}
	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(func() {
		srv.Close()
		sessions.Close()
	})
	return &testServer{Server: srv, gateway: gw, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *testServer) createDraft(t *testing.T) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/v1/drafts", nil)
	require.Equal(t, http.StatusCreated, status)
	return body["draft"].(map[string]interface{})["id"].(string)
}

func (s *testServer) setField(t *testing.T, id string, key models.FieldKey, v models.Value) (int, map[string]interface{}) {
	t.Helper()
	return s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/drafts/%s/fields/%s", id, key), setFieldRequest{Value: v})
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error body, got %v", body)
	return e["code"].(string)
}

// ==========================
// Tests
// ==========================

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestCreateAndGetDraft(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodPost, "/api/v1/drafts", nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(11), body["totalSteps"])
	state := body["state"].(map[string]interface{})
	assert.Equal(t, "editing", state["phase"])
	assert.Equal(t, float64(1), state["step"])

	id := body["draft"].(map[string]interface{})["id"].(string)
	status, body = s.do(t, http.MethodGet, "/api/v1/drafts/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["draft"].(map[string]interface{})["id"])
	assert.Equal(t, 1, s.sessions.Len())
}

func TestGetDraft_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodGet, "/api/v1/drafts/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "DRAFT_NOT_FOUND", errorCode(t, body))
}

func TestSetField(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createDraft(t)

	status, body := s.setField(t, id, registry.OrganizationType, models.Text(registry.TypeCommunityBased))
	require.Equal(t, http.StatusOK, status)
	draft := body["draft"].(map[string]interface{})
	scores := draft["derivedScores"].(map[string]interface{})
	assert.Equal(t, float64(5), scores["totalScore"])
	assert.Equal(t, true, body["dirty"])

	status, body = s.setField(t, id, "favouriteColour", models.Text("green"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "UNKNOWN_FIELD", errorCode(t, body))

	status, body = s.do(t, http.MethodPut, "/api/v1/drafts/"+id+"/fields/projectTitle", map[string]interface{}{
		"value": map[string]interface{}{"kind": "colour", "value": "green"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, body))

	status, body = s.do(t, http.MethodDelete, "/api/v1/drafts/"+id+"/fields/organizationType", nil)
	require.Equal(t, http.StatusOK, status)
	scores = body["draft"].(map[string]interface{})["derivedScores"].(map[string]interface{})
	assert.Equal(t, float64(0), scores["totalScore"])
}

func TestNavigate(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createDraft(t)

	status, body := s.do(t, http.MethodPost, "/api/v1/drafts/"+id+"/navigate", navigateRequest{Step: 12})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OUT_OF_RANGE_STEP", errorCode(t, body))

	status, body = s.do(t, http.MethodPost, "/api/v1/drafts/"+id+"/navigate", navigateRequest{Step: 4})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "STEP_NOT_READY", errorCode(t, body))
	metadata := body["error"].(map[string]interface{})["metadata"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(2), float64(3)}, metadata["blockingSteps"])

	status, _ = s.do(t, http.MethodPost, "/api/v1/drafts/"+id+"/navigate", navigateRequest{Step: 2})
	assert.Equal(t, http.StatusOK, status)
}

func TestValidateAndSubmitStep(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createDraft(t)

	status, body := s.do(t, http.MethodPost, "/api/v1/drafts/"+id+"/steps/1/validate", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["fieldErrors"], "organizationName")

	status, body = s.do(t, http.MethodPost, "/api/v1/drafts/"+id+"/steps/1/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = s.do(t, http.MethodPost, "/api/v1/drafts/"+id+"/steps/one/submit", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, body))
}

func TestFullSubmission(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createDraft(t)

	answers := registry.ExampleAnswers()
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		status, body := s.setField(t, id, models.FieldKey(k), answers[models.FieldKey(k)])
		require.Equal(t, http.StatusOK, status, "field %s: %v", k, body)
	}

	status, body := s.do(t, http.MethodPost, "/api/v1/drafts/"+id+"/submit", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INCOMPLETE_APPLICATION", errorCode(t, body))

	for step := 1; step <= 11; step++ {
		status, body = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/drafts/%s/steps/%d/submit", id, step), nil)
		require.Equal(t, http.StatusOK, status, "step %d: %v", step, body)
	}
	assert.Equal(t, "review", body["state"].(map[string]interface{})["phase"])

	status, body = s.do(t, http.MethodPost, "/api/v1/drafts/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, status)
	submission := body["submission"].(map[string]interface{})
	assert.Equal(t, id, submission["applicationId"])
	assert.Equal(t, float64(14), submission["derivedScores"].(map[string]interface{})["totalScore"])
	assert.Equal(t, 0, s.sessions.Len())

	status, body = s.setField(t, id, registry.ProjectTitle, models.Text("late edit"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DRAFT_SUBMITTED", errorCode(t, body))

	status, body = s.do(t, http.MethodGet, "/api/v1/drafts?status=submitted", nil)
	require.Equal(t, http.StatusOK, status)
	drafts := body["drafts"].([]interface{})
	require.Len(t, drafts, 1)
	assert.Equal(t, id, drafts[0].(map[string]interface{})["id"])
}

func TestSaveAndList(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createDraft(t)
	s.setField(t, id, registry.OrganizationName, models.Text("Kibera Youth"))

	status, body := s.do(t, http.MethodPost, "/api/v1/drafts/"+id+"/save", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["dirty"])
	assert.NotNil(t, body["draft"].(map[string]interface{})["lastSavedAt"])

	status, body = s.do(t, http.MethodGet, "/api/v1/drafts?status=draft&limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["drafts"], 1)
	assert.Equal(t, float64(10), body["limit"])

	status, body = s.do(t, http.MethodGet, "/api/v1/drafts?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, body))

	status, _ = s.do(t, http.MethodGet, "/api/v1/drafts?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestResumeAfterEviction(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createDraft(t)
	s.setField(t, id, registry.OrganizationName, models.Text("Kibera Youth"))

	s.sessions.Release(id)
	assert.Equal(t, 0, s.sessions.Len())

	status, body := s.do(t, http.MethodGet, "/api/v1/drafts/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	answers := body["draft"].(map[string]interface{})["answers"].(map[string]interface{})
	assert.Equal(t, "Kibera Youth", answers["organizationName"].(map[string]interface{})["value"])
}

func TestRegistry(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodGet, "/api/v1/registry", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(11), body["totalSteps"])
	steps := body["steps"].([]interface{})
	first := steps[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["number"])
	fields := first["fields"].([]interface{})
	assert.Equal(t, "organizationName", fields[0].(map[string]interface{})["key"])
}

func TestSearchApplications(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodGet, "/api/v1/applications?q=kibera", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", errorCode(t, body))

	searcher := &fakeSearcher{}
	s = newTestServer(t, searcher)
	status, body = s.do(t, http.MethodGet, "/api/v1/applications?q=kibera&minScore=10&size=5", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["totalHits"])
	assert.Equal(t, search.Query{Text: "kibera", MinScore: 10, Size: 5}, searcher.query)

	status, _ = s.do(t, http.MethodGet, "/api/v1/applications?minScore=high", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
