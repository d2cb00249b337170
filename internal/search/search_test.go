package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "grant-intake/internal/common/errors"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	response string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	status, response := f.status, f.response
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (f *fakeCluster) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestIndex(t *testing.T, cluster *fakeCluster) *Index {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return New(client, "grant-applications", logger.NewTestLogger(t))
}

func sampleDocument() models.SubmissionDocument {
	return models.SubmissionDocument{
		ApplicationID: "0d6f7c1e-1111-4c3a-9a8e-0c1f2e3d4b5a",
		Slug:          "kibera-youth-0d6f7c1e",
		Answers: map[string]interface{}{
			"organizationName": "Kibera Youth",
			"projectTitle":     "Clean Water Kiosks",
		},
		Scores:      models.Scores{OrganizationAgeAutoScore: 4, OrganizationTypeAutoScore: 5, OperationalStatusAutoScore: 5, TotalScore: 14},
		SubmittedAt: time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestIndex_ApplicationSubmitted(t *testing.T) {
	cluster := &fakeCluster{status: http.StatusCreated, response: `{"result":"created"}`}
	idx := newTestIndex(t, cluster)

	require.NoError(t, idx.ApplicationSubmitted(context.Background(), sampleDocument()))

	req := cluster.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/grant-applications/_doc/0d6f7c1e-1111-4c3a-9a8e-0c1f2e3d4b5a", req.Path)
	assert.Equal(t, "kibera-youth-0d6f7c1e", req.Body["slug"])
	scores := req.Body["derivedScores"].(map[string]interface{})
	assert.Equal(t, float64(14), scores["totalScore"])
}

func TestIndex_ApplicationSubmittedError(t *testing.T) {
	cluster := &fakeCluster{status: http.StatusBadRequest, response: `{"error":{"type":"mapper_parsing_exception"}}`}
	idx := newTestIndex(t, cluster)

	err := idx.ApplicationSubmitted(context.Background(), sampleDocument())
	require.Error(t, err)
	se, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeExternalServiceError, se.Code)
}

func TestIndex_Search(t *testing.T) {
	cluster := &fakeCluster{status: http.StatusOK, response: `{
		"took": 3,
		"hits": {
			"total": {"value": 1, "relation": "eq"},
			"max_score": 2.5,
			"hits": [{
				"_id": "0d6f7c1e-1111-4c3a-9a8e-0c1f2e3d4b5a",
				"_score": 2.5,
				"_source": {
					"applicationId": "0d6f7c1e-1111-4c3a-9a8e-0c1f2e3d4b5a",
					"slug": "kibera-youth-0d6f7c1e",
					"answers": {"organizationName": "Kibera Youth"},
					"derivedScores": {"totalScore": 14},
					"submittedAt": "2024-12-01T10:00:00Z"
				}
			}]
		}
	}`}
	idx := newTestIndex(t, cluster)

	res, err := idx.Search(context.Background(), Query{Text: "kibera", MinScore: 10, Size: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalHits)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 2.5, res.Hits[0].Score)
	assert.Equal(t, "kibera-youth-0d6f7c1e", res.Hits[0].Document.Slug)
	assert.Equal(t, 14, res.Hits[0].Document.Scores.TotalScore)
	assert.True(t, res.Hits[0].Document.SubmittedAt.Equal(time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)))

	req := cluster.last()
	assert.Equal(t, "/grant-applications/_search", req.Path)
	boolQuery := req.Body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, boolQuery["must"], 1)
	assert.Len(t, boolQuery["filter"], 1)
}

func TestIndex_SearchFailure(t *testing.T) {
	cluster := &fakeCluster{status: http.StatusNotFound, response: `{"error":{"type":"index_not_found_exception"}}`}
	idx := newTestIndex(t, cluster)

	_, err := idx.Search(context.Background(), Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, &apperrors.StandardError{Code: apperrors.ErrCodeSearchQueryFailed})
}

func TestIndex_EnsureIndexCreatesMissing(t *testing.T) {
	cluster := &fakeCluster{status: http.StatusNotFound, response: `{}`}
	idx := newTestIndex(t, cluster)

	// The fake answers 404 to every call, so the create request fails too.
	err := idx.EnsureIndex(context.Background())
	require.Error(t, err)

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	require.Len(t, cluster.requests, 2)
	assert.Equal(t, http.MethodHead, cluster.requests[0].Method)
	assert.Equal(t, http.MethodPut, cluster.requests[1].Method)
	assert.Contains(t, cluster.requests[1].Body, "mappings")
}

func TestBuildQuery_MatchAllWithoutText(t *testing.T) {
	q := buildQuery(Query{Category: "water"})
	boolQuery := q["query"].(map[string]interface{})["bool"].(map[string]interface{})
	must := boolQuery["must"].([]interface{})
	require.Len(t, must, 1)
	assert.Contains(t, must[0], "match_all")
	assert.Len(t, boolQuery["filter"], 1)
}
