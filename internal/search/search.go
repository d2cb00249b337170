// Package search keeps the dashboard index of submitted applications in
// Elasticsearch and answers the dashboard's queries against it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"grant-intake/internal/common/errors"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

var indexMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"applicationId": map[string]interface{}{"type": "keyword"},
			"slug":          map[string]interface{}{"type": "keyword"},
			"submittedAt":   map[string]interface{}{"type": "date"},
			"derivedScores": map[string]interface{}{
				"properties": map[string]interface{}{
					"totalScore": map[string]interface{}{"type": "integer"},
				},
			},
			"answers": map[string]interface{}{
				"properties": map[string]interface{}{
					"organizationName": map[string]interface{}{"type": "text"},
					"projectTitle":     map[string]interface{}{"type": "text"},
					"projectSummary":   map[string]interface{}{"type": "text"},
					"projectCategory":  map[string]interface{}{"type": "keyword"},
					"projectLocation":  map[string]interface{}{"type": "keyword"},
				},
			},
		},
	},
}

// Index writes submitted applications into one Elasticsearch index. It is
// also a submission listener.
type Index struct {
	client *elasticsearch.Client
	name   string
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	return &Index{
		client: client,
		name:   index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

func (i *Index) Name() string {
	return "search-indexer"
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{i.name}}.Do(ctx, i.client)
	if err != nil {
		return errors.NewExternalServiceError("elasticsearch", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(indexMapping)
	if err != nil {
		return err
	}
	res, err = esapi.IndicesCreateRequest{Index: i.name, Body: bytes.NewReader(body)}.Do(ctx, i.client)
	if err != nil {
		return errors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewExternalServiceError("elasticsearch", fmt.Errorf("create index %s: %s", i.name, res.String()))
	}
	i.logger.Info("search index created", nil)
	return nil
}

// ApplicationSubmitted indexes the document under its application id, so a
// repeated delivery overwrites rather than duplicates.
func (i *Index) ApplicationSubmitted(ctx context.Context, doc models.SubmissionDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal submission document: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      i.name,
		DocumentID: doc.ApplicationID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return errors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewExternalServiceError("elasticsearch", fmt.Errorf("index %s: %s", doc.ApplicationID, res.String()))
	}

	i.logger.Info("application indexed", map[string]interface{}{
		"applicationId": doc.ApplicationID,
		"slug":          doc.Slug,
	})
	return nil
}

// Query filters the dashboard listing.
type Query struct {
	Text     string
	Category string
	MinScore int
	From     int
	Size     int
}

type Hit struct {
	Score    float64                   `json:"score"`
	Document models.SubmissionDocument `json:"document"`
}

type Result struct {
	Hits      []Hit `json:"hits"`
	TotalHits int64 `json:"totalHits"`
	Took      int64 `json:"took"`
}

// Search runs q against the index. An empty query lists the most recent
// submissions.
func (i *Index) Search(ctx context.Context, q Query) (*Result, error) {
	from, size := q.From, q.Size
	if from < 0 {
		from = 0
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}

	start := time.Now()
	res, err := esapi.SearchRequest{
		Index: []string{i.name},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}.Do(ctx, i.client)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("search failed: %s", res.String()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("decode search response: %w", err))
	}

	result := &Result{
		Hits:      make([]Hit, 0, len(r.Hits.Hits)),
		TotalHits: r.Hits.Total.Value,
		Took:      time.Since(start).Milliseconds(),
	}
	for _, h := range r.Hits.Hits {
		result.Hits = append(result.Hits, Hit{Score: h.Score, Document: h.Source})
	}
	return result, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64                   `json:"_score"`
			Source models.SubmissionDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildQuery(q Query) map[string]interface{} {
	mustClauses := []interface{}{}
	filterClauses := []interface{}{}

	if text := strings.TrimSpace(q.Text); text != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"answers.organizationName^3", "answers.projectTitle^2", "answers.projectSummary", "slug"},
				"type":   "best_fields",
			},
		})
	}
	if q.Category != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"answers.projectCategory": q.Category},
		})
	}
	if q.MinScore > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{
				"derivedScores.totalScore": map[string]interface{}{"gte": q.MinScore},
			},
		})
	}

	if len(mustClauses) == 0 {
		mustClauses = append(mustClauses, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   mustClauses,
				"filter": filterClauses,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"submittedAt": map[string]interface{}{"order": "desc"}},
		},
	}
}
