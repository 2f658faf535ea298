package opensearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

func TestBuildRecommendationQuery_MatchAll(t *testing.T) {
	q := buildRecommendationQuery(RecommendationQuery{})

	assert.Equal(t, defaultSearchSize, q["size"])
	assert.Contains(t, q["query"], "match_all")
}

func TestBuildRecommendationQuery_Filters(t *testing.T) {
	q := buildRecommendationQuery(RecommendationQuery{
		Text:       "renewal",
		Priority:   "high",
		CustomerID: "CUST_001",
		MinRevenue: 100,
		Size:       10000,
	})

	assert.Equal(t, maxSearchSize, q["size"])
	raw, err := json.Marshal(q["query"])
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, `"term":{"priority":"high"}`)
	assert.Contains(t, s, `"term":{"customer_id":"CUST_001"}`)
	assert.Contains(t, s, `"gte":100`)
	assert.Contains(t, s, `"multi_match"`)
	assert.NotContains(t, s, "batch_id")
}

func TestSearchRecommendations(t *testing.T) {
	bodies := make(chan map[string]interface{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/recs/_search"))
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		_, _ = w.Write([]byte(`{
			"took": 3,
			"hits": {"total": {"value": 2}, "hits": [
				{"_source": {"recommendation_id": "rec-1", "priority": "high"}},
				{"_source": {"recommendation_id": "rec-2", "priority": "low"}}]},
			"aggregations": {
				"by_priority": {"buckets": [{"key": "high", "doc_count": 1}, {"key": "low", "doc_count": 1}]},
				"by_action_type": {"buckets": [{"key": "nurture", "doc_count": 2}]}}}`))
	}))
	defer server.Close()

	s := NewSearcher(newTestClient(t, server.URL), "recs", nil)
	res, err := s.SearchRecommendations(context.Background(), RecommendationQuery{Tag: "enterprise"})

	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "rec-2", res.Hits[1].RecommendationID)
	assert.Equal(t, int64(1), res.ByPriority["high"])
	assert.Equal(t, int64(2), res.ByActionType["nurture"])
	assert.Equal(t, 3, res.TookMs)
	assert.Contains(t, <-bodies, "aggs")
}

func TestSearchRecommendations_Errors(t *testing.T) {
	server := newTestServer(http.StatusNotFound)
	defer server.Close()
	s := NewSearcher(newTestClient(t, server.URL), "", nil)

	_, err := s.SearchRecommendations(context.Background(), RecommendationQuery{})
	assert.Equal(t, ErrIndexNotFound, err)

	_, err = s.SearchRecommendations(context.Background(), RecommendationQuery{From: -1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))

	bad := newTestServer(http.StatusBadRequest)
	defer bad.Close()
	_, err = NewSearcher(newTestClient(t, bad.URL), "", nil).SearchRecommendations(context.Background(), RecommendationQuery{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSearchIndex))
}
