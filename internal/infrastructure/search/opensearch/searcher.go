package opensearch

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

const (
	defaultSearchSize = 20
	maxSearchSize     = 500
)

// RecommendationQuery filters the dashboard index.  Empty fields do not
// filter.
type RecommendationQuery struct {
	Text       string  `json:"text,omitempty"`
	BatchID    string  `json:"batch_id,omitempty"`
	CustomerID string  `json:"customer_id,omitempty"`
	Priority   string  `json:"priority,omitempty"`
	ActionType string  `json:"action_type,omitempty"`
	Tag        string  `json:"tag,omitempty"`
	MinRevenue float64 `json:"min_revenue,omitempty"`
	From       int     `json:"from,omitempty"`
	Size       int     `json:"size,omitempty"`
}

// RecommendationSearchResult is one page of hits plus per-priority counts
// over the whole match set.
type RecommendationSearchResult struct {
	Total        int64                    `json:"total"`
	Hits         []RecommendationDocument `json:"hits"`
	ByPriority   map[string]int64         `json:"by_priority"`
	ByActionType map[string]int64         `json:"by_action_type"`
	TookMs       int                      `json:"took_ms"`
}

// Searcher queries the recommendation index.
type Searcher struct {
	client    *Client
	indexName string
	logger    logging.Logger
}

func NewSearcher(client *Client, indexName string, logger logging.Logger) *Searcher {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &Searcher{client: client, indexName: indexName, logger: logging.OrNop(logger)}
}

// SearchRecommendations returns matches ordered by business impact, then
// expected revenue.
func (s *Searcher) SearchRecommendations(ctx context.Context, q RecommendationQuery) (*RecommendationSearchResult, error) {
	if q.From < 0 {
		return nil, errors.InvalidParam("from must be >= 0")
	}
	dsl := buildRecommendationQuery(q)
	body, err := json.Marshal(dsl)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal query")
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.indexName},
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, s.client.GetClient())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchIndex, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, ErrIndexNotFound
	}
	if resp.IsError() {
		return nil, handleErrorResponse(resp, errors.New(errors.ErrCodeSearchIndex, "search failed"))
	}

	var raw struct {
		Took int `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source RecommendationDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}

	out := &RecommendationSearchResult{
		Total:        raw.Hits.Total.Value,
		Hits:         make([]RecommendationDocument, 0, len(raw.Hits.Hits)),
		ByPriority:   map[string]int64{},
		ByActionType: map[string]int64{},
		TookMs:       raw.Took,
	}
	for _, h := range raw.Hits.Hits {
		out.Hits = append(out.Hits, h.Source)
	}
	for _, b := range raw.Aggregations["by_priority"].Buckets {
		out.ByPriority[b.Key] = b.DocCount
	}
	for _, b := range raw.Aggregations["by_action_type"].Buckets {
		out.ByActionType[b.Key] = b.DocCount
	}

	s.logger.Debug("Recommendation search",
		logging.Int64("total", out.Total),
		logging.Int("took_ms", raw.Took))
	return out, nil
}

func buildRecommendationQuery(q RecommendationQuery) map[string]interface{} {
	size := q.Size
	switch {
	case size <= 0:
		size = defaultSearchSize
	case size > maxSearchSize:
		size = maxSearchSize
	}

	var filters []interface{}
	term := func(field, value string) {
		if value != "" {
			filters = append(filters, map[string]interface{}{"term": map[string]interface{}{field: value}})
		}
	}
	term("batch_id", q.BatchID)
	term("customer_id", q.CustomerID)
	term("priority", q.Priority)
	term("action_type", q.ActionType)
	term("tags", q.Tag)
	if q.MinRevenue > 0 {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"expected_revenue": map[string]interface{}{"gte": q.MinRevenue}},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if q.Text != "" {
		boolQuery["must"] = []interface{}{map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"title^2", "description", "customer_name", "primary_reason"},
			},
		}}
	}
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(boolQuery) > 0 {
		query = map[string]interface{}{"bool": boolQuery}
	}

	return map[string]interface{}{
		"from":  q.From,
		"size":  size,
		"query": query,
		"sort": []interface{}{
			map[string]interface{}{"business_impact_score": "desc"},
			map[string]interface{}{"expected_revenue": "desc"},
		},
		"track_total_hits": true,
		"aggs": map[string]interface{}{
			"by_priority":    map[string]interface{}{"terms": map[string]interface{}{"field": "priority", "size": 10}},
			"by_action_type": map[string]interface{}{"terms": map[string]interface{}{"field": "action_type", "size": 20}},
		},
	}
}
