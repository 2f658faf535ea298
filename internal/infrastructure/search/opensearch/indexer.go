package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	domainrec "github.com/turtacn/Revenue-Intelligence/internal/domain/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

var (
	ErrIndexNotFound       = errors.New(errors.ErrCodeNotFound, "index not found")
	ErrIndexCreationFailed = errors.New(errors.ErrCodeSearchIndex, "index creation failed")
	ErrBulkFailed          = errors.New(errors.ErrCodeSearchIndex, "bulk index failed")
)

const DefaultIndexName = "revintel-recommendations"

// IndexerConfig holds configuration for the Indexer.
type IndexerConfig struct {
	IndexName     string
	BulkBatchSize int
	RefreshPolicy string
}

// RecommendationDocument is the flattened form stored in the index.
type RecommendationDocument struct {
	RecommendationID      string    `json:"recommendation_id"`
	BatchID               string    `json:"batch_id"`
	LeadID                string    `json:"lead_id"`
	CustomerID            string    `json:"customer_id"`
	CustomerName          string    `json:"customer_name"`
	Priority              string    `json:"priority"`
	ActionType            string    `json:"action_type"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	OfferIDs              []string  `json:"offer_ids"`
	ExpectedRevenue       float64   `json:"expected_revenue"`
	ConversionProbability float64   `json:"conversion_probability"`
	UrgencyScore          float64   `json:"urgency_score"`
	BusinessImpactScore   float64   `json:"business_impact_score"`
	PrimaryReason         string    `json:"primary_reason"`
	Tags                  []string  `json:"tags"`
	CreatedAt             time.Time `json:"created_at"`
	ExpiresAt             time.Time `json:"expires_at"`
}

// NewRecommendationDocument flattens rec for indexing.
func NewRecommendationDocument(batchID string, rec domainrec.ActionableRecommendation) RecommendationDocument {
	ids := make([]string, 0, len(rec.RecommendedOffers))
	for _, o := range rec.RecommendedOffers {
		ids = append(ids, o.Product.ID)
	}
	revenue, _ := rec.ExpectedRevenue.Float64()
	return RecommendationDocument{
		RecommendationID:      rec.RecommendationID,
		BatchID:               batchID,
		LeadID:                rec.LeadID,
		CustomerID:            rec.CustomerID,
		CustomerName:          rec.CustomerName,
		Priority:              string(rec.Priority),
		ActionType:            string(rec.ActionType),
		Title:                 rec.Title,
		Description:           rec.Description,
		OfferIDs:              ids,
		ExpectedRevenue:       revenue,
		ConversionProbability: rec.ConversionProbability,
		UrgencyScore:          rec.UrgencyScore,
		BusinessImpactScore:   rec.BusinessImpactScore,
		PrimaryReason:         rec.Explanation.PrimaryReason,
		Tags:                  rec.Tags,
		CreatedAt:             rec.CreatedAt,
		ExpiresAt:             rec.ExpiresAt,
	}
}

// BulkItemError reports one rejected document.
type BulkItemError struct {
	DocID     string
	ErrorType string
	Reason    string
}

// BulkResult summarizes a bulk request.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// Indexer writes recommendations into the dashboard index.
type Indexer struct {
	client *Client
	config IndexerConfig
	logger logging.Logger
}

func NewIndexer(client *Client, cfg IndexerConfig, logger logging.Logger) *Indexer {
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.BulkBatchSize == 0 {
		cfg.BulkBatchSize = 500
	}
	if cfg.RefreshPolicy == "" {
		cfg.RefreshPolicy = "false"
	}
	return &Indexer{client: client, config: cfg, logger: logging.OrNop(logger).Named("recommendation-indexer")}
}

func (i *Indexer) IndexName() string { return i.config.IndexName }

// EnsureIndex creates the index with RecommendationIndexMapping when it is
// missing.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.IndexExists(ctx)
	if err != nil || exists {
		return err
	}

	body, err := json.Marshal(RecommendationIndexMapping())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	req := opensearchapi.IndicesCreateRequest{
		Index: i.config.IndexName,
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndex, "failed to create index request")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return handleErrorResponse(resp, ErrIndexCreationFailed)
	}
	i.logger.Info("Index created", logging.String("index", i.config.IndexName))
	return nil
}

func (i *Indexer) IndexExists(ctx context.Context) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{i.config.IndexName}}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSearchIndex, "failed to check index existence")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, handleErrorResponse(resp, errors.New(errors.ErrCodeSearchIndex, "check index existence failed"))
}

// IndexRecommendations bulk-indexes recs keyed by recommendation id and
// returns how many were accepted.  Any rejected document makes the call
// fail with the accepted count still reported.
func (i *Indexer) IndexRecommendations(ctx context.Context, batchID string, recs []domainrec.ActionableRecommendation) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	docs := make([]RecommendationDocument, len(recs))
	for n, rec := range recs {
		docs[n] = NewRecommendationDocument(batchID, rec)
	}

	res, err := i.BulkIndex(ctx, docs)
	if err != nil {
		return 0, err
	}
	if res.Failed > 0 {
		first := res.Errors[0]
		return res.Succeeded, ErrBulkFailed.WithDetailf("%d of %d documents rejected; first %s: %s %s",
			res.Failed, len(docs), first.DocID, first.ErrorType, first.Reason)
	}
	return res.Succeeded, nil
}

type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

type bulkItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// BulkIndex sends docs in batches of BulkBatchSize.
func (i *Indexer) BulkIndex(ctx context.Context, docs []RecommendationDocument) (*BulkResult, error) {
	result := &BulkResult{}
	for start := 0; start < len(docs); start += i.config.BulkBatchSize {
		end := start + i.config.BulkBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := i.bulkBatch(ctx, docs[start:end], result); err != nil {
			return result, err
		}
	}

	i.logger.Info("Bulk index completed",
		logging.Int("total", len(docs)),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed))
	return result, nil
}

func (i *Indexer) bulkBatch(ctx context.Context, batch []RecommendationDocument, result *BulkResult) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range batch {
		var action bulkAction
		action.Index.Index = i.config.IndexName
		action.Index.ID = doc.RecommendationID
		if err := enc.Encode(action); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "encode bulk action")
		}
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "encode document")
		}
	}

	req := opensearchapi.BulkRequest{
		Body:    &buf,
		Refresh: i.config.RefreshPolicy,
	}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndex, "bulk request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		err := handleErrorResponse(resp, ErrBulkFailed)
		result.Failed += len(batch)
		result.Errors = append(result.Errors, BulkItemError{DocID: "batch_error", ErrorType: "http_error", Reason: err.Error()})
		return nil
	}

	var bulkResp struct {
		Errors bool                  `json:"errors"`
		Items  []map[string]bulkItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode bulk response")
	}
	if !bulkResp.Errors {
		result.Succeeded += len(bulkResp.Items)
		return nil
	}
	for _, item := range bulkResp.Items {
		for _, info := range item {
			if info.Status >= 200 && info.Status < 300 {
				result.Succeeded++
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, BulkItemError{
				DocID:     info.ID,
				ErrorType: info.Error.Type,
				Reason:    info.Error.Reason,
			})
		}
	}
	return nil
}

func handleErrorResponse(resp *opensearchapi.Response, defaultErr *errors.AppError) error {
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Reason != "" {
		return defaultErr.WithDetailf("status %d: %s - %s", resp.StatusCode, errResp.Error.Type, errResp.Error.Reason)
	}
	return defaultErr.WithDetailf("status %d", resp.StatusCode)
}

// RecommendationIndexMapping is the index definition for
// RecommendationDocument.
func RecommendationIndexMapping() map[string]interface{} {
	keyword := map[string]interface{}{"type": "keyword"}
	float := map[string]interface{}{"type": "float"}
	date := map[string]interface{}{"type": "date"}
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"recommendation_id":      keyword,
				"batch_id":               keyword,
				"lead_id":                keyword,
				"customer_id":            keyword,
				"customer_name":          map[string]interface{}{"type": "text", "fields": map[string]interface{}{"raw": keyword}},
				"priority":               keyword,
				"action_type":            keyword,
				"title":                  map[string]interface{}{"type": "text"},
				"description":            map[string]interface{}{"type": "text"},
				"offer_ids":              keyword,
				"expected_revenue":       map[string]interface{}{"type": "scaled_float", "scaling_factor": 100},
				"conversion_probability": float,
				"urgency_score":          float,
				"business_impact_score":  float,
				"primary_reason":         map[string]interface{}{"type": "text"},
				"tags":                   keyword,
				"created_at":             date,
				"expires_at":             date,
			},
		},
	}
}
