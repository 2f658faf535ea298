package recommendation

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	domainrec "github.com/turtacn/Revenue-Intelligence/internal/domain/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/intelligence/common"
	"github.com/turtacn/Revenue-Intelligence/internal/testutil"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// MockResultCache is a mock implementation of ResultCache.
type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockResultCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// MockPublisher is a mock implementation of Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishRecommendations(ctx context.Context, batchID string, recs []domainrec.ActionableRecommendation) error {
	args := m.Called(ctx, batchID, recs)
	return args.Error(0)
}

// MockIndexer is a mock implementation of Indexer.
type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexRecommendations(ctx context.Context, batchID string, recs []domainrec.ActionableRecommendation) (int, error) {
	args := m.Called(ctx, batchID, recs)
	return args.Int(0), args.Error(1)
}

// MockExportStore is a mock implementation of ExportStore.
type MockExportStore struct {
	mock.Mock
}

func (m *MockExportStore) SaveExport(ctx context.Context, name string, data []byte) (string, error) {
	args := m.Called(ctx, name, data)
	return args.String(0), args.Error(1)
}

func newTestService(t *testing.T, opts ...ServiceOption) Service {
	t.Helper()
	opts = append([]ServiceOption{
		WithBatchIDs(func() string { return "batch-1" }),
		WithServiceClock(fixedClock),
	}, opts...)
	return NewService(newTestEngine(t), testutil.NewMockLogger(), opts...)
}

func twoCustomers() Batch {
	return Batch{
		Customers: []customer.Input{enterpriseCustomer(), budgetCustomer("CUST_002")},
		Market:    activeMarket,
	}
}

func TestRecommend_Validation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Recommend(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, err = svc.Recommend(context.Background(), &RecommendRequest{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmptyBatch))

	_, err = svc.Recommend(context.Background(), &RecommendRequest{Batch: Batch{
		Customers: []customer.Input{enterpriseCustomer(), {}},
	}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeCustomerRecordInvalid))
	assert.Contains(t, err.Error(), "customer 1")
}

func TestRecommend_CacheMissGeneratesAndDelivers(t *testing.T) {
	cache := new(MockResultCache)
	pub := new(MockPublisher)
	idx := new(MockIndexer)
	metrics := common.NewInMemoryPipelineMetrics()

	key, err := CacheKey(twoCustomers(), 0)
	require.NoError(t, err)
	cache.On("Get", mock.Anything, key, mock.Anything).Return(errors.New(errors.ErrCodeNotFound, "cache miss"))
	cache.On("Set", mock.Anything, key, mock.AnythingOfType("*recommendation.BatchResult"), time.Minute).Return(nil)
	pub.On("PublishRecommendations", mock.Anything, "batch-1", mock.Anything).Return(nil)
	idx.On("IndexRecommendations", mock.Anything, "batch-1", mock.Anything).Return(2, nil)

	svc := newTestService(t,
		WithCache(cache, time.Minute),
		WithPublisher(pub),
		WithIndexer(idx),
		WithServiceMetrics(metrics))

	resp, err := svc.Recommend(context.Background(), &RecommendRequest{Batch: twoCustomers()})
	require.NoError(t, err)
	assert.Equal(t, "batch-1", resp.BatchID)
	assert.False(t, resp.Cached)
	assert.Empty(t, resp.SinkErrors)
	assert.Len(t, resp.Recommendations, 2)
	assert.Equal(t, 2, resp.Processed)

	cache.AssertExpectations(t)
	pub.AssertExpectations(t)
	idx.AssertExpectations(t)
	assert.Equal(t, 0.0, metrics.GetCurrentStats().CacheHitRate)
}

func TestRecommend_CacheHitSkipsSinks(t *testing.T) {
	cache := new(MockResultCache)
	pub := new(MockPublisher)
	metrics := common.NewInMemoryPipelineMetrics()

	cache.On("Get", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(2).(*BatchResult)
			*dest = BatchResult{Processed: 7}
		}).
		Return(nil)

	svc := newTestService(t, WithCache(cache, time.Minute), WithPublisher(pub), WithServiceMetrics(metrics))

	resp, err := svc.Recommend(context.Background(), &RecommendRequest{BatchID: "given", Batch: twoCustomers()})
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, "given", resp.BatchID)
	assert.Equal(t, 7, resp.Processed)

	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishRecommendations", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, metrics.GetCurrentStats().CacheHitRate)
}

func TestRecommend_SkipCache(t *testing.T) {
	cache := new(MockResultCache)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, time.Minute).Return(nil)
	svc := newTestService(t, WithCache(cache, time.Minute))

	resp, err := svc.Recommend(context.Background(), &RecommendRequest{Batch: twoCustomers(), SkipCache: true})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	cache.AssertNumberOfCalls(t, "Set", 1)
}

func TestRecommend_CacheFailureIsNotFatal(t *testing.T) {
	cache := new(MockResultCache)
	cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeCacheError, "connection refused"))
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeCacheError, "connection refused"))

	logger := testutil.NewMockLogger()
	svc := NewService(newTestEngine(t), logger, WithCache(cache, time.Minute))

	resp, err := svc.Recommend(context.Background(), &RecommendRequest{Batch: twoCustomers()})
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, 2)
	assert.True(t, logger.HasMessage("warn", "cache read failed"))
	assert.True(t, logger.HasMessage("warn", "cache write failed"))
}

func TestRecommend_SinkFailuresAreReported(t *testing.T) {
	pub := new(MockPublisher)
	idx := new(MockIndexer)
	pub.On("PublishRecommendations", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("broker down"))
	idx.On("IndexRecommendations", mock.Anything, mock.Anything, mock.Anything).Return(0, fmt.Errorf("cluster red"))

	svc := newTestService(t, WithPublisher(pub), WithIndexer(idx))

	resp, err := svc.Recommend(context.Background(), &RecommendRequest{Batch: twoCustomers(), Export: true})
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, 2)
	require.Len(t, resp.SinkErrors, 3)
	assert.Contains(t, resp.SinkErrors[0], string(errors.ErrCodeMessageQueue))
	assert.Contains(t, resp.SinkErrors[1], string(errors.ErrCodeSearchIndex))
	assert.Contains(t, resp.SinkErrors[2], string(errors.ErrCodeExportFailed))
	assert.Empty(t, resp.ExportLocation)
}

func TestRecommend_WithExport(t *testing.T) {
	store := new(MockExportStore)
	store.On("SaveExport", mock.Anything, "2024/05/01/batch-1.json", mock.Anything).
		Return("s3://exports/2024/05/01/batch-1.json", nil)

	svc := newTestService(t, WithExportStore(store))

	resp, err := svc.Recommend(context.Background(), &RecommendRequest{Batch: twoCustomers(), Export: true})
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/2024/05/01/batch-1.json", resp.ExportLocation)
	assert.Empty(t, resp.SinkErrors)
	store.AssertExpectations(t)
}

func TestExport_WritesSummaryDocument(t *testing.T) {
	store := new(MockExportStore)
	var written []byte
	store.On("SaveExport", mock.Anything, "2024/05/01/weekly.json", mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(2).([]byte) }).
		Return("exports/2024/05/01/weekly.json", nil)

	svc := newTestService(t, WithExportStore(store))
	gen, err := svc.Recommend(context.Background(), &RecommendRequest{Batch: twoCustomers()})
	require.NoError(t, err)

	res, err := svc.Export(context.Background(), &ExportRequest{Name: "weekly", Recommendations: gen.Recommendations})
	require.NoError(t, err)
	assert.Equal(t, "exports/2024/05/01/weekly.json", res.Location)
	assert.Equal(t, 2, res.Summary.Total)
	assert.Equal(t, len(written), res.Bytes)

	var doc domainrec.Export
	require.NoError(t, json.Unmarshal(written, &doc))
	assert.Equal(t, 2, doc.Summary.Total)
	assert.Len(t, doc.Recommendations, 2)
	assert.True(t, doc.Summary.GeneratedAt.Equal(engineNow))
}

func TestExport_Failures(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Export(context.Background(), &ExportRequest{Name: "x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeExportFailed))

	store := new(MockExportStore)
	store.On("SaveExport", mock.Anything, mock.Anything, mock.Anything).Return("", fmt.Errorf("bucket missing"))
	svc = newTestService(t, WithExportStore(store))

	_, err = svc.Export(context.Background(), &ExportRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExportFailed))
	assert.Contains(t, err.Error(), "bucket missing")
	store.AssertCalled(t, "SaveExport", mock.Anything, "2024/05/01/batch-1.json", mock.Anything)
}

func TestAnalyzeAndMatch_Validation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AnalyzeCustomer(context.Background(), &AnalyzeRequest{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeCustomerRecordInvalid))
	_, err = svc.MatchOffers(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	a, err := svc.AnalyzeCustomer(context.Background(), &AnalyzeRequest{Customer: enterpriseCustomer(), Market: activeMarket})
	require.NoError(t, err)
	assert.Equal(t, "CUST_001", a.CustomerID)

	offers, err := svc.MatchOffers(context.Background(), &AnalyzeRequest{Customer: enterpriseCustomer()})
	require.NoError(t, err)
	assert.NotEmpty(t, offers)
}

func TestService_PrioritizeLeads(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.PrioritizeLeads(context.Background(), Batch{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmptyBatch))

	leads, err := svc.PrioritizeLeads(context.Background(), twoCustomers())
	require.NoError(t, err)
	require.NotEmpty(t, leads)
	assert.Equal(t, "CUST_001", leads[0].CustomerID)
}

func TestService_ShutdownRejectsRecommend(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Shutdown(context.Background()))

	_, err := svc.Recommend(context.Background(), &RecommendRequest{Batch: twoCustomers()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
	assert.Equal(t, errors.ErrCodeServiceUnavailable, errors.GetCode(err))
}

func TestCacheKey(t *testing.T) {
	a, err := CacheKey(twoCustomers(), 5)
	require.NoError(t, err)
	b, err := CacheKey(twoCustomers(), 5)
	require.NoError(t, err)
	c, err := CacheKey(twoCustomers(), 6)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^recommendations:[0-9a-f]{64}$`, a)
}
