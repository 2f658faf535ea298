package services

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/config"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	transport "github.com/turtacn/Revenue-Intelligence/internal/interfaces/grpc"
	"github.com/turtacn/Revenue-Intelligence/internal/testutil"
)

func newTestClient(t *testing.T) (*RecommendationClient, *grpc.ClientConn) {
	t.Helper()
	engine, err := recommendation.NewEngine(recommendation.DefaultSettings(), offer.MustDefaultCatalog())
	require.NoError(t, err)
	svc := recommendation.NewService(engine, nil,
		recommendation.WithBatchIDs(func() string { return "grpc-batch" }))

	lis := bufconn.Listen(1 << 20)
	srv, err := transport.NewServer(config.GRPCConfig{}, transport.WithListener(lis), transport.WithLogger(testutil.NewMockLogger()))
	require.NoError(t, err)
	NewRecommendationService(svc, nil).Register(srv)
	go func() { _ = srv.Start() }()

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		_ = srv.Stop(context.Background())
	})
	return NewRecommendationClient(conn), conn
}

func enterpriseInput() customer.Input {
	var in customer.Input
	_ = json.Unmarshal([]byte(`{"record":{
		"customer_id":"CUST_100","customer_name":"Kowloon Freight","customer_type":"enterprise",
		"monthly_spend":"1600","tenure_months":36,"data_usage_gb":55,"employee_count":180,
		"budget_confirmed":true,"decision_maker_identified":true}}`), &in)
	return in
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRecommendationService_Recommend(t *testing.T) {
	client, _ := newTestClient(t)

	resp, err := client.Recommend(testCtx(t), &recommendation.RecommendRequest{
		Batch:              recommendation.Batch{Customers: []customer.Input{enterpriseInput()}},
		MaxRecommendations: 3,
	})

	require.NoError(t, err)
	assert.Equal(t, "grpc-batch", resp.BatchID)
	require.NotNil(t, resp.BatchResult)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "CUST_100", resp.Results[0].CustomerID)
	assert.LessOrEqual(t, len(resp.Recommendations), 3)
}

func TestRecommendationService_RecommendEmptyBatch(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Recommend(testCtx(t), &recommendation.RecommendRequest{})

	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "CUST_003")
}

func TestRecommendationService_MatchOffers(t *testing.T) {
	client, _ := newTestClient(t)

	res, err := client.MatchOffers(testCtx(t), &recommendation.AnalyzeRequest{Customer: enterpriseInput()})

	require.NoError(t, err)
	assert.Equal(t, "CUST_100", res.CustomerID)
	var offers []offer.OfferMatch
	require.NoError(t, json.Unmarshal(res.Offers, &offers))
	assert.Len(t, offers, res.Total)
}

func TestRecommendationService_AnalyzeAndPrioritizeOverRawStruct(t *testing.T) {
	_, conn := newTestClient(t)
	ctx := testCtx(t)

	in, err := toStruct(recommendation.AnalyzeRequest{Customer: enterpriseInput()})
	require.NoError(t, err)
	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, AnalyzeCustomerMethod, in, out))
	assert.Equal(t, "CUST_100", out.Fields["customer_id"].GetStringValue())
	assert.NotEmpty(t, out.Fields["segment"].GetStringValue())

	in, err = toStruct(recommendation.Batch{Customers: []customer.Input{enterpriseInput()}})
	require.NoError(t, err)
	out = new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, PrioritizeLeadsMethod, in, out))
	assert.NotNil(t, out.Fields["total"])
}

func TestRecommendationService_MalformedPayload(t *testing.T) {
	_, conn := newTestClient(t)

	in, err := structpb.NewStruct(map[string]interface{}{"batch": "not an object"})
	require.NoError(t, err)
	err = conn.Invoke(testCtx(t), RecommendMethod, in, new(structpb.Struct))

	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStructCodecRoundTrip(t *testing.T) {
	st, err := toStruct(recommendation.RecommendRequest{BatchID: "b-1", MaxRecommendations: 7})
	require.NoError(t, err)

	var back recommendation.RecommendRequest
	require.NoError(t, fromStruct(st, &back))
	assert.Equal(t, "b-1", back.BatchID)
	assert.Equal(t, 7, back.MaxRecommendations)

	assert.Equal(t, codes.InvalidArgument, status.Code(fromStruct(nil, &back)))
}
