// Package services implements revintel.v1.RecommendationService.  Payloads
// are google.protobuf.Struct messages carrying the same JSON documents the
// HTTP API accepts and returns.
package services

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	transport "github.com/turtacn/Revenue-Intelligence/internal/interfaces/grpc"
)

const serviceName = "revintel.v1.RecommendationService"

// Full method names.
const (
	RecommendMethod       = "/" + serviceName + "/Recommend"
	MatchOffersMethod     = "/" + serviceName + "/MatchOffers"
	AnalyzeCustomerMethod = "/" + serviceName + "/AnalyzeCustomer"
	PrioritizeLeadsMethod = "/" + serviceName + "/PrioritizeLeads"
)

// RecommendationServer is the server API of revintel.v1.RecommendationService.
type RecommendationServer interface {
	Recommend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	MatchOffers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AnalyzeCustomer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PrioritizeLeads(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RecommendationServiceDesc describes the service for grpc.Server.RegisterService.
var RecommendationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RecommendationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recommend", Handler: unaryHandler(RecommendMethod, RecommendationServer.Recommend)},
		{MethodName: "MatchOffers", Handler: unaryHandler(MatchOffersMethod, RecommendationServer.MatchOffers)},
		{MethodName: "AnalyzeCustomer", Handler: unaryHandler(AnalyzeCustomerMethod, RecommendationServer.AnalyzeCustomer)},
		{MethodName: "PrioritizeLeads", Handler: unaryHandler(PrioritizeLeadsMethod, RecommendationServer.PrioritizeLeads)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "revintel/v1/recommendation.proto",
}

type methodFunc func(RecommendationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call methodFunc) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RecommendationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RecommendationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Server
// ─────────────────────────────────────────────────────────────────────────────

// RecommendationService adapts recommendation.Service to gRPC.
type RecommendationService struct {
	svc    recommendation.Service
	logger logging.Logger
}

// NewRecommendationService creates a new RecommendationService.
func NewRecommendationService(svc recommendation.Service, logger logging.Logger) *RecommendationService {
	return &RecommendationService{svc: svc, logger: logging.OrNop(logger)}
}

var _ RecommendationServer = (*RecommendationService)(nil)

// Register adds the service to s.
func (s *RecommendationService) Register(srv *transport.Server) {
	srv.RegisterService(&RecommendationServiceDesc, s)
}

// Recommend takes a RecommendRequest document and returns a RecommendResponse.
func (s *RecommendationService) Recommend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in recommendation.RecommendRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	resp, err := s.svc.Recommend(ctx, &in)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	if len(resp.SinkErrors) > 0 {
		s.logger.Warn("recommendations delivered with sink errors",
			logging.String("batch_id", resp.BatchID),
			logging.Any("sink_errors", resp.SinkErrors))
	}
	return toStruct(resp)
}

// MatchOffers takes an AnalyzeRequest document and returns {customer_id, offers, total}.
func (s *RecommendationService) MatchOffers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in recommendation.AnalyzeRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	matches, err := s.svc.MatchOffers(ctx, &in)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	return toStruct(map[string]interface{}{
		"customer_id": in.Customer.Record.CustomerID,
		"offers":      matches,
		"total":       len(matches),
	})
}

// AnalyzeCustomer takes an AnalyzeRequest document and returns the Analysis.
func (s *RecommendationService) AnalyzeCustomer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in recommendation.AnalyzeRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	analysis, err := s.svc.AnalyzeCustomer(ctx, &in)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	return toStruct(analysis)
}

// PrioritizeLeads takes a Batch document and returns {leads, total}.
func (s *RecommendationService) PrioritizeLeads(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in recommendation.Batch
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	leads, err := s.svc.PrioritizeLeads(ctx, in)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	return toStruct(map[string]interface{}{
		"leads": leads,
		"total": len(leads),
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Client
// ─────────────────────────────────────────────────────────────────────────────

// RecommendationClient calls revintel.v1.RecommendationService.
type RecommendationClient struct {
	cc grpc.ClientConnInterface
}

// NewRecommendationClient creates a client over cc.
func NewRecommendationClient(cc grpc.ClientConnInterface) *RecommendationClient {
	return &RecommendationClient{cc: cc}
}

// Recommend sends req and decodes the reply into a RecommendResponse.
func (c *RecommendationClient) Recommend(ctx context.Context, req *recommendation.RecommendRequest, opts ...grpc.CallOption) (*recommendation.RecommendResponse, error) {
	out := new(recommendation.RecommendResponse)
	if err := c.call(ctx, RecommendMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// MatchOffersResult is the reply of MatchOffers.
type MatchOffersResult struct {
	CustomerID string          `json:"customer_id"`
	Offers     json.RawMessage `json:"offers"`
	Total      int             `json:"total"`
}

// MatchOffers sends req and returns the raw reply document.
func (c *RecommendationClient) MatchOffers(ctx context.Context, req *recommendation.AnalyzeRequest, opts ...grpc.CallOption) (*MatchOffersResult, error) {
	out := new(MatchOffersResult)
	if err := c.call(ctx, MatchOffersMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RecommendationClient) call(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, resp, opts...); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

// ─────────────────────────────────────────────────────────────────────────────
// Struct codec
// ─────────────────────────────────────────────────────────────────────────────

func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}

func fromStruct(st *structpb.Struct, dst interface{}) error {
	if st == nil {
		return status.Error(codes.InvalidArgument, "request body is empty")
	}
	b, err := json.Marshal(st.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}
