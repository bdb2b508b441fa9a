package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"playchrono/internal/calendar"
	"playchrono/internal/domain"
	"playchrono/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	availabilityServiceName = "playchrono.availability.v1.AvailabilityService"
	methodGetAvailability   = "/" + availabilityServiceName + "/GetAvailability"
	methodListGrounds       = "/" + availabilityServiceName + "/ListGrounds"
)

// AvailabilityResolver is the read side the kiosk API needs.
type AvailabilityResolver interface {
	Grounds() []models.Ground
	GetAvailability(ctx context.Context, sport string, date calendar.Date) ([]models.GroundAvailability, error)
}

// AvailabilityServer is the kiosk RPC surface. Messages are
// google.protobuf.Struct so clients need no generated stubs.
type AvailabilityServer interface {
	GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListGrounds(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailability", Handler: getAvailabilityHandler},
		{MethodName: "ListGrounds", Handler: listGroundsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "availability/v1/availability.proto",
}

// RegisterAvailabilityServer attaches srv to a gRPC server.
func RegisterAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

func getAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).GetAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetAvailability}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).GetAvailability(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listGroundsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).ListGrounds(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListGrounds}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).ListGrounds(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AvailabilityService serves availability listings over gRPC.
type AvailabilityService struct {
	resolver AvailabilityResolver
}

func NewAvailabilityService(resolver AvailabilityResolver) *AvailabilityService {
	return &AvailabilityService{resolver: resolver}
}

func (s *AvailabilityService) GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	sport := strings.TrimSpace(fields["sport"].GetStringValue())
	if sport == "" {
		return nil, status.Error(codes.InvalidArgument, "sport is required")
	}

	dateStr := strings.TrimSpace(fields["date"].GetStringValue())
	if dateStr == "" {
		return nil, status.Error(codes.InvalidArgument, "date is required")
	}
	date, err := calendar.ParseDate(dateStr)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid date format; expected YYYY-MM-DD")
	}

	grounds, err := s.resolver.GetAvailability(ctx, sport, date)
	if err != nil {
		if domain.IsValidation(err) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, "failed to resolve availability")
	}
	if grounds == nil {
		grounds = []models.GroundAvailability{}
	}

	return toStruct(map[string]any{
		"sport":   sport,
		"date":    date.String(),
		"grounds": grounds,
	})
}

func (s *AvailabilityService) ListGrounds(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	grounds := s.resolver.Grounds()
	if grounds == nil {
		grounds = []models.Ground{}
	}
	return toStruct(map[string]any{"grounds": grounds})
}

// toStruct converts v through its JSON form so the wire field names match
// the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(generic)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

// AvailabilityClient calls the kiosk service on an existing connection.
type AvailabilityClient struct {
	cc grpc.ClientConnInterface
}

func NewAvailabilityClient(cc grpc.ClientConnInterface) *AvailabilityClient {
	return &AvailabilityClient{cc: cc}
}

func (c *AvailabilityClient) GetAvailability(ctx context.Context, sport string, date calendar.Date, opts ...grpc.CallOption) ([]models.GroundAvailability, error) {
	req, err := structpb.NewStruct(map[string]any{"sport": sport, "date": date.String()})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetAvailability, req, out, opts...); err != nil {
		return nil, err
	}
	var resp struct {
		Grounds []models.GroundAvailability `json:"grounds"`
	}
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return resp.Grounds, nil
}

func (c *AvailabilityClient) ListGrounds(ctx context.Context, opts ...grpc.CallOption) ([]models.Ground, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListGrounds, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	var resp struct {
		Grounds []models.Ground `json:"grounds"`
	}
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return resp.Grounds, nil
}

func fromStruct(s *structpb.Struct, dst any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
