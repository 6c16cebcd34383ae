package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// FleetServiceName is the fully qualified gRPC service name.
const FleetServiceName = "aetheris.v1.FleetService"

const (
	listUnitsMethod        = "/" + FleetServiceName + "/ListUnits"
	getUnitMethod          = "/" + FleetServiceName + "/GetUnit"
	sendCommandMethod      = "/" + FleetServiceName + "/SendCommand"
	broadcastCommandMethod = "/" + FleetServiceName + "/BroadcastCommand"
)

// FleetServiceServer is the server side of aetheris.v1.FleetService. Payloads
// are well-known protobuf types carrying the same JSON shapes the broker uses.
type FleetServiceServer interface {
	ListUnits(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetUnit(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SendCommand(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	BroadcastCommand(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterFleetServiceServer attaches srv to s.
func RegisterFleetServiceServer(s grpc.ServiceRegistrar, srv FleetServiceServer) {
	s.RegisterService(&FleetServiceDesc, srv)
}

// FleetServiceDesc describes the service for grpc.Server registration and
// reflection.
var FleetServiceDesc = grpc.ServiceDesc{
	ServiceName: FleetServiceName,
	HandlerType: (*FleetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListUnits", Handler: listUnitsHandler},
		{MethodName: "GetUnit", Handler: getUnitHandler},
		{MethodName: "SendCommand", Handler: sendCommandHandler},
		{MethodName: "BroadcastCommand", Handler: broadcastCommandHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aetheris/v1/fleet.proto",
}

func listUnitsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetServiceServer).ListUnits(ctx, req.(*emptypb.Empty))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: listUnitsMethod}, call)
}

func getUnitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetServiceServer).GetUnit(ctx, req.(*wrapperspb.StringValue))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: getUnitMethod}, call)
}

func sendCommandHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetServiceServer).SendCommand(ctx, req.(*structpb.Struct))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: sendCommandMethod}, call)
}

func broadcastCommandHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetServiceServer).BroadcastCommand(ctx, req.(*structpb.Struct))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: broadcastCommandMethod}, call)
}

// FleetServiceClient is the client side of aetheris.v1.FleetService.
type FleetServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFleetServiceClient(cc grpc.ClientConnInterface) *FleetServiceClient {
	return &FleetServiceClient{cc: cc}
}

func (c *FleetServiceClient) ListUnits(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listUnitsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetServiceClient) GetUnit(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getUnitMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetServiceClient) SendCommand(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, sendCommandMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetServiceClient) BroadcastCommand(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, broadcastCommandMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
