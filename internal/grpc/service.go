// Package grpc exposes the agent and daemon lifecycle over gRPC. Messages are the
// protobuf well-known Struct and Empty types, so no generated code is needed.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	AgentServiceName  = "konsilium.v1.AgentService"
	DaemonServiceName = "konsilium.v1.DaemonService"
)

// AgentServer is the server side of konsilium.v1.AgentService.
type AgentServer interface {
	Chat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	History(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// DaemonServer is the server side of konsilium.v1.DaemonService.
type DaemonServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterAgentServer(registrar grpc.ServiceRegistrar, srv AgentServer) {
	registrar.RegisterService(&agentServiceDesc, srv)
}

func RegisterDaemonServer(registrar grpc.ServiceRegistrar, srv DaemonServer) {
	registrar.RegisterService(&daemonServiceDesc, srv)
}

var agentServiceDesc = grpc.ServiceDesc{
	ServiceName: AgentServiceName,
	HandlerType: (*AgentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Chat", Handler: _AgentServer_Chat_Handler},
		{MethodName: "Reset", Handler: _AgentServer_Reset_Handler},
		{MethodName: "Stats", Handler: _AgentServer_Stats_Handler},
		{MethodName: "History", Handler: _AgentServer_History_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "konsilium/v1/agent.proto",
}

var daemonServiceDesc = grpc.ServiceDesc{
	ServiceName: DaemonServiceName,
	HandlerType: (*DaemonServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: _DaemonServer_Status_Handler},
		{MethodName: "Shutdown", Handler: _DaemonServer_Shutdown_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "konsilium/v1/daemon.proto",
}

func _AgentServer_Chat_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServer).Chat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AgentServiceName + "/Chat"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServer).Chat(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _AgentServer_Reset_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AgentServiceName + "/Reset"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServer).Reset(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _AgentServer_Stats_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AgentServiceName + "/Stats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _AgentServer_History_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServer).History(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AgentServiceName + "/History"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServer).History(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _DaemonServer_Status_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DaemonServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + DaemonServiceName + "/Status"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DaemonServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _DaemonServer_Shutdown_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DaemonServer).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + DaemonServiceName + "/Shutdown"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DaemonServer).Shutdown(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
