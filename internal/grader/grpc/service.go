// Package grpc exposes the grader service over gRPC.
//
// Messages are google.protobuf.Struct values mirroring the HTTP JSON bodies,
// so no generated stubs are needed.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "grader.v1.Grader"

// GraderServer is the server API for the grader.v1.Grader service.
type GraderServer interface {
	UploadText(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GradeAnswer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Retrieve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteNamespace(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv GraderServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GraderServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(GraderServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for the grader.v1.Grader service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GraderServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("UploadText", GraderServer.UploadText),
		unary("GradeAnswer", GraderServer.GradeAnswer),
		unary("Retrieve", GraderServer.Retrieve),
		unary("DeleteNamespace", GraderServer.DeleteNamespace),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grader/v1/grader.proto",
}

// FullMethod returns "/grader.v1.Grader/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}
