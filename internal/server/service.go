// Service descriptor and client for the EntityStore gRPC API. Messages are
// google.protobuf.Struct documents, so no generated code is needed.
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "entitystore.v1.EntityStore"

// Method names
const (
	MethodAddAttribute     = "AddAttribute"
	MethodRemoveAttribute  = "RemoveAttribute"
	MethodRemoveEntity     = "RemoveEntity"
	MethodFindByAttribute  = "FindByAttribute"
	MethodFindByAttributes = "FindByAttributes"
	MethodAttributes       = "Attributes"
	MethodStatistics       = "Statistics"
	MethodSave             = "Save"
	MethodLoad             = "Load"
	MethodQuery            = "Query"
	MethodHealth           = "Health"
)

// FullMethod returns the wire path of a method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// EntityStoreServer is the server API for the EntityStore service
type EntityStoreServer interface {
	AddAttribute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveAttribute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveEntity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FindByAttribute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FindByAttributes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Attributes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Statistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Save(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Load(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(EntityStoreServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(EntityStoreServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(EntityStoreServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the EntityStore service
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EntityStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodAddAttribute, EntityStoreServer.AddAttribute),
		unaryMethod(MethodRemoveAttribute, EntityStoreServer.RemoveAttribute),
		unaryMethod(MethodRemoveEntity, EntityStoreServer.RemoveEntity),
		unaryMethod(MethodFindByAttribute, EntityStoreServer.FindByAttribute),
		unaryMethod(MethodFindByAttributes, EntityStoreServer.FindByAttributes),
		unaryMethod(MethodAttributes, EntityStoreServer.Attributes),
		unaryMethod(MethodStatistics, EntityStoreServer.Statistics),
		unaryMethod(MethodSave, EntityStoreServer.Save),
		unaryMethod(MethodLoad, EntityStoreServer.Load),
		unaryMethod(MethodQuery, EntityStoreServer.Query),
		unaryMethod(MethodHealth, EntityStoreServer.Health),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "entitystore/v1/entitystore.proto",
}

// RegisterEntityStoreServer registers srv on s
func RegisterEntityStoreServer(s grpc.ServiceRegistrar, srv EntityStoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the EntityStore service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
