// Package api holds the wire types, service descriptors and clients of the
// entrynode gRPC services. Messages are plain structs carried by the JSON
// codec registered in pkg/net/grpc/codec.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/LumeraProtocol/entrynode/pkg/entry"
	"github.com/LumeraProtocol/entrynode/pkg/net/grpc/codec"
)

const (
	// EntryServiceName is the fully qualified entry service name
	EntryServiceName = "entrynode.api.EntryService"

	EntryService_Get_FullMethodName = "/" + EntryServiceName + "/Get"
	EntryService_Put_FullMethodName = "/" + EntryServiceName + "/Put"

	// EntryKeyTrailer carries the derived store key of a failed Put
	EntryKeyTrailer = "entry-key"
)

// GetRequest reads the entry stored at Location
type GetRequest struct {
	Location string `json:"location"`
}

// GetResponse carries the entry found
type GetResponse struct {
	Entry *entry.Entry `json:"entry,omitempty"`
}

// PutRequest writes Entry. Signature signs "<PublicKey>/<Entry.Name>".
type PutRequest struct {
	Entry     *entry.Entry `json:"entry"`
	Signature string       `json:"signature"`
	PublicKey string       `json:"public_key"`
}

// PutResponse carries the key the entry was stored under
type PutResponse struct {
	Key string `json:"key"`
}

// EntryServiceClient is the client API for EntryService
type EntryServiceClient interface {
	Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error)
	Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutResponse, error)
}

type entryServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewEntryServiceClient returns an EntryService client over cc
func NewEntryServiceClient(cc grpc.ClientConnInterface) EntryServiceClient {
	return &entryServiceClient{cc}
}

func (c *entryServiceClient) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	out := new(GetResponse)
	if err := c.cc.Invoke(ctx, EntryService_Get_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entryServiceClient) Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutResponse, error) {
	out := new(PutResponse)
	if err := c.cc.Invoke(ctx, EntryService_Put_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
}

// EntryServiceServer is the server API for EntryService
type EntryServiceServer interface {
	Get(context.Context, *GetRequest) (*GetResponse, error)
	Put(context.Context, *PutRequest) (*PutResponse, error)
}

// UnimplementedEntryServiceServer answers every method with Unimplemented
type UnimplementedEntryServiceServer struct{}

func (UnimplementedEntryServiceServer) Get(context.Context, *GetRequest) (*GetResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Get not implemented")
}

func (UnimplementedEntryServiceServer) Put(context.Context, *PutRequest) (*PutResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Put not implemented")
}

// RegisterEntryServiceServer registers srv on s
func RegisterEntryServiceServer(s grpc.ServiceRegistrar, srv EntryServiceServer) {
	s.RegisterService(&EntryService_ServiceDesc, srv)
}

func _EntryService_Get_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EntryServiceServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EntryService_Get_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EntryServiceServer).Get(ctx, req.(*GetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _EntryService_Put_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EntryServiceServer).Put(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EntryService_Put_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EntryServiceServer).Put(ctx, req.(*PutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// EntryService_ServiceDesc is the grpc.ServiceDesc for EntryService
var EntryService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: EntryServiceName,
	HandlerType: (*EntryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: _EntryService_Get_Handler},
		{MethodName: "Put", Handler: _EntryService_Put_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "entrynode/api/entry",
}
