package sinkpb

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// SinkStreamMethod is the full gRPC method name of the sink stream.
const SinkStreamMethod = "/connector.v1.ConnectorService/SinkStream"

// wireMessage is implemented by both stream message types.
type wireMessage interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// Codec is the gRPC codec for the hand-written sinkpb wire types. Register
// it on both ends: grpc.ForceCodec on client calls, grpc.ForceServerCodec
// on the server.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("sinkpb codec: cannot marshal %T", v)
	}
	return m.MarshalBinary()
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("sinkpb codec: cannot unmarshal into %T", v)
	}
	return m.UnmarshalBinary(data)
}

func (Codec) Name() string { return "sinkpb" }

// Dial opens an insecure client connection to a connector service with the
// sinkpb codec forced on every call.
func Dial(ctx context.Context, endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.DialContext(ctx, endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return conn, nil
}

var sinkStreamDesc = &grpc.StreamDesc{
	StreamName:    "SinkStream",
	ServerStreams: true,
	ClientStreams: true,
}

// ConnectorServiceClient is the client side of ConnectorService.
type ConnectorServiceClient interface {
	SinkStream(ctx context.Context, opts ...grpc.CallOption) (ConnectorService_SinkStreamClient, error)
}

// ConnectorService_SinkStreamClient is the client handle of one sink stream.
type ConnectorService_SinkStreamClient interface {
	Send(*SinkStreamRequest) error
	Recv() (*SinkStreamResponse, error)
	grpc.ClientStream
}

type connectorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewConnectorServiceClient creates a ConnectorService client over conn.
func NewConnectorServiceClient(cc grpc.ClientConnInterface) ConnectorServiceClient {
	return &connectorServiceClient{cc: cc}
}

func (c *connectorServiceClient) SinkStream(ctx context.Context, opts ...grpc.CallOption) (ConnectorService_SinkStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, sinkStreamDesc, SinkStreamMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &connectorServiceSinkStreamClient{stream}, nil
}

type connectorServiceSinkStreamClient struct {
	grpc.ClientStream
}

func (x *connectorServiceSinkStreamClient) Send(m *SinkStreamRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *connectorServiceSinkStreamClient) Recv() (*SinkStreamResponse, error) {
	m := &SinkStreamResponse{}
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ConnectorServiceServer is the server side of ConnectorService.
type ConnectorServiceServer interface {
	SinkStream(ConnectorService_SinkStreamServer) error
}

// ConnectorService_SinkStreamServer is the server handle of one sink stream.
type ConnectorService_SinkStreamServer interface {
	Send(*SinkStreamResponse) error
	Recv() (*SinkStreamRequest, error)
	grpc.ServerStream
}

type connectorServiceSinkStreamServer struct {
	grpc.ServerStream
}

func (x *connectorServiceSinkStreamServer) Send(m *SinkStreamResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *connectorServiceSinkStreamServer) Recv() (*SinkStreamRequest, error) {
	m := &SinkStreamRequest{}
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func sinkStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ConnectorServiceServer).SinkStream(&connectorServiceSinkStreamServer{stream})
}

var connectorServiceDesc = grpc.ServiceDesc{
	ServiceName: "connector.v1.ConnectorService",
	HandlerType: (*ConnectorServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SinkStream",
			Handler:       sinkStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "proto/connector/v1/connector_service.proto",
}

// RegisterConnectorServiceServer registers srv on s. The server must be
// constructed with grpc.ForceServerCodec(Codec{}).
func RegisterConnectorServiceServer(s grpc.ServiceRegistrar, srv ConnectorServiceServer) {
	s.RegisterService(&connectorServiceDesc, srv)
}
