package feed

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "feedsub.v1.FeedService"

const (
	subscribeMethod = "/" + ServiceName + "/Subscribe"
	publishMethod   = "/" + ServiceName + "/Publish"
)

// FeedServer is implemented by feed services.
type FeedServer interface {
	Subscribe(*SubscribeRequest, EventSender) error
	Publish(context.Context, *PublishRequest) (*PublishResponse, error)
}

// EventSender is the server side of a Subscribe stream.
type EventSender interface {
	Send(*Event) error
	Context() context.Context
}

// RegisterFeedServer registers srv on s.
func RegisterFeedServer(s grpc.ServiceRegistrar, srv FeedServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "feedsub/v1/feed",
}

type serverEventStream struct {
	grpc.ServerStream
}

func (s serverEventStream) Send(ev *Event) error { return s.ServerStream.SendMsg(ev) }

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(FeedServer).Subscribe(req, serverEventStream{stream})
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(PublishRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeedServer).Publish(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: publishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FeedServer).Publish(ctx, req.(*PublishRequest))
	}
	return interceptor(ctx, req, info, handler)
}
