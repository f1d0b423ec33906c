package grpcserver

import (
	"context"
	"errors"

	"github.com/rzbill/feedsub/internal/feed"
	eventsvc "github.com/rzbill/feedsub/internal/services/events"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type feedSvc struct {
	svc *eventsvc.Service
	// shutdown is done once the server begins stopping; it ends every
	// open subscription so GracefulStop can complete.
	shutdown context.Context
}

type cancelableSink struct {
	feed.EventSender
	ctx context.Context
}

func (c cancelableSink) Context() context.Context { return c.ctx }

func (f *feedSvc) Subscribe(req *feed.SubscribeRequest, stream feed.EventSender) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	stop := context.AfterFunc(f.shutdown, cancel)
	defer stop()

	err := f.svc.Subscribe(req, cancelableSink{EventSender: stream, ctx: ctx})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) && f.shutdown.Err() != nil:
		// Server shutdown ends the stream cleanly; the client sees EOF.
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Errorf(codes.Internal, "subscribe: %v", err)
}

func (f *feedSvc) Publish(ctx context.Context, req *feed.PublishRequest) (*feed.PublishResponse, error) {
	id, err := f.svc.Publish(ctx, req.Type, req.Payload)
	if errors.Is(err, eventsvc.ErrInvalidEventType) {
		return nil, status.Errorf(codes.InvalidArgument, "invalid event type %s", req.Type)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "publish: %v", err)
	}
	return &feed.PublishResponse{ID: id}, nil
}
