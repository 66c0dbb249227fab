package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	pb "github.com/LumeraProtocol/entrynode/api"
	"github.com/LumeraProtocol/entrynode/entrynode/dispatch"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	tasks "github.com/LumeraProtocol/entrynode/pkg/task"
)

const (
	serviceGet = "api.get"
	servicePut = "api.put"

	defaultRequestTimeout = 30 * time.Second
)

// Submitter queues requests for the dispatcher
type Submitter interface {
	Submit(ctx context.Context, req dispatch.Request) error
}

// Subscriber hands out subscriptions to dispatcher results
type Subscriber interface {
	Subscribe() *dispatch.Subscription
}

// EntryServer implements EntryService on top of the dispatcher. Each call
// subscribes to results before submitting, then waits for its own request id.
type EntryServer struct {
	pb.UnimplementedEntryServiceServer

	dispatcher  Submitter
	broadcaster Subscriber
	tracker     tasks.Tracker
	timeout     time.Duration
}

// NewEntryServer returns an EntryService implementation; timeout bounds each call
func NewEntryServer(dispatcher Submitter, broadcaster Subscriber, tracker tasks.Tracker, timeout time.Duration) *EntryServer {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &EntryServer{dispatcher: dispatcher, broadcaster: broadcaster, tracker: tracker, timeout: timeout}
}

// Desc returns the service descriptor
func (s *EntryServer) Desc() *grpc.ServiceDesc {
	return &pb.EntryService_ServiceDesc
}

// Get returns the entry stored at the requested location
func (s *EntryServer) Get(ctx context.Context, req *pb.GetRequest) (*pb.GetResponse, error) {
	fields := logtrace.Fields{
		logtrace.FieldMethod: "Get",
		logtrace.FieldModule: "EntryServer",
	}
	if req.Location == "" {
		return nil, status.Error(codes.InvalidArgument, "location is required")
	}
	fields[logtrace.FieldLocation] = req.Location
	logtrace.Debug(ctx, "get request received", fields)

	resp, err := s.roundTrip(ctx, serviceGet, func(id string) dispatch.Request {
		return &dispatch.GetRequest{ID: id, Location: req.Location}
	})
	if err != nil {
		return nil, err
	}

	res, ok := resp.(*dispatch.GetResult)
	if !ok {
		return nil, status.Errorf(codes.Internal, "unexpected result %T", resp)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return &pb.GetResponse{Entry: res.Entry}, nil
}

// Put verifies and stores the signed entry
func (s *EntryServer) Put(ctx context.Context, req *pb.PutRequest) (*pb.PutResponse, error) {
	fields := logtrace.Fields{
		logtrace.FieldMethod: "Put",
		logtrace.FieldModule: "EntryServer",
	}
	if req.Entry == nil || req.Entry.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "entry name is required")
	}
	fields[logtrace.FieldEntryName] = req.Entry.Name
	logtrace.Debug(ctx, "put request received", fields)

	resp, err := s.roundTrip(ctx, servicePut, func(id string) dispatch.Request {
		return &dispatch.PutRequest{ID: id, Entry: *req.Entry, Signature: req.Signature, PublicKey: req.PublicKey}
	})
	if err != nil {
		return nil, err
	}

	res, ok := resp.(*dispatch.PutResult)
	if !ok {
		return nil, status.Errorf(codes.Internal, "unexpected result %T", resp)
	}
	if err := res.Err(); err != nil {
		if trErr := grpc.SetTrailer(ctx, metadata.Pairs(pb.EntryKeyTrailer, res.Key.String())); trErr != nil {
			fields[logtrace.FieldError] = trErr.Error()
			logtrace.Debug(ctx, "set entry key trailer failed", fields)
		}
		return nil, err
	}
	return &pb.PutResponse{Key: res.Key.String()}, nil
}

func (s *EntryServer) roundTrip(ctx context.Context, service string, build func(id string) dispatch.Request) (dispatch.Response, error) {
	id := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	handle, err := tasks.StartUniqueWith(ctx, s.tracker, service, id, s.timeout)
	if err != nil {
		return nil, status.Error(codes.AlreadyExists, err.Error())
	}
	defer handle.End(ctx)

	// subscribe first so the result cannot be published before we listen
	sub := s.broadcaster.Subscribe()
	defer sub.Close()

	if err := s.dispatcher.Submit(ctx, build(id)); err != nil {
		return nil, submitError(err)
	}

	resp, err := sub.Await(ctx, id)
	if err != nil {
		return nil, awaitError(err)
	}
	return resp, nil
}

func submitError(err error) error {
	switch {
	case errors.Is(err, dispatch.ErrQueueFull):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, dispatch.ErrDispatcherStopped):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return contextError(err)
	}
}

func awaitError(err error) error {
	if errors.Is(err, dispatch.ErrSubscriptionClosed) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return contextError(err)
}

func contextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
