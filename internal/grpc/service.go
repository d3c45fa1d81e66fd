package grpc

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"driftpursuit/intercept/internal/balance"
	"driftpursuit/intercept/internal/campaign"
	"driftpursuit/intercept/internal/combat"
	"driftpursuit/intercept/internal/logging"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "intercept.v1.BalanceService"
	// SimulateMethod is the full method name of the unary simulation RPC.
	SimulateMethod = "/" + ServiceName + "/Simulate"
	// StreamEngagementMethod is the full method name of the streaming RPC.
	StreamEngagementMethod = "/" + ServiceName + "/StreamEngagement"
)

// Message kinds sent on the engagement stream.
const (
	KindBegin  = "begin"
	KindFire   = "fire"
	KindEnd    = "end"
	KindResult = "result"
)

// BalanceServer is the server API for the balance service. Requests and responses are
// Struct messages carrying the JSON shapes of the HTTP API.
type BalanceServer interface {
	Simulate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamEngagement(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// BalanceServiceDesc describes the service for grpc.Server registration.
var BalanceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BalanceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: simulateHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEngagement", Handler: streamEngagementHandler, ServerStreams: true},
	},
	Metadata: "intercept/v1/balance.proto",
}

// Register attaches the service to a gRPC server.
func Register(server grpc.ServiceRegistrar, service BalanceServer) {
	server.RegisterService(&BalanceServiceDesc, service)
}

func simulateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BalanceServer).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SimulateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BalanceServer).Simulate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func streamEngagementHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BalanceServer).StreamEngagement(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// Option customises the behaviour of the gRPC service.
type Option func(*Service)

// WithLogger overrides the service logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service implements BalanceServer on top of a Simulator.
type Service struct {
	simulator Simulator
	logger    *logging.Logger
}

// NewService wires the gRPC service to the simulator and optional settings.
func NewService(simulator Simulator, opts ...Option) *Service {
	service := &Service{simulator: simulator, logger: logging.L()}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// Simulate runs one campaign or a trial batch and returns the JSON-shaped response.
func (s *Service) Simulate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.simulator == nil {
		return nil, status.Error(codes.FailedPrecondition, "simulation unavailable")
	}
	var req balance.Request
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	response, err := s.simulator.Simulate(s.withLogger(ctx), req)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := encodeStruct(response)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// StreamEngagement runs one campaign and sends every engagement boundary and shot as it
// is resolved, followed by the final result.
func (s *Service) StreamEngagement(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s == nil || s.simulator == nil {
		return status.Error(codes.FailedPrecondition, "simulation unavailable")
	}
	var req balance.Request
	if err := decodeStruct(in, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	ctx, cancel := context.WithCancel(s.withLogger(stream.Context()))
	defer cancel()

	//1.- A failed send cancels the campaign so it stops at the next engagement boundary.
	sender := &streamSender{send: stream.Send, cancel: cancel}
	result, err := s.simulator.Stream(ctx, req, sender)
	if sendErr := sender.Err(); sendErr != nil {
		return sendErr
	}
	if err != nil {
		return toStatus(err)
	}
	sender.emit(map[string]any{"kind": KindResult, "result": result})
	return sender.Err()
}

func (s *Service) withLogger(ctx context.Context) context.Context {
	if logging.LoggerFromContext(ctx) != logging.L() {
		return ctx
	}
	return logging.ContextWithLogger(ctx, s.logger)
}

// streamSender adapts a server stream into a campaign recorder.
type streamSender struct {
	mu     sync.Mutex
	send   func(*structpb.Struct) error
	cancel context.CancelFunc
	index  int
	err    error
}

var _ campaign.Recorder = (*streamSender)(nil)

func (s *streamSender) BeginEngagement(index int, startA, startB float64) {
	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	s.emit(map[string]any{"kind": KindBegin, "engagement": index, "startA": startA, "startB": startB})
}

func (s *streamSender) ObserveFire(event combat.FireEvent) {
	s.mu.Lock()
	index := s.index
	s.mu.Unlock()
	s.emit(map[string]any{"kind": KindFire, "engagement": index, "event": event})
}

func (s *streamSender) EndEngagement(index int, outcome combat.Outcome) {
	s.emit(map[string]any{"kind": KindEnd, "engagement": index, "outcome": outcome})
}

func (s *streamSender) emit(message map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	frame, err := encodeStruct(message)
	if err == nil {
		err = s.send(frame)
	}
	if err != nil {
		s.err = err
		s.cancel()
	}
}

// Err reports the first send failure.
func (s *streamSender) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// toStatus maps simulation errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, balance.ErrInvalidRequest), errors.Is(err, campaign.ErrInvalidScenario):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "simulation cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "simulation deadline exceeded")
	default:
		return status.Errorf(codes.Internal, "simulation failed: %v", err)
	}
}
