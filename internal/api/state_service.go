package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chatmirror/internal/bus"
	"github.com/matheus3301/chatmirror/internal/events"
	"github.com/matheus3301/chatmirror/internal/outbox"
	"github.com/matheus3301/chatmirror/internal/state"
	"github.com/matheus3301/chatmirror/internal/status"
	intsync "github.com/matheus3301/chatmirror/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Snapshotter exposes a detached copy of the chat state.
type Snapshotter interface {
	Snapshot() state.ChatState
}

// Deliverer accepts raw push envelopes.
type Deliverer interface {
	Deliver(data []byte) (events.Event, error)
}

// Submitter queues remote operations.
type Submitter interface {
	Submit(ctx context.Context, op events.Operation) (events.Operation, error)
}

// StateService implements the StateService gRPC service.
type StateService struct {
	sessionName string
	startedAt   time.Time
	state       Snapshotter
	inlet       Deliverer
	runner      Submitter
	bus         *bus.Bus
	machine     *status.Machine
	logger      *zap.Logger
}

var _ StateServer = (*StateService)(nil)

// NewStateService creates a new state service.
func NewStateService(sessionName string, st Snapshotter, inlet Deliverer, runner Submitter, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *StateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		state:       st,
		inlet:       inlet,
		runner:      runner,
		bus:         b,
		machine:     machine,
		logger:      logger,
	}
}

func (s *StateService) GetState(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := toStruct(s.state.Snapshot())
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode state: %v", err)
	}
	return out, nil
}

func (s *StateService) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	fields := map[string]any{
		"session":  s.sessionName,
		"uptimeMs": float64(time.Since(s.startedAt).Milliseconds()),
	}
	if s.machine != nil {
		fields["push"] = string(s.machine.Current())
		fields["pushSince"] = s.machine.Since().UTC().Format(time.RFC3339)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

func (s *StateService) PushEvent(_ context.Context, envelope *structpb.Struct) (*emptypb.Empty, error) {
	data, err := protojson.Marshal(envelope)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "encode envelope: %v", err)
	}
	if _, err := s.inlet.Deliver(data); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *StateService) RunOperation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	data, err := protojson.Marshal(in)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "encode operation: %v", err)
	}
	var op events.Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "decode operation: %v", err)
	}

	queued, err := s.runner.Submit(ctx, op)
	if err != nil {
		return nil, submitError(err)
	}
	s.logger.Debug("operation accepted", zap.String("op_id", queued.ID), zap.String("kind", string(queued.Kind)))

	fields := map[string]any{
		"accepted": true,
		"id":       queued.ID,
	}
	if queued.ConversationID != "" {
		fields["conversationId"] = queued.ConversationID
	}
	if queued.MessageID != "" {
		fields["messageId"] = queued.MessageID
	}
	return structpb.NewStruct(fields)
}

func (s *StateService) WatchState(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch, unsub := s.bus.Subscribe(intsync.KindStateChanged, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			change, ok := evt.Payload.(intsync.Change)
			if !ok {
				continue
			}
			msg, err := structpb.NewStruct(map[string]any{
				"kind":           change.Kind,
				"conversationId": change.ConversationID,
				"at":             evt.Timestamp.UTC().Format(time.RFC3339Nano),
			})
			if err != nil {
				return grpcstatus.Errorf(codes.Internal, "encode change: %v", err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func submitError(err error) error {
	switch {
	case errors.Is(err, events.ErrInvalidOperation):
		return grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	case errors.Is(err, outbox.ErrStopped):
		return grpcstatus.Errorf(codes.Unavailable, "%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.FromContextError(err).Err()
	default:
		return grpcstatus.Errorf(codes.Internal, "submit: %v", err)
	}
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode struct: %w", err)
	}
	return out, nil
}
