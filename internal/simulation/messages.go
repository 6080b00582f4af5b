package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AskTimeout bounds every request sent to the controller actor.
const AskTimeout = 2 * time.Second

// ErrRejected is returned by the request helpers when the controller refused a command.
var ErrRejected = errors.New("simulation: command rejected")

// Status is the controller answer to every request.
type Status struct {
	Running   bool
	Handler   string
	RunID     string
	Ticks     uint64
	NumAgents int
	Error     string
}

func (s Status) toProto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"running":   s.Running,
		"handler":   s.Handler,
		"runId":     s.RunID,
		"ticks":     float64(s.Ticks),
		"numAgents": float64(s.NumAgents),
		"error":     s.Error,
	})
}

func statusFromProto(st *structpb.Struct) Status {
	f := st.GetFields()
	return Status{
		Running:   f["running"].GetBoolValue(),
		Handler:   f["handler"].GetStringValue(),
		RunID:     f["runId"].GetStringValue(),
		Ticks:     uint64(f["ticks"].GetNumberValue()),
		NumAgents: int(f["numAgents"].GetNumberValue()),
		Error:     f["error"].GetStringValue(),
	}
}

// Tick asks the controller to advance the simulation by dt. It does not wait.
func Tick(ctx context.Context, pid *actor.PID, dt time.Duration) error {
	return actor.Tell(ctx, pid, durationpb.New(dt))
}

// Start starts the simulation on the active handler.
func Start(ctx context.Context, pid *actor.PID) (Status, error) {
	return ask(ctx, pid, wrapperspb.Bool(true))
}

// Stop stops the simulation.
func Stop(ctx context.Context, pid *actor.PID) (Status, error) {
	return ask(ctx, pid, wrapperspb.Bool(false))
}

// Select makes the named handler active.
func Select(ctx context.Context, pid *actor.PID, name string) (Status, error) {
	return ask(ctx, pid, wrapperspb.String(name))
}

// SelectIndex makes the handler at index i active (0 accelerator, 1 cpu).
func SelectIndex(ctx context.Context, pid *actor.PID, i int) (Status, error) {
	return ask(ctx, pid, wrapperspb.Int32(int32(i)))
}

// Patch merges a partial configuration document into the handler configuration.
func Patch(ctx context.Context, pid *actor.PID, patch map[string]any) (Status, error) {
	msg, err := structpb.NewStruct(patch)
	if err != nil {
		return Status{}, fmt.Errorf("encode patch: %w", err)
	}
	return ask(ctx, pid, msg)
}

// QueryStatus returns the controller status.
func QueryStatus(ctx context.Context, pid *actor.PID) (Status, error) {
	return ask(ctx, pid, &emptypb.Empty{})
}

// Drain returns the status once every message sent before it has been processed,
// waiting at most timeout.
func Drain(ctx context.Context, pid *actor.PID, timeout time.Duration) (Status, error) {
	return askWithin(ctx, pid, &emptypb.Empty{}, timeout)
}

func ask(ctx context.Context, pid *actor.PID, msg proto.Message) (Status, error) {
	return askWithin(ctx, pid, msg, AskTimeout)
}

func askWithin(ctx context.Context, pid *actor.PID, msg proto.Message, timeout time.Duration) (Status, error) {
	resp, err := actor.Ask(ctx, pid, msg, timeout)
	if err != nil {
		return Status{}, err
	}
	st, ok := resp.(*structpb.Struct)
	if !ok {
		return Status{}, fmt.Errorf("simulation: unexpected response %T", resp)
	}
	status := statusFromProto(st)
	if status.Error != "" {
		return status, fmt.Errorf("%w: %s", ErrRejected, status.Error)
	}
	return status, nil
}
