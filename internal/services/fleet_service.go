package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/aetherisstack/aetheris-engine/internal/api"
	"github.com/aetherisstack/aetheris-engine/internal/fleet"
	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/transport/mqtt"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// Commander publishes operator commands. *hub.Hub satisfies it.
type Commander interface {
	SendCommand(ctx context.Context, unitID string, cmd models.Command) error
	BroadcastCommand(ctx context.Context, cmd models.Command) error
}

// FleetService implements the aetheris.v1.FleetService gRPC service.
type FleetService struct {
	logger    *slog.Logger
	tracker   *fleet.Tracker
	commander Commander
	latencies *utils.LatencyTracker
}

var _ api.FleetServiceServer = (*FleetService)(nil)

// NewFleetService constructs the fleet service facade.
func NewFleetService(logger *slog.Logger, tracker *fleet.Tracker, commander Commander) *FleetService {
	return &FleetService{
		logger:    utils.Component(logger, "fleet-service"),
		tracker:   tracker,
		commander: commander,
		latencies: utils.NewLatencyTracker(256),
	}
}

// ListUnits returns every tracked unit, heartbeat-only ids listed separately.
func (s *FleetService) ListUnits(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.tracker == nil {
		return nil, status.Error(codes.FailedPrecondition, "fleet tracker not configured")
	}
	resp, err := api.ToProtoUnitList(s.tracker.Entries())
	if err != nil {
		s.logger.Error("encode unit list failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode units")
	}
	return resp, nil
}

// GetUnit returns one unit's last known state.
func (s *FleetService) GetUnit(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "unit id is required")
	}
	if s.tracker == nil {
		return nil, status.Error(codes.FailedPrecondition, "fleet tracker not configured")
	}
	entry, ok := s.tracker.Entry(req.GetValue())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unit %s is not tracked", req.GetValue())
	}
	resp, err := api.ToProtoUnit(entry)
	if err != nil {
		s.logger.Error("encode unit failed", slog.String("unit_id", entry.ID), slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode unit")
	}
	return resp, nil
}

// SendCommand publishes a command to one unit.
func (s *FleetService) SendCommand(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if s.commander == nil {
		return nil, status.Error(codes.FailedPrecondition, "command publisher not configured")
	}
	cmdReq, err := api.FromProtoCommandRequest(req, true)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	start := time.Now()
	err = s.commander.SendCommand(ctx, cmdReq.UnitID, cmdReq.Command)
	s.observe(time.Since(start))
	if err != nil {
		s.logger.Error("send command failed",
			slog.String("unit_id", cmdReq.UnitID),
			slog.String("command", string(cmdReq.Command.Kind)),
			slog.Any("error", err),
		)
		return nil, publishStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// BroadcastCommand publishes a command to every unit.
func (s *FleetService) BroadcastCommand(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if s.commander == nil {
		return nil, status.Error(codes.FailedPrecondition, "command publisher not configured")
	}
	cmdReq, err := api.FromProtoCommandRequest(req, false)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	start := time.Now()
	err = s.commander.BroadcastCommand(ctx, cmdReq.Command)
	s.observe(time.Since(start))
	if err != nil {
		s.logger.Error("broadcast command failed", slog.String("command", string(cmdReq.Command.Kind)), slog.Any("error", err))
		return nil, publishStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// LatencyP95 returns the current p95 command publish latency.
func (s *FleetService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *FleetService) observe(d time.Duration) {
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("command publish latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
}

func publishStatus(err error) error {
	switch {
	case errors.Is(err, mqtt.ErrNotConnected):
		return status.Error(codes.Unavailable, "broker not connected")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "broker did not acknowledge in time")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	default:
		return status.Error(codes.Internal, "failed to publish command")
	}
}
