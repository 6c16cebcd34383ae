package services

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/aetherisstack/aetheris-engine/internal/api"
	"github.com/aetherisstack/aetheris-engine/internal/config"
	"github.com/aetherisstack/aetheris-engine/internal/fleet"
	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/transport/mqtt"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

type sentCommand struct {
	unitID string
	cmd    models.Command
}

type stubCommander struct {
	mu   sync.Mutex
	sent []sentCommand
	err  error
}

func (s *stubCommander) SendCommand(_ context.Context, unitID string, cmd models.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentCommand{unitID: unitID, cmd: cmd})
	return nil
}

func (s *stubCommander) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubCommander) BroadcastCommand(ctx context.Context, cmd models.Command) error {
	return s.SendCommand(ctx, "", cmd)
}

func startServer(t *testing.T, svc *FleetService) (*api.Server, *api.FleetServiceClient, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := api.NewServerOnListener(config.ServerConfig{GracefulTimeout: time.Second}, lis, svc)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, api.NewFleetServiceClient(conn), healthpb.NewHealthClient(conn)
}

func newTracker() *fleet.Tracker {
	clock := utils.ClockFunc(func() time.Time { return time.UnixMilli(1_700_000_000_000) })
	tracker := fleet.NewTracker(clock)
	tracker.UpdateUnit(models.NewUnitState("RV-001", "Rover Alpha", models.UnitKindRover, 1))
	tracker.RecordHeartbeat("CR-009")
	return tracker
}

func commandStruct(t *testing.T, unitID string, cmd map[string]any) *structpb.Struct {
	t.Helper()
	fields := map[string]any{"command": cmd}
	if unitID != "" {
		fields["unit_id"] = unitID
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return s
}

func TestListAndGetUnits(t *testing.T) {
	_, client, _ := startServer(t, NewFleetService(nil, newTracker(), &stubCommander{}))
	ctx := context.Background()

	list, err := client.ListUnits(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if n := len(list.GetFields()["units"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("expected one unit, got %d", n)
	}

	unit, err := client.GetUnit(ctx, wrapperspb.String("RV-001"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if unit.GetFields()["unit"].GetStructValue().GetFields()["name"].GetStringValue() != "Rover Alpha" {
		t.Fatalf("unexpected unit %v", unit)
	}

	_, err = client.GetUnit(ctx, wrapperspb.String("XX-404"))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	_, err = client.GetUnit(ctx, wrapperspb.String(""))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestSendAndBroadcastCommand(t *testing.T) {
	commander := &stubCommander{}
	_, client, _ := startServer(t, NewFleetService(nil, newTracker(), commander))
	ctx := context.Background()

	if _, err := client.SendCommand(ctx, commandStruct(t, "RV-001", map[string]any{"command": "start_patrol", "params": map[string]any{"route_id": "ROUTE-A1"}})); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := client.BroadcastCommand(ctx, commandStruct(t, "", map[string]any{"command": "emergency_stop"})); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	commander.mu.Lock()
	defer commander.mu.Unlock()
	if len(commander.sent) != 2 {
		t.Fatalf("expected two commands, got %d", len(commander.sent))
	}
	if commander.sent[0].unitID != "RV-001" || commander.sent[0].cmd.Params.RouteID != "ROUTE-A1" {
		t.Fatalf("unexpected send %+v", commander.sent[0])
	}
	if commander.sent[1].cmd.Kind != models.CommandEmergencyStop {
		t.Fatalf("unexpected broadcast %+v", commander.sent[1])
	}
}

func TestCommandErrorsMapToStatusCodes(t *testing.T) {
	commander := &stubCommander{}
	_, client, _ := startServer(t, NewFleetService(nil, newTracker(), commander))
	ctx := context.Background()

	_, err := client.SendCommand(ctx, commandStruct(t, "", map[string]any{"command": "stop"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for missing unit, got %v", err)
	}

	commander.fail(utils.NewAppError("publish command", utils.KindTransport, mqtt.ErrNotConnected))
	_, err = client.SendCommand(ctx, commandStruct(t, "RV-001", map[string]any{"command": "stop"}))
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected Unavailable while disconnected, got %v", err)
	}

	commander.fail(errors.New("boom"))
	_, err = client.BroadcastCommand(ctx, commandStruct(t, "", map[string]any{"command": "stop"}))
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestHealthFollowsBrokerState(t *testing.T) {
	srv, _, health := startServer(t, NewFleetService(nil, newTracker(), &stubCommander{}))
	ctx := context.Background()

	resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: api.FleetServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before broker connects, got %v", resp.GetStatus())
	}

	srv.SetServing(true)
	resp, err = health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}
