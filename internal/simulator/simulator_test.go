package simulator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

type capturePublisher struct {
	mu         sync.Mutex
	telemetry  []models.UnitState
	heartbeats []models.Heartbeat
	failUnit   string
}

func (c *capturePublisher) PublishTelemetry(_ context.Context, state models.UnitState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state.ID == c.failUnit {
		return errors.New("broker unavailable")
	}
	c.telemetry = append(c.telemetry, state)
	return nil
}

func (c *capturePublisher) PublishHeartbeat(_ context.Context, hb models.Heartbeat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeats = append(c.heartbeats, hb)
	return nil
}

func (c *capturePublisher) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.telemetry), len(c.heartbeats)
}

var fixedClock = utils.ClockFunc(func() time.Time { return time.UnixMilli(1_700_000_000_000) })

func TestMockFleet(t *testing.T) {
	units := MockFleet(5)
	want := []string{"RV-001", "RV-002", "DR-001", "CR-001", "CR-002"}
	if len(units) != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), len(units))
	}
	for i, id := range want {
		if units[i].ID != id {
			t.Fatalf("unit %d: expected %s, got %s", i, id, units[i].ID)
		}
		if err := units[i].CurrentTask.Validate(); err != nil {
			t.Fatalf("unit %s has invalid task: %v", id, err)
		}
	}
	if units[4].Status != models.StatusMaintenance || units[4].CurrentTask.Kind != models.TaskReturningToBase {
		t.Fatalf("CR-002 should be returning for maintenance, got %+v", units[4])
	}
}

func TestPublishTelemetryOffsetsPosition(t *testing.T) {
	pub := &capturePublisher{}
	sim := New(pub, WithClock(fixedClock))

	if n := sim.PublishTelemetry(context.Background()); n != 5 {
		t.Fatalf("expected 5 frames, got %d", n)
	}
	sim.PublishTelemetry(context.Background())

	base := sim.Units()[0]
	for _, frame := range []models.UnitState{pub.telemetry[0], pub.telemetry[5]} {
		if math.Abs(frame.Position.X-(base.Position.X+0.12)) > 1e-9 {
			t.Fatalf("expected x offset by vx*0.1, got %v", frame.Position.X)
		}
		if frame.Timestamp != 1_700_000_000_000 {
			t.Fatalf("expected frame stamped now, got %d", frame.Timestamp)
		}
	}
	if sim.Units()[0].Position.X != -2 {
		t.Fatalf("base state must not drift")
	}
}

func TestPublishTelemetryContinuesPastErrors(t *testing.T) {
	pub := &capturePublisher{failUnit: "DR-001"}
	sim := New(pub, WithClock(fixedClock))
	if n := sim.PublishTelemetry(context.Background()); n != 4 {
		t.Fatalf("expected 4 accepted frames, got %d", n)
	}
}

func TestHeartbeatUptimeAccumulates(t *testing.T) {
	pub := &capturePublisher{}
	sim := New(pub, WithClock(fixedClock), WithIntervals(0, 5*time.Second))

	sim.PublishHeartbeats(context.Background())
	sim.PublishHeartbeats(context.Background())

	if len(pub.heartbeats) != 10 {
		t.Fatalf("expected 10 heartbeats, got %d", len(pub.heartbeats))
	}
	first, last := pub.heartbeats[0], pub.heartbeats[9]
	if first.Uptime != 5 || last.Uptime != 10 {
		t.Fatalf("expected uptime 5 then 10, got %d and %d", first.Uptime, last.Uptime)
	}
	if first.UnitID != "RV-001" || first.Kind != models.UnitKindRover || first.Battery != 87 {
		t.Fatalf("heartbeat should mirror the unit, got %+v", first)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	pub := &capturePublisher{}
	sim := New(pub, WithIntervals(5*time.Millisecond, 10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		tel, hb := pub.counts()
		if tel > 0 && hb > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected both cadences to fire, got %d telemetry %d heartbeats", tel, hb)
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
