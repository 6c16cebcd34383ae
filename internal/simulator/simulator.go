// Package simulator publishes telemetry and heartbeats for a fixed mock
// fleet so the engine can be exercised without real hardware.
package simulator

import (
	"context"
	"log/slog"
	"time"

	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

const (
	DefaultTelemetryInterval = time.Second
	DefaultHeartbeatInterval = 5 * time.Second

	// stepFactor scales velocity into the per-frame position offset.
	stepFactor = 0.1
)

// Publisher is the outbound surface the simulator drives. *hub.Hub satisfies it.
type Publisher interface {
	PublishTelemetry(ctx context.Context, state models.UnitState) error
	PublishHeartbeat(ctx context.Context, hb models.Heartbeat) error
}

// Simulator owns the mock units and the cumulative uptime counter.
type Simulator struct {
	pub               Publisher
	units             []models.UnitState
	telemetryInterval time.Duration
	heartbeatInterval time.Duration
	clock             utils.Clock
	logger            *slog.Logger
	uptime            uint64
}

// Option customises a Simulator.
type Option func(*Simulator)

func WithIntervals(telemetry, heartbeat time.Duration) Option {
	return func(s *Simulator) {
		if telemetry > 0 {
			s.telemetryInterval = telemetry
		}
		if heartbeat > 0 {
			s.heartbeatInterval = heartbeat
		}
	}
}

func WithClock(clock utils.Clock) Option {
	return func(s *Simulator) { s.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) { s.logger = utils.Component(logger, "simulator") }
}

// WithUnits replaces the default mock fleet.
func WithUnits(units []models.UnitState) Option {
	return func(s *Simulator) { s.units = append([]models.UnitState(nil), units...) }
}

// New builds a Simulator over MockFleet unless WithUnits is given.
func New(pub Publisher, opts ...Option) *Simulator {
	s := &Simulator{
		pub:               pub,
		telemetryInterval: DefaultTelemetryInterval,
		heartbeatInterval: DefaultHeartbeatInterval,
		clock:             utils.SystemClock{},
		logger:            utils.Component(nil, "simulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.units == nil {
		s.units = MockFleet(utils.UnixMillis(s.clock.Now()))
	}
	return s
}

// Units returns a copy of the simulated fleet's base states.
func (s *Simulator) Units() []models.UnitState {
	return append([]models.UnitState(nil), s.units...)
}

// Run publishes on both cadences until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	s.logger.Info("simulated fleet started",
		slog.Int("units", len(s.units)),
		slog.Duration("telemetry_interval", s.telemetryInterval),
		slog.Duration("heartbeat_interval", s.heartbeatInterval),
	)
	telemetry := time.NewTicker(s.telemetryInterval)
	defer telemetry.Stop()
	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-telemetry.C:
			s.PublishTelemetry(ctx)
		case <-heartbeat.C:
			s.PublishHeartbeats(ctx)
		}
	}
}

// PublishTelemetry sends one frame per unit. Each frame is the base state
// shifted along x by vx*0.1 and stamped now; the base is not mutated.
// It returns the number of frames the publisher accepted.
func (s *Simulator) PublishTelemetry(ctx context.Context) int {
	now := utils.UnixMillis(s.clock.Now())
	sent := 0
	for _, unit := range s.units {
		frame := unit
		frame.Position.X += frame.Velocity.VX * stepFactor
		frame.Timestamp = now
		if err := s.pub.PublishTelemetry(ctx, frame); err != nil {
			s.logger.Error("failed to publish telemetry", slog.String("unit_id", unit.ID), slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent
}

// PublishHeartbeats advances uptime by one heartbeat interval and sends a
// heartbeat per unit.
func (s *Simulator) PublishHeartbeats(ctx context.Context) int {
	s.uptime += uint64(s.heartbeatInterval / time.Second)
	now := utils.UnixMillis(s.clock.Now())
	sent := 0
	for _, unit := range s.units {
		if err := s.pub.PublishHeartbeat(ctx, unit.Heartbeat(s.uptime, now)); err != nil {
			s.logger.Error("failed to publish heartbeat", slog.String("unit_id", unit.ID), slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent
}
