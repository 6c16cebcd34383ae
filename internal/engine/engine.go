// Package engine runs the long-lived loops of the fleet engine: draining
// broker deliveries into the hub, consuming hub events, and reacting to
// liveness sweeps.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aetherisstack/aetheris-engine/internal/cache"
	"github.com/aetherisstack/aetheris-engine/internal/fleet"
	"github.com/aetherisstack/aetheris-engine/internal/hub"
	"github.com/aetherisstack/aetheris-engine/internal/metrics"
	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/transport/mqtt"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// Engine wires the hub to its inbound stream and event consumer.
type Engine struct {
	hub     *hub.Hub
	tracker *fleet.Tracker
	events  *hub.EventQueue
	store   *cache.FleetStore
	clock   utils.Clock
	logger  *slog.Logger
	latency *utils.LatencyTracker
}

// Option customises an Engine.
type Option func(*Engine)

// WithStore enables fleet snapshots and alert de-duplication.
func WithStore(store *cache.FleetStore) Option {
	return func(e *Engine) { e.store = store }
}

func WithClock(clock utils.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = utils.Component(logger, "engine") }
}

// New builds an Engine around an already configured hub.
func New(h *hub.Hub, tracker *fleet.Tracker, events *hub.EventQueue, opts ...Option) *Engine {
	e := &Engine{
		hub:     h,
		tracker: tracker,
		events:  events,
		clock:   utils.SystemClock{},
		logger:  utils.Component(nil, "engine"),
		latency: utils.NewLatencyTracker(1024),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drains deliveries until ctx ends or the channel closes, then closes the
// event queue and waits for the consumer to finish what is buffered.
func (e *Engine) Run(ctx context.Context, deliveries <-chan mqtt.Delivery) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.ConsumeEvents(ctx)
	}()

	e.DrainInbound(ctx, deliveries)
	e.events.Close()
	wg.Wait()
}

// DrainInbound dispatches deliveries one at a time so per-topic order is kept.
func (e *Engine) DrainInbound(ctx context.Context, deliveries <-chan mqtt.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			start := time.Now()
			err := e.hub.Dispatch(ctx, d.Topic, d.Payload)
			e.latency.Observe(time.Since(start))
			if err != nil {
				e.logger.Warn("dropping inbound message",
					slog.String("topic", d.Topic),
					slog.Int("bytes", len(d.Payload)),
					slog.Any("error", err),
				)
			}
		}
	}
}

// ConsumeEvents handles events until the queue is closed.
func (e *Engine) ConsumeEvents(ctx context.Context) {
	for ev := range e.events.Events() {
		e.handle(ctx, ev)
	}
}

func (e *Engine) handle(ctx context.Context, ev hub.Event) {
	switch ev := ev.(type) {
	case hub.TelemetryReceived:
		e.logger.Debug("telemetry",
			slog.String("unit_id", ev.State.ID),
			slog.String("status", string(ev.State.Status)),
			slog.Float64("battery", ev.State.Battery),
			slog.Uint64("seq", ev.Seq),
		)
	case hub.HeartbeatReceived:
		e.logger.Debug("heartbeat",
			slog.String("unit_id", ev.Heartbeat.UnitID),
			slog.Uint64("uptime", ev.Heartbeat.Uptime),
		)
	case hub.AlertReceived:
		e.handleAlert(ctx, ev)
	case hub.EnvironmentReceived:
		level := slog.LevelDebug
		if ev.Reading.IsHazardous() {
			level = slog.LevelWarn
		}
		e.logger.Log(ctx, level, "environment reading",
			slog.String("section_id", ev.Reading.SectionID),
			slog.Float64("h2_ppm", ev.Reading.H2Concentration),
			slog.Float64("pressure", ev.Reading.Pressure),
			slog.Float64("temperature", ev.Reading.Temperature),
			slog.Bool("hazardous", ev.Reading.IsHazardous()),
		)
	case hub.ResponseReceived:
		attrs := []any{
			slog.String("command_id", ev.Response.CommandID),
			slog.String("unit_id", ev.Response.UnitID),
			slog.Bool("success", ev.Response.Success),
		}
		if ev.Response.Error != nil {
			attrs = append(attrs, slog.String("error", *ev.Response.Error))
		}
		e.logger.Info("command response", attrs...)
	case hub.CommandReceived:
		target := ev.Target
		if target == "" {
			target = "broadcast"
		}
		e.logger.Info("command observed",
			slog.String("command", string(ev.Command.Kind)),
			slog.String("source", ev.Source),
			slog.String("target", target),
		)
	}
}

func (e *Engine) handleAlert(ctx context.Context, ev hub.AlertReceived) {
	report := ev.Report
	if e.store != nil && report.ID != "" {
		first, err := e.store.ClaimAlert(ctx, report.ID)
		switch {
		case err != nil:
			e.logger.Error("alert de-duplication unavailable", slog.String("anomaly_id", report.ID), slog.Any("error", err))
		case !first:
			metrics.AlertDeduplicated()
			e.logger.Debug("duplicate alert suppressed", slog.String("anomaly_id", report.ID), slog.String("source", ev.Source))
			return
		}
	}
	e.logger.Warn("anomaly reported",
		slog.String("anomaly_id", report.ID),
		slog.String("anomaly_type", string(report.Kind)),
		slog.String("severity", string(report.Severity)),
		slog.String("section_id", report.SectionID),
		slog.String("detected_by", report.DetectedBy),
		slog.Float64("confidence", report.Confidence),
		slog.String("source", ev.Source),
	)
}

// Status summarises the tracker as a SystemStatus.
func (e *Engine) Status(state models.EngineState) models.SystemStatus {
	status := models.SystemStatus{
		EngineID:  e.hub.Source(),
		State:     state,
		Timestamp: utils.UnixMillis(e.clock.Now()),
	}
	for _, entry := range e.tracker.Entries() {
		switch {
		case !entry.HasState():
			status.HeartbeatOnly++
		case entry.State.Status == models.StatusOffline:
			status.UnitsOffline++
		default:
			status.UnitsOnline++
		}
	}
	return status
}

// SweepObserver returns the callback the fleet monitor invokes after each
// sweep. ctx bounds the snapshot write and status publish.
func (e *Engine) SweepObserver(ctx context.Context) fleet.SweepObserver {
	return func(fleet.SweepResult) {
		e.afterSweep(ctx)
	}
}

func (e *Engine) afterSweep(ctx context.Context) {
	status := e.Status(models.EngineOnline)
	metrics.SetFleetUnits(status.UnitsOnline, status.UnitsOffline, status.HeartbeatOnly)

	if e.store != nil {
		if err := e.store.SaveSnapshot(ctx, e.snapshot(status.Timestamp)); err != nil {
			e.logger.Error("fleet snapshot write failed", slog.Any("error", err))
		}
	}
	if err := e.hub.PublishSystemStatus(ctx, status); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("system status publish failed", slog.Any("error", err))
	}
	if e.latency.Count() > 0 {
		e.logger.Debug("dispatch latency",
			slog.Duration("p50", e.latency.Percentile(50)),
			slog.Duration("p95", e.latency.Percentile(95)),
			slog.Int("samples", e.latency.Count()),
		)
	}
}

func (e *Engine) snapshot(ts uint64) cache.FleetSnapshot {
	snap := cache.FleetSnapshot{EngineID: e.hub.Source(), TakenAt: ts}
	for _, entry := range e.tracker.Entries() {
		if entry.HasState() {
			snap.Units = append(snap.Units, *entry.State)
		} else {
			snap.HeartbeatOnly = append(snap.HeartbeatOnly, entry.ID)
		}
	}
	return snap
}

// OfflineWill renders the status the broker publishes if the engine's
// session drops without a clean disconnect.
func OfflineWill(engineID string) ([]byte, error) {
	return json.Marshal(models.SystemStatus{EngineID: engineID, State: models.EngineOffline})
}
