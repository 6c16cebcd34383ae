// Package hub routes fleet traffic between the broker and the engine: it
// stamps outbound envelopes with sequence numbers and turns inbound
// deliveries into typed events.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/aetherisstack/aetheris-engine/internal/fleet"
	"github.com/aetherisstack/aetheris-engine/internal/metrics"
	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/topics"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// DefaultSource is the envelope source for engine-originated commands.
const DefaultSource = "engine"

// ErrMalformedPayload marks inbound payloads that could not be decoded.
var ErrMalformedPayload = errors.New("malformed payload")

// Publisher delivers a payload to a topic with at-least-once semantics.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// AlertSynthesizer derives an anomaly report from a command, if any applies.
type AlertSynthesizer interface {
	Synthesize(cmd models.Command, source string) (models.AnomalyReport, bool)
}

// Hub owns the outbound sequence counter and the inbound dispatcher.
type Hub struct {
	pub     Publisher
	tracker *fleet.Tracker
	events  *EventQueue
	synth   AlertSynthesizer
	source  string
	clock   utils.Clock
	logger  *slog.Logger

	seq atomic.Uint64
}

// Option customises a Hub.
type Option func(*Hub)

// WithSource overrides the envelope source used for commands.
func WithSource(source string) Option {
	return func(h *Hub) {
		if source != "" {
			h.source = source
		}
	}
}

// WithSynthesizer enables command-to-alert synthesis.
func WithSynthesizer(s AlertSynthesizer) Option {
	return func(h *Hub) { h.synth = s }
}

func WithClock(clock utils.Clock) Option {
	return func(h *Hub) { h.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = utils.Component(logger, "hub") }
}

// New wires a Hub. tracker and events may be nil for publish-only use.
func New(pub Publisher, tracker *fleet.Tracker, events *EventQueue, opts ...Option) *Hub {
	h := &Hub{
		pub:     pub,
		tracker: tracker,
		events:  events,
		source:  DefaultSource,
		clock:   utils.SystemClock{},
		logger:  utils.Component(nil, "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Source returns the id stamped on engine-originated envelopes.
func (h *Hub) Source() string { return h.source }

// NextSeq returns the sequence number the next envelope will carry.
func (h *Hub) NextSeq() uint64 { return h.seq.Load() }

// PublishTelemetry sends a unit state to its telemetry topic.
func (h *Hub) PublishTelemetry(ctx context.Context, state models.UnitState) error {
	return publishEnvelope(ctx, h, topics.ClassTelemetry, topics.Telemetry(state.ID), state, state.ID)
}

// PublishHeartbeat sends a flat heartbeat. It does not consume a sequence number.
func (h *Hub) PublishHeartbeat(ctx context.Context, hb models.Heartbeat) error {
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}
	return h.publish(ctx, topics.ClassHeartbeat, topics.Heartbeat(hb.UnitID), data)
}

// PublishAlert sends an anomaly report on the shared alerts topic.
func (h *Hub) PublishAlert(ctx context.Context, report models.AnomalyReport) error {
	if err := publishEnvelope(ctx, h, topics.ClassAlert, topics.Alerts, report, report.DetectedBy); err != nil {
		return err
	}
	h.logger.Warn("anomaly alert published",
		slog.String("anomaly_id", report.ID),
		slog.String("severity", string(report.Severity)),
	)
	return nil
}

// PublishEnvironment sends a pipe section reading.
func (h *Hub) PublishEnvironment(ctx context.Context, reading models.EnvironmentReading) error {
	return publishEnvelope(ctx, h, topics.ClassEnvironment, topics.Environment(reading.SectionID), reading, reading.SectionID)
}

// SendCommand addresses one unit.
func (h *Hub) SendCommand(ctx context.Context, unitID string, cmd models.Command) error {
	if err := publishEnvelope(ctx, h, topics.ClassCommand, topics.Commands(unitID), cmd, h.source); err != nil {
		return err
	}
	h.logger.Info("command sent", slog.String("unit_id", unitID), slog.String("command", string(cmd.Kind)))
	return nil
}

// BroadcastCommand addresses every unit.
func (h *Hub) BroadcastCommand(ctx context.Context, cmd models.Command) error {
	if err := publishEnvelope(ctx, h, topics.ClassCommand, topics.CommandsBroadcast, cmd, h.source); err != nil {
		return err
	}
	h.logger.Info("command broadcast", slog.String("command", string(cmd.Kind)))
	return nil
}

// PublishSystemStatus reports the engine's fleet summary.
func (h *Hub) PublishSystemStatus(ctx context.Context, status models.SystemStatus) error {
	return publishEnvelope(ctx, h, topics.ClassUnknown, topics.SystemStatus, status, h.source)
}

func publishEnvelope[T any](ctx context.Context, h *Hub, class topics.Class, topic string, payload T, source string) error {
	seq := h.seq.Add(1) - 1
	env := models.NewEnvelope(payload, source, seq, utils.UnixMillis(h.clock.Now()))
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", class, err)
	}
	return h.publish(ctx, class, topic, data)
}

func (h *Hub) publish(ctx context.Context, class topics.Class, topic string, data []byte) error {
	label := class.String()
	if class == topics.ClassUnknown {
		label = "status"
	}
	err := h.pub.Publish(ctx, topic, data)
	metrics.ObservePublish(label, err)
	if err != nil {
		return utils.NewAppError("publish "+label, utils.KindTransport, err)
	}
	h.logger.Debug("published", slog.String("topic", topic), slog.Int("bytes", len(data)))
	return nil
}

// Dispatch classifies one inbound delivery, applies its side effects and
// emits the matching event. Unknown topics and undecodable commands are
// ignored; other decode failures are returned wrapping ErrMalformedPayload.
func (h *Hub) Dispatch(ctx context.Context, topic string, payload []byte) error {
	class := topics.Classify(topic)
	if class == topics.ClassUnknown {
		h.logger.Debug("ignoring unrecognised topic", slog.String("topic", topic))
		return nil
	}

	start := time.Now()
	err := h.dispatch(ctx, class, topic, payload)
	metrics.ObserveDispatch(class.String(), time.Since(start))
	if err != nil {
		metrics.DecodeError(class.String())
	}
	return err
}

func (h *Hub) dispatch(ctx context.Context, class topics.Class, topic string, payload []byte) error {
	switch class {
	case topics.ClassTelemetry:
		env, err := decode[models.Envelope[models.UnitState]](class, payload)
		if err != nil {
			return err
		}
		if env.Payload.ID == "" {
			return malformed(class, errors.New("unit id is empty"))
		}
		if h.tracker != nil {
			h.tracker.UpdateUnit(env.Payload)
		}
		h.emit(ctx, TelemetryReceived{State: env.Payload, Source: env.Source, Seq: env.Seq})

	case topics.ClassHeartbeat:
		hb, err := decode[models.Heartbeat](class, payload)
		if err != nil {
			return err
		}
		if hb.UnitID == "" {
			return malformed(class, errors.New("unit id is empty"))
		}
		if h.tracker != nil {
			h.tracker.RecordHeartbeat(hb.UnitID)
		}
		h.emit(ctx, HeartbeatReceived{Heartbeat: hb})

	case topics.ClassAlert:
		env, err := decode[models.Envelope[models.AnomalyReport]](class, payload)
		if err != nil {
			return err
		}
		h.emit(ctx, AlertReceived{Report: env.Payload, Source: env.Source, Seq: env.Seq})

	case topics.ClassEnvironment:
		env, err := decode[models.Envelope[models.EnvironmentReading]](class, payload)
		if err != nil {
			return err
		}
		h.emit(ctx, EnvironmentReceived{Reading: env.Payload, Source: env.Source, Seq: env.Seq})

	case topics.ClassResponse:
		resp, err := decode[models.CommandResponse](class, payload)
		if err != nil {
			return err
		}
		h.emit(ctx, ResponseReceived{Response: resp})

	case topics.ClassCommand:
		env, err := decode[models.Envelope[models.Command]](class, payload)
		if err != nil {
			// The command space is shared with publishers that do not speak
			// the envelope format.
			h.logger.Debug("ignoring non-conforming command payload", slog.String("topic", topic), slog.Any("error", err))
			return nil
		}
		h.deriveAlert(ctx, env.Payload, env.Source)
		h.emit(ctx, CommandReceived{Command: env.Payload, Source: env.Source, Target: topics.TargetID(topic)})
	}
	return nil
}

func (h *Hub) deriveAlert(ctx context.Context, cmd models.Command, source string) {
	if h.synth == nil {
		return
	}
	report, ok := h.synth.Synthesize(cmd, source)
	if !ok {
		return
	}
	metrics.AlertSynthesized(string(report.Severity))
	if err := h.PublishAlert(ctx, report); err != nil {
		h.logger.Error("failed to publish derived alert",
			slog.String("command", string(cmd.Kind)),
			slog.String("source", source),
			slog.Any("error", err),
		)
	}
}

func (h *Hub) emit(ctx context.Context, ev Event) {
	if h.events == nil {
		return
	}
	if err := h.events.Push(ctx, ev); err != nil && errors.Is(err, ErrQueueClosed) {
		h.logger.Debug("event queue closed, event discarded", slog.String("kind", string(ev.Kind())))
	}
}

func decode[T any](class topics.Class, payload []byte) (T, error) {
	var out T
	if !utf8.Valid(payload) {
		return out, malformed(class, errors.New("payload is not valid UTF-8"))
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, malformed(class, err)
	}
	return out, nil
}

func malformed(class topics.Class, err error) error {
	return utils.NewAppError("decode "+class.String(), utils.KindDecode, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
}
