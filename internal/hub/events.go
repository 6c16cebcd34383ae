package hub

import "github.com/aetherisstack/aetheris-engine/internal/models"

// EventKind names an Event variant; it doubles as a metrics label.
type EventKind string

const (
	KindTelemetry   EventKind = "telemetry"
	KindHeartbeat   EventKind = "heartbeat"
	KindAlert       EventKind = "alert"
	KindEnvironment EventKind = "environment"
	KindResponse    EventKind = "response"
	KindCommand     EventKind = "command"
)

// Event is the closed set of typed notifications the dispatcher emits.
type Event interface {
	Kind() EventKind
	event()
}

// TelemetryReceived carries a decoded unit state.
type TelemetryReceived struct {
	State  models.UnitState
	Source string
	Seq    uint64
}

// HeartbeatReceived carries a liveness beacon.
type HeartbeatReceived struct {
	Heartbeat models.Heartbeat
}

// AlertReceived carries an anomaly report seen on the alerts topic.
type AlertReceived struct {
	Report models.AnomalyReport
	Source string
	Seq    uint64
}

// EnvironmentReceived carries one pipe section reading.
type EnvironmentReceived struct {
	Reading models.EnvironmentReading
	Source  string
	Seq     uint64
}

// ResponseReceived carries a unit's command acknowledgement.
type ResponseReceived struct {
	Response models.CommandResponse
}

// CommandReceived carries a command observed on the command topic space.
// Target is the trailing topic segment: a unit id or "broadcast".
type CommandReceived struct {
	Command models.Command
	Source  string
	Target  string
}

func (TelemetryReceived) Kind() EventKind   { return KindTelemetry }
func (HeartbeatReceived) Kind() EventKind   { return KindHeartbeat }
func (AlertReceived) Kind() EventKind       { return KindAlert }
func (EnvironmentReceived) Kind() EventKind { return KindEnvironment }
func (ResponseReceived) Kind() EventKind    { return KindResponse }
func (CommandReceived) Kind() EventKind     { return KindCommand }

func (TelemetryReceived) event()   {}
func (HeartbeatReceived) event()   {}
func (AlertReceived) event()       {}
func (EnvironmentReceived) event() {}
func (ResponseReceived) event()    {}
func (CommandReceived) event()     {}
