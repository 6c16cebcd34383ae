package models

// Envelope wraps a payload with its origin and hub-assigned sequence number.
type Envelope[T any] struct {
	Payload   T      `json:"payload"`
	Source    string `json:"source"`
	Timestamp uint64 `json:"timestamp"`
	Seq       uint64 `json:"seq"`
}

// NewEnvelope builds an Envelope stamped at ts.
func NewEnvelope[T any](payload T, source string, seq, ts uint64) Envelope[T] {
	return Envelope[T]{Payload: payload, Source: source, Timestamp: ts, Seq: seq}
}

// Heartbeat is the flat liveness beacon a unit publishes between telemetry frames.
type Heartbeat struct {
	UnitID    string     `json:"unit_id"`
	Kind      UnitKind   `json:"unit_kind"`
	Status    UnitStatus `json:"status"`
	Battery   float64    `json:"battery"`
	Signal    float64    `json:"signal"`
	Uptime    uint64     `json:"uptime"`
	Timestamp uint64     `json:"timestamp"`
}

func NewHeartbeat(unitID string, kind UnitKind, status UnitStatus, battery, signal float64, uptime, ts uint64) Heartbeat {
	return Heartbeat{
		UnitID:    unitID,
		Kind:      kind,
		Status:    status,
		Battery:   battery,
		Signal:    signal,
		Uptime:    uptime,
		Timestamp: ts,
	}
}
