package models

// EngineState is the coarse lifecycle state an engine advertises.
type EngineState string

const (
	EngineOnline  EngineState = "online"
	EngineOffline EngineState = "offline"
)

// SystemStatus is the fleet summary an engine publishes after each sweep.
// The offline form doubles as the broker last-will message.
type SystemStatus struct {
	EngineID      string      `json:"engine_id"`
	State         EngineState `json:"state"`
	UnitsOnline   int         `json:"units_online"`
	UnitsOffline  int         `json:"units_offline"`
	HeartbeatOnly int         `json:"heartbeat_only"`
	Timestamp     uint64      `json:"timestamp"`
}
