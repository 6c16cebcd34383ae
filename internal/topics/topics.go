// Package topics defines the broker topic layout shared by the hub and the fleet.
package topics

import "strings"

// Prefix roots every topic.
const Prefix = "aetheris"

const (
	TelemetryAll      = Prefix + "/telemetry/+"
	HeartbeatAll      = Prefix + "/heartbeat/+"
	Alerts            = Prefix + "/alerts"
	EnvironmentAll    = Prefix + "/environment/+"
	CommandsAll       = Prefix + "/commands/#"
	CommandsBroadcast = Prefix + "/commands/broadcast"
	ResponsesAll      = Prefix + "/responses/+"
	SystemStatus      = Prefix + "/system/status"
)

const (
	telemetryPrefix   = Prefix + "/telemetry/"
	heartbeatPrefix   = Prefix + "/heartbeat/"
	environmentPrefix = Prefix + "/environment/"
	responsesPrefix   = Prefix + "/responses/"
	commandsPrefix    = Prefix + "/commands/"
)

func Telemetry(unitID string) string      { return telemetryPrefix + unitID }
func Heartbeat(unitID string) string      { return heartbeatPrefix + unitID }
func Environment(sectionID string) string { return environmentPrefix + sectionID }
func Commands(unitID string) string       { return commandsPrefix + unitID }
func Responses(unitID string) string      { return responsesPrefix + unitID }

// Subscriptions lists the wildcard filters an engine subscribes to.
func Subscriptions() []string {
	return []string{TelemetryAll, HeartbeatAll, Alerts, EnvironmentAll, CommandsAll, ResponsesAll}
}

// Class is the inbound message category derived from a topic.
type Class int

const (
	ClassUnknown Class = iota
	ClassTelemetry
	ClassHeartbeat
	ClassAlert
	ClassEnvironment
	ClassResponse
	ClassCommand
)

func (c Class) String() string {
	switch c {
	case ClassTelemetry:
		return "telemetry"
	case ClassHeartbeat:
		return "heartbeat"
	case ClassAlert:
		return "alert"
	case ClassEnvironment:
		return "environment"
	case ClassResponse:
		return "response"
	case ClassCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Classify maps a concrete topic to its class. First match wins in the order
// telemetry, heartbeat, alerts (exact), environment, responses, commands.
func Classify(topic string) Class {
	switch {
	case strings.HasPrefix(topic, telemetryPrefix):
		return ClassTelemetry
	case strings.HasPrefix(topic, heartbeatPrefix):
		return ClassHeartbeat
	case topic == Alerts:
		return ClassAlert
	case strings.HasPrefix(topic, environmentPrefix):
		return ClassEnvironment
	case strings.HasPrefix(topic, responsesPrefix):
		return ClassResponse
	case strings.HasPrefix(topic, commandsPrefix):
		return ClassCommand
	default:
		return ClassUnknown
	}
}

// TargetID returns the trailing id segment of a per-unit or per-section topic.
func TargetID(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
