package models

import (
	"encoding/json"
	"fmt"
)

// CommandKind tags the Command variant.
type CommandKind string

const (
	CommandMoveTo        CommandKind = "move_to"
	CommandStop          CommandKind = "stop"
	CommandPerformScan   CommandKind = "perform_scan"
	CommandStartPatrol   CommandKind = "start_patrol"
	CommandReturnToBase  CommandKind = "return_to_base"
	CommandInvestigate   CommandKind = "investigate"
	CommandEmergencyStop CommandKind = "emergency_stop"
	CommandInjectFault   CommandKind = "inject_fault"
	CommandConfigure     CommandKind = "configure"
)

// Command is an instruction addressed to one unit or the whole fleet.
// Build commands with the constructors below; they are treated as
// immutable once built.
type Command struct {
	Kind   CommandKind    `json:"command"`
	Params *CommandParams `json:"params,omitempty"`
}

// CommandParams carries the variant payload; only the fields for Kind are set.
type CommandParams struct {
	Target    *Position   `json:"target,omitempty"`
	Speed     *float64    `json:"speed,omitempty"`
	ScanType  ScanKind    `json:"scan_type,omitempty"`
	RouteID   string      `json:"route_id,omitempty"`
	AnomalyID string      `json:"anomaly_id,omitempty"`
	FaultType FaultKind   `json:"fault_type,omitempty"`
	Config    *UnitConfig `json:"config,omitempty"`
}

// UnitConfig holds optional tuning parameters pushed with a configure command.
type UnitConfig struct {
	MaxSpeed            *float64 `json:"max_speed,omitempty"`
	ScanInterval        *uint32  `json:"scan_interval,omitempty"`
	HeartbeatInterval   *uint32  `json:"heartbeat_interval,omitempty"`
	LowBatteryThreshold *float64 `json:"low_battery_threshold,omitempty"`
}

// MoveTo sends a unit to target; speed is optional.
func MoveTo(target Position, speed *float64) Command {
	return Command{Kind: CommandMoveTo, Params: &CommandParams{Target: &target, Speed: speed}}
}

func Stop() Command { return Command{Kind: CommandStop} }

func PerformScan(scan ScanKind) Command {
	return Command{Kind: CommandPerformScan, Params: &CommandParams{ScanType: scan}}
}

func StartPatrol(routeID string) Command {
	return Command{Kind: CommandStartPatrol, Params: &CommandParams{RouteID: routeID}}
}

func ReturnToBase() Command { return Command{Kind: CommandReturnToBase} }

func Investigate(anomalyID string) Command {
	return Command{Kind: CommandInvestigate, Params: &CommandParams{AnomalyID: anomalyID}}
}

func EmergencyStop() Command { return Command{Kind: CommandEmergencyStop} }

func InjectFault(fault FaultKind) Command {
	return Command{Kind: CommandInjectFault, Params: &CommandParams{FaultType: fault}}
}

func Configure(cfg UnitConfig) Command {
	return Command{Kind: CommandConfigure, Params: &CommandParams{Config: &cfg}}
}

// Validate checks the variant tag and its required parameters.
func (c Command) Validate() error {
	p := c.Params
	switch c.Kind {
	case CommandStop, CommandReturnToBase, CommandEmergencyStop:
		return nil
	case CommandMoveTo:
		if p == nil || p.Target == nil {
			return fmt.Errorf("command %s: target is required", c.Kind)
		}
	case CommandPerformScan:
		if p == nil || p.ScanType == "" {
			return fmt.Errorf("command %s: scan_type is required", c.Kind)
		}
	case CommandStartPatrol:
		if p == nil || p.RouteID == "" {
			return fmt.Errorf("command %s: route_id is required", c.Kind)
		}
	case CommandInvestigate:
		if p == nil || p.AnomalyID == "" {
			return fmt.Errorf("command %s: anomaly_id is required", c.Kind)
		}
	case CommandInjectFault:
		if p == nil || p.FaultType == "" {
			return fmt.Errorf("command %s: fault_type is required", c.Kind)
		}
	case CommandConfigure:
		if p == nil || p.Config == nil {
			return fmt.Errorf("command %s: config is required", c.Kind)
		}
	default:
		return fmt.Errorf("unknown command %q", c.Kind)
	}
	return nil
}

// UnmarshalJSON decodes the adjacently tagged form and validates it.
func (c *Command) UnmarshalJSON(data []byte) error {
	type alias Command
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	cmd := Command(decoded)
	if err := cmd.Validate(); err != nil {
		return err
	}
	switch cmd.Kind {
	case CommandStop, CommandReturnToBase, CommandEmergencyStop:
		cmd.Params = nil
	}
	*c = cmd
	return nil
}

// CommandResponse is a unit's acknowledgement of a command.
type CommandResponse struct {
	CommandID string  `json:"command_id"`
	UnitID    string  `json:"unit_id"`
	Success   bool    `json:"success"`
	Error     *string `json:"error"`
	Timestamp uint64  `json:"timestamp"`
}
