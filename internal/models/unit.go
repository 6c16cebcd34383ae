package models

import (
	"encoding/json"
	"fmt"
)

// TaskKind tags the CurrentTask variant.
type TaskKind string

const (
	TaskNone            TaskKind = "none"
	TaskPatrolling      TaskKind = "patrolling"
	TaskMovingTo        TaskKind = "moving_to"
	TaskScanning        TaskKind = "scanning"
	TaskReturningToBase TaskKind = "returning_to_base"
	TaskInvestigating   TaskKind = "investigating"
)

// CurrentTask is the closed set of activities a unit can report. Only the
// field matching Kind is populated in Data; unit variants carry no Data.
type CurrentTask struct {
	Kind TaskKind  `json:"type"`
	Data *TaskData `json:"data,omitempty"`
}

// TaskData holds the variant payload of a CurrentTask.
type TaskData struct {
	RouteID   string    `json:"route_id,omitempty"`
	Target    *Position `json:"target,omitempty"`
	ScanType  ScanKind  `json:"scan_type,omitempty"`
	AnomalyID string    `json:"anomaly_id,omitempty"`
}

func NoTask() CurrentTask { return CurrentTask{Kind: TaskNone} }

func Patrolling(routeID string) CurrentTask {
	return CurrentTask{Kind: TaskPatrolling, Data: &TaskData{RouteID: routeID}}
}

func MovingTo(target Position) CurrentTask {
	return CurrentTask{Kind: TaskMovingTo, Data: &TaskData{Target: &target}}
}

func Scanning(scan ScanKind) CurrentTask {
	return CurrentTask{Kind: TaskScanning, Data: &TaskData{ScanType: scan}}
}

func ReturningToBase() CurrentTask { return CurrentTask{Kind: TaskReturningToBase} }

func Investigating(anomalyID string) CurrentTask {
	return CurrentTask{Kind: TaskInvestigating, Data: &TaskData{AnomalyID: anomalyID}}
}

// Validate checks that the variant tag is known and its payload is present.
func (t CurrentTask) Validate() error {
	switch t.Kind {
	case TaskNone, TaskReturningToBase:
		return nil
	case TaskPatrolling:
		if t.Data == nil || t.Data.RouteID == "" {
			return fmt.Errorf("task %s: route_id is required", t.Kind)
		}
	case TaskMovingTo:
		if t.Data == nil || t.Data.Target == nil {
			return fmt.Errorf("task %s: target is required", t.Kind)
		}
	case TaskScanning:
		if t.Data == nil || t.Data.ScanType == "" {
			return fmt.Errorf("task %s: scan_type is required", t.Kind)
		}
	case TaskInvestigating:
		if t.Data == nil || t.Data.AnomalyID == "" {
			return fmt.Errorf("task %s: anomaly_id is required", t.Kind)
		}
	default:
		return fmt.Errorf("unknown task type %q", t.Kind)
	}
	return nil
}

// UnmarshalJSON decodes the adjacently tagged form and validates it.
func (t *CurrentTask) UnmarshalJSON(data []byte) error {
	type alias CurrentTask
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	task := CurrentTask(decoded)
	if err := task.Validate(); err != nil {
		return err
	}
	if task.Kind == TaskNone || task.Kind == TaskReturningToBase {
		task.Data = nil
	}
	*t = task
	return nil
}

// UnitState is the full telemetry snapshot of one unit.
type UnitState struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Kind        UnitKind     `json:"unit_kind"`
	Position    Position     `json:"position"`
	Velocity    Velocity     `json:"velocity"`
	Battery     float64      `json:"battery"`
	Signal      float64      `json:"signal"`
	Health      HealthStatus `json:"health"`
	Status      UnitStatus   `json:"status"`
	CurrentTask CurrentTask  `json:"current_task"`
	Timestamp   uint64       `json:"timestamp"`
}

// NewUnitState returns an idle, fully charged unit at the origin.
func NewUnitState(id, name string, kind UnitKind, ts uint64) UnitState {
	return UnitState{
		ID:          id,
		Name:        name,
		Kind:        kind,
		Position:    Origin(),
		Battery:     100,
		Signal:      100,
		Health:      HealthOptimal,
		Status:      StatusIdle,
		CurrentTask: NoTask(),
		Timestamp:   ts,
	}
}

// Heartbeat derives the liveness beacon for this unit.
func (s UnitState) Heartbeat(uptime, ts uint64) Heartbeat {
	return NewHeartbeat(s.ID, s.Kind, s.Status, s.Battery, s.Signal, uptime, ts)
}
