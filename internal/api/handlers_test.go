package api

import (
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aetherisstack/aetheris-engine/internal/fleet"
	"github.com/aetherisstack/aetheris-engine/internal/models"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestFromProtoCommandRequest(t *testing.T) {
	req := mustStruct(t, map[string]any{
		"unit_id": "RV-001",
		"command": map[string]any{
			"command": "move_to",
			"params":  map[string]any{"target": map[string]any{"x": 1.0, "y": 2.0, "z": 3.0}, "speed": 0.5},
		},
	})

	got, err := FromProtoCommandRequest(req, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.UnitID != "RV-001" || got.Command.Kind != models.CommandMoveTo {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Command.Params.Target.Z != 3 || *got.Command.Params.Speed != 0.5 {
		t.Fatalf("unexpected params %+v", got.Command.Params)
	}
}

func TestFromProtoCommandRequestErrors(t *testing.T) {
	cases := map[string]struct {
		req         *structpb.Struct
		requireUnit bool
	}{
		"nil":             {req: nil},
		"missing unit":    {req: mustStruct(t, map[string]any{"command": map[string]any{"command": "stop"}}), requireUnit: true},
		"missing command": {req: mustStruct(t, map[string]any{"unit_id": "RV-001"})},
		"unknown command": {req: mustStruct(t, map[string]any{"command": map[string]any{"command": "self_destruct"}})},
		"missing params":  {req: mustStruct(t, map[string]any{"command": map[string]any{"command": "perform_scan"}})},
	}
	for name, tc := range cases {
		if _, err := FromProtoCommandRequest(tc.req, tc.requireUnit); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	got, err := FromProtoCommandRequest(mustStruct(t, map[string]any{"command": map[string]any{"command": "emergency_stop"}}), false)
	if err != nil || got.Command.Kind != models.CommandEmergencyStop {
		t.Fatalf("broadcast without unit id should decode, got %+v %v", got, err)
	}
}

func TestToProtoUnitList(t *testing.T) {
	state := models.NewUnitState("DR-001", "Drone Hawk", models.UnitKindDrone, 7)
	entries := []fleet.Entry{
		{ID: "CR-009", LastSeen: time.UnixMilli(5)},
		{ID: "DR-001", State: &state, LastSeen: time.UnixMilli(7)},
	}

	resp, err := ToProtoUnitList(entries)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	units := resp.GetFields()["units"].GetListValue().GetValues()
	if len(units) != 1 {
		t.Fatalf("expected one unit, got %d", len(units))
	}
	unit := units[0].GetStructValue().GetFields()
	if unit["id"].GetStringValue() != "DR-001" || unit["unit_kind"].GetStringValue() != "drone" {
		t.Fatalf("unit should use broker json shape, got %v", unit)
	}
	hbOnly := resp.GetFields()["heartbeat_only"].GetListValue().GetValues()
	if len(hbOnly) != 1 || hbOnly[0].GetStringValue() != "CR-009" {
		t.Fatalf("unexpected heartbeat-only list %v", hbOnly)
	}
}

func TestToProtoUnitHeartbeatOnly(t *testing.T) {
	resp, err := ToProtoUnit(fleet.Entry{ID: "CR-009", LastSeen: time.UnixMilli(1234)})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	fields := resp.GetFields()
	if _, isNull := fields["unit"].GetKind().(*structpb.Value_NullValue); !isNull {
		t.Fatalf("expected null unit, got %v", fields["unit"])
	}
	if fields["last_seen"].GetNumberValue() != 1234 {
		t.Fatalf("unexpected last_seen %v", fields["last_seen"])
	}
}
