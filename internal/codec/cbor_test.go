package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aetherisstack/aetheris-engine/internal/models"
)

func TestUnitStateRoundtrip(t *testing.T) {
	state := models.NewUnitState("RV-001", "Rover Alpha", models.UnitKindRover, 1700000000000)
	state.Position = models.Position{X: 10, Y: 0, Z: -4.5}
	state.CurrentTask = models.Patrolling("ROUTE-A")

	data, err := Marshal(state)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded models.UnitState
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID != state.ID || decoded.Kind != state.Kind || decoded.Position != state.Position {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", decoded, state)
	}
	if decoded.CurrentTask.Kind != models.TaskPatrolling || decoded.CurrentTask.Data == nil || decoded.CurrentTask.Data.RouteID != "ROUTE-A" {
		t.Fatalf("task lost in roundtrip: %+v", decoded.CurrentTask)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestUnmarshalRejectsUnknownEnum(t *testing.T) {
	data, err := Marshal(map[string]any{"id": "X", "unit_kind": "submarine"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded models.UnitState
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatalf("expected unknown unit kind to be rejected")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]any{"unit": "DR-001"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(out, `"DR-001"`) {
		t.Fatalf("unexpected diagnostic output %q", out)
	}
}
