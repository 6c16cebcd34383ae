package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aetherisstack/aetheris-engine/internal/fleet"
	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// CommandRequest is the decoded body of SendCommand and BroadcastCommand.
type CommandRequest struct {
	UnitID  string
	Command models.Command
}

// FromProtoCommandRequest maps {"unit_id": ..., "command": {...}} into a
// validated command. requireUnit is false for broadcasts.
func FromProtoCommandRequest(req *structpb.Struct, requireUnit bool) (CommandRequest, error) {
	if req == nil {
		return CommandRequest{}, errors.New("request is nil")
	}
	fields := req.GetFields()

	var out CommandRequest
	if v, ok := fields["unit_id"]; ok {
		out.UnitID = v.GetStringValue()
	}
	if requireUnit && out.UnitID == "" {
		return CommandRequest{}, errors.New("unit_id is required")
	}

	raw, ok := fields["command"]
	if !ok || raw.GetStructValue() == nil {
		return CommandRequest{}, errors.New("command object is required")
	}
	data, err := raw.MarshalJSON()
	if err != nil {
		return CommandRequest{}, fmt.Errorf("encode command: %w", err)
	}
	if err := json.Unmarshal(data, &out.Command); err != nil {
		return CommandRequest{}, fmt.Errorf("invalid command: %w", err)
	}
	return out, nil
}

// ToProtoUnitList renders the tracker view returned by ListUnits.
func ToProtoUnitList(entries []fleet.Entry) (*structpb.Struct, error) {
	units := make([]any, 0, len(entries))
	heartbeatOnly := make([]any, 0)
	for _, e := range entries {
		if !e.HasState() {
			heartbeatOnly = append(heartbeatOnly, e.ID)
			continue
		}
		v, err := toValue(e.State)
		if err != nil {
			return nil, err
		}
		units = append(units, v)
	}
	return structpb.NewStruct(map[string]any{
		"units":          units,
		"heartbeat_only": heartbeatOnly,
	})
}

// ToProtoUnit renders one tracker entry. unit is null for heartbeat-only ids.
func ToProtoUnit(e fleet.Entry) (*structpb.Struct, error) {
	var unit any
	if e.HasState() {
		v, err := toValue(e.State)
		if err != nil {
			return nil, err
		}
		unit = v
	}
	return structpb.NewStruct(map[string]any{
		"id":        e.ID,
		"unit":      unit,
		"last_seen": float64(utils.UnixMillis(e.LastSeen)),
	})
}

// toValue round-trips v through its JSON shape so the RPC payload matches
// what units publish on the broker.
func toValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return out, nil
}
