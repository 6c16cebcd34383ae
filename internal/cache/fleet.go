package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/aetherisstack/aetheris-engine/internal/codec"
	"github.com/aetherisstack/aetheris-engine/internal/models"
)

const (
	snapshotKey    = "aetheris:fleet:snapshot"
	alertKeyPrefix = "aetheris:alert:"
)

// FleetSnapshot is the CBOR document written after every liveness sweep.
type FleetSnapshot struct {
	EngineID      string             `cbor:"engine_id"`
	TakenAt       uint64             `cbor:"taken_at"`
	Units         []models.UnitState `cbor:"units"`
	HeartbeatOnly []string           `cbor:"heartbeat_only,omitempty"`
}

// FleetStore layers fleet semantics over a Provider.
type FleetStore struct {
	provider    Provider
	snapshotTTL time.Duration
	dedupTTL    time.Duration
}

// NewFleetStore wraps provider. Zero TTLs store without expiry.
func NewFleetStore(provider Provider, snapshotTTL, dedupTTL time.Duration) *FleetStore {
	return &FleetStore{provider: provider, snapshotTTL: snapshotTTL, dedupTTL: dedupTTL}
}

// SaveSnapshot replaces the stored fleet snapshot.
func (s *FleetStore) SaveSnapshot(ctx context.Context, snap FleetSnapshot) error {
	data, err := codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode fleet snapshot: %w", err)
	}
	return s.provider.Set(ctx, snapshotKey, data, s.snapshotTTL)
}

// LoadSnapshot returns ErrCacheMiss when no snapshot has been written.
func (s *FleetStore) LoadSnapshot(ctx context.Context) (FleetSnapshot, error) {
	var snap FleetSnapshot
	data, err := s.provider.Get(ctx, snapshotKey)
	if err != nil {
		return snap, err
	}
	if err := codec.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode fleet snapshot: %w", err)
	}
	return snap, nil
}

// ClaimAlert reports whether anomalyID is seen for the first time within the
// de-duplication window.
func (s *FleetStore) ClaimAlert(ctx context.Context, anomalyID string) (bool, error) {
	return s.provider.SetNX(ctx, alertKeyPrefix+anomalyID, []byte{1}, s.dedupTTL)
}

// Close releases the underlying provider.
func (s *FleetStore) Close() error {
	return s.provider.Close()
}
