// Package fleet tracks the last known state and liveness of every unit.
package fleet

import (
	"sort"
	"sync"
	"time"

	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// Entry is a read-only view of one liveness record. State is nil when the
// unit has only ever sent heartbeats.
type Entry struct {
	ID       string
	State    *models.UnitState
	LastSeen time.Time
}

// HasState reports whether telemetry has been received for the unit.
func (e Entry) HasState() bool { return e.State != nil }

type record struct {
	state    *models.UnitState
	lastSeen time.Time
}

// Tracker owns the unit-id -> (state, last seen) map. All methods are safe
// for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	units map[string]*record
	clock utils.Clock
}

// NewTracker returns an empty tracker. A nil clock uses the wall clock.
func NewTracker(clock utils.Clock) *Tracker {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Tracker{units: make(map[string]*record), clock: clock}
}

// UpdateUnit stores state under state.ID and refreshes its liveness.
func (t *Tracker) UpdateUnit(state models.UnitState) {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.units[state.ID]
	if !ok {
		rec = &record{}
		t.units[state.ID] = rec
	}
	rec.state = &state
	rec.lastSeen = now
}

// RecordHeartbeat refreshes liveness for id, creating a state-less entry
// for units that have not sent telemetry yet.
func (t *Tracker) RecordHeartbeat(id string) {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.units[id]
	if !ok {
		rec = &record{}
		t.units[id] = rec
	}
	rec.lastSeen = now
}

// TimedOutIDs returns, sorted, the ids whose last liveness evidence is
// strictly older than timeout at now.
func (t *Tracker) TimedOutIDs(now time.Time, timeout time.Duration) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.timedOutLocked(now, timeout)
}

// MarkOffline demotes a unit with known state to offline/critical. It
// reports whether the unit has state; ids without state are left untouched.
func (t *Tracker) MarkOffline(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.markOfflineLocked(id)
	return ok
}

// SweepResult summarises one timeout sweep.
type SweepResult struct {
	TimedOut []string
	// Demoted lists units that transitioned to offline during this sweep.
	Demoted []string
}

// SweepTimedOut scans for timed-out units and marks them offline in one
// critical section.
func (t *Tracker) SweepTimedOut(now time.Time, timeout time.Duration) SweepResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := SweepResult{TimedOut: t.timedOutLocked(now, timeout)}
	for _, id := range res.TimedOut {
		if changed, _ := t.markOfflineLocked(id); changed {
			res.Demoted = append(res.Demoted, id)
		}
	}
	return res
}

// Get returns the last known state for id. Heartbeat-only entries report false.
func (t *Tracker) Get(id string) (models.UnitState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.units[id]
	if !ok || rec.state == nil {
		return models.UnitState{}, false
	}
	return *rec.state, true
}

// All returns every known state sorted by id. Heartbeat-only entries are skipped.
func (t *Tracker) All() []models.UnitState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.UnitState, 0, len(t.units))
	for _, rec := range t.units {
		if rec.state != nil {
			out = append(out, *rec.state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entry returns the liveness record for id, including heartbeat-only units.
func (t *Tracker) Entry(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.units[id]
	if !ok {
		return Entry{}, false
	}
	return snapshot(id, rec), true
}

// Entries returns every liveness record sorted by id.
func (t *Tracker) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.units))
	for id, rec := range t.units {
		out = append(out, snapshot(id, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of tracked ids.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.units)
}

func (t *Tracker) timedOutLocked(now time.Time, timeout time.Duration) []string {
	var ids []string
	for id, rec := range t.units {
		if now.Sub(rec.lastSeen) > timeout {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// markOfflineLocked returns (changed, hasState).
func (t *Tracker) markOfflineLocked(id string) (bool, bool) {
	rec, ok := t.units[id]
	if !ok || rec.state == nil {
		return false, false
	}
	changed := rec.state.Status != models.StatusOffline || rec.state.Health != models.HealthCritical
	updated := *rec.state
	updated.Status = models.StatusOffline
	updated.Health = models.HealthCritical
	rec.state = &updated
	return changed, true
}

func snapshot(id string, rec *record) Entry {
	e := Entry{ID: id, LastSeen: rec.lastSeen}
	if rec.state != nil {
		st := *rec.state
		e.State = &st
	}
	return e
}
