package fleet

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/aetherisstack/aetheris-engine/internal/models"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func rover(id string) models.UnitState {
	state := models.NewUnitState(id, "Rover "+id, models.UnitKindRover, 1)
	state.Status = models.StatusActive
	state.CurrentTask = models.Patrolling("ROUTE-A1")
	return state
}

func TestUpdateUnitStoresStateAndLiveness(t *testing.T) {
	clock := newClock()
	tracker := NewTracker(clock)
	state := rover("RV-001")
	tracker.UpdateUnit(state)

	got, ok := tracker.Get("RV-001")
	if !ok {
		t.Fatalf("expected unit to be tracked")
	}
	if !reflect.DeepEqual(got, state) {
		t.Fatalf("expected %+v, got %+v", state, got)
	}

	clock.Advance(15 * time.Second)
	if ids := tracker.TimedOutIDs(clock.Now(), 15*time.Second); len(ids) != 0 {
		t.Fatalf("unit at exactly the timeout must not be reported, got %v", ids)
	}
}

func TestTimedOutBoundary(t *testing.T) {
	clock := newClock()
	tracker := NewTracker(clock)
	seen := clock.Now()
	tracker.UpdateUnit(rover("RV-001"))

	timeout := 15 * time.Second
	eps := time.Millisecond
	if ids := tracker.TimedOutIDs(seen.Add(timeout-eps), timeout); len(ids) != 0 {
		t.Fatalf("expected no timeouts before the window closes, got %v", ids)
	}
	ids := tracker.TimedOutIDs(seen.Add(timeout+eps), timeout)
	if len(ids) != 1 || ids[0] != "RV-001" {
		t.Fatalf("expected RV-001 timed out, got %v", ids)
	}
	if got, _ := tracker.Get("RV-001"); got.Status != models.StatusActive {
		t.Fatalf("TimedOutIDs must not mutate state")
	}
}

func TestHeartbeatRefreshesLiveness(t *testing.T) {
	clock := newClock()
	tracker := NewTracker(clock)
	tracker.UpdateUnit(rover("RV-001"))

	clock.Advance(10 * time.Second)
	tracker.RecordHeartbeat("RV-001")
	clock.Advance(10 * time.Second)

	if ids := tracker.TimedOutIDs(clock.Now(), 15*time.Second); len(ids) != 0 {
		t.Fatalf("heartbeat should have refreshed liveness, got %v", ids)
	}
}

func TestHeartbeatOnlyEntry(t *testing.T) {
	tracker := NewTracker(newClock())
	tracker.RecordHeartbeat("DR-009")

	if _, ok := tracker.Get("DR-009"); ok {
		t.Fatalf("heartbeat-only entry must not expose a state")
	}
	entry, ok := tracker.Entry("DR-009")
	if !ok || entry.HasState() {
		t.Fatalf("expected liveness-only entry, got %+v (%v)", entry, ok)
	}
	if len(tracker.All()) != 0 || len(tracker.Entries()) != 1 {
		t.Fatalf("unexpected accessor sizes")
	}
}

func TestMarkOffline(t *testing.T) {
	tracker := NewTracker(newClock())
	tracker.UpdateUnit(rover("RV-001"))

	if !tracker.MarkOffline("RV-001") {
		t.Fatalf("expected unit with state to be marked")
	}
	got, _ := tracker.Get("RV-001")
	if got.Status != models.StatusOffline || got.Health != models.HealthCritical {
		t.Fatalf("expected offline/critical, got %s/%s", got.Status, got.Health)
	}

	if tracker.MarkOffline("RV-404") {
		t.Fatalf("unknown id must be a no-op")
	}
	if _, ok := tracker.Entry("RV-404"); ok {
		t.Fatalf("MarkOffline must not create entries")
	}

	tracker.RecordHeartbeat("DR-009")
	if tracker.MarkOffline("DR-009") {
		t.Fatalf("heartbeat-only entry must be left untouched")
	}
}

func TestSweepTimedOutDemotesOnce(t *testing.T) {
	clock := newClock()
	tracker := NewTracker(clock)
	tracker.UpdateUnit(rover("RV-001"))
	tracker.RecordHeartbeat("DR-009")
	clock.Advance(20 * time.Second)
	tracker.UpdateUnit(rover("RV-002"))

	res := tracker.SweepTimedOut(clock.Now(), 15*time.Second)
	if !reflect.DeepEqual(res.TimedOut, []string{"DR-009", "RV-001"}) {
		t.Fatalf("unexpected timed out ids %v", res.TimedOut)
	}
	if !reflect.DeepEqual(res.Demoted, []string{"RV-001"}) {
		t.Fatalf("unexpected demoted ids %v", res.Demoted)
	}

	again := tracker.SweepTimedOut(clock.Now(), 15*time.Second)
	if len(again.Demoted) != 0 {
		t.Fatalf("already offline units must not be demoted twice: %v", again.Demoted)
	}
	if got, _ := tracker.Get("RV-002"); got.Status != models.StatusActive {
		t.Fatalf("fresh unit must stay active")
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tracker := NewTracker(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.UpdateUnit(rover("RV-001"))
				tracker.RecordHeartbeat("DR-001")
				tracker.SweepTimedOut(time.Now(), time.Hour)
				_ = tracker.All()
			}
		}(i)
	}
	wg.Wait()
	if tracker.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", tracker.Len())
	}
}

func TestMonitorSweepNotifiesObserver(t *testing.T) {
	clock := newClock()
	tracker := NewTracker(clock)
	tracker.UpdateUnit(rover("RV-001"))
	clock.Advance(time.Minute)

	var observed []SweepResult
	monitor := NewMonitor(tracker, 15*time.Second, time.Hour, nil, WithObserver(func(r SweepResult) {
		observed = append(observed, r)
	}))
	monitor.Sweep()

	if len(observed) != 1 || len(observed[0].Demoted) != 1 {
		t.Fatalf("expected one sweep demoting RV-001, got %+v", observed)
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	monitor := NewMonitor(NewTracker(nil), time.Second, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("monitor did not stop after cancel")
	}
}
