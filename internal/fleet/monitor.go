package fleet

import (
	"context"
	"log/slog"
	"time"

	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

const (
	DefaultHeartbeatTimeout = 15 * time.Second
	DefaultSweepInterval    = 5 * time.Second
)

// SweepObserver is notified after every sweep.
type SweepObserver func(SweepResult)

// Monitor periodically demotes units that stopped reporting.
type Monitor struct {
	tracker  *Tracker
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
	observe  SweepObserver
}

// MonitorOption customises a Monitor.
type MonitorOption func(*Monitor)

// WithObserver registers a callback invoked after each sweep.
func WithObserver(fn SweepObserver) MonitorOption {
	return func(m *Monitor) { m.observe = fn }
}

// NewMonitor builds a Monitor. Non-positive durations fall back to defaults.
func NewMonitor(tracker *Tracker, timeout, interval time.Duration, logger *slog.Logger, opts ...MonitorOption) *Monitor {
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	m := &Monitor{
		tracker:  tracker,
		timeout:  timeout,
		interval: interval,
		logger:   utils.Component(logger, "fleet-monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run sweeps every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one timeout pass against the tracker's clock.
func (m *Monitor) Sweep() SweepResult {
	res := m.tracker.SweepTimedOut(m.tracker.clock.Now(), m.timeout)
	for _, id := range res.Demoted {
		m.logger.Warn("unit timed out, marked offline", slog.String("unit_id", id), slog.Duration("timeout", m.timeout))
	}
	if n := len(res.TimedOut) - len(res.Demoted); n > 0 {
		m.logger.Debug("units still silent", slog.Int("count", n))
	}
	if m.observe != nil {
		m.observe(res)
	}
	return res
}
