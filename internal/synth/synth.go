// Package synth turns chaos and inspection commands into synthetic anomaly
// reports so downstream alerting can be exercised without real sensors.
package synth

import (
	"fmt"
	"math/rand"

	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// Rand is the jitter source. Values only affect cosmetic fields.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.Intn(n) }

// Synthesizer maps (command, source) to an optional AnomalyReport.
type Synthesizer struct {
	ids   models.IDSource
	clock utils.Clock
	rnd   Rand
}

// Option customises a Synthesizer.
type Option func(*Synthesizer)

func WithIDSource(ids models.IDSource) Option { return func(s *Synthesizer) { s.ids = ids } }
func WithClock(clock utils.Clock) Option      { return func(s *Synthesizer) { s.clock = clock } }
func WithRand(rnd Rand) Option                { return func(s *Synthesizer) { s.rnd = rnd } }

// New returns a Synthesizer using the process id counter, wall clock and
// global PRNG unless overridden.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		ids:   models.DefaultIDSource(),
		clock: utils.SystemClock{},
		rnd:   globalRand{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type rule struct {
	kind        models.AnomalyKind
	severity    models.Severity
	section     string
	confidence  float64
	description string
}

// Synthesize returns the derived report and true, or false for commands
// that have no alert mapping.
func (s *Synthesizer) Synthesize(cmd models.Command, source string) (models.AnomalyReport, bool) {
	if cmd.Validate() != nil {
		return models.AnomalyReport{}, false
	}
	r, ok := s.match(cmd, source)
	if !ok {
		return models.AnomalyReport{}, false
	}
	ts := utils.UnixMillis(s.clock.Now())
	return models.NewAnomalyReport(s.ids, r.kind, r.severity, s.jitter(), r.section, source, r.confidence, r.description, ts), true
}

func (s *Synthesizer) match(cmd models.Command, source string) (rule, bool) {
	switch cmd.Kind {
	case models.CommandEmergencyStop:
		return rule{
			kind:        models.AnomalyLeak,
			severity:    models.SeverityCritical,
			section:     fmt.Sprintf("PIPE-H%d", s.rnd.IntN(10)),
			confidence:  0.96,
			description: "EMERGENCY: Hydrogen leak detected! All units halted.",
		}, true
	case models.CommandInvestigate:
		return rule{
			kind:        models.AnomalyPressureDrop,
			severity:    models.SeverityHigh,
			section:     fmt.Sprintf("PIPE-A%d", s.rnd.IntN(10)),
			confidence:  0.89,
			description: fmt.Sprintf("Pressure anomaly %s under investigation", cmd.Params.AnomalyID),
		}, true
	case models.CommandPerformScan:
		return s.scanRule(cmd.Params.ScanType), true
	case models.CommandInjectFault:
		return faultRule(cmd.Params.FaultType, source)
	default:
		return rule{}, false
	}
}

func (s *Synthesizer) scanRule(scan models.ScanKind) rule {
	r := rule{
		section:    fmt.Sprintf("PIPE-S%d", s.rnd.IntN(10)),
		confidence: 0.85 + s.rnd.Float64()*0.1,
	}
	switch scan {
	case models.ScanThermal:
		r.kind, r.severity = models.AnomalyTemperature, models.SeverityMedium
		r.description = "Temperature spike detected during thermal scan"
	case models.ScanUltrasonic:
		r.kind, r.severity = models.AnomalyWallThinning, models.SeverityHigh
		r.description = "Wall thickness below threshold detected"
	case models.ScanLeakDetection:
		r.kind, r.severity = models.AnomalyLeak, models.SeverityHigh
		r.description = "Potential leak signature detected"
	default:
		r.kind, r.severity = models.AnomalyUnknown, models.SeverityInfo
		r.description = "Scan completed - no anomalies"
	}
	return r
}

func faultRule(fault models.FaultKind, source string) (rule, bool) {
	r := rule{kind: models.AnomalyUnknown, section: "SYSTEM", confidence: 0.99}
	switch fault {
	case models.FaultLowBattery:
		r.severity = models.SeverityMedium
		r.description = fmt.Sprintf("Robot %s reporting critical battery level", source)
	case models.FaultSensorFailure:
		r.severity = models.SeverityHigh
		r.description = fmt.Sprintf("Sensor malfunction detected on %s", source)
	case models.FaultCommDropout:
		r.severity = models.SeverityCritical
		r.description = fmt.Sprintf("Communication lost with %s", source)
	case models.FaultMotorFailure:
		r.kind, r.severity = models.AnomalyStructuralDamage, models.SeverityHigh
		r.description = fmt.Sprintf("Motor failure reported by %s", source)
	case models.FaultGPSDrift:
		r.severity = models.SeverityLow
		r.description = fmt.Sprintf("GPS accuracy degraded on %s", source)
	default:
		return rule{}, false
	}
	return r, true
}

// jitter places the report somewhere on the 200m x 200m plant floor.
func (s *Synthesizer) jitter() models.Position {
	return models.Position{
		X: (s.rnd.Float64() - 0.5) * 200,
		Z: (s.rnd.Float64() - 0.5) * 200,
	}
}
