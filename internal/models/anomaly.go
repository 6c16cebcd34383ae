package models

import (
	"fmt"
	"sync/atomic"
)

// AnomalyKind classifies a detected defect.
type AnomalyKind string

const (
	AnomalyLeak             AnomalyKind = "leak"
	AnomalyCorrosion        AnomalyKind = "corrosion"
	AnomalyCrack            AnomalyKind = "crack"
	AnomalyPressureDrop     AnomalyKind = "pressure_drop"
	AnomalyTemperature      AnomalyKind = "temperature_anomaly"
	AnomalyWallThinning     AnomalyKind = "wall_thinning"
	AnomalyStructuralDamage AnomalyKind = "structural_damage"
	AnomalyUnknown          AnomalyKind = "unknown"
)

// UnmarshalText rejects unknown anomaly kinds.
func (k *AnomalyKind) UnmarshalText(text []byte) error {
	return parseEnum(k, "anomaly kind", string(text),
		AnomalyLeak, AnomalyCorrosion, AnomalyCrack, AnomalyPressureDrop,
		AnomalyTemperature, AnomalyWallThinning, AnomalyStructuralDamage, AnomalyUnknown)
}

// Severity is ordered: info < low < medium < high < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal of the severity, or -1 when unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return -1
	}
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// UnmarshalText rejects unknown severities.
func (s *Severity) UnmarshalText(text []byte) error {
	return parseEnum(s, "severity", string(text),
		SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical)
}

// AnomalyReport describes one detected (or synthesized) anomaly.
type AnomalyReport struct {
	ID           string      `json:"id"`
	Kind         AnomalyKind `json:"anomaly_type"`
	Severity     Severity    `json:"severity"`
	Position     Position    `json:"position"`
	SectionID    string      `json:"section_id"`
	DetectedBy   string      `json:"detected_by"`
	Confidence   float64     `json:"confidence"`
	Description  string      `json:"description"`
	Timestamp    uint64      `json:"timestamp"`
	Acknowledged bool        `json:"acknowledged"`
}

// NewAnomalyReport allocates an id from ids and returns an unacknowledged report.
// Confidence is clamped to [0,1].
func NewAnomalyReport(ids IDSource, kind AnomalyKind, severity Severity, position Position, sectionID, detectedBy string, confidence float64, description string, ts uint64) AnomalyReport {
	if ids == nil {
		ids = DefaultIDSource()
	}
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	return AnomalyReport{
		ID:          ids.NextAnomalyID(ts),
		Kind:        kind,
		Severity:    severity,
		Position:    position,
		SectionID:   sectionID,
		DetectedBy:  detectedBy,
		Confidence:  confidence,
		Description: description,
		Timestamp:   ts,
	}
}

// IDSource hands out anomaly identifiers.
type IDSource interface {
	NextAnomalyID(ts uint64) string
}

// CounterIDSource formats ids as ANM-<hex ts>-<hex counter>. The counter
// alone guarantees uniqueness within one source.
type CounterIDSource struct {
	next atomic.Uint64
}

// NextAnomalyID implements IDSource.
func (c *CounterIDSource) NextAnomalyID(ts uint64) string {
	n := c.next.Add(1) - 1
	return fmt.Sprintf("ANM-%X-%04X", ts, n)
}

var processIDs CounterIDSource

// DefaultIDSource returns the process-wide anomaly id counter.
func DefaultIDSource() IDSource {
	return &processIDs
}
