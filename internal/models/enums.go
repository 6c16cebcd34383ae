package models

import "fmt"

// UnitKind identifies the platform class of a fleet unit.
type UnitKind string

const (
	UnitKindRover   UnitKind = "rover"
	UnitKindDrone   UnitKind = "drone"
	UnitKindCrawler UnitKind = "crawler"
)

// UnitStatus captures the operational status of a unit.
type UnitStatus string

const (
	StatusActive      UnitStatus = "active"
	StatusIdle        UnitStatus = "idle"
	StatusMaintenance UnitStatus = "maintenance"
	StatusError       UnitStatus = "error"
	StatusOffline     UnitStatus = "offline"
)

// HealthStatus is the coarse health tier reported by a unit.
type HealthStatus string

const (
	HealthOptimal  HealthStatus = "optimal"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// ScanKind enumerates sensor sweeps a unit can run.
type ScanKind string

const (
	ScanFull          ScanKind = "full"
	ScanLeakDetection ScanKind = "leak_detection"
	ScanThermal       ScanKind = "thermal"
	ScanUltrasonic    ScanKind = "ultrasonic"
	ScanVisual        ScanKind = "visual"
)

// FaultKind enumerates faults that can be injected for chaos drills.
type FaultKind string

const (
	FaultLowBattery    FaultKind = "low_battery"
	FaultSensorFailure FaultKind = "sensor_failure"
	FaultCommDropout   FaultKind = "comm_dropout"
	FaultMotorFailure  FaultKind = "motor_failure"
	FaultGPSDrift      FaultKind = "gps_drift"
)

// UnmarshalText rejects unknown unit kinds.
func (k *UnitKind) UnmarshalText(text []byte) error {
	return parseEnum(k, "unit kind", string(text), UnitKindRover, UnitKindDrone, UnitKindCrawler)
}

// UnmarshalText rejects unknown statuses.
func (s *UnitStatus) UnmarshalText(text []byte) error {
	return parseEnum(s, "unit status", string(text), StatusActive, StatusIdle, StatusMaintenance, StatusError, StatusOffline)
}

// UnmarshalText rejects unknown health tiers.
func (h *HealthStatus) UnmarshalText(text []byte) error {
	return parseEnum(h, "health status", string(text), HealthOptimal, HealthWarning, HealthCritical)
}

// UnmarshalText rejects unknown scan kinds.
func (s *ScanKind) UnmarshalText(text []byte) error {
	return parseEnum(s, "scan kind", string(text), ScanFull, ScanLeakDetection, ScanThermal, ScanUltrasonic, ScanVisual)
}

// UnmarshalText rejects unknown fault kinds.
func (f *FaultKind) UnmarshalText(text []byte) error {
	return parseEnum(f, "fault kind", string(text), FaultLowBattery, FaultSensorFailure, FaultCommDropout, FaultMotorFailure, FaultGPSDrift)
}

func parseEnum[T ~string](dst *T, name, raw string, valid ...T) error {
	for _, v := range valid {
		if string(v) == raw {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", name, raw)
}
