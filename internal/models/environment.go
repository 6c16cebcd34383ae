package models

// Hazard thresholds for pipe environment readings.
const (
	HazardH2PPM       = 4000.0
	HazardPressure    = 100.0
	HazardTemperature = 80.0
)

// EnvironmentReading is one sensor sample for a pipeline section.
type EnvironmentReading struct {
	SectionID       string   `json:"section_id"`
	Pressure        float64  `json:"pressure"`
	Temperature     float64  `json:"temperature"`
	H2Concentration float64  `json:"h2_concentration"`
	WallThickness   float64  `json:"wall_thickness"`
	FlowRate        float64  `json:"flow_rate"`
	Humidity        float64  `json:"humidity"`
	Position        Position `json:"position"`
	Timestamp       uint64   `json:"timestamp"`
}

// IsHazardous reports whether any reading strictly exceeds its threshold.
func (e EnvironmentReading) IsHazardous() bool {
	return e.H2Concentration > HazardH2PPM ||
		e.Pressure > HazardPressure ||
		e.Temperature > HazardTemperature
}
