package simulator

import "github.com/aetherisstack/aetheris-engine/internal/models"

// MockFleet returns the five demo units stamped at ts: two rovers, a drone
// and two crawlers, one of which is low on battery and heading home.
func MockFleet(ts uint64) []models.UnitState {
	return []models.UnitState{
		{
			ID:          "RV-001",
			Name:        "Rover Alpha",
			Kind:        models.UnitKindRover,
			Position:    models.Position{X: -2, Y: 0, Z: 1},
			Velocity:    models.Velocity{VX: 1.2},
			Battery:     87,
			Signal:      95,
			Health:      models.HealthOptimal,
			Status:      models.StatusActive,
			CurrentTask: models.Patrolling("ROUTE-A1"),
			Timestamp:   ts,
		},
		{
			ID:          "RV-002",
			Name:        "Rover Beta",
			Kind:        models.UnitKindRover,
			Position:    models.Position{X: 2, Y: 0, Z: -1},
			Velocity:    models.Velocity{VX: 0.8},
			Battery:     62,
			Signal:      78,
			Health:      models.HealthWarning,
			Status:      models.StatusActive,
			CurrentTask: models.Scanning(models.ScanLeakDetection),
			Timestamp:   ts,
		},
		{
			ID:          "DR-001",
			Name:        "Drone Hawk",
			Kind:        models.UnitKindDrone,
			Position:    models.Position{X: 1, Y: 3, Z: 0},
			Velocity:    models.Velocity{VX: 8.5},
			Battery:     94,
			Signal:      99,
			Health:      models.HealthOptimal,
			Status:      models.StatusActive,
			CurrentTask: models.Patrolling("ROUTE-AIR-1"),
			Timestamp:   ts,
		},
		{
			ID:       "CR-001",
			Name:     "Crawler Alpha",
			Kind:     models.UnitKindCrawler,
			Position: models.Position{X: 0, Y: -0.5, Z: 5},
			Velocity: models.Velocity{VX: 0.3},
			Battery:  71,
			// weaker signal inside the pipe
			Signal:      65,
			Health:      models.HealthOptimal,
			Status:      models.StatusActive,
			CurrentTask: models.Scanning(models.ScanUltrasonic),
			Timestamp:   ts,
		},
		{
			ID:          "CR-002",
			Name:        "Crawler Beta",
			Kind:        models.UnitKindCrawler,
			Position:    models.Position{X: 3, Y: -0.5, Z: 8},
			Battery:     23,
			Signal:      45,
			Health:      models.HealthCritical,
			Status:      models.StatusMaintenance,
			CurrentTask: models.ReturningToBase(),
			Timestamp:   ts,
		},
	}
}
