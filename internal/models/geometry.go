package models

import "math"

// Position is a point in the plant coordinate frame, in metres.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Origin returns the (0,0,0) position.
func Origin() Position {
	return Position{}
}

// DistanceTo returns the euclidean distance between two positions.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Velocity is expressed in metres per second along each axis.
type Velocity struct {
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	VZ float64 `json:"vz"`
}

// Magnitude returns the scalar speed.
func (v Velocity) Magnitude() float64 {
	return math.Sqrt(v.VX*v.VX + v.VY*v.VY + v.VZ*v.VZ)
}
