package model

import "math"

// Point is a position in the scene plane, in kilometres.
type Point struct {
	X float64
	Y float64
}

// Add returns p + other.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns p - other.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale multiplies both coordinates by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Dot returns the dot product of two points treated as vectors.
func (p Point) Dot(other Point) float64 {
	return p.X*other.X + p.Y*other.Y
}

// DistanceTo returns the straight-line distance between two points.
func (p Point) DistanceTo(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}
