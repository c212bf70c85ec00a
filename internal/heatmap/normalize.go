// Package heatmap turns recorded samples into a fixed-resolution density grid.
//
// Coordinates stay in signed virtual desktop space everywhere: a screen above
// or left of the primary keeps its negative origin in the grid and in the
// overlay. Samples outside the bounds are clamped onto the nearest edge so
// that every sample is counted exactly once.
package heatmap

import (
	"pointerheat/internal/store"
	"pointerheat/internal/topology"
)

// Point is a normalized sample position
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Normalize maps a raw sample into b, clamping out-of-range coordinates.
func Normalize(s store.Sample, b topology.Bounds) Point {
	return Point{
		X: clamp(float64(s.X), float64(b.MinX), float64(b.MaxX)),
		Y: clamp(float64(s.Y), float64(b.MinY), float64(b.MaxY)),
	}
}

// NormalizeAll applies Normalize to every sample, preserving order
func NormalizeAll(samples []store.Sample, b topology.Bounds) []Point {
	points := make([]Point, len(samples))
	for i, s := range samples {
		points[i] = Normalize(s, b)
	}
	return points
}

// Clamped reports whether Normalize would move the sample
func Clamped(s store.Sample, b topology.Bounds) bool {
	return !b.Contains(s.X, s.Y)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
