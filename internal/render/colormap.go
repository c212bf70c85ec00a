// Package render draws density grids as PNG images, terminal views and
// activity timelines.
package render

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Background is the color of empty cells
var Background = colorful.Color{R: 0.07, G: 0.07, B: 0.1}

// plasma stops, dark to bright
var plasma = []colorful.Color{
	colorful.MustParseHex("#0d0887"),
	colorful.MustParseHex("#6a00a8"),
	colorful.MustParseHex("#b12a90"),
	colorful.MustParseHex("#e16462"),
	colorful.MustParseHex("#fca636"),
	colorful.MustParseHex("#f0f921"),
}

// Colormap maps an intensity in [0, 1] to a color.
// Zero maps to Background; everything above blends through the plasma stops.
func Colormap(t float64) colorful.Color {
	if t <= 0 || math.IsNaN(t) {
		return Background
	}
	if t >= 1 {
		return plasma[len(plasma)-1]
	}

	pos := t * float64(len(plasma)-1)
	i := int(pos)
	return plasma[i].BlendLab(plasma[i+1], pos-float64(i)).Clamped()
}

// RGBA converts a colormap color for image/draw
func RGBA(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// normalize scales values by their maximum so the hottest cell is 1
func normalize(values [][]float64) [][]float64 {
	peak := 0.0
	for _, col := range values {
		for _, v := range col {
			if v > peak {
				peak = v
			}
		}
	}
	out := make([][]float64, len(values))
	for i, col := range values {
		out[i] = make([]float64, len(col))
		if peak == 0 {
			continue
		}
		for j, v := range col {
			out[i][j] = v / peak
		}
	}
	return out
}
