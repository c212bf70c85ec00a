package heatmap

import "math"

// Smooth returns the grid counts blurred with a separable gaussian of the
// given sigma (in cells). A sigma <= 0 returns the raw counts as floats.
// Edges are handled by renormalizing the kernel over the cells that exist,
// so the total mass is preserved.
func (g *Grid) Smooth(sigma float64) [][]float64 {
	out := make([][]float64, g.ResolutionX)
	for i := range out {
		out[i] = make([]float64, g.ResolutionY)
		for j := range out[i] {
			out[i][j] = float64(g.Counts[i][j])
		}
	}
	if sigma <= 0 {
		return out
	}

	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2

	// Spread each cell along x, then along y
	tmp := make([][]float64, g.ResolutionX)
	for i := range tmp {
		tmp[i] = make([]float64, g.ResolutionY)
	}
	spread(out, tmp, kernel, radius, g.ResolutionX, g.ResolutionY, true)
	for i := range out {
		clear(out[i])
	}
	spread(tmp, out, kernel, radius, g.ResolutionX, g.ResolutionY, false)
	return out
}

func spread(src, dst [][]float64, kernel []float64, radius, rx, ry int, alongX bool) {
	n := rx
	if !alongX {
		n = ry
	}
	for i := 0; i < rx; i++ {
		for j := 0; j < ry; j++ {
			v := src[i][j]
			if v == 0 {
				continue
			}
			pos := i
			if !alongX {
				pos = j
			}

			lo := max(0, pos-radius)
			hi := min(n-1, pos+radius)
			weight := 0.0
			for k := lo; k <= hi; k++ {
				weight += kernel[k-pos+radius]
			}
			for k := lo; k <= hi; k++ {
				share := v * kernel[k-pos+radius] / weight
				if alongX {
					dst[k][j] += share
				} else {
					dst[i][k] += share
				}
			}
		}
	}
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	for k := -radius; k <= radius; k++ {
		kernel[k+radius] = math.Exp(-float64(k*k) / (2 * sigma * sigma))
	}
	return kernel
}
