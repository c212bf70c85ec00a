package heatmap

import (
	"errors"
	"fmt"
	"sort"

	"pointerheat/internal/store"
	"pointerheat/internal/topology"
)

// DefaultResolution is the number of cells per axis when none is configured
const DefaultResolution = 120

// ErrInvalidResolution is returned for a resolution below one cell
var ErrInvalidResolution = errors.New("resolution must be at least 1")

// Grid is a 2-D histogram of sample counts over Bounds.
// Counts is indexed [x][y]; cell (0, 0) covers (MinX, MinY).
type Grid struct {
	Counts      [][]int         `json:"counts"`
	ResolutionX int             `json:"resolution_x"`
	ResolutionY int             `json:"resolution_y"`
	Bounds      topology.Bounds `json:"bounds"`
	Total       int             `json:"total"`
}

// NewGrid allocates an all-zero grid
func NewGrid(b topology.Bounds, rx, ry int) (*Grid, error) {
	if rx < 1 || ry < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidResolution, rx, ry)
	}
	if !b.Valid() {
		return nil, fmt.Errorf("%w: %s", topology.ErrDegenerateBounds, b)
	}

	counts := make([][]int, rx)
	cells := make([]int, rx*ry)
	for i := range counts {
		counts[i] = cells[i*ry : (i+1)*ry : (i+1)*ry]
	}
	return &Grid{
		Counts:      counts,
		ResolutionX: rx,
		ResolutionY: ry,
		Bounds:      b,
	}, nil
}

// Bin counts points into a rx x ry grid over b.
// Each axis is split into equal half-open intervals, the last one closed,
// so a point on MaxX/MaxY lands in the last cell.
func Bin(points []Point, b topology.Bounds, rx, ry int) (*Grid, error) {
	g, err := NewGrid(b, rx, ry)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		g.Add(p)
	}
	return g, nil
}

// Build normalizes samples against b and bins them
func Build(samples []store.Sample, b topology.Bounds, rx, ry int) (*Grid, error) {
	return Bin(NormalizeAll(samples, b), b, rx, ry)
}

// Add increments the cell containing p
func (g *Grid) Add(p Point) {
	i := cellIndex(p.X, float64(g.Bounds.MinX), float64(g.Bounds.MaxX), g.ResolutionX)
	j := cellIndex(p.Y, float64(g.Bounds.MinY), float64(g.Bounds.MaxY), g.ResolutionY)
	g.Counts[i][j]++
	g.Total++
}

func cellIndex(v, lo, hi float64, n int) int {
	// Multiply before dividing so integer edges land exactly
	idx := int((v - lo) * float64(n) / (hi - lo))
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// At returns the count of cell (i, j), or 0 outside the grid
func (g *Grid) At(i, j int) int {
	if i < 0 || i >= g.ResolutionX || j < 0 || j >= g.ResolutionY {
		return 0
	}
	return g.Counts[i][j]
}

// Max returns the highest cell count
func (g *Grid) Max() int {
	m := 0
	for _, col := range g.Counts {
		for _, c := range col {
			m = max(m, c)
		}
	}
	return m
}

// Sum adds up every cell
func (g *Grid) Sum() int {
	sum := 0
	for _, col := range g.Counts {
		for _, c := range col {
			sum += c
		}
	}
	return sum
}

// NonZero returns the number of cells with at least one sample
func (g *Grid) NonZero() int {
	n := 0
	for _, col := range g.Counts {
		for _, c := range col {
			if c > 0 {
				n++
			}
		}
	}
	return n
}

// Intensity returns the count of (i, j) scaled to 0..1 against the maximum
func (g *Grid) Intensity(i, j int) float64 {
	m := g.Max()
	if m == 0 {
		return 0
	}
	return float64(g.At(i, j)) / float64(m)
}

// CellRect is the area of the desktop covered by one cell
type CellRect struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// CellBounds returns the desktop area of cell (i, j)
func (g *Grid) CellBounds(i, j int) CellRect {
	w := float64(g.Bounds.Width()) / float64(g.ResolutionX)
	h := float64(g.Bounds.Height()) / float64(g.ResolutionY)
	x0 := float64(g.Bounds.MinX) + float64(i)*w
	y0 := float64(g.Bounds.MinY) + float64(j)*h
	return CellRect{MinX: x0, MaxX: x0 + w, MinY: y0, MaxY: y0 + h}
}

// Hotspot is one cell with its count
type Hotspot struct {
	I     int      `json:"i"`
	J     int      `json:"j"`
	Count int      `json:"count"`
	Area  CellRect `json:"area"`

	// Intensity is Count relative to the busiest cell
	Intensity float64 `json:"intensity"`
}

// Hotspots returns up to n non-empty cells with the highest counts.
// Ties are ordered by column then row.
func (g *Grid) Hotspots(n int) []Hotspot {
	var spots []Hotspot
	for i, col := range g.Counts {
		for j, c := range col {
			if c > 0 {
				spots = append(spots, Hotspot{I: i, J: j, Count: c})
			}
		}
	}
	sort.SliceStable(spots, func(a, b int) bool {
		return spots[a].Count > spots[b].Count
	})
	if n >= 0 && len(spots) > n {
		spots = spots[:n]
	}
	for k := range spots {
		spots[k].Area = g.CellBounds(spots[k].I, spots[k].J)
		spots[k].Intensity = g.Intensity(spots[k].I, spots[k].J)
	}
	return spots
}
