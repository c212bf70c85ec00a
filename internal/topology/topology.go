// Package topology resolves the set of attached screens and the virtual desktop bounds that contain them.
package topology

import (
	"fmt"
	"log"
	"sync"
)

// Region represents one screen in virtual desktop coordinates.
// The origin may be negative when a screen sits above or left of the primary.
type Region struct {
	// Name is the display name reported by the environment (may be empty)
	Name string `json:"name,omitempty"`

	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`

	// Primary marks the main display when the environment reports it
	Primary bool `json:"primary,omitempty"`
}

// Valid reports whether the region has a positive size
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Right returns the exclusive right edge
func (r Region) Right() int {
	return r.X + r.Width
}

// Bottom returns the exclusive bottom edge
func (r Region) Bottom() int {
	return r.Y + r.Height
}

// Contains reports whether (x, y) lies inside the region
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Bounds is the bounding box spanning every region.
type Bounds struct {
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// Width returns MaxX - MinX
func (b Bounds) Width() int {
	return b.MaxX - b.MinX
}

// Height returns MaxY - MinY
func (b Bounds) Height() int {
	return b.MaxY - b.MinY
}

// Valid reports whether the bounds enclose a non-empty area
func (b Bounds) Valid() bool {
	return b.MaxX > b.MinX && b.MaxY > b.MinY
}

// Contains reports whether (x, y) lies within the closed bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

func (b Bounds) String() string {
	return fmt.Sprintf("x[%d..%d] y[%d..%d]", b.MinX, b.MaxX, b.MinY, b.MaxY)
}

// Source enumerates screen regions from the environment
type Source interface {
	Regions() ([]Region, error)
}

// SourceFunc adapts a function literal to the Source interface.
type SourceFunc func() ([]Region, error)

// Regions calls the underlying function.
func (f SourceFunc) Regions() ([]Region, error) {
	return f()
}

// StaticSource serves a fixed region list, e.g. from configuration
type StaticSource []Region

// Regions returns a copy of the configured regions
func (s StaticSource) Regions() ([]Region, error) {
	out := make([]Region, len(s))
	copy(out, s)
	return out, nil
}

// Fallback returns a single region at the origin with the given size
func Fallback(width, height int) Region {
	return Region{Name: "fallback", Width: width, Height: height, Primary: true}
}

// BoundsOf derives the bounding box of regions.
// Every region must be valid; callers normally go through Resolve.
func BoundsOf(regions []Region) (Bounds, error) {
	if len(regions) == 0 {
		return Bounds{}, ErrNoDisplays
	}

	b := Bounds{
		MinX: regions[0].X,
		MaxX: regions[0].Right(),
		MinY: regions[0].Y,
		MaxY: regions[0].Bottom(),
	}
	for _, r := range regions[1:] {
		b.MinX = min(b.MinX, r.X)
		b.MaxX = max(b.MaxX, r.Right())
		b.MinY = min(b.MinY, r.Y)
		b.MaxY = max(b.MaxY, r.Bottom())
	}

	if !b.Valid() {
		return b, ErrDegenerateBounds
	}
	return b, nil
}

// Resolve queries src and derives the bounds over every valid region.
// Regions with a non-positive size are skipped.
func Resolve(src Source) ([]Region, Bounds, error) {
	if src == nil {
		return nil, Bounds{}, ErrNoDisplays
	}

	raw, err := src.Regions()
	if err != nil {
		return nil, Bounds{}, fmt.Errorf("%w: %v", ErrNoDisplays, err)
	}

	regions := make([]Region, 0, len(raw))
	for _, r := range raw {
		if !r.Valid() {
			log.Printf("Topology: Skipping region %q with invalid size %dx%d", r.Name, r.Width, r.Height)
			continue
		}
		regions = append(regions, r)
	}

	bounds, err := BoundsOf(regions)
	if err != nil {
		return nil, Bounds{}, err
	}
	return regions, bounds, nil
}

// RegionAt returns the index of the first region containing (x, y), or -1
func RegionAt(regions []Region, x, y int) int {
	for i, r := range regions {
		if r.Contains(x, y) {
			return i
		}
	}
	return -1
}

// Topology is the result of one resolution pass.
type Topology struct {
	Regions []Region `json:"regions"`
	Bounds  Bounds   `json:"bounds"`

	// Fallback is set when Regions holds the configured fallback instead of real screens
	Fallback bool `json:"fallback"`

	// Err keeps the resolution failure, if any, even when a fallback was applied
	Err error `json:"-"`
}

// Usable reports whether the topology is good enough for visualization
func (t Topology) Usable() bool {
	return t.Err == nil && len(t.Regions) > 0
}

// Resolver caches the last resolved topology and refreshes it on request
type Resolver struct {
	mu       sync.RWMutex
	source   Source
	fallback *Region
	current  Topology
}

// NewResolver creates a resolver. A nil fallback disables the fallback region.
func NewResolver(src Source, fallback *Region) *Resolver {
	return &Resolver{
		source:   src,
		fallback: fallback,
	}
}

// Refresh re-queries the source and stores the result
func (r *Resolver) Refresh() Topology {
	regions, bounds, err := Resolve(r.source)

	topo := Topology{Regions: regions, Bounds: bounds}
	if err != nil {
		topo = Topology{Err: err}
		if r.fallback != nil && r.fallback.Valid() {
			fb := *r.fallback
			topo.Regions = []Region{fb}
			topo.Bounds, _ = BoundsOf(topo.Regions)
			topo.Fallback = true
			log.Printf("Topology: Warning: %v, using fallback region %dx%d", err, fb.Width, fb.Height)
		} else {
			log.Printf("Topology: %v", err)
		}
	} else {
		log.Printf("Topology: Resolved %d region(s), bounds %s", len(regions), bounds)
	}

	r.mu.Lock()
	r.current = topo
	r.mu.Unlock()
	return topo
}

// Current returns the last resolved topology
func (r *Resolver) Current() Topology {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := r.current
	t.Regions = append([]Region(nil), r.current.Regions...)
	return t
}
