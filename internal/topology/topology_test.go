package topology

import (
	"errors"
	"testing"
)

func twoScreens() []Region {
	return []Region{
		{Name: "A", X: 0, Y: 0, Width: 1512, Height: 982, Primary: true},
		{Name: "B", X: -217, Y: 982, Width: 1920, Height: 1080},
	}
}

// TestResolveTwoScreens checks the bounds of a laptop with an external screen below-left
func TestResolveTwoScreens(t *testing.T) {
	regions, b, err := Resolve(StaticSource(twoScreens()))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("Expected 2 regions, got %d", len(regions))
	}

	want := Bounds{MinX: -217, MaxX: 1703, MinY: 0, MaxY: 2062}
	if b != want {
		t.Errorf("Expected bounds %v, got %v", want, b)
	}
	if b.Width() != 1920 || b.Height() != 2062 {
		t.Errorf("Expected 1920x2062, got %dx%d", b.Width(), b.Height())
	}

	if idx := RegionAt(regions, 0, 0); idx != 0 {
		t.Errorf("Expected (0,0) in region A, got index %d", idx)
	}
	if idx := RegionAt(regions, -100, 1000); idx != 1 {
		t.Errorf("Expected (-100,1000) in region B, got index %d", idx)
	}
	if idx := RegionAt(regions, 1600, 100); idx != -1 {
		t.Errorf("Expected (1600,100) outside every region, got index %d", idx)
	}
}

// TestResolveNegativeOrigins covers screens above and left of the primary
func TestResolveNegativeOrigins(t *testing.T) {
	src := StaticSource{
		{X: 0, Y: 0, Width: 1920, Height: 1080},
		{X: -1280, Y: -1024, Width: 1280, Height: 1024},
	}
	_, b, err := Resolve(src)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := Bounds{MinX: -1280, MaxX: 1920, MinY: -1024, MaxY: 1080}
	if b != want {
		t.Errorf("Expected bounds %v, got %v", want, b)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		src  Source
	}{
		{"nil source", nil},
		{"empty", StaticSource{}},
		{"only invalid regions", StaticSource{{Width: 0, Height: 100}, {Width: 100, Height: -1}}},
		{"source failure", SourceFunc(func() ([]Region, error) { return nil, errors.New("no display server") })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Resolve(tt.src)
			if !errors.Is(err, ErrNoDisplays) {
				t.Errorf("Expected ErrNoDisplays, got %v", err)
			}
		})
	}
}

func TestResolveSkipsInvalidRegions(t *testing.T) {
	src := StaticSource{
		{X: 0, Y: 0, Width: 800, Height: 600},
		{X: 5000, Y: 5000, Width: 0, Height: 0},
	}
	regions, b, err := Resolve(src)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(regions) != 1 {
		t.Errorf("Expected 1 region, got %d", len(regions))
	}
	if b.MaxX != 800 || b.MaxY != 600 {
		t.Errorf("Expected invalid region to be ignored, got bounds %v", b)
	}
}

func TestResolverFallback(t *testing.T) {
	fb := Fallback(1920, 1080)
	r := NewResolver(StaticSource{}, &fb)

	topo := r.Refresh()
	if !topo.Fallback {
		t.Fatal("Expected fallback topology")
	}
	if !errors.Is(topo.Err, ErrNoDisplays) {
		t.Errorf("Expected fallback to keep ErrNoDisplays, got %v", topo.Err)
	}
	if topo.Usable() {
		t.Error("Expected fallback topology to be unusable for visualization")
	}
	if topo.Bounds != (Bounds{MinX: 0, MaxX: 1920, MinY: 0, MaxY: 1080}) {
		t.Errorf("Unexpected fallback bounds %v", topo.Bounds)
	}
}

func TestResolverWithoutFallback(t *testing.T) {
	r := NewResolver(StaticSource{}, nil)
	topo := r.Refresh()
	if topo.Fallback || len(topo.Regions) != 0 {
		t.Errorf("Expected empty topology without fallback, got %+v", topo)
	}
	if topo.Err == nil {
		t.Error("Expected error without fallback")
	}
}

func TestResolverCurrentIsCopy(t *testing.T) {
	r := NewResolver(StaticSource(twoScreens()), nil)
	r.Refresh()

	cur := r.Current()
	cur.Regions[0].Width = 1

	if r.Current().Regions[0].Width != 1512 {
		t.Error("Expected Current to return an independent copy")
	}
	if !r.Current().Usable() {
		t.Error("Expected resolved topology to be usable")
	}
}
